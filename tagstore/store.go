// Package tagstore persists outpoint classifications in a bbolt database
// so the UTXO builder can tell asset-bearing units from plain ones.
//
// Tags are keyed by outpoint ("txid:vout") and indexed by asset id.
// Delete removes tags once the outpoints are spent.
package tagstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libtxbuild-go/utxo"
)

// FileName is the database file inside the data directory.
const FileName = "tags.db"

var (
	bucketTags    = []byte("tags")
	bucketByAsset = []byte("tags_by_asset")
)

// Store wraps a bbolt database. It is safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path. The parent directory is
// created if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("tagstore: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("tagstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketTags, bucketByAsset} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tagstore: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenDir opens FileName inside dataDir.
func OpenDir(dataDir string) (*Store, error) {
	return Open(filepath.Join(dataDir, FileName))
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores tags, replacing existing tags for the same outpoints.
func (s *Store) Put(tags ...utxo.Tag) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, t := range tags {
			if t.TxID == "" {
				return fmt.Errorf("%w: tag outpoint", ErrNilParam)
			}
			if err := remove(tx, t.Outpoint); err != nil {
				return err
			}
			data, err := encodeGob(t)
			if err != nil {
				return fmt.Errorf("tagstore: encode tag: %w", err)
			}
			if err := tx.Bucket(bucketTags).Put(outpointKey(t.Outpoint), data); err != nil {
				return fmt.Errorf("tagstore: put tag: %w", err)
			}
			if t.AssetID == "" {
				continue
			}
			if err := tx.Bucket(bucketByAsset).Put(assetKey(t.AssetID, t.Outpoint), nil); err != nil {
				return fmt.Errorf("tagstore: put asset index: %w", err)
			}
		}
		return nil
	})
}

// Get returns the tag for op.
func (s *Store) Get(op utxo.Outpoint) (*utxo.Tag, error) {
	var t utxo.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTags).Get(outpointKey(op))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, op)
		}
		return decodeGob(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes the tags of ops. Unknown outpoints are ignored.
func (s *Store) Delete(ops ...utxo.Outpoint) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, op := range ops {
			if err := remove(tx, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func remove(tx *bbolt.Tx, op utxo.Outpoint) error {
	tags := tx.Bucket(bucketTags)
	data := tags.Get(outpointKey(op))
	if data == nil {
		return nil
	}
	var old utxo.Tag
	if err := decodeGob(data, &old); err != nil {
		return fmt.Errorf("tagstore: decode tag %s: %w", op, err)
	}
	if old.AssetID != "" {
		if err := tx.Bucket(bucketByAsset).Delete(assetKey(old.AssetID, op)); err != nil {
			return fmt.Errorf("tagstore: delete asset index: %w", err)
		}
	}
	if err := tags.Delete(outpointKey(op)); err != nil {
		return fmt.Errorf("tagstore: delete tag: %w", err)
	}
	return nil
}

// List returns every stored tag in outpoint order.
func (s *Store) List() ([]utxo.Tag, error) {
	var tags []utxo.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTags).ForEach(func(_, v []byte) error {
			var t utxo.Tag
			if err := decodeGob(v, &t); err != nil {
				return fmt.Errorf("tagstore: decode tag: %w", err)
			}
			tags = append(tags, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ListByAsset returns the tags holding assetID.
func (s *Store) ListByAsset(assetID string) ([]utxo.Tag, error) {
	prefix := assetPrefix(assetID)
	var tags []utxo.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTags)
		c := tx.Bucket(bucketByAsset).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := b.Get(k[len(prefix):])
			if data == nil {
				continue // stale index entry
			}
			var t utxo.Tag
			if err := decodeGob(data, &t); err != nil {
				return fmt.Errorf("tagstore: decode tag: %w", err)
			}
			tags = append(tags, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Annotate classifies units from the stored tags. It satisfies the UTXO
// builder's asset indexer.
func (s *Store) Annotate(_ context.Context, _ string, units []utxo.Unit) ([]utxo.Unit, error) {
	idx := make(utxo.Index, len(units))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTags)
		for _, u := range units {
			data := b.Get(outpointKey(u.Outpoint))
			if data == nil {
				continue
			}
			var t utxo.Tag
			if err := decodeGob(data, &t); err != nil {
				return fmt.Errorf("tagstore: decode tag %s: %w", u.Outpoint, err)
			}
			idx[t.Outpoint] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx.Apply(units), nil
}

func outpointKey(op utxo.Outpoint) []byte { return []byte(op.String()) }

// assetPrefix is assetID followed by a NUL separator, so "DOG" never
// matches tags of "DOGE".
func assetPrefix(assetID string) []byte {
	return append([]byte(assetID), 0)
}

func assetKey(assetID string, op utxo.Outpoint) []byte {
	return append(assetPrefix(assetID), outpointKey(op)...)
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
