package tx

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
)

// ValidDestination reports whether addr is a syntactically valid P2PKH address.
func ValidDestination(addr string) bool {
	if addr == "" {
		return false
	}
	_, err := script.NewAddressFromString(addr)
	return err == nil
}

// ValidKey reports whether wif decodes to a private key.
func ValidKey(wif string) bool {
	if wif == "" {
		return false
	}
	_, err := ec.PrivateKeyFromWif(wif)
	return err == nil
}

// AddressFromKey returns the compressed P2PKH address controlled by wif.
func AddressFromKey(wif string, mainnet bool) (string, error) {
	priv, err := ec.PrivateKeyFromWif(wif)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	addr, err := script.NewAddressFromPublicKey(priv.PubKey(), mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: address from pubkey: %w", ErrScriptBuild, err)
	}
	return addr.AddressString, nil
}

// LockingScript returns the P2PKH locking script paying addr.
func LockingScript(addr string) (*script.Script, error) {
	a, err := script.NewAddressFromString(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, addr, err)
	}
	s, err := p2pkh.Lock(a)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock: %w", ErrScriptBuild, err)
	}
	return s, nil
}

// BuildP2PKHScript creates a P2PKH locking script for the given public key.
func BuildP2PKHScript(pubKey *ec.PublicKey) ([]byte, error) {
	if pubKey == nil {
		return nil, fmt.Errorf("%w: public key", ErrNilParam)
	}
	addr, err := script.NewAddressFromPublicKey(pubKey, true)
	if err != nil {
		return nil, fmt.Errorf("%w: address from pubkey: %w", ErrScriptBuild, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock script: %w", ErrScriptBuild, err)
	}
	return []byte(*lockScript), nil
}

// AddressValidator checks P2PKH destinations and WIF keys with go-sdk.
type AddressValidator struct{}

func (AddressValidator) ValidDestination(addr string) bool { return ValidDestination(addr) }
func (AddressValidator) ValidKey(key string) bool          { return ValidKey(key) }
