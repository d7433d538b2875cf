package builder

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libtxbuild-go/envelope"
	"github.com/bitfsorg/libtxbuild-go/network"
	"github.com/bitfsorg/libtxbuild-go/report"
	"github.com/bitfsorg/libtxbuild-go/tx"
	"github.com/bitfsorg/libtxbuild-go/utxo"
)

type wallet struct {
	wif  string
	addr string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := tx.AddressFromKey(priv.Wif(), true)
	require.NoError(t, err)
	return wallet{wif: priv.Wif(), addr: addr}
}

func scriptOf(b []byte) *script.Script {
	s := script.Script(b)
	return &s
}

func txid(seed byte) string { return hex.EncodeToString(bytes.Repeat([]byte{seed}, 32)) }

// fixture wires a Builder to a mock service holding units for the sender.
type fixture struct {
	sender    wallet
	recipient wallet
	collector wallet
	service   *network.MockService
	hook      *logtest.Hook
	builder   *Builder
}

func newFixture(t *testing.T, idx utxo.Index, units ...*network.UTXO) *fixture {
	t.Helper()
	f := &fixture{sender: newWallet(t), recipient: newWallet(t), collector: newWallet(t)}
	f.service = &network.MockService{
		ListUnspentFn: func(_ context.Context, address string) ([]*network.UTXO, error) {
			assert.Equal(t, f.sender.addr, address)
			return units, nil
		},
		FeeRatesFn: func(context.Context) (*network.FeeRates, error) {
			return &network.FeeRates{Low: 1, Medium: 2, High: 3}, nil
		},
		BroadcastTxFn: func(_ context.Context, raw string) (string, error) {
			parsed, err := transaction.NewTransactionFromHex(raw)
			require.NoError(t, err)
			return parsed.TxID().String(), nil
		},
	}
	policy, err := NewFeePolicy(0.5, 10000, f.collector.addr)
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.hook = hook

	cfg := Config{Service: f.service, Fees: policy, Logger: logger}
	if idx != nil {
		cfg.Indexer = idx
	}
	f.builder, err = New(cfg)
	require.NoError(t, err)
	return f
}

func plainUTXO(seed byte, value uint64) *network.UTXO {
	return &network.UTXO{TxID: txid(seed), Vout: 0, Amount: value}
}

// assertBalanced checks the reported outputs and fee against the inputs
// and the dust rule.
func assertBalanced(t *testing.T, r *report.Result) {
	t.Helper()
	var in, out uint64
	for _, i := range r.Inputs {
		in += i.Value
	}
	for _, o := range r.Outputs {
		out += o.Value
		if o.Kind != "data" {
			assert.GreaterOrEqual(t, o.Value, tx.DustLimit, "output %d", o.Index)
		}
	}
	assert.Equal(t, in, out+r.MinerFee)
	assert.Equal(t, r.MinerFee+r.ProtocolFee, r.TotalFee)
	assert.NotEmpty(t, r.RawTx)
	assert.Len(t, r.TxID, 64)
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilParam)
	_, err = New(Config{Service: &network.MockService{}})
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestTransfer_WaivedFee(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 100000), plainUTXO(2, 200000))

	// 0.5% of 100000 is 500, below the dust limit.
	r, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 100000}, f.sender.wif, FeeHint{Rate: 5})
	require.NoError(t, err)
	assertBalanced(t, r)

	require.Len(t, r.Inputs, 1)
	assert.Equal(t, uint64(200000), r.Inputs[0].Value)
	require.Len(t, r.Outputs, 2)
	assert.Equal(t, f.recipient.addr, r.Outputs[0].Address)
	assert.Equal(t, uint64(100000), r.Outputs[0].Value)
	assert.Equal(t, "change", r.Outputs[1].Kind)
	assert.Equal(t, uint64(700), r.MinerFee) // (10 + 68 + 2*31) * 5
	assert.Equal(t, uint64(99300), r.Outputs[1].Value)
	assert.Zero(t, r.ProtocolFee)
	assert.Equal(t, "native", r.Protocol)
}

func TestTransfer_RequiredFee(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 300000))

	r, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 200000}, f.sender.wif, FeeHint{Rate: 5})
	require.NoError(t, err)
	assertBalanced(t, r)

	require.Len(t, r.Outputs, 3)
	assert.Equal(t, "payment", r.Outputs[0].Purpose)
	assert.Equal(t, "protocol_fee", r.Outputs[1].Purpose)
	assert.Equal(t, f.collector.addr, r.Outputs[1].Address)
	assert.Equal(t, uint64(1000), r.Outputs[1].Value)
	assert.Equal(t, "change", r.Outputs[2].Kind)
	assert.Equal(t, uint64(1000), r.ProtocolFee)
	assert.Equal(t, uint64(855), r.MinerFee) // (10 + 68 + 3*31) * 5
	assert.Equal(t, uint64(1855), r.TotalFee)
}

func TestTransfer_FeeMarketRate(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 300000))

	r, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 10000}, f.sender.wif, FeeHint{Priority: network.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.FeeRate)

	r, err = f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 10000}, f.sender.wif, FeeHint{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.FeeRate)
}

func TestTransfer_ValidationBeforeNetwork(t *testing.T) {
	f := newFixture(t, nil)
	// Any network call would panic on the nil function fields.
	f.service.ListUnspentFn = nil
	f.service.FeeRatesFn = nil

	ctx := context.Background()
	tests := []struct {
		name   string
		sender string
		req    TransferRequest
		key    string
		hint   FeeHint
	}{
		{"bad destination", f.sender.addr, TransferRequest{To: "nope", Amount: 1000}, f.sender.wif, FeeHint{}},
		{"dust amount", f.sender.addr, TransferRequest{To: f.recipient.addr, Amount: 545}, f.sender.wif, FeeHint{}},
		{"bad sender", "", TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{}},
		{"bad key", f.sender.addr, TransferRequest{To: f.recipient.addr, Amount: 1000}, "not-a-wif", FeeHint{}},
		{"fee rate too high", f.sender.addr, TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 501}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.builder.Transfer(ctx, tt.sender, tt.req, tt.key, tt.hint)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestTransfer_NetworkErrors(t *testing.T) {
	cause := errors.New("connection reset")

	f := newFixture(t, nil)
	f.service.ListUnspentFn = func(context.Context, string) ([]*network.UTXO, error) { return nil, cause }
	_, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)

	f.service.FeeRatesFn = func(context.Context) (*network.FeeRates, error) { return nil, cause }
	_, err = f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 1000), plainUTXO(2, 900))
	_, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1500}, f.sender.wif, FeeHint{Rate: 5})
	assert.ErrorIs(t, err, utxo.ErrInsufficientFunds)
}

func TestTransfer_OnlyExcludedUnits(t *testing.T) {
	idx := utxo.NewIndex(
		utxo.Tag{Outpoint: utxo.Outpoint{TxID: txid(1)}, Category: utxo.Inscription},
		utxo.Tag{Outpoint: utxo.Outpoint{TxID: txid(2)}, Category: utxo.Token, AssetID: "840000:3", AssetAmount: 10},
	)
	f := newFixture(t, idx, plainUTXO(1, 50000), plainUTXO(2, 50000))
	_, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, utxo.ErrNoSpendableUnits)
}

func TestTransfer_SourceScriptsUsed(t *testing.T) {
	f := newFixture(t, nil)
	lock, err := tx.LockingScript(f.sender.addr)
	require.NoError(t, err)
	f.service.ListUnspentFn = func(context.Context, string) ([]*network.UTXO, error) {
		return []*network.UTXO{{TxID: txid(1), Amount: 50000, ScriptPubKey: hex.EncodeToString(*lock)}}, nil
	}
	_, err = f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)

	f.service.ListUnspentFn = func(context.Context, string) ([]*network.UTXO, error) {
		return []*network.UTXO{{TxID: txid(1), Amount: 50000, ScriptPubKey: "zz"}}, nil
	}
	_, err = f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestTransfer_Logs(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))
	r, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)

	last := f.hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "transaction built", last.Message)
	assert.Equal(t, r.TxID, last.Data["txid"])
	for _, e := range f.hook.AllEntries() {
		assert.NotContains(t, e.Data, "key")
		assert.NotContains(t, e.Data, "rawTx")
	}
}

type failingSigner struct{ err error }

func (s failingSigner) Sign(*transaction.Transaction, string) error { return s.err }

func TestTransfer_SigningFailure(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))
	cause := errors.New("hsm offline")
	f.builder.signer = failingSigner{err: cause}

	_, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, tx.ErrSigningFailed)
	assert.ErrorIs(t, err, cause)
}

func TestTransfer_ForeignKeyRejected(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 200000))
	other := newWallet(t)

	_, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, other.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, tx.ErrSigningFailed)
	assert.ErrorIs(t, err, tx.ErrKeyMismatch)

	f.service.BroadcastTxFn = func(context.Context, string) (string, error) {
		t.Fatal("unsigned transaction broadcast")
		return "", nil
	}
	_, err = f.builder.Send(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, other.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, tx.ErrSigningFailed)
}

func TestInscribe_FundingCoversCostAndFlatFee(t *testing.T) {
	content := bytes.Repeat([]byte{'a'}, 50)
	req := InscriptionRequest{ContentType: "text/plain", Content: content}
	// 546 + (100 + len(content type) + len(content)) * 5 + flat fee.
	required := tx.DustLimit + uint64(100+len(req.ContentType)+len(content))*5 + 10000

	f := newFixture(t, nil, plainUTXO(1, required))
	_, err := f.builder.Inscribe(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 5})
	assert.ErrorIs(t, err, utxo.ErrInsufficientFunds)

	f = newFixture(t, nil, plainUTXO(1, 30000))
	r, err := f.builder.Inscribe(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 5})
	require.NoError(t, err)
	assertBalanced(t, r)
	assert.GreaterOrEqual(t, r.Inputs[0].Value, required)

	require.Len(t, r.Outputs, 3)
	assert.Equal(t, "data", r.Outputs[0].Kind)
	assert.Equal(t, tx.DustLimit, r.Outputs[0].Value)
	assert.Equal(t, uint64(10000), r.Outputs[1].Value)
	assert.Equal(t, "change", r.Outputs[2].Kind)
	assert.GreaterOrEqual(t, r.MinerFee, req.inscription().Cost(5))

	meta, ok := r.Metadata.(report.InscriptionMeta)
	require.True(t, ok)
	assert.Equal(t, r.TxID+"i0", meta.ID)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, 160, meta.Size)
	assert.Equal(t, "inscription", r.Protocol)

	raw, err := hex.DecodeString(r.Outputs[0].Script)
	require.NoError(t, err)
	parsed, err := envelope.ParseInscription(scriptOf(raw))
	require.NoError(t, err)
	assert.Equal(t, content, parsed.Content)
}

func TestInscribe_TooLarge(t *testing.T) {
	f := newFixture(t, nil)
	f.service.ListUnspentFn = nil
	_, err := f.builder.Inscribe(context.Background(), f.sender.addr, InscriptionRequest{
		ContentType: "image/png",
		Content:     make([]byte, envelope.MaxInscriptionSize+1),
	}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, envelope.ErrPayloadTooLarge)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTokenTransfer(t *testing.T) {
	idx := utxo.NewIndex(utxo.Tag{
		Outpoint: utxo.Outpoint{TxID: txid(9), Vout: 1}, Category: utxo.Token,
		AssetID: "840000:3", AssetAmount: 1000,
	})
	token := &network.UTXO{TxID: txid(9), Vout: 1, Amount: tx.DustLimit}
	f := newFixture(t, idx, plainUTXO(1, 50000), token)

	req := TokenTransferRequest{Symbol: "DOG", AssetID: "840000:3", Amount: 400, Recipient: "alice", Destination: f.recipient.addr}
	r, err := f.builder.TokenTransfer(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 5})
	require.NoError(t, err)
	assertBalanced(t, r)

	require.Len(t, r.Inputs, 2)
	assert.Equal(t, txid(9), r.Inputs[0].TxID, "token unit is spent first")
	assert.Equal(t, "token", r.Inputs[0].Category)

	require.Len(t, r.Outputs, 4)
	assert.Equal(t, "asset_marker", r.Outputs[0].Purpose)
	assert.Equal(t, f.recipient.addr, r.Outputs[0].Address)
	assert.Equal(t, "protocol_fee", r.Outputs[1].Purpose)
	assert.Equal(t, uint64(10000), r.Outputs[1].Value)
	assert.Equal(t, "asset_change", r.Outputs[2].Purpose)
	assert.Equal(t, f.sender.addr, r.Outputs[2].Address)
	assert.Equal(t, "change", r.Outputs[3].Kind)

	meta, ok := r.Metadata.(report.TokenMeta)
	require.True(t, ok)
	assert.Equal(t, "DOG", meta.Symbol)
	assert.Equal(t, uint64(400), meta.Amount)
	assert.Equal(t, uint64(600), meta.Remaining)
	assert.Equal(t, f.sender.addr, meta.Sender)

	tags := AssetChangeTags(r)
	require.Len(t, tags, 1)
	assert.Equal(t, utxo.Tag{
		Outpoint:    utxo.Outpoint{TxID: r.TxID, Vout: 2},
		Category:    utxo.Token,
		AssetID:     "840000:3",
		AssetAmount: 600,
	}, tags[0])

	// The returned balance is classified as a token unit, not fuel.
	change := []utxo.Unit{{Outpoint: tags[0].Outpoint, Value: tx.DustLimit}}
	annotated, err := utxo.NewIndex(tags...).Annotate(context.Background(), f.sender.addr, change)
	require.NoError(t, err)
	assert.Equal(t, utxo.Token, annotated[0].Category)
	assert.Equal(t, uint64(600), annotated[0].AssetAmount)
}

func TestTokenTransfer_ExactAmountHasNoAssetChange(t *testing.T) {
	idx := utxo.NewIndex(utxo.Tag{
		Outpoint: utxo.Outpoint{TxID: txid(9)}, Category: utxo.Token, AssetID: "840000:3", AssetAmount: 400,
	})
	f := newFixture(t, idx, plainUTXO(1, 50000), plainUTXO(9, tx.DustLimit))

	req := TokenTransferRequest{AssetID: "840000:3", Amount: 400, Destination: f.recipient.addr}
	r, err := f.builder.TokenTransfer(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 5})
	require.NoError(t, err)
	require.Len(t, r.Outputs, 3)
	assert.Equal(t, "change", r.Outputs[2].Kind)
	assert.Empty(t, AssetChangeTags(r))

	plain, err := f.builder.Transfer(context.Background(), f.sender.addr,
		TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)
	assert.Empty(t, AssetChangeTags(plain))
	assert.Empty(t, AssetChangeTags(nil))
}

func TestTokenTransfer_InsufficientBalance(t *testing.T) {
	idx := utxo.NewIndex(utxo.Tag{
		Outpoint: utxo.Outpoint{TxID: txid(9)}, Category: utxo.Token, AssetID: "840000:3", AssetAmount: 10,
	})
	f := newFixture(t, idx, plainUTXO(1, 50000), plainUTXO(9, tx.DustLimit))

	req := TokenTransferRequest{AssetID: "840000:3", Amount: 400, Destination: f.recipient.addr}
	_, err := f.builder.TokenTransfer(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 5})
	assert.ErrorIs(t, err, utxo.ErrInsufficientProtocolBalance)

	req.Symbol = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456"
	_, err = f.builder.TokenTransfer(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 5})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOverlayTransfer(t *testing.T) {
	idx := utxo.NewIndex(utxo.Tag{
		Outpoint: utxo.Outpoint{TxID: txid(7)}, Category: utxo.Overlay, AssetID: "PEPECASH", AssetAmount: 100,
	})
	f := newFixture(t, idx, plainUTXO(1, 50000), plainUTXO(7, tx.DustLimit))

	req := OverlayTransferRequest{Asset: "PEPECASH", Quantity: 50, Memo: "gm", Destination: f.recipient.addr}
	r, err := f.builder.OverlayTransfer(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 2})
	require.NoError(t, err)
	assertBalanced(t, r)

	for _, in := range r.Inputs {
		assert.NotEqual(t, txid(7), in.TxID, "overlay unit must not be spent")
	}
	require.Len(t, r.Outputs, 4)
	assert.Equal(t, "data", r.Outputs[0].Kind)
	assert.Zero(t, r.Outputs[0].Value)
	assert.Equal(t, "protocol_fee", r.Outputs[1].Purpose)
	assert.Equal(t, "asset_marker", r.Outputs[2].Purpose)
	assert.Equal(t, f.recipient.addr, r.Outputs[2].Address)
	assert.Equal(t, tx.DustLimit, r.Outputs[2].Value)
	assert.Equal(t, "change", r.Outputs[3].Kind)

	raw, err := hex.DecodeString(r.Outputs[0].Script)
	require.NoError(t, err)
	ov, err := envelope.ParseOverlay(scriptOf(raw))
	require.NoError(t, err)
	assert.Equal(t, envelope.OpSend, ov.Op)
	assert.Equal(t, uint64(50), ov.Quantity)

	meta, ok := r.Metadata.(report.OverlayMeta)
	require.True(t, ok)
	assert.Equal(t, "send", meta.Op)
	assert.Equal(t, f.recipient.addr, meta.Destination)
}

func TestOverlayTransfer_Errors(t *testing.T) {
	idx := utxo.NewIndex(utxo.Tag{
		Outpoint: utxo.Outpoint{TxID: txid(7)}, Category: utxo.Overlay, AssetID: "PEPECASH", AssetAmount: 100,
	})
	f := newFixture(t, idx, plainUTXO(1, 50000), plainUTXO(7, tx.DustLimit))
	ctx := context.Background()

	_, err := f.builder.OverlayTransfer(ctx, f.sender.addr,
		OverlayTransferRequest{Asset: "PEPECASH", Quantity: 500, Destination: f.recipient.addr}, f.sender.wif, FeeHint{Rate: 2})
	assert.ErrorIs(t, err, utxo.ErrInsufficientProtocolBalance)

	_, err = f.builder.OverlayTransfer(ctx, f.sender.addr,
		OverlayTransferRequest{Asset: "PEPECASH", Quantity: 5, Memo: string(bytes.Repeat([]byte{'m'}, 80)), Destination: f.recipient.addr},
		f.sender.wif, FeeHint{Rate: 2})
	assert.ErrorIs(t, err, envelope.ErrPayloadTooLarge)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOverlayIssue(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))

	req := OverlayIssueRequest{Asset: "PEPE", Quantity: 3, Description: "gm"}
	r, err := f.builder.OverlayIssue(context.Background(), f.sender.addr, req, f.sender.wif, FeeHint{Rate: 2})
	require.NoError(t, err)
	assertBalanced(t, r)

	require.Len(t, r.Outputs, 3)
	assert.Equal(t, "data", r.Outputs[0].Kind)
	assert.Equal(t, "protocol_fee", r.Outputs[1].Purpose)
	assert.Equal(t, "change", r.Outputs[2].Kind)

	meta, ok := r.Metadata.(report.OverlayMeta)
	require.True(t, ok)
	assert.Equal(t, "issuance", meta.Op)
	assert.Equal(t, "gm", meta.Description)
}

func TestBuildDispatch(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))
	ctx := context.Background()

	r, err := f.builder.Build(ctx, f.sender.addr, OverlayIssueRequest{Asset: "A", Quantity: 1}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)
	assert.Equal(t, "overlay", r.Protocol)

	_, err = f.builder.Build(ctx, f.sender.addr, nil, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))
	ctx := context.Background()

	r, err := f.builder.Transfer(ctx, f.sender.addr, TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)

	id, err := f.builder.Submit(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, r.TxID, id)

	cause := errors.New("txn-mempool-conflict")
	f.service.BroadcastTxFn = func(context.Context, string) (string, error) { return "", cause }
	_, err = f.builder.Submit(ctx, r)
	assert.ErrorIs(t, err, ErrBroadcast)
	assert.ErrorIs(t, err, cause)

	_, err = f.builder.Submit(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestSend(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))
	ctx := context.Background()

	var broadcast string
	f.service.BroadcastTxFn = func(_ context.Context, raw string) (string, error) {
		broadcast = raw
		return "ok", nil
	}
	r, err := f.builder.Send(ctx, f.sender.addr, TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)
	assert.Equal(t, r.RawTx, broadcast)

	f.service.BroadcastTxFn = func(context.Context, string) (string, error) { return "", errors.New("rejected") }
	_, err = f.builder.Send(ctx, f.sender.addr, TransferRequest{To: f.recipient.addr, Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrBroadcast)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "token_transfer", KindTokenTransfer.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.Equal(t, KindInscription, InscriptionRequest{}.Kind())
}

type resolverFunc func(ctx context.Context, dest string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, dest string) (string, error) { return f(ctx, dest) }

func TestTransfer_ResolvesHandles(t *testing.T) {
	f := newFixture(t, nil, plainUTXO(1, 50000))
	ctx := context.Background()

	var asked []string
	b, err := New(Config{
		Service: f.service,
		Fees:    f.builder.fees,
		Resolver: resolverFunc(func(_ context.Context, dest string) (string, error) {
			asked = append(asked, dest)
			if dest == "alice@pay.example" {
				return f.recipient.addr, nil
			}
			if dest == "ghost@pay.example" {
				return "", errors.New("no pki")
			}
			return dest, nil
		}),
	})
	require.NoError(t, err)

	r, err := b.Transfer(ctx, f.sender.addr, TransferRequest{To: "alice@pay.example", Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)
	assert.Equal(t, f.recipient.addr, r.Outputs[0].Address)
	assert.Equal(t, []string{"alice@pay.example"}, asked)

	_, err = b.Transfer(ctx, f.sender.addr, TransferRequest{To: "ghost@pay.example", Amount: 1000}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrNetwork)

	// Issuance has no destination to resolve.
	asked = nil
	_, err = b.OverlayIssue(ctx, f.sender.addr, OverlayIssueRequest{Asset: "A", Quantity: 1}, f.sender.wif, FeeHint{Rate: 1})
	require.NoError(t, err)
	assert.Empty(t, asked)
}

func TestPrepare_CallerChecksBeforeResolve(t *testing.T) {
	f := newFixture(t, nil)
	f.service.ListUnspentFn = nil
	f.service.FeeRatesFn = nil

	var asked int
	b, err := New(Config{
		Service: f.service,
		Fees:    f.builder.fees,
		Resolver: resolverFunc(func(context.Context, string) (string, error) {
			asked++
			return f.recipient.addr, nil
		}),
	})
	require.NoError(t, err)

	ctx := context.Background()
	req := TransferRequest{To: "alice@pay.example", Amount: 1000}
	_, err = b.Transfer(ctx, f.sender.addr, req, "not-a-wif", FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.Transfer(ctx, "", req, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.Transfer(ctx, f.sender.addr, req, f.sender.wif, FeeHint{Rate: 501})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, asked)

	// A resolved destination still goes through request validation.
	_, err = b.Transfer(ctx, f.sender.addr, TransferRequest{To: "alice@pay.example", Amount: 545}, f.sender.wif, FeeHint{Rate: 1})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, asked)
}
