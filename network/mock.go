package network

import "context"

// MockService is a test double for Service.
// All function fields must be set before the corresponding method is called.
type MockService struct {
	ListUnspentFn func(ctx context.Context, address string) ([]*UTXO, error)
	FeeRatesFn    func(ctx context.Context) (*FeeRates, error)
	BroadcastTxFn func(ctx context.Context, rawTxHex string) (string, error)
}

var _ Service = (*MockService)(nil)

func (m *MockService) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	return m.ListUnspentFn(ctx, address)
}
func (m *MockService) FeeRates(ctx context.Context) (*FeeRates, error) {
	return m.FeeRatesFn(ctx)
}
func (m *MockService) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.BroadcastTxFn(ctx, rawTxHex)
}
