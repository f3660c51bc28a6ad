package consensus

import "context"

// Mock is a scriptable ClientI used by tests that drive the block lifecycle
// without a real Driver, matching the reference node's MockBlockchain
// pattern (services/blockchain/Interface.go).
type Mock struct {
	BeginBlockFn func(ctx context.Context, req BeginBlockRequest) error
	DeliverTxFn  func(ctx context.Context, req DeliverTxRequest) (DeliverTxResponse, error)
	EndBlockFn   func(ctx context.Context) (EndBlockResponse, error)
	CommitFn     func(ctx context.Context) (CommitResponse, error)
}

var _ ClientI = (*Mock)(nil)

func (m *Mock) BeginBlock(ctx context.Context, req BeginBlockRequest) error {
	if m.BeginBlockFn == nil {
		return nil
	}
	return m.BeginBlockFn(ctx, req)
}

func (m *Mock) DeliverTx(ctx context.Context, req DeliverTxRequest) (DeliverTxResponse, error) {
	if m.DeliverTxFn == nil {
		return DeliverTxResponse{Code: codeOK}, nil
	}
	return m.DeliverTxFn(ctx, req)
}

func (m *Mock) EndBlock(ctx context.Context) (EndBlockResponse, error) {
	if m.EndBlockFn == nil {
		return EndBlockResponse{}, nil
	}
	return m.EndBlockFn(ctx)
}

func (m *Mock) Commit(ctx context.Context) (CommitResponse, error) {
	if m.CommitFn == nil {
		return CommitResponse{}, nil
	}
	return m.CommitFn(ctx)
}
