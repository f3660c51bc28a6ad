package utxo

import "context"

// Mock is a scriptable ClientI for tests, matching the reference node's
// MockBlockchain pattern.
type Mock struct {
	Unspent map[string]bool
	State   []byte
}

var _ ClientI = (*Mock)(nil)

func (m *Mock) IsUnspentTxo(_ context.Context, sid string) (bool, error) {
	if m.Unspent == nil {
		return false, nil
	}
	return m.Unspent[sid], nil
}

func (m *Mock) GetCommittedState(_ context.Context) ([]byte, error) {
	return m.State, nil
}
