package utxo

import "context"

// OracleAdapter adapts a ClientI (context-aware) to staking/coinbase's
// UnspentOracle (context-free), since the CoinBase component's
// reconciliation pass has no per-call context of its own — it runs
// synchronously inside EndBlock, which has already bound a block-scoped
// context by the time ReconcileBank runs.
type OracleAdapter struct {
	client ClientI
	ctx    context.Context
}

// NewOracleAdapter binds client to ctx for the lifetime of the adapter.
func NewOracleAdapter(client ClientI, ctx context.Context) *OracleAdapter {
	return &OracleAdapter{client: client, ctx: ctx}
}

// IsUnspentTxo implements staking/coinbase.UnspentOracle.
func (o *OracleAdapter) IsUnspentTxo(sid string) (bool, error) {
	return o.client.IsUnspentTxo(o.ctx, sid)
}
