// Package consensus implements the Consensus Driver Contract (spec.md 6):
// the inbound BeginBlock/DeliverTx/EndBlock/Commit sequence the BFT engine
// drives against the staking core, wrapped in a ClientI/Mock pair the way
// the reference node wraps its own inter-service contracts
// (services/blockchain/Interface.go), plus a gRPC service exposing it.
package consensus

import "github.com/fra-chain/stakingcore/staking/settlement"

// BeginBlockRequest carries spec.md 6's begin_block(height, proposer_td_addr)
// arguments.
type BeginBlockRequest struct {
	Height         uint64
	ProposerTDAddr string
}

// DeliverTxRequest carries the opaque transaction envelope bytes.
type DeliverTxRequest struct {
	Tx []byte
}

// DeliverTxResponse mirrors deliver_tx(bytes) -> {code, log}: Code 0 means
// the transaction was applied, any non-zero value means it was rejected and
// Log carries a human-readable reason.
type DeliverTxResponse struct {
	Code uint32
	Log  string
}

// EndBlockResponse mirrors end_block() -> {validator_updates}.
type EndBlockResponse struct {
	ValidatorUpdates []settlement.ValidatorUpdate
}

// CommitResponse mirrors commit() -> {state_hash}.
type CommitResponse struct {
	StateHash [32]byte
}

const (
	codeOK    uint32 = 0
	codeError uint32 = 1
)
