package consensus

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/metrics"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/staking/dispatch"
	"github.com/fra-chain/stakingcore/staking/settlement"
	"github.com/fra-chain/stakingcore/staking/validator"
	"github.com/fra-chain/stakingcore/tracing"
	"github.com/fra-chain/stakingcore/ulogger"
)

// ClientI is the Consensus Driver Contract as a Go interface, the way the
// reference node exposes every inter-service contract as a ClientI (e.g.
// services/blockchain/Interface.go) regardless of whether the concrete
// implementation is local or behind gRPC.
type ClientI interface {
	BeginBlock(ctx context.Context, req BeginBlockRequest) error
	DeliverTx(ctx context.Context, req DeliverTxRequest) (DeliverTxResponse, error)
	EndBlock(ctx context.Context) (EndBlockResponse, error)
	Commit(ctx context.Context) (CommitResponse, error)
}

// Driver is the concrete, in-process implementation of ClientI: it resolves
// the block's proposer staking pubkey from its tendermint address, applies
// delivered transactions through the dispatcher, and drives the settlement
// loop's EndBlock/Commit.
type Driver struct {
	log        ulogger.Logger
	dispatcher *dispatch.Dispatcher
	settlement *settlement.Loop
	registry   *validator.Registry

	curHeight         uint64
	proposerPubKey    model.PubKey
	proposerVotePower int64
	totalVotePower    int64
}

var _ ClientI = (*Driver)(nil)

// New builds a Driver wired to the dispatcher and settlement loop of a
// single staking core instance.
func New(log ulogger.Logger, dispatcher *dispatch.Dispatcher, loop *settlement.Loop, registry *validator.Registry) *Driver {
	return &Driver{log: log, dispatcher: dispatcher, settlement: loop, registry: registry}
}

// BeginBlock resolves the proposer's staking pubkey and forwards to the
// settlement loop.
func (d *Driver) BeginBlock(ctx context.Context, req BeginBlockRequest) error {
	_, end := tracing.StartSimple(ctx, "consensus.BeginBlock")
	defer end()

	vd, err := d.registry.GetEffectiveAtHeight(req.Height)
	if err != nil {
		return err
	}
	pk, ok := vd.ResolveTDAddr(req.ProposerTDAddr)
	if !ok {
		return errors.NewNotFoundError("unknown proposer tendermint address %q", req.ProposerTDAddr)
	}

	d.curHeight = req.Height
	d.proposerPubKey = pk
	d.proposerVotePower = vd.Body[pk].TDPower
	d.totalVotePower = vd.TotalPower()

	d.settlement.BeginBlock(ctx, req.Height)
	return nil
}

// DeliverTx decodes the envelope, checks expiry, and applies it through the
// dispatcher, translating outcomes to the {code, log} shape of spec.md 6. A
// non-zero code means no state change occurred.
func (d *Driver) DeliverTx(ctx context.Context, req DeliverTxRequest) (resp DeliverTxResponse, err error) {
	correlationID := uuid.NewString()
	_, end := tracing.Start(ctx, "consensus.DeliverTx", attribute.String("correlation_id", correlationID))
	defer end(&err)

	env, decodeErr := decodeEnvelope(req.Tx)
	if decodeErr != nil {
		metrics.RecordDeliverTx(metrics.TxRejected)
		return DeliverTxResponse{Code: codeError, Log: decodeErr.Error()}, nil
	}
	if expiryErr := env.checkNotExpired(d.curHeight); expiryErr != nil {
		metrics.RecordDeliverTx(metrics.TxRejected)
		return DeliverTxResponse{Code: codeError, Log: expiryErr.Error()}, nil
	}

	if applyErr := d.dispatcher.DeliverTx(env.Tx); applyErr != nil {
		d.log.Infof("transaction rejected at height %d: %v", d.curHeight, applyErr)
		metrics.RecordDeliverTx(metrics.TxRejected)
		return DeliverTxResponse{Code: codeError, Log: applyErr.Error()}, nil
	}
	metrics.RecordDeliverTx(metrics.TxAccepted)
	return DeliverTxResponse{Code: codeOK}, nil
}

// EndBlock drives the settlement loop's EndBlock and reports validator
// diffs. A Fatal error halts the node rather than emitting a divergent
// Commit, per spec.md 7's propagation policy.
func (d *Driver) EndBlock(ctx context.Context) (resp EndBlockResponse, err error) {
	_, end := tracing.Start(ctx, "consensus.EndBlock")
	defer end(&err)

	diffs, endErr := d.settlement.EndBlock(ctx, settlement.BlockInfo{
		Height:            d.curHeight,
		ProposerPubKey:    d.proposerPubKey,
		ProposerVotePower: d.proposerVotePower,
		TotalVotePower:    d.totalVotePower,
	})
	if endErr != nil {
		if errors.IsFatal(endErr) {
			d.log.Fatalf("fatal settlement error at height %d: %v", d.curHeight, endErr)
		}
		return EndBlockResponse{}, endErr
	}
	metrics.ValidatorUpdates.Add(float64(len(diffs)))
	metrics.TotalPower.Set(float64(d.registry.TotalPower(d.curHeight)))
	return EndBlockResponse{ValidatorUpdates: diffs}, nil
}

// Commit produces the state root.
func (d *Driver) Commit(ctx context.Context) (CommitResponse, error) {
	_, end := tracing.StartSimple(ctx, "consensus.Commit")
	defer end()
	metrics.BlocksCommitted.Inc()
	return CommitResponse{StateHash: d.settlement.Commit(ctx)}, nil
}
