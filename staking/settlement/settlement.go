// Package settlement implements the Settlement Loop (spec.md 4.6): the
// EndBlock sequence that freezes the effective validator set, accrues
// rewards, advances delegation lifecycles, computes validator diffs, and
// reconciles the CoinBase bank; plus Commit's state-root hashing.
package settlement

import (
	"context"

	"github.com/IBM/sarama"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/staking/coinbase"
	"github.com/fra-chain/stakingcore/staking/delegation"
	"github.com/fra-chain/stakingcore/staking/validator"
	"github.com/fra-chain/stakingcore/tracing"
	"github.com/fra-chain/stakingcore/ulogger"
)

// ValidatorUpdate is a single entry of an EndBlock diff returned to the
// consensus driver.
type ValidatorUpdate struct {
	TDPubKey model.TDPubKey
	NewPower int64
}

// BlockInfo carries the per-block facts the settlement loop needs that only
// the consensus driver knows.
type BlockInfo struct {
	Height            uint64
	ProposerPubKey    model.PubKey
	ProposerVotePower int64
	TotalVotePower    int64
}

// Loop wires the component wrappers together and drives EndBlock/Commit.
type Loop struct {
	log      ulogger.Logger
	chain    *settings.Chain
	staking  *model.Staking
	registry *validator.Registry
	ledger   *delegation.Ledger
	cb       *coinbase.CoinBase

	kafkaProducer sarama.SyncProducer
	kafkaTopic    string

	// blockStart is a copy of the validator set effective when the current
	// block began, the baseline EndBlock diffs against.
	blockStart *model.ValidatorData
}

// New builds a settlement Loop. kafkaProducer may be nil, matching the
// reference node's "connect only if the broker URL is configured" pattern
// (SPEC_FULL.md 10.10) — the feed is then a silent no-op.
func New(log ulogger.Logger, chain *settings.Chain, staking *model.Staking, registry *validator.Registry, ledger *delegation.Ledger, cb *coinbase.CoinBase, kafkaProducer sarama.SyncProducer, kafkaTopic string) *Loop {
	return &Loop{
		log: log, chain: chain, staking: staking,
		registry: registry, ledger: ledger, cb: cb,
		kafkaProducer: kafkaProducer, kafkaTopic: kafkaTopic,
	}
}

// BeginBlock advances the aggregate's current height, per the consensus
// driver contract's begin_block(height, proposer_td_addr), and copies the
// validator set effective before height: power changes during the block
// mutate that set in place, so EndBlock needs the copy to see them.
func (l *Loop) BeginBlock(ctx context.Context, height uint64) {
	_, end := tracing.StartSimple(ctx, "BeginBlock")
	defer end()
	l.staking.CurHeight = height
	l.blockStart = nil
	if prev := l.registry.Info().GetEffectiveAtHeight(height - 1); prev != nil {
		l.blockStart = prev.Clone()
	}
}

// EndBlock runs the five-step settlement sequence of spec.md 4.6 and
// returns the validator diff for the consensus driver.
func (l *Loop) EndBlock(ctx context.Context, info BlockInfo) (_ []ValidatorUpdate, err error) {
	ctx, end := tracing.Start(ctx, "EndBlock")
	defer end(&err)

	before := l.blockStart
	if before == nil {
		before = l.registry.Info().GetEffectiveAtHeight(info.Height - 1)
	}

	if err := l.registry.ApplyAtHeight(info.Height); err != nil {
		return nil, err
	}

	if err := l.ledger.AccrueBlockRewards(info.Height, info.ProposerPubKey, info.ProposerVotePower, info.TotalVotePower, l.chain.FraTotalAmount); err != nil {
		if errors.IsFatal(err) {
			return nil, err
		}
		l.log.Errorf("reward accrual error at height %d: %v", info.Height, err)
	}

	if err := l.ledger.DelegationProcess(info.Height); err != nil {
		return nil, err
	}

	after, err := l.registry.GetEffectiveAtHeight(info.Height)
	if err != nil {
		return nil, err
	}
	diffs := diffValidatorSets(before, after)

	if err := l.cb.ReconcileBank(); err != nil {
		l.log.Warnf("coinbase bank reconciliation error at height %d: %v", info.Height, err)
	}

	l.publishDiff(ctx, info.Height, diffs)

	return diffs, nil
}

// Commit produces the canonical state root; it changes no state, and the
// actual byte persistence is stores/snapshot's job.
func (l *Loop) Commit(ctx context.Context) [32]byte {
	_, end := tracing.StartSimple(ctx, "Commit")
	defer end()
	return l.staking.StateRoot()
}

// diffValidatorSets computes added/removed/changed entries between two
// snapshots, expressed as (td_pubkey, new_power) per spec.md 4.6. A
// removed validator is reported with NewPower 0.
func diffValidatorSets(before, after *model.ValidatorData) []ValidatorUpdate {
	var diffs []ValidatorUpdate
	if after == nil {
		return diffs
	}

	beforeBody := map[model.PubKey]model.Validator{}
	if before != nil {
		beforeBody = before.Body
	}

	for pk, v := range after.Body {
		prevV, existed := beforeBody[pk]
		if !existed || prevV.TDPower != v.TDPower {
			diffs = append(diffs, ValidatorUpdate{TDPubKey: v.TDPubKey, NewPower: v.TDPower})
		}
	}
	for pk, v := range beforeBody {
		if _, stillPresent := after.Body[pk]; !stillPresent {
			diffs = append(diffs, ValidatorUpdate{TDPubKey: v.TDPubKey, NewPower: 0})
		}
	}
	return diffs
}
