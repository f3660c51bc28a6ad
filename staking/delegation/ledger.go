package delegation

import (
	"context"
	"math"

	"github.com/looplab/fsm"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/ulogger"
)

// PowerChanger is the subset of validator.Registry the ledger needs to keep
// power accounting in sync with delegation lifecycle transitions.
type PowerChanger interface {
	ChangePower(h uint64, pk model.PubKey, delta int64) error
	GetEffectiveAtHeight(h uint64) (*model.ValidatorData, error)
	TotalPower(h uint64) int64
}

// Ledger wraps a model.DelegationInfo with the operations of spec.md 4.2.
type Ledger struct {
	log      ulogger.Logger
	settings *settings.Chain
	registry PowerChanger
	info     *model.DelegationInfo
}

// New builds a Ledger over an empty delegation book.
func New(log ulogger.Logger, chain *settings.Chain, registry PowerChanger) *Ledger {
	return &Ledger{log: log, settings: chain, registry: registry, info: model.NewDelegationInfo()}
}

// FromInfo wraps an already-populated ledger, e.g. after a snapshot replay.
func FromInfo(log ulogger.Logger, chain *settings.Chain, registry PowerChanger, info *model.DelegationInfo) *Ledger {
	return &Ledger{log: log, settings: chain, registry: registry, info: info}
}

// Info exposes the underlying ledger for persistence/hashing.
func (l *Ledger) Info() *model.DelegationInfo { return l.info }

// Restore overwrites the underlying ledger in place with snapshot's contents
// — used by the dispatcher to roll back a failed transaction. It mutates the
// existing DelegationInfo rather than swapping the pointer so that a
// model.Staking holding the same pointer observes the rollback.
func (l *Ledger) Restore(snapshot *model.DelegationInfo) { l.info.RestoreFrom(snapshot) }

// Get returns addr's current delegation, if any.
func (l *Ledger) Get(addr model.PubKey) (model.Delegation, bool) {
	d, ok := l.info.AddrMap[addr]
	return d, ok
}

// newLifecycleFSM builds the Locked->Bond->Paid state machine used to
// validate lifecycle transitions before they are written back to the ledger.
func newLifecycleFSM(initial model.DelegationState) *fsm.FSM {
	return fsm.NewFSM(
		initial.String(),
		fsm.Events{
			{Name: "bond", Src: []string{model.Locked.String()}, Dst: model.Bond.String()},
			{Name: "pay", Src: []string{model.Bond.String()}, Dst: model.Paid.String()},
		},
		fsm.Callbacks{},
	)
}

// Delegate creates a new delegation for owner targeting validator vPK
// (resolved by TendermintAddr), enforcing every precondition of spec.md 4.2.
func (l *Ledger) Delegate(curHeight uint64, owner model.PubKey, targetTDAddr string, amount int64, startHeight, endHeight uint64) error {
	vd, err := l.registry.GetEffectiveAtHeight(curHeight)
	if err != nil {
		return err
	}
	targetPK, ok := vd.ResolveTDAddr(targetTDAddr)
	if !ok {
		return errors.NewNotFoundError("unknown validator tendermint address %q", targetTDAddr)
	}

	if amount < l.settings.MinDelegationAmount || amount > l.settings.MaxDelegationAmount {
		return errors.NewInvalidInputError("delegation amount %d out of range [%d, %d]", amount, l.settings.MinDelegationAmount, l.settings.MaxDelegationAmount)
	}
	if endHeight > l.settings.BlockHeightMax || startHeight > endHeight {
		return errors.NewInvalidInputError("invalid delegation height range [%d, %d]", startHeight, endHeight)
	}

	if _, exists := l.info.AddrMap[owner]; exists {
		return errors.NewPreconditionError("address already holds a delegation")
	}

	selfDelegated := l.hasPerpetualSelfDelegation(targetPK)
	if !selfDelegated {
		if owner != targetPK {
			return errors.NewPreconditionError("validator has no self-delegation yet; only the validator may delegate to itself first")
		}
		endHeight = l.settings.BlockHeightMax
	}

	if err := l.registry.ChangePower(curHeight, targetPK, amount); err != nil {
		return err
	}

	l.info.Insert(owner, model.Delegation{
		Amount:      amount,
		Validator:   targetPK,
		RwdPK:       owner,
		StartHeight: startHeight,
		EndHeight:   endHeight,
		State:       model.Locked,
		RwdAmount:   0,
	})
	return nil
}

// hasPerpetualSelfDelegation reports whether targetPK already holds a
// self-delegation (owner == target, end_height == BLOCK_HEIGHT_MAX).
func (l *Ledger) hasPerpetualSelfDelegation(targetPK model.PubKey) bool {
	d, ok := l.info.AddrMap[targetPK]
	if !ok {
		return false
	}
	return d.Validator == targetPK && d.EndHeight == l.settings.BlockHeightMax
}

// Undelegate forces an early exit: rejected for validators (self-
// undelegation is forbidden) and for delegations with an outstanding
// penalty (RwdAmount < 0). Otherwise the end height is rewritten to
// curHeight and the end-height index is rebalanced.
func (l *Ledger) Undelegate(curHeight uint64, owner model.PubKey) error {
	d, ok := l.info.AddrMap[owner]
	if !ok {
		return errors.NewNotFoundError("no delegation for address")
	}
	if owner == d.Validator {
		return errors.NewPreconditionError("validators cannot self-undelegate")
	}
	if d.RwdAmount < 0 {
		return errors.NewPreconditionError("delegation has an outstanding governance penalty")
	}
	if d.EndHeight <= curHeight {
		return nil
	}
	l.info.MoveEndHeight(owner, d.EndHeight, curHeight)
	return nil
}

// Extend moves owner's end height strictly forward, rebalancing the
// end-height index.
func (l *Ledger) Extend(owner model.PubKey, newEndHeight uint64) error {
	d, ok := l.info.AddrMap[owner]
	if !ok {
		return errors.NewNotFoundError("no delegation for address")
	}
	if newEndHeight <= d.EndHeight {
		return errors.NewInvalidInputError("extend must move end_height strictly forward")
	}
	if newEndHeight > l.settings.BlockHeightMax {
		return errors.NewInvalidInputError("end_height exceeds BLOCK_HEIGHT_MAX")
	}
	l.info.MoveEndHeight(owner, d.EndHeight, newEndHeight)
	return nil
}

// DelegationProcess advances lifecycles at EndBlock(curHeight):
//  1. every Locked delegation scheduled at or before curHeight flips to Bond,
//     its amount leaves total_amount, and the validator's power is reduced
//     by that amount.
//  2. every Paid delegation whose schedule predates the bond window is
//     removed from addr_map, pruning now-empty end-height buckets.
func (l *Ledger) DelegationProcess(curHeight uint64) error {
	for _, addrs := range snapshotHeights(l.info.EndHeightMap, curHeight) {
		for addr := range addrs {
			d := l.info.AddrMap[addr]
			if d.State != model.Locked {
				continue
			}
			m := newLifecycleFSM(d.State)
			if err := m.Event(context.Background(), "bond"); err != nil {
				return errors.NewProcessingError("delegation lifecycle transition failed", err)
			}
			d.State = model.Bond
			l.info.AddrMap[addr] = d
			l.info.TotalAmount -= d.Amount

			if err := l.registry.ChangePower(curHeight, d.Validator, -d.Amount); err != nil {
				l.log.Warnf("power underflow clamped while bonding %x: %v", addr[:4], err)
			}
		}
	}

	if curHeight < l.settings.BondBlockCount {
		return nil
	}
	hPrime := curHeight - l.settings.BondBlockCount
	for _, addrs := range snapshotHeights(l.info.EndHeightMap, hPrime) {
		for addr := range addrs {
			d, ok := l.info.AddrMap[addr]
			if !ok || d.State != model.Paid {
				continue
			}
			l.info.Remove(addr)
		}
	}
	return nil
}

// snapshotHeights returns a stable copy of every EndHeightMap bucket whose
// key is <= maxHeight, so callers may mutate the ledger while iterating.
func snapshotHeights(m map[uint64]map[model.PubKey]struct{}, maxHeight uint64) map[uint64]map[model.PubKey]struct{} {
	out := make(map[uint64]map[model.PubKey]struct{})
	for h, set := range m {
		if h > maxHeight {
			continue
		}
		cp := make(map[model.PubKey]struct{}, len(set))
		for a := range set {
			cp[a] = struct{}{}
		}
		out[h] = cp
	}
	return out
}

// AccrueBlockRewards adds per-block rewards to every Locked delegation
// targeting proposer (the block's proposer), using the global rate table
// evaluated against fraTotalAmount, plus a proposer bonus using the vote
// power fraction.
func (l *Ledger) AccrueBlockRewards(curHeight uint64, proposer model.PubKey, proposerVotePower, totalVotePower, fraTotalAmount int64) error {
	rateBP := GlobalRateBP(l.info.TotalAmount, fraTotalAmount)

	for addr, d := range l.info.AddrMap {
		if d.State != model.Locked || d.Validator != proposer || d.EndHeight < curHeight {
			continue
		}
		reward, err := CalculateDelegationRewards(d.Amount, rateBP, l.settings.BlockIntervalSeconds)
		if err != nil {
			return err
		}
		if d.RwdAmount > math.MaxInt64-reward {
			return errors.NewFatalError("reward accrual overflowed int64 at height %d", curHeight)
		}
		d.RwdAmount += reward
		l.info.AddrMap[addr] = d
	}

	proposerDelegation, ok := l.info.AddrMap[proposer]
	if ok && proposerDelegation.State == model.Locked {
		bonusBP := ProposerBonusBP(proposerVotePower, totalVotePower)
		bonus, err := CalculateDelegationRewards(proposerDelegation.Amount, bonusBP, l.settings.BlockIntervalSeconds)
		if err != nil {
			return err
		}
		if proposerDelegation.RwdAmount > math.MaxInt64-bonus {
			return errors.NewFatalError("proposer bonus accrual overflowed int64 at height %d", curHeight)
		}
		proposerDelegation.RwdAmount += bonus
		l.info.AddrMap[proposer] = proposerDelegation
	}

	return nil
}

// ImportExternAmount adjusts addr's accrued reward by delta directly — used
// by governance penalties (delta < 0) and operator-injected reward repair
// (delta > 0).
func (l *Ledger) ImportExternAmount(addr model.PubKey, delta int64) error {
	d, ok := l.info.AddrMap[addr]
	if !ok {
		return errors.NewNotFoundError("no delegation for address")
	}
	if d.State == model.Paid {
		return errors.NewPreconditionError("paid delegations are not penalizable")
	}
	d.RwdAmount += delta
	l.info.AddrMap[addr] = d
	return nil
}

// MarkPaid transitions addr's Bond delegation to Paid once CoinBase has
// settled its reward in full, zeroing RwdAmount. Called only from
// staking/coinbase's CoinbasePay.
func (l *Ledger) MarkPaid(addr model.PubKey) error {
	d, ok := l.info.AddrMap[addr]
	if !ok {
		return errors.NewNotFoundError("no delegation for address")
	}
	if d.State != model.Bond {
		return errors.NewPreconditionError("delegation is not in Bond state")
	}
	m := newLifecycleFSM(d.State)
	if err := m.Event(context.Background(), "pay"); err != nil {
		return errors.NewProcessingError("delegation lifecycle transition failed", err)
	}
	d.State = model.Paid
	d.RwdAmount = 0
	l.info.AddrMap[addr] = d
	return nil
}
