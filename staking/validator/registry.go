// Package validator implements the Validator Registry (spec.md 4.1): the
// historical, height-keyed map of validator sets, power accounting, and the
// UpdateValidator operation.
package validator

import (
	"github.com/dolthub/swiss"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/ulogger"
)

// Registry wraps a model.ValidatorInfo with the operations of spec.md 4.1.
type Registry struct {
	log      ulogger.Logger
	settings *settings.Chain
	info     *model.ValidatorInfo
}

// New builds a Registry seeded with the genesis snapshot.
func New(log ulogger.Logger, chain *settings.Chain, genesis *model.ValidatorData) *Registry {
	info := model.NewValidatorInfo()
	info.SetAtHeight(0, genesis, false)
	return &Registry{log: log, settings: chain, info: info}
}

// FromInfo wraps an already-populated history, e.g. after a snapshot replay.
func FromInfo(log ulogger.Logger, chain *settings.Chain, info *model.ValidatorInfo) *Registry {
	return &Registry{log: log, settings: chain, info: info}
}

// Info exposes the underlying history for persistence/hashing.
func (r *Registry) Info() *model.ValidatorInfo { return r.info }

// Restore overwrites the underlying history in place with snapshot's
// contents — used by the dispatcher to roll back a failed transaction. It
// mutates the existing ValidatorInfo rather than swapping the pointer so
// that a model.Staking holding the same pointer observes the rollback.
func (r *Registry) Restore(snapshot *model.ValidatorInfo) { r.info.RestoreFrom(snapshot) }

// SetAtHeight registers vd at height h. Height 0 is reserved for genesis and
// may only be set once (force rejected there too, matching the original's
// genesis-is-immutable behavior).
func (r *Registry) SetAtHeight(h uint64, vd *model.ValidatorData, force bool) error {
	if h == 0 {
		if _, exists := r.info.Get(0); exists {
			return errors.NewConflictError("genesis validator snapshot already set")
		}
	}
	if !force {
		if _, exists := r.info.Get(h); exists {
			return errors.NewConflictError("validator snapshot already exists at height %d", h)
		}
	}
	if err := noDuplicateTDPubkeys(vd); err != nil {
		return err
	}
	r.info.SetAtHeight(h, vd, force)
	return nil
}

// noDuplicateTDPubkeys rejects a snapshot whose Body maps two staking
// pubkeys onto the same consensus pubkey, which would otherwise silently
// collide in AddrTDToApp.
func noDuplicateTDPubkeys(vd *model.ValidatorData) error {
	seen := swiss.NewMap[model.TDPubKey, model.PubKey](uint32(len(vd.Body)))
	for pk, v := range vd.Body {
		if other, ok := seen.Get(v.TDPubKey); ok && other != pk {
			return errors.NewInvalidInputError("duplicate td_pubkey in validator snapshot")
		}
		seen.Put(v.TDPubKey, pk)
	}
	return nil
}

// GetEffectiveAtHeight returns the snapshot with the greatest registered
// height <= h.
func (r *Registry) GetEffectiveAtHeight(h uint64) (*model.ValidatorData, error) {
	vd := r.info.GetEffectiveAtHeight(h)
	if vd == nil {
		return nil, errors.NewNotFoundError("no validator snapshot effective at height %d", h)
	}
	return vd, nil
}

// ApplyAtHeight is called during settlement: if a new snapshot exists at h,
// each validator present in the previous effective snapshot inherits its
// td_power; otherwise the previous snapshot is copied forward to h. Old
// snapshots strictly before h are discarded afterward.
func (r *Registry) ApplyAtHeight(h uint64) error {
	prev := r.info.GetEffectiveAtHeight(h - 1)

	if next, ok := r.info.Get(h); ok {
		if prev != nil {
			for pk, v := range next.Body {
				if prevV, ok := prev.Body[pk]; ok {
					v.TDPower = prevV.TDPower
					next.Put(pk, v)
				}
			}
		}
		if len(next.Body) < r.settings.ValidatorsMin {
			return errors.NewPreconditionError("validator set at height %d below VALIDATORS_MIN", h)
		}
	} else if prev != nil {
		forward := prev.Clone()
		r.info.SetAtHeight(h, forward, false)
	}

	r.info.DiscardBefore(h)
	return nil
}

// CosigSatisfiedAt reports whether signers meet the co-signature rule of the
// effective set at height h — used to authorize both validator-set updates
// and CoinBase distribution operations.
func (r *Registry) CosigSatisfiedAt(h uint64, signers []model.PubKey) bool {
	vd := r.info.GetEffectiveAtHeight(h)
	if vd == nil {
		return false
	}
	return vd.CosigRule.Satisfied(signers)
}

// AtHeight returns a view bound to h implementing the narrow CosigChecker
// interface staking/coinbase depends on, so that package never needs to
// import staking/validator's full Registry surface.
func (r *Registry) AtHeight(h uint64) HeightBoundCosig {
	return HeightBoundCosig{registry: r, height: h}
}

// HeightBoundCosig adapts Registry.CosigSatisfiedAt to the height-free
// CosigChecker interface expected by staking/coinbase.
type HeightBoundCosig struct {
	registry *Registry
	height   uint64
}

// CosigSatisfied implements staking/coinbase.CosigChecker.
func (h HeightBoundCosig) CosigSatisfied(signers []model.PubKey) bool {
	return h.registry.CosigSatisfiedAt(h.height, signers)
}

// TotalPower sums td_power across the effective set at h.
func (r *Registry) TotalPower(h uint64) int64 {
	vd := r.info.GetEffectiveAtHeight(h)
	if vd == nil {
		return 0
	}
	return vd.TotalPower()
}

// ChangePower validates and applies a power delta to pk's validator in the
// effective snapshot at h: the new total across all validators must stay
// <= MAX_TOTAL_POWER, and the new individual power times the cap denominator
// must not exceed the new total times the cap numerator (the 20% cap).
// Fails otherwise, leaving state unchanged.
func (r *Registry) ChangePower(h uint64, pk model.PubKey, delta int64) error {
	vd := r.info.GetEffectiveAtHeight(h)
	if vd == nil {
		return errors.NewNotFoundError("no effective validator snapshot at height %d", h)
	}
	v, ok := vd.Body[pk]
	if !ok {
		return errors.NewNotFoundError("unknown validator")
	}

	newPower := v.TDPower + delta
	if newPower < 0 {
		return errors.NewQuotaExceededError("validator power would go negative")
	}

	newTotal := vd.TotalPower() - v.TDPower + newPower
	if newTotal > r.settings.MaxTotalPower {
		return errors.NewQuotaExceededError("total power %d exceeds MAX_TOTAL_POWER", newTotal)
	}
	if newPower*r.settings.MaxPowerPercentDenominator > newTotal*r.settings.MaxPowerPercentNumerator {
		return errors.NewQuotaExceededError("validator power %d exceeds the per-validator cap of total %d", newPower, newTotal)
	}

	v.TDPower = newPower
	vd.Put(pk, v)
	return nil
}
