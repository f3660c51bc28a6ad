// Package governance implements the slashing penalty of spec.md 4.4:
// negative reward accrual plus an immediate power deduction, leaving
// principal untouched.
package governance

import (
	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
)

// DelegationPenalizer is the narrow delegation-ledger surface governance
// needs: resolving an address's delegation and adjusting its accrued
// reward.
type DelegationPenalizer interface {
	Get(addr model.PubKey) (model.Delegation, bool)
	ImportExternAmount(addr model.PubKey, delta int64) error
}

// PowerChanger is the narrow validator-registry surface governance needs to
// deduct power from a penalized validator.
type PowerChanger interface {
	ChangePower(h uint64, pk model.PubKey, delta int64) error
}

// TDAddrResolver resolves a TendermintAddr to its staking pubkey against the
// effective set at a height.
type TDAddrResolver interface {
	GetEffectiveAtHeight(h uint64) (*model.ValidatorData, error)
}

// Penalty applies a governance slashing penalty: resolves tdAddr to a
// staking pubkey, subtracts amount from its accrued reward (which may go
// negative — the delegation is then locked out of undelegation and further
// payment until future rewards repair the deficit), and if the address is
// also a validator, deducts the same quantity from its power. Paid
// delegations are not penalizable.
func Penalty(curHeight uint64, resolver TDAddrResolver, delegations DelegationPenalizer, powers PowerChanger, tdAddr string, amount int64) error {
	if amount <= 0 {
		return errors.NewInvalidInputError("governance penalty amount must be positive")
	}

	vd, err := resolver.GetEffectiveAtHeight(curHeight)
	if err != nil {
		return err
	}
	pk, ok := vd.ResolveTDAddr(tdAddr)
	if !ok {
		return errors.NewNotFoundError("unknown tendermint address %q", tdAddr)
	}

	d, ok := delegations.Get(pk)
	if !ok {
		return errors.NewNotFoundError("no delegation for penalized address")
	}
	if d.State == model.Paid {
		return errors.NewPreconditionError("paid delegations are not penalizable")
	}

	if err := delegations.ImportExternAmount(pk, -amount); err != nil {
		return err
	}

	if _, isValidator := vd.Body[pk]; isValidator {
		if err := powers.ChangePower(curHeight, pk, -amount); err != nil {
			return err
		}
	}

	return nil
}
