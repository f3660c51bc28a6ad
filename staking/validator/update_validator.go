package validator

import (
	"github.com/dolthub/swiss"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
)

// Candidate is a single member of an UpdateValidator candidate list.
type Candidate struct {
	TDPubKey model.TDPubKey
	ID       model.PubKey
	Memo     string
}

// UpdateValidatorOp carries the target height and the candidate set of a
// cosigned validator-set update, as delivered by the Operation Dispatcher.
type UpdateValidatorOp struct {
	TargetHeight uint64
	Candidates   []Candidate
	Signers      []model.PubKey
}

// ApplyUpdateValidator validates and, on success, registers the candidate
// set at TargetHeight. Powers are inherited later during ApplyAtHeight, so
// every candidate enters with zero power here.
func (r *Registry) ApplyUpdateValidator(curHeight uint64, op UpdateValidatorOp) error {
	if op.TargetHeight <= curHeight {
		return errors.NewInvalidInputError("update_validator target height %d must exceed current height %d", op.TargetHeight, curHeight)
	}
	if len(op.Candidates) < r.settings.ValidatorsMin {
		return errors.NewPreconditionError("candidate list below VALIDATORS_MIN")
	}

	seen := swiss.NewMap[model.TDPubKey, struct{}](uint32(len(op.Candidates)))
	for _, c := range op.Candidates {
		if _, ok := seen.Get(c.TDPubKey); ok {
			return errors.NewInvalidInputError("duplicate td_pubkey in update_validator candidates")
		}
		seen.Put(c.TDPubKey, struct{}{})
	}

	effective := r.info.GetEffectiveAtHeight(curHeight)
	if effective == nil {
		return errors.NewNotFoundError("no effective validator snapshot at height %d", curHeight)
	}
	if !effective.CosigRule.Satisfied(op.Signers) {
		return errors.NewAuthorizationError("update_validator cosignature threshold not met")
	}

	if _, exists := r.info.Get(op.TargetHeight); exists {
		if sameCandidateSet(r.info, op) {
			// Idempotent re-submission of an identical update is a no-op per
			// spec.md 8 round-trip property, not a Conflict.
			return nil
		}
		return errors.NewConflictError("validator snapshot already exists at height %d", op.TargetHeight)
	}

	vd := model.NewValidatorData(op.TargetHeight, effective.CosigRule.Numerator, effective.CosigRule.Denominator)
	members := make([]model.PubKey, 0, len(op.Candidates))
	for _, c := range op.Candidates {
		vd.Put(c.ID, model.Validator{TDPubKey: c.TDPubKey, TDPower: 0, ID: c.ID, Memo: c.Memo})
		members = append(members, c.ID)
	}
	vd.CosigRule = model.DefaultCosigRule(members, effective.CosigRule.Numerator, effective.CosigRule.Denominator)

	return r.SetAtHeight(op.TargetHeight, vd, false)
}

func sameCandidateSet(info *model.ValidatorInfo, op UpdateValidatorOp) bool {
	existing, ok := info.Get(op.TargetHeight)
	if !ok || len(existing.Body) != len(op.Candidates) {
		return false
	}
	for _, c := range op.Candidates {
		v, ok := existing.Body[c.ID]
		if !ok || v.TDPubKey != c.TDPubKey || v.Memo != c.Memo {
			return false
		}
	}
	return true
}
