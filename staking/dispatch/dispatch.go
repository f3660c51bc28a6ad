// Package dispatch implements the Operation Dispatcher (spec.md 4.5): it
// maps staking transaction kinds to state transitions, atomically — a
// failing operation discards the entire transaction with no state change.
package dispatch

import (
	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/staking/coinbase"
	"github.com/fra-chain/stakingcore/staking/delegation"
	"github.com/fra-chain/stakingcore/staking/governance"
	"github.com/fra-chain/stakingcore/staking/validator"
	"github.com/fra-chain/stakingcore/ulogger"
)

// Kind enumerates the recognized staking operation kinds.
type Kind int

const (
	KindUpdateValidator Kind = iota
	KindDelegation
	KindUnDelegation
	KindClaim
	KindGovernance
	KindFraDistribution
	KindMintFra
	KindUpdateStaker
	KindExtend
	KindCoinbaseTransfer
)

// Operation is one opaque staking instruction within a transaction. Exactly
// one of the typed payload fields is populated, matching Kind.
type Operation struct {
	Kind Kind

	UpdateValidator  *validator.UpdateValidatorOp
	Delegate         *DelegateParams
	UnDelegate       *UnDelegateParams
	Claim            *ClaimParams
	Governance       *GovernanceParams
	FraDistribution  *coinbase.DistributionPlan
	MintFra          *MintFraParams
	UpdateStaker     *UpdateStakerParams
	Extend           *ExtendParams
	CoinbaseTransfer *CoinbaseTransferParams
}

// DelegateParams carries the arguments of a Delegation operation.
type DelegateParams struct {
	Owner        model.PubKey
	TargetTDAddr string
	Amount       int64
	StartHeight  uint64
	EndHeight    uint64
}

// UnDelegateParams carries the arguments of an UnDelegation operation.
type UnDelegateParams struct {
	Owner model.PubKey
}

// ClaimParams requests settlement of a Bond delegation's reward: the
// dispatcher validates that the delegation is claimable, then itself
// drives the payment through CoinbasePay (spec.md 4.3/4.5) — there is no
// separate settlement-time payment step.
type ClaimParams struct {
	Owner model.PubKey
}

// ExtendParams carries the arguments of an Extend operation (spec.md 4.2):
// moves owner's delegation end_height strictly forward.
type ExtendParams struct {
	Owner        model.PubKey
	NewEndHeight uint64
}

// CoinbaseTransferParams carries a set of TransferAsset-shaped operations,
// at least one of which is sourced from CoinBase, for CoinbasePay to
// validate and settle (spec.md 4.3). This is the general entry point for
// coinbase-sourced payments that don't fit Claim's single-delegation shape
// — e.g. a distribution payout to a recipient with no delegation at all.
type CoinbaseTransferParams struct {
	Transfers []coinbase.TransferOp
}

// GovernanceParams carries the arguments of a Governance penalty operation.
type GovernanceParams struct {
	TDAddr string
	Amount int64
}

// MintFraParams mints new CoinBase-owed FRA distribution for recipient —
// modeled as a restricted FraDistribution with a single recipient, kept as
// its own Kind because the original ledger treats minting and scheduled
// distribution as distinct operation types with distinct authorization.
type MintFraParams struct {
	Recipient model.PubKey
	Amount    int64
	Signers   []model.PubKey
}

// UpdateStakerParams updates a validator's descriptive memo — the only
// mutable, non-power field of Validator.
type UpdateStakerParams struct {
	Target  model.PubKey
	NewMemo string
	Signers []model.PubKey
}

// Transaction is the opaque envelope the dispatcher consumes: a list of
// operations plus the non-staking fee transfer spec.md 4.5 requires as
// anti-replay/fee anchor.
type Transaction struct {
	Ops              []Operation
	HasFeeTransfer   bool
}

// Dispatcher applies transactions to a Staking aggregate atomically.
type Dispatcher struct {
	log        ulogger.Logger
	curHeight  func() uint64
	registry   *validator.Registry
	ledger     *delegation.Ledger
	cb         *coinbase.CoinBase
}

// New builds a Dispatcher bound to the given component wrappers.
func New(log ulogger.Logger, curHeight func() uint64, registry *validator.Registry, ledger *delegation.Ledger, cb *coinbase.CoinBase) *Dispatcher {
	return &Dispatcher{log: log, curHeight: curHeight, registry: registry, ledger: ledger, cb: cb}
}

// DeliverTx applies every operation in tx in order. If any operation fails,
// the entire transaction is rejected and no state change is observable: the
// three component wrappers are snapshotted before the first operation and
// restored wholesale on any failure, matching the consensus driver
// contract's DeliverTx(bytes) -> {code, log} shape where a non-zero code
// means no state change.
func (d *Dispatcher) DeliverTx(tx Transaction) error {
	if !tx.HasFeeTransfer {
		return errors.NewPreconditionError("staking transaction missing required non-staking fee transfer")
	}

	validatorSnapshot := d.registry.Info().Clone()
	ledgerSnapshot := d.ledger.Info().Clone()
	coinbaseSnapshot := d.cb.Account().Clone()

	for i, op := range tx.Ops {
		if err := d.apply(op); err != nil {
			d.registry.Restore(validatorSnapshot)
			d.ledger.Restore(ledgerSnapshot)
			d.cb.Restore(coinbaseSnapshot)
			return errors.NewProcessingError("operation %d (kind %d) rejected", i, op.Kind, err)
		}
	}
	return nil
}

func (d *Dispatcher) apply(op Operation) error {
	h := d.curHeight()

	switch op.Kind {
	case KindUpdateValidator:
		if op.UpdateValidator == nil {
			return errors.NewInvalidInputError("missing update_validator payload")
		}
		return d.registry.ApplyUpdateValidator(h, *op.UpdateValidator)

	case KindDelegation:
		p := op.Delegate
		if p == nil {
			return errors.NewInvalidInputError("missing delegation payload")
		}
		return d.ledger.Delegate(h, p.Owner, p.TargetTDAddr, p.Amount, p.StartHeight, p.EndHeight)

	case KindUnDelegation:
		p := op.UnDelegate
		if p == nil {
			return errors.NewInvalidInputError("missing undelegation payload")
		}
		return d.ledger.Undelegate(h, p.Owner)

	case KindClaim:
		p := op.Claim
		if p == nil {
			return errors.NewInvalidInputError("missing claim payload")
		}
		dlg, ok := d.ledger.Get(p.Owner)
		if !ok {
			return errors.NewNotFoundError("no delegation for address")
		}
		if dlg.State != model.Bond {
			return errors.NewPreconditionError("delegation is not claimable outside Bond state")
		}
		if dlg.RwdAmount < 0 {
			return errors.NewPreconditionError("delegation has an outstanding governance penalty")
		}
		transfer := coinbase.TransferOp{
			InputOwner: d.cb.Account().PubKey,
			Outputs: []coinbase.TransferOutput{
				{Recipient: p.Owner, Amount: dlg.RwdAmount, IsFRA: true},
			},
		}
		return d.cb.CoinbasePay(d.ledger, []coinbase.TransferOp{transfer})

	case KindExtend:
		p := op.Extend
		if p == nil {
			return errors.NewInvalidInputError("missing extend payload")
		}
		return d.ledger.Extend(p.Owner, p.NewEndHeight)

	case KindCoinbaseTransfer:
		p := op.CoinbaseTransfer
		if p == nil {
			return errors.NewInvalidInputError("missing coinbase_transfer payload")
		}
		return d.cb.CoinbasePay(d.ledger, p.Transfers)

	case KindGovernance:
		p := op.Governance
		if p == nil {
			return errors.NewInvalidInputError("missing governance payload")
		}
		return governance.Penalty(h, d.registry, d.ledger, d.registry, p.TDAddr, p.Amount)

	case KindFraDistribution:
		if op.FraDistribution == nil {
			return errors.NewInvalidInputError("missing fra_distribution payload")
		}
		return d.cb.ApplyFraDistribution(d.registry.AtHeight(h), *op.FraDistribution)

	case KindMintFra:
		p := op.MintFra
		if p == nil {
			return errors.NewInvalidInputError("missing mint_fra payload")
		}
		plan := coinbase.DistributionPlan{
			Allocations: map[model.PubKey]int64{p.Recipient: p.Amount},
			Signers:     p.Signers,
		}
		return d.cb.ApplyFraDistribution(d.registry.AtHeight(h), plan)

	case KindUpdateStaker:
		p := op.UpdateStaker
		if p == nil {
			return errors.NewInvalidInputError("missing update_staker payload")
		}
		if !d.registry.CosigSatisfiedAt(h, p.Signers) {
			return errors.NewAuthorizationError("update_staker cosignature threshold not met")
		}
		return d.updateMemo(h, p.Target, p.NewMemo)

	default:
		return errors.NewInvalidInputError("unrecognized operation kind")
	}
}

func (d *Dispatcher) updateMemo(h uint64, target model.PubKey, memo string) error {
	vd, err := d.registry.GetEffectiveAtHeight(h)
	if err != nil {
		return err
	}
	v, ok := vd.Body[target]
	if !ok {
		return errors.NewNotFoundError("unknown validator")
	}
	v.Memo = memo
	vd.Put(target, v)
	return nil
}
