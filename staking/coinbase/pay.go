package coinbase

import (
	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
)

// TransferOutput is one output of a TransferAsset-shaped operation.
type TransferOutput struct {
	Recipient model.PubKey
	Amount    int64
	// IsChange marks an output returning funds to CoinBase itself — a
	// newly-observable CoinBase-owned UTXO, registered with Recharge.
	IsChange bool
	// Sid is the UTXO identifier of this output, used to recharge the bank
	// when IsChange is set. Ignored otherwise.
	Sid string
	// IsFRA must be true and IsConfidential must be false for every output
	// of a coinbase-sourced transfer (spec.md 4.3).
	IsFRA          bool
	IsConfidential bool
}

// TransferOp is a single TransferAsset-shaped operation within a
// transaction.
type TransferOp struct {
	// InputOwner is the pubkey that owns every input of this transfer. The
	// operation is a "coinbase operation" iff InputOwner == CoinBase.PubKey
	// for at least one transfer in the enclosing transaction.
	InputOwner model.PubKey
	Outputs    []TransferOutput
}

// DelegationView is the subset of staking/delegation needed to validate and
// settle a coinbase payment against bonded delegations, kept as an
// interface so CoinbasePay never re-enters the ledger through anything but
// this narrow surface (spec.md 9's single non-reentrant method design).
type DelegationView interface {
	Get(addr model.PubKey) (model.Delegation, bool)
	MarkPaid(addr model.PubKey) error
}

// CoinbasePay validates and settles a set of coinbase-sourced transfer
// operations in one non-reentrant pass: every transfer whose inputs belong
// to CoinBase must send outputs exclusively to (a) CoinBase itself, (b) a
// distribution-plan recipient, or (c) a delegator whose delegation is
// Bond — with amounts matching exactly. On success, paid distribution
// entries are zeroed and pruned, and paid delegations transition to Paid.
func (cb *CoinBase) CoinbasePay(delegations DelegationView, transfers []TransferOp) error {
	var coinbaseTransfers []TransferOp
	for _, t := range transfers {
		if t.InputOwner == cb.account.PubKey {
			coinbaseTransfers = append(coinbaseTransfers, t)
		}
	}
	if len(coinbaseTransfers) == 0 {
		return nil
	}

	distributionPayout := make(map[model.PubKey]int64)
	delegationPayout := make(map[model.PubKey]int64)
	var changeSids []string

	for _, t := range coinbaseTransfers {
		if t.InputOwner != cb.account.PubKey {
			return errors.NewPreconditionError("mixed-ownership inputs in a coinbase operation")
		}
		for _, out := range t.Outputs {
			if !out.IsFRA || out.IsConfidential {
				return errors.NewPreconditionError("coinbase outputs must be non-confidential FRA transfers")
			}
			if out.IsChange {
				changeSids = append(changeSids, out.Sid)
				continue
			}

			_, isDistribution := cb.account.DistributionPlan[out.Recipient]
			d, isDelegator := delegations.Get(out.Recipient)
			bonded := isDelegator && d.State == model.Bond

			postponed := isDistribution && isDelegator && !bonded
			if postponed {
				return errors.NewPreconditionError("recipient has an unsettled delegation; distribution postponed until Paid")
			}

			switch {
			case isDistribution && !isDelegator:
				distributionPayout[out.Recipient] += out.Amount
			case bonded:
				delegationPayout[out.Recipient] += out.Amount
			default:
				return errors.NewPreconditionError("coinbase output to an address with no distribution or bonded delegation")
			}
		}
	}

	for recipient, paid := range distributionPayout {
		owed := cb.account.DistributionPlan[recipient]
		if paid != owed {
			return errors.NewPreconditionError("distribution payout %d does not match planned amount %d", paid, owed)
		}
	}
	for recipient, paid := range delegationPayout {
		d, _ := delegations.Get(recipient)
		if paid != d.RwdAmount {
			return errors.NewPreconditionError("delegation payout %d does not match accrued reward %d", paid, d.RwdAmount)
		}
	}

	for recipient := range distributionPayout {
		delete(cb.account.DistributionPlan, recipient)
	}
	for recipient := range delegationPayout {
		if err := delegations.MarkPaid(recipient); err != nil {
			return err
		}
	}
	for _, sid := range changeSids {
		cb.Recharge(sid)
	}

	return nil
}
