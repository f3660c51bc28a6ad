// Package coinbase implements the CoinBase component (spec.md 4.3): the
// reserved system identity that sources block rewards and scheduled FRA
// distribution, with bank reconciliation and payment solvency checks.
package coinbase

import (
	"crypto/sha256"

	"github.com/dolthub/swiss"
	"golang.org/x/crypto/ed25519"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/ulogger"
)

// UnspentOracle is the external UTXO ledger collaborator (spec.md 6): the
// core never maintains UTXOs itself, only asks whether one is still
// unspent.
type UnspentOracle interface {
	IsUnspentTxo(sid string) (bool, error)
}

// CoinBase wraps a model.CoinBase with the operations of spec.md 4.3.
type CoinBase struct {
	log      ulogger.Logger
	settings *settings.Chain
	oracle   UnspentOracle
	account  *model.CoinBase

	// distributionHistSet mirrors account.DistributionHist in a
	// swiss.Map for O(1) replay-guard membership checks under load; the
	// canonical source of truth remains account.DistributionHist since
	// that is what gets hashed into the state root.
	distributionHistSet *swiss.Map[string, struct{}]
}

// New derives a CoinBase identity deterministically from mnemonic (stood in
// here for the reference node's WIF-decode step, since this module has no
// Bitcoin wallet format to decode) and wraps it with the settlement
// operations.
func New(log ulogger.Logger, chain *settings.Chain, oracle UnspentOracle, mnemonic string) *CoinBase {
	seed := sha256.Sum256([]byte(mnemonic))
	keyPair := ed25519.NewKeyFromSeed(seed[:])
	account := model.NewCoinBase(keyPair)

	set := swiss.NewMap[string, struct{}](16)
	for h := range account.DistributionHist {
		set.Put(h, struct{}{})
	}

	return &CoinBase{log: log, settings: chain, oracle: oracle, account: account, distributionHistSet: set}
}

// FromAccount wraps an already-populated account, e.g. after a snapshot
// replay.
func FromAccount(log ulogger.Logger, chain *settings.Chain, oracle UnspentOracle, account *model.CoinBase) *CoinBase {
	set := swiss.NewMap[string, struct{}](uint32(len(account.DistributionHist)))
	for h := range account.DistributionHist {
		set.Put(h, struct{}{})
	}
	return &CoinBase{log: log, settings: chain, oracle: oracle, account: account, distributionHistSet: set}
}

// Account exposes the underlying model for persistence/hashing.
func (cb *CoinBase) Account() *model.CoinBase { return cb.account }

// Restore overwrites the underlying account in place with snapshot's
// contents — used by the dispatcher to roll back a failed transaction. It
// mutates the existing CoinBase rather than swapping the pointer so that a
// model.Staking holding the same pointer observes the rollback.
func (cb *CoinBase) Restore(snapshot *model.CoinBase) {
	cb.account.RestoreFrom(snapshot)
	set := swiss.NewMap[string, struct{}](uint32(len(cb.account.DistributionHist)))
	for h := range cb.account.DistributionHist {
		set.Put(h, struct{}{})
	}
	cb.distributionHistSet = set
}

// Recharge registers a newly-observed UTXO identifier owned by CoinBase.
func (cb *CoinBase) Recharge(sid string) {
	cb.account.Bank[sid] = struct{}{}
}

// ReconcileBank removes identifiers that are no longer unspent, per the
// settlement loop's per-Commit "coinbase_clean_spent_txos" step.
func (cb *CoinBase) ReconcileBank() error {
	for sid := range cb.account.Bank {
		unspent, err := cb.oracle.IsUnspentTxo(sid)
		if err != nil {
			return errors.NewProcessingError("is_unspent_txo oracle call failed for %s", sid, err)
		}
		if !unspent {
			delete(cb.account.Bank, sid)
		}
	}
	return nil
}

// BankSize returns the number of UTXOs currently in the bank — a visibility
// aid, not itself an amount (amounts live in the UTXO ledger, external to
// this module).
func (cb *CoinBase) BankSize() int { return len(cb.account.Bank) }
