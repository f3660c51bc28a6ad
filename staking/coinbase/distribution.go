package coinbase

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
)

// DistributionPlan is the allocation table carried by a FraDistribution
// operation.
type DistributionPlan struct {
	Allocations map[model.PubKey]int64
	Signers     []model.PubKey
}

// ContentHash derives the replay-guard key of a distribution plan: a
// canonical, sorted serialization hashed with SHA-256, matching the
// original ledger's "content hash" idempotence guard.
func (p DistributionPlan) ContentHash() string {
	recipients := make([]model.PubKey, 0, len(p.Allocations))
	for r := range p.Allocations {
		recipients = append(recipients, r)
	}
	sort.Slice(recipients, func(i, j int) bool {
		return string(recipients[i][:]) < string(recipients[j][:])
	})

	h := sha256.New()
	for _, r := range recipients {
		h.Write(r[:])
		var amt [8]byte
		binary.BigEndian.PutUint64(amt[:], uint64(p.Allocations[r]))
		h.Write(amt[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CosigChecker is the subset of validator.Registry needed to authorize a
// distribution operation against the current co-signature rule.
type CosigChecker interface {
	CosigSatisfied(signers []model.PubKey) bool
}

// ApplyFraDistribution validates and accepts a distribution operation: the
// content hash must be unseen, the signers must satisfy the current
// co-signature rule, and each recipient's owed balance accumulates without
// overflow.
func (cb *CoinBase) ApplyFraDistribution(cosig CosigChecker, plan DistributionPlan) error {
	if !cosig.CosigSatisfied(plan.Signers) {
		return errors.NewAuthorizationError("fra_distribution cosignature threshold not met")
	}

	hash := plan.ContentHash()
	if _, seen := cb.distributionHistSet.Get(hash); seen {
		return errors.NewConflictError("fra_distribution already accepted: %s", hash)
	}

	for recipient, amount := range plan.Allocations {
		if amount <= 0 {
			return errors.NewInvalidInputError("fra_distribution amount must be positive")
		}
		current := cb.account.DistributionPlan[recipient]
		next := current + amount
		if next < current {
			return errors.NewFatalError("fra_distribution overflow for recipient")
		}
		cb.account.DistributionPlan[recipient] = next
	}

	cb.account.DistributionHist[hash] = struct{}{}
	cb.distributionHistSet.Put(hash, struct{}{})
	return nil
}
