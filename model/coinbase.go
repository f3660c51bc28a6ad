package model

import "golang.org/x/crypto/ed25519"

// CoinBase is the reserved system identity holding the unissued/unpaid FRA
// pool: block rewards and scheduled distributions are paid from here.
type CoinBase struct {
	PubKey  PubKey
	KeyPair ed25519.PrivateKey

	// Bank is the set of UTXO identifiers currently owned by CoinBase.
	Bank map[string]struct{}

	// DistributionHist holds the content hashes of accepted FraDistribution
	// operations — a replay guard, never pruned.
	DistributionHist map[string]struct{}

	// DistributionPlan maps a recipient to its remaining owed units.
	// Entries are cleared to zero on full payment, then pruned.
	DistributionPlan map[PubKey]int64
}

// NewCoinBase derives a CoinBase identity from keyPair.
func NewCoinBase(keyPair ed25519.PrivateKey) *CoinBase {
	pub := keyPair.Public().(ed25519.PublicKey)
	var pk PubKey
	copy(pk[:], pub)
	return &CoinBase{
		PubKey:           pk,
		KeyPair:          keyPair,
		Bank:             make(map[string]struct{}),
		DistributionHist: make(map[string]struct{}),
		DistributionPlan: make(map[PubKey]int64),
	}
}

// Equal compares two CoinBase instances by identity only, matching the
// original ledger's equality semantics (pubkey match, nothing else).
func (c *CoinBase) Equal(other *CoinBase) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.PubKey == other.PubKey
}

// PlannedBalance returns the sum of owed-but-unpaid distribution amounts.
func (c *CoinBase) PlannedBalance() int64 {
	var total int64
	for _, v := range c.DistributionPlan {
		total += v
	}
	return total
}

// Clone deep-copies the CoinBase account.
func (c *CoinBase) Clone() *CoinBase {
	out := &CoinBase{
		PubKey:           c.PubKey,
		KeyPair:          append(ed25519.PrivateKey(nil), c.KeyPair...),
		Bank:             make(map[string]struct{}, len(c.Bank)),
		DistributionHist: make(map[string]struct{}, len(c.DistributionHist)),
		DistributionPlan: make(map[PubKey]int64, len(c.DistributionPlan)),
	}
	for k := range c.Bank {
		out.Bank[k] = struct{}{}
	}
	for k := range c.DistributionHist {
		out.DistributionHist[k] = struct{}{}
	}
	for k, v := range c.DistributionPlan {
		out.DistributionPlan[k] = v
	}
	return out
}

// RestoreFrom overwrites the receiver's contents with a deep copy of other's,
// preserving the receiver's identity.
func (c *CoinBase) RestoreFrom(other *CoinBase) {
	clone := other.Clone()
	c.PubKey = clone.PubKey
	c.KeyPair = clone.KeyPair
	c.Bank = clone.Bank
	c.DistributionHist = clone.DistributionHist
	c.DistributionPlan = clone.DistributionPlan
}
