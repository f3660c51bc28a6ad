// Package model defines the value types of the staking state machine:
// validators, delegations, the coinbase account, and the Staking aggregate
// root, plus the canonical hashing used to derive the committed state root.
package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// PubKey is a staking-layer public key: the reward sink / authority for
// self-delegation and the key under which a Validator is indexed.
type PubKey [32]byte

// TDPubKey is the consensus-engine (Tendermint-style) pubkey of a validator.
type TDPubKey [32]byte

// TendermintAddr derives the lowercase hex address of a consensus pubkey:
// the first 20 bytes of SHA-256(td_pubkey).
func TendermintAddr(td TDPubKey) string {
	sum := sha256.Sum256(td[:])
	return hex.EncodeToString(sum[:20])
}

// Validator is a single member of a validator set.
type Validator struct {
	TDPubKey TDPubKey
	TDPower  int64
	ID       PubKey
	Memo     string
}

// Clone returns a value copy; Validator has no reference fields so a plain
// copy already suffices, but Clone documents the intent at call sites that
// mutate a borrowed snapshot.
func (v Validator) Clone() Validator {
	return v
}

// CosigRule is the co-signature threshold plus per-member weights governing
// validator-set updates and distribution operations.
type CosigRule struct {
	Numerator   int64
	Denominator int64
	Weights     map[PubKey]int64
}

// DefaultCosigRule derives the default rule (2/3 threshold, weight 1 per
// member) from a validator set's membership.
func DefaultCosigRule(members []PubKey, num, den int64) CosigRule {
	weights := make(map[PubKey]int64, len(members))
	for _, m := range members {
		weights[m] = 1
	}
	return CosigRule{Numerator: num, Denominator: den, Weights: weights}
}

// TotalWeight sums every member's weight.
func (c CosigRule) TotalWeight() int64 {
	var total int64
	for _, w := range c.Weights {
		total += w
	}
	return total
}

// Satisfied reports whether the weight carried by signers meets the
// threshold num/den of the total registered weight.
func (c CosigRule) Satisfied(signers []PubKey) bool {
	total := c.TotalWeight()
	if total == 0 {
		return false
	}
	var signed int64
	seen := make(map[PubKey]bool, len(signers))
	for _, s := range signers {
		if seen[s] {
			continue
		}
		seen[s] = true
		signed += c.Weights[s]
	}
	return signed*c.Denominator >= total*c.Numerator
}

// ValidatorData is a versioned validator-set snapshot that becomes
// authoritative starting at Height.
type ValidatorData struct {
	Height       uint64
	Body         map[PubKey]Validator
	AddrTDToApp  map[string]PubKey
	CosigRule    CosigRule
}

// NewValidatorData builds an empty snapshot for height h with the given
// co-signature thresholds.
func NewValidatorData(h uint64, num, den int64) *ValidatorData {
	return &ValidatorData{
		Height:      h,
		Body:        make(map[PubKey]Validator),
		AddrTDToApp: make(map[string]PubKey),
		CosigRule:   CosigRule{Numerator: num, Denominator: den, Weights: map[PubKey]int64{}},
	}
}

// Clone deep-copies a snapshot so callers may mutate it without aliasing the
// registry's stored copy.
func (vd *ValidatorData) Clone() *ValidatorData {
	out := &ValidatorData{
		Height:      vd.Height,
		Body:        make(map[PubKey]Validator, len(vd.Body)),
		AddrTDToApp: make(map[string]PubKey, len(vd.AddrTDToApp)),
		CosigRule: CosigRule{
			Numerator:   vd.CosigRule.Numerator,
			Denominator: vd.CosigRule.Denominator,
			Weights:     make(map[PubKey]int64, len(vd.CosigRule.Weights)),
		},
	}
	for k, v := range vd.Body {
		out.Body[k] = v
	}
	for k, v := range vd.AddrTDToApp {
		out.AddrTDToApp[k] = v
	}
	for k, v := range vd.CosigRule.Weights {
		out.CosigRule.Weights[k] = v
	}
	return out
}

// TotalPower sums td_power across every validator in the snapshot.
func (vd *ValidatorData) TotalPower() int64 {
	var total int64
	for _, v := range vd.Body {
		total += v.TDPower
	}
	return total
}

// Put inserts or replaces a validator and keeps AddrTDToApp in sync.
func (vd *ValidatorData) Put(pk PubKey, v Validator) {
	vd.Body[pk] = v
	vd.AddrTDToApp[TendermintAddr(v.TDPubKey)] = pk
}

// ResolveTDAddr resolves a TendermintAddr to its staking pubkey.
func (vd *ValidatorData) ResolveTDAddr(addr string) (PubKey, bool) {
	pk, ok := vd.AddrTDToApp[addr]
	return pk, ok
}
