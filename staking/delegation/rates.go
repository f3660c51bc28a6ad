// Package delegation implements the Delegation Ledger (spec.md 4.2):
// delegation lifecycle, bond-period settlement, and per-block reward
// accrual against the global and proposer rate tables.
package delegation

import (
	"math/big"

	"github.com/fra-chain/stakingcore/errors"
)

// rateTier is one row of a basis-point rate table keyed by a percentage
// range [LowPct, HighPct).
type rateTier struct {
	LowPct  int64 // inclusive; hundredths of a percent in the global table (1000 = 10%), millionths of the whole in the proposer table (666667 = 66.6667%)
	HighPct int64 // exclusive
	RateBP  int64 // annual rate in basis points (100 = 1%)
}

// globalRateTable is spec.md 4.2's global return-rate table, evaluated on
// total_amount / FRA_TOTAL_AMOUNT.
var globalRateTable = []rateTier{
	{0, 1000, 2000},     // [0, 10)  -> 20%
	{1000, 2000, 1700},  // [10, 20) -> 17%
	{2000, 3000, 1400},  // [20, 30) -> 14%
	{3000, 4000, 1100},  // [30, 40) -> 11%
	{4000, 5000, 800},   // [40, 50) -> 8%
	{5000, 6000, 500},   // [50, 60) -> 5%
	{6000, 6700, 200},   // [60, 67) -> 2%
	{6700, 10100, 100},  // [67, 101) -> 1%
}

// proposerRateTable is spec.md 4.2's proposer bonus-rate table, evaluated on
// the proposer's vote-power fraction of total.
var proposerRateTable = []rateTier{
	{0, 666667, 0},        // [0, 66.6667)       -> 0%
	{666667, 750000, 100}, // [66.6667, 75)      -> 1%
	{750000, 833333, 200}, // [75, 83.3333)      -> 2%
	{833333, 916667, 300}, // [83.3333, 91.6667) -> 3%
	{916667, 1000000, 400},// [91.6667, 100)     -> 4%
	{1000000, 1000001, 500}, // [100, 100.0001)  -> 5%
}

// GlobalRateBP returns the annual rate (in basis points) for a global stake
// ratio of numerator/denominator (e.g. total_amount/FRA_TOTAL_AMOUNT),
// expressed in hundredths of a percent for tier comparison.
func GlobalRateBP(totalAmount, fraTotalAmount int64) int64 {
	pct := ratioToHundredthPercent(totalAmount, fraTotalAmount)
	return lookupTier(globalRateTable, pct)
}

// ProposerBonusBP returns the proposer's bonus rate for a vote-power
// fraction numerator/denominator (e.g. proposer_power/total_power), expressed
// in millionths of the whole (1000000 = 100%) for tier comparison (matches the
// table's 66.6667%-style boundaries precisely).
func ProposerBonusBP(voteNum, voteDen int64) int64 {
	pct := ratioToMillionthPercent(voteNum, voteDen)
	return lookupTier(proposerRateTable, pct)
}

func ratioToHundredthPercent(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return num * 10000 / den
}

func ratioToMillionthPercent(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return num * 1000000 / den
}

func lookupTier(table []rateTier, pct int64) int64 {
	for _, t := range table {
		if pct >= t.LowPct && pct < t.HighPct {
			return t.RateBP
		}
	}
	// Above the table's top bound: clamp to the last tier's rate, matching
	// the original's inclusive-top-bucket behavior.
	if len(table) > 0 {
		return table[len(table)-1].RateBP
	}
	return 0
}

const secondsPerYear = 365 * 24 * 3600

// CalculateDelegationRewards computes the per-block reward for principal p
// at annual rate rateBP (basis points: 100 = 1%) over a block interval of
// blockIntervalSeconds. Arithmetic is performed in 128-bit (math/big);
// overflow of the final int64 narrowing is a Fatal error per spec.md 7.
func CalculateDelegationRewards(p int64, rateBP int64, blockIntervalSeconds int64) (int64, error) {
	if p <= 0 || rateBP <= 0 {
		return 0, nil
	}

	num := big.NewInt(p)
	num.Mul(num, big.NewInt(rateBP))
	num.Mul(num, big.NewInt(blockIntervalSeconds))

	den := big.NewInt(10000) // rateBP is in basis points of 1% => /10000 for fraction
	den.Mul(den, big.NewInt(secondsPerYear))

	result := new(big.Int).Quo(num, den)

	if !result.IsInt64() {
		return 0, errors.NewFatalError("reward computation overflowed int64 for principal %d at rate %d bp", p, rateBP)
	}
	return result.Int64(), nil
}
