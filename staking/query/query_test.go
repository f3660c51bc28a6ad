package query

import (
	"testing"
	"time"

	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/staking/delegation"
	"github.com/fra-chain/stakingcore/staking/validator"
	"github.com/fra-chain/stakingcore/ulogger"
)

func pk(b byte) model.PubKey {
	var p model.PubKey
	p[0] = b
	return p
}

func tdpk(b byte) model.TDPubKey {
	var p model.TDPubKey
	p[0] = b
	return p
}

// newTestSurface builds a lopsided two-validator genesis (pk(1) holding a
// negligible share) so power deltas used by the cache tests stay well clear
// of the per-validator cap regardless of how skewed they are.
func newTestSurface(t *testing.T) (*Surface, *validator.Registry, *delegation.Ledger) {
	t.Helper()
	log := ulogger.TestLogger()
	chain := &settings.NewTestSettings().Chain

	genesis := model.NewValidatorData(0, chain.CosigThresholdNumerator, chain.CosigThresholdDenominator)
	genesis.Put(pk(1), model.Validator{TDPubKey: tdpk(1), TDPower: 1, ID: pk(1)})
	genesis.Put(pk(2), model.Validator{TDPubKey: tdpk(2), TDPower: 999_999, ID: pk(2)})

	reg := validator.New(log, chain, genesis)
	led := delegation.New(log, chain, reg)

	surface := New(reg, led, 50*time.Millisecond)
	t.Cleanup(surface.Close)
	return surface, reg, led
}

func TestValidatorPowerReturnsCurrentPower(t *testing.T) {
	surface, _, _ := newTestSurface(t)

	power, err := surface.ValidatorPower(0, pk(1))
	if err != nil {
		t.Fatalf("ValidatorPower: %v", err)
	}
	if power != 1 {
		t.Fatalf("expected power 1, got %d", power)
	}
}

func TestValidatorPowerUnknownValidatorErrors(t *testing.T) {
	surface, _, _ := newTestSurface(t)

	if _, err := surface.ValidatorPower(0, pk(9)); err == nil {
		t.Fatal("expected an error for an unregistered pubkey")
	}
}

func TestValidatorPowerServesStaleCacheUntilInvalidated(t *testing.T) {
	surface, reg, _ := newTestSurface(t)

	if _, err := surface.ValidatorPower(0, pk(1)); err != nil {
		t.Fatalf("ValidatorPower: %v", err)
	}

	if err := reg.ChangePower(0, pk(1), 50); err != nil {
		t.Fatalf("ChangePower: %v", err)
	}

	stale, err := surface.ValidatorPower(0, pk(1))
	if err != nil {
		t.Fatalf("ValidatorPower: %v", err)
	}
	if stale != 1 {
		t.Fatalf("expected the cached value 1 before invalidation, got %d", stale)
	}

	surface.InvalidateAll()

	fresh, err := surface.ValidatorPower(0, pk(1))
	if err != nil {
		t.Fatalf("ValidatorPower: %v", err)
	}
	if fresh != 51 {
		t.Fatalf("expected the fresh value 51 after invalidation, got %d", fresh)
	}
}

func TestTotalPowerIsNeverCached(t *testing.T) {
	surface, reg, _ := newTestSurface(t)

	if got := surface.TotalPower(0); got != 1_000_000 {
		t.Fatalf("expected total power 1000000, got %d", got)
	}

	if err := reg.ChangePower(0, pk(1), 25); err != nil {
		t.Fatalf("ChangePower: %v", err)
	}

	if got := surface.TotalPower(0); got != 1_000_025 {
		t.Fatalf("expected total power to reflect the change immediately, got %d", got)
	}
}

// newDelegationTestSurface builds a genesis where the delegation target
// (pk(1)) holds a small but non-trivial slice of a much larger total, then
// bootstraps its required perpetual self-delegation, so a further 32 FRA
// delegation from a third party stays comfortably under the power cap.
func newDelegationTestSurface(t *testing.T) (*Surface, *delegation.Ledger, *settings.Chain) {
	t.Helper()
	log := ulogger.TestLogger()
	chain := &settings.NewTestSettings().Chain

	genesis := model.NewValidatorData(0, chain.CosigThresholdNumerator, chain.CosigThresholdDenominator)
	genesis.Put(pk(1), model.Validator{TDPubKey: tdpk(1), TDPower: 10_000_000, ID: pk(1)})
	for i := byte(2); i <= 5; i++ {
		genesis.Put(pk(i), model.Validator{TDPubKey: tdpk(i), TDPower: 1_000_000_000, ID: pk(i)})
	}

	reg := validator.New(log, chain, genesis)
	led := delegation.New(log, chain, reg)

	if err := led.Delegate(0, pk(1), model.TendermintAddr(tdpk(1)), chain.MinDelegationAmount, 0, chain.BlockHeightMax); err != nil {
		t.Fatalf("bootstrap self-delegation: %v", err)
	}

	surface := New(reg, led, 50*time.Millisecond)
	t.Cleanup(surface.Close)
	return surface, led, chain
}

func TestDelegationRewardsAndBondsReflectLedgerState(t *testing.T) {
	surface, led, chain := newDelegationTestSurface(t)

	owner := pk(50)
	if err := led.Delegate(0, owner, model.TendermintAddr(tdpk(1)), chain.MinDelegationAmount, 0, 100); err != nil {
		t.Fatalf("Delegate: %v", err)
	}

	amount, state, err := surface.DelegationBonds(owner)
	if err != nil {
		t.Fatalf("DelegationBonds: %v", err)
	}
	if amount != chain.MinDelegationAmount {
		t.Fatalf("expected principal %d, got %d", chain.MinDelegationAmount, amount)
	}
	if state != model.Locked {
		t.Fatalf("expected Locked state, got %v", state)
	}

	rewards, err := surface.DelegationRewards(owner)
	if err != nil {
		t.Fatalf("DelegationRewards: %v", err)
	}
	if rewards != 0 {
		t.Fatalf("expected zero initial rewards, got %d", rewards)
	}
}

func TestDelegationQueriesUnknownAddressError(t *testing.T) {
	surface, _, _ := newDelegationTestSurface(t)

	if _, _, err := surface.DelegationBonds(pk(99)); err == nil {
		t.Fatal("expected an error for an address with no delegation")
	}
	if _, err := surface.DelegationRewards(pk(99)); err == nil {
		t.Fatal("expected an error for an address with no delegation")
	}
}

func TestEffectiveSetBeforeHeightRejectsGenesis(t *testing.T) {
	surface, _, _ := newTestSurface(t)

	if _, err := surface.EffectiveSetBeforeHeight(0); err == nil {
		t.Fatal("expected an error querying the set before genesis")
	}
}

func TestEffectiveSetBeforeHeightReturnsPriorSnapshot(t *testing.T) {
	surface, reg, _ := newTestSurface(t)

	nextGen := model.NewValidatorData(1, 2, 3)
	nextGen.Put(pk(1), model.Validator{TDPubKey: tdpk(1), TDPower: 1, ID: pk(1)})
	nextGen.Put(pk(2), model.Validator{TDPubKey: tdpk(2), TDPower: 999_999, ID: pk(2)})
	if err := reg.SetAtHeight(1, nextGen, false); err != nil {
		t.Fatalf("SetAtHeight: %v", err)
	}

	vd, err := surface.EffectiveSetBeforeHeight(1)
	if err != nil {
		t.Fatalf("EffectiveSetBeforeHeight: %v", err)
	}
	if vd.Body[pk(1)].TDPower != 1 {
		t.Fatalf("expected the pre-height-1 power of 1, got %d", vd.Body[pk(1)].TDPower)
	}
}
