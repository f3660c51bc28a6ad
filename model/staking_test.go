package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/ed25519"
)

func newTestCoinBase(t *testing.T) *CoinBase {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewCoinBase(priv)
}

func TestStateRootChangesWithDistributionHist(t *testing.T) {
	genesis := NewValidatorData(0, 2, 3)
	genesis.Put(PubKey{1}, Validator{TDPubKey: TDPubKey{1}, TDPower: 100, ID: PubKey{1}})

	cb := newTestCoinBase(t)
	st := NewStaking(genesis, cb)
	before := st.StateRoot()

	st.CoinBase.DistributionHist["deadbeef"] = struct{}{}
	after := st.StateRoot()

	assert.NotEqual(t, before, after, "accepting a distribution content hash must change the committed state root")
}

func TestStateRootStableUnderDistributionHistIterationOrder(t *testing.T) {
	genesis := NewValidatorData(0, 2, 3)
	genesis.Put(PubKey{1}, Validator{TDPubKey: TDPubKey{1}, TDPower: 100, ID: PubKey{1}})

	cbA := newTestCoinBase(t)
	cbA.PubKey = PubKey{9}
	cbA.DistributionHist["aaaa"] = struct{}{}
	cbA.DistributionHist["bbbb"] = struct{}{}
	stA := NewStaking(genesis, cbA)

	cbB := newTestCoinBase(t)
	cbB.PubKey = PubKey{9}
	cbB.DistributionHist["bbbb"] = struct{}{}
	cbB.DistributionHist["aaaa"] = struct{}{}
	stB := NewStaking(genesis, cbB)

	assert.Equal(t, stA.StateRoot(), stB.StateRoot(), "state root must not depend on map iteration order")
}

func TestStateRootIgnoresNilCoinBase(t *testing.T) {
	genesis := NewValidatorData(0, 2, 3)
	genesis.Put(PubKey{1}, Validator{TDPubKey: TDPubKey{1}, TDPower: 100, ID: PubKey{1}})

	st := &Staking{CurHeight: 0, Validators: NewValidatorInfo(), Delegation: NewDelegationInfo(), CoinBase: nil}
	st.Validators.SetAtHeight(0, genesis, false)

	assert.NotPanics(t, func() { st.StateRoot() })
}
