package coinbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/ulogger"
)

type fakeOracle struct{ unspent map[string]bool }

func (f *fakeOracle) IsUnspentTxo(sid string) (bool, error) { return f.unspent[sid], nil }

type fakeCosig struct{ ok bool }

func (f fakeCosig) CosigSatisfied([]model.PubKey) bool { return f.ok }

type fakeDelegationView struct {
	delegations map[model.PubKey]model.Delegation
	paid        map[model.PubKey]bool
}

func (f *fakeDelegationView) Get(addr model.PubKey) (model.Delegation, bool) {
	d, ok := f.delegations[addr]
	return d, ok
}

func (f *fakeDelegationView) MarkPaid(addr model.PubKey) error {
	f.paid[addr] = true
	return nil
}

func pk(b byte) model.PubKey {
	var p model.PubKey
	p[0] = b
	return p
}

func TestRechargeAndReconcile(t *testing.T) {
	s := settings.NewTestSettings()
	oracle := &fakeOracle{unspent: map[string]bool{"a": true, "b": false}}
	cb := New(ulogger.TestLogger(), &s.Chain, oracle, "test-mnemonic")

	cb.Recharge("a")
	cb.Recharge("b")
	require.NoError(t, cb.ReconcileBank())
	assert.Equal(t, 1, cb.BankSize())
}

func TestFraDistributionRejectsReplay(t *testing.T) {
	s := settings.NewTestSettings()
	cb := New(ulogger.TestLogger(), &s.Chain, &fakeOracle{}, "test-mnemonic")

	plan := DistributionPlan{Allocations: map[model.PubKey]int64{pk(1): 1000}}
	require.NoError(t, cb.ApplyFraDistribution(fakeCosig{true}, plan))
	require.Error(t, cb.ApplyFraDistribution(fakeCosig{true}, plan))
}

func TestCoinbasePayRejectsUnknownRecipient(t *testing.T) {
	s := settings.NewTestSettings()
	cb := New(ulogger.TestLogger(), &s.Chain, &fakeOracle{}, "test-mnemonic")
	dv := &fakeDelegationView{delegations: map[model.PubKey]model.Delegation{}, paid: map[model.PubKey]bool{}}

	transfers := []TransferOp{{
		InputOwner: cb.Account().PubKey,
		Outputs: []TransferOutput{
			{Recipient: pk(99), Amount: 100, IsFRA: true},
		},
	}}
	require.Error(t, cb.CoinbasePay(dv, transfers))
}

func TestCoinbasePaySettlesDistributionAndBonded(t *testing.T) {
	s := settings.NewTestSettings()
	cb := New(ulogger.TestLogger(), &s.Chain, &fakeOracle{}, "test-mnemonic")

	plan := DistributionPlan{Allocations: map[model.PubKey]int64{pk(1): 500}}
	require.NoError(t, cb.ApplyFraDistribution(fakeCosig{true}, plan))

	dv := &fakeDelegationView{
		delegations: map[model.PubKey]model.Delegation{
			pk(2): {State: model.Bond, RwdAmount: 42},
		},
		paid: map[model.PubKey]bool{},
	}

	transfers := []TransferOp{{
		InputOwner: cb.Account().PubKey,
		Outputs: []TransferOutput{
			{Recipient: pk(1), Amount: 500, IsFRA: true},
			{Recipient: pk(2), Amount: 42, IsFRA: true},
		},
	}}
	require.NoError(t, cb.CoinbasePay(dv, transfers))

	_, stillOwed := cb.Account().DistributionPlan[pk(1)]
	assert.False(t, stillOwed)
	assert.True(t, dv.paid[pk(2)])
}

func TestCoinbasePayRechargesBankFromChangeOutput(t *testing.T) {
	s := settings.NewTestSettings()
	cb := New(ulogger.TestLogger(), &s.Chain, &fakeOracle{}, "test-mnemonic")
	dv := &fakeDelegationView{delegations: map[model.PubKey]model.Delegation{}, paid: map[model.PubKey]bool{}}

	plan := DistributionPlan{Allocations: map[model.PubKey]int64{pk(1): 100}}
	require.NoError(t, cb.ApplyFraDistribution(fakeCosig{true}, plan))

	transfers := []TransferOp{{
		InputOwner: cb.Account().PubKey,
		Outputs: []TransferOutput{
			{Recipient: pk(1), Amount: 100, IsFRA: true},
			{IsChange: true, Sid: "change-utxo-1", IsFRA: true},
		},
	}}
	require.NoError(t, cb.CoinbasePay(dv, transfers))
	assert.Equal(t, 1, cb.BankSize())
}

func TestCoinbasePayRejectsConfidentialChangeOutput(t *testing.T) {
	s := settings.NewTestSettings()
	cb := New(ulogger.TestLogger(), &s.Chain, &fakeOracle{}, "test-mnemonic")
	dv := &fakeDelegationView{delegations: map[model.PubKey]model.Delegation{}, paid: map[model.PubKey]bool{}}

	transfers := []TransferOp{{
		InputOwner: cb.Account().PubKey,
		Outputs: []TransferOutput{
			{IsChange: true, Sid: "change-utxo-2", IsFRA: true, IsConfidential: true},
		},
	}}
	require.Error(t, cb.CoinbasePay(dv, transfers))
	assert.Equal(t, 0, cb.BankSize())
}

func TestCoinbasePayPostponesMixedRecipient(t *testing.T) {
	s := settings.NewTestSettings()
	cb := New(ulogger.TestLogger(), &s.Chain, &fakeOracle{}, "test-mnemonic")

	plan := DistributionPlan{Allocations: map[model.PubKey]int64{pk(3): 500}}
	require.NoError(t, cb.ApplyFraDistribution(fakeCosig{true}, plan))

	dv := &fakeDelegationView{
		delegations: map[model.PubKey]model.Delegation{
			pk(3): {State: model.Locked, RwdAmount: 10},
		},
		paid: map[model.PubKey]bool{},
	}

	transfers := []TransferOp{{
		InputOwner: cb.Account().PubKey,
		Outputs: []TransferOutput{
			{Recipient: pk(3), Amount: 500, IsFRA: true},
		},
	}}
	require.Error(t, cb.CoinbasePay(dv, transfers))
}
