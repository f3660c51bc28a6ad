package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fra-chain/stakingcore/model"
)

type fakeResolver struct{ vd *model.ValidatorData }

func (f fakeResolver) GetEffectiveAtHeight(h uint64) (*model.ValidatorData, error) {
	return f.vd, nil
}

type fakeDelegations struct {
	delegations map[model.PubKey]model.Delegation
}

func (f *fakeDelegations) Get(addr model.PubKey) (model.Delegation, bool) {
	d, ok := f.delegations[addr]
	return d, ok
}

func (f *fakeDelegations) ImportExternAmount(addr model.PubKey, delta int64) error {
	d := f.delegations[addr]
	d.RwdAmount += delta
	f.delegations[addr] = d
	return nil
}

type fakePowers struct {
	deltas map[model.PubKey]int64
}

func (f *fakePowers) ChangePower(h uint64, pk model.PubKey, delta int64) error {
	f.deltas[pk] += delta
	return nil
}

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

func TestPenaltyDeductsRewardAndPower(t *testing.T) {
	v0 := pk(1)
	vd := model.NewValidatorData(0, 2, 3)
	vd.Put(v0, model.Validator{TDPubKey: tdpk(1), TDPower: 100, ID: v0})

	delegations := &fakeDelegations{delegations: map[model.PubKey]model.Delegation{
		v0: {Amount: 1000, RwdAmount: 5, State: model.Locked},
	}}
	powers := &fakePowers{deltas: map[model.PubKey]int64{}}

	err := Penalty(0, fakeResolver{vd}, delegations, powers, model.TendermintAddr(tdpk(1)), 20)
	require.NoError(t, err)

	assert.Equal(t, int64(-15), delegations.delegations[v0].RwdAmount)
	assert.Equal(t, int64(-20), powers.deltas[v0])
}

func TestPenaltyRejectsPaidDelegation(t *testing.T) {
	v0 := pk(1)
	vd := model.NewValidatorData(0, 2, 3)
	vd.Put(v0, model.Validator{TDPubKey: tdpk(1), TDPower: 100, ID: v0})

	delegations := &fakeDelegations{delegations: map[model.PubKey]model.Delegation{
		v0: {State: model.Paid},
	}}
	powers := &fakePowers{deltas: map[model.PubKey]int64{}}

	err := Penalty(0, fakeResolver{vd}, delegations, powers, model.TendermintAddr(tdpk(1)), 10)
	require.Error(t, err)
}
