package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
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

func genesisSet(n int) *model.ValidatorData {
	vd := model.NewValidatorData(0, 2, 3)
	members := make([]model.PubKey, 0, n)
	for i := 0; i < n; i++ {
		id := pk(byte(i + 1))
		vd.Put(id, model.Validator{TDPubKey: tdpk(byte(i + 1)), TDPower: 100, ID: id})
		members = append(members, id)
	}
	vd.CosigRule = model.DefaultCosigRule(members, 2, 3)
	return vd
}

func newTestRegistry(t *testing.T, n int) (*Registry, *model.ValidatorData) {
	t.Helper()
	chain := &settings.NewTestSettings().Chain
	vd := genesisSet(n)
	return New(ulogger.TestLogger(), chain, vd), vd
}

func TestTotalPowerAndCap(t *testing.T) {
	reg, _ := newTestRegistry(t, 5)
	require.Equal(t, int64(500), reg.TotalPower(0))

	err := reg.ChangePower(0, pk(1), 1000)
	require.Error(t, err)
	require.Equal(t, int64(500), reg.TotalPower(0))
}

// newSkewedRegistry gives pk(1) a small slice of a much larger total, unlike
// genesisSet's equal split (which sits exactly at the 20% cap boundary and
// so can't absorb any positive delta at all).
func newSkewedRegistry(t *testing.T) *Registry {
	t.Helper()
	chain := &settings.NewTestSettings().Chain
	vd := model.NewValidatorData(0, 2, 3)
	vd.Put(pk(1), model.Validator{TDPubKey: tdpk(1), TDPower: 100, ID: pk(1)})
	for i := byte(2); i <= 5; i++ {
		id := pk(i)
		vd.Put(id, model.Validator{TDPubKey: tdpk(i), TDPower: 10_000, ID: id})
	}
	return New(ulogger.TestLogger(), chain, vd)
}

func TestChangePowerWithinCap(t *testing.T) {
	reg := newSkewedRegistry(t)
	require.NoError(t, reg.ChangePower(0, pk(1), 32))
	assert.Equal(t, int64(40_132), reg.TotalPower(0))
}

func TestApplyAtHeightInheritsPower(t *testing.T) {
	reg := newSkewedRegistry(t)
	require.NoError(t, reg.ChangePower(0, pk(1), 32))

	next := model.NewValidatorData(10, 2, 3)
	for i := 1; i <= 5; i++ {
		id := pk(byte(i))
		next.Put(id, model.Validator{TDPubKey: tdpk(byte(i)), TDPower: 0, ID: id})
	}
	require.NoError(t, reg.SetAtHeight(10, next, false))
	require.NoError(t, reg.ApplyAtHeight(10))

	vd, err := reg.GetEffectiveAtHeight(10)
	require.NoError(t, err)
	assert.Equal(t, int64(132), vd.Body[pk(1)].TDPower)
}

func TestUpdateValidatorRejectsWithoutQuorum(t *testing.T) {
	reg, vd := newTestRegistry(t, 5)
	candidates := make([]Candidate, 0, 5)
	for i := 1; i <= 5; i++ {
		candidates = append(candidates, Candidate{TDPubKey: tdpk(byte(i)), ID: pk(byte(i))})
	}
	_ = vd

	err := reg.ApplyUpdateValidator(0, UpdateValidatorOp{
		TargetHeight: 5,
		Candidates:   candidates,
		Signers:      []model.PubKey{pk(1)},
	})
	require.Error(t, err)
}

func TestUpdateValidatorAcceptsWithQuorum(t *testing.T) {
	reg, _ := newTestRegistry(t, 3)
	candidates := []Candidate{
		{TDPubKey: tdpk(10), ID: pk(10)},
		{TDPubKey: tdpk(11), ID: pk(11)},
		{TDPubKey: tdpk(12), ID: pk(12)},
	}
	err := reg.ApplyUpdateValidator(0, UpdateValidatorOp{
		TargetHeight: 5,
		Candidates:   candidates,
		Signers:      []model.PubKey{pk(1), pk(2), pk(3)},
	})
	require.NoError(t, err)

	vd, err := reg.GetEffectiveAtHeight(5)
	require.NoError(t, err)
	assert.Len(t, vd.Body, 3)
}
