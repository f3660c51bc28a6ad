package consensus

import (
	"context"
	"testing"

	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/staking/coinbase"
	"github.com/fra-chain/stakingcore/staking/delegation"
	"github.com/fra-chain/stakingcore/staking/dispatch"
	"github.com/fra-chain/stakingcore/staking/settlement"
	"github.com/fra-chain/stakingcore/staking/validator"
	"github.com/fra-chain/stakingcore/ulogger"
)

type fakeOracle struct{}

func (fakeOracle) IsUnspentTxo(string) (bool, error) { return true, nil }

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

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	log := ulogger.TestLogger()
	chain := &settings.NewTestSettings().Chain

	genesis := model.NewValidatorData(0, chain.CosigThresholdNumerator, chain.CosigThresholdDenominator)
	// pk(1) holds a small share so its self-delegation stays under the 20%
	// per-validator power cap.
	genesis.Put(pk(1), model.Validator{TDPubKey: tdpk(1), TDPower: 10_000_000, ID: pk(1)})
	for i := byte(2); i <= 5; i++ {
		genesis.Put(pk(i), model.Validator{TDPubKey: tdpk(i), TDPower: 1_000_000_000, ID: pk(i)})
	}

	st := model.NewStaking(genesis, model.NewCoinBase(coinbase.New(log, chain, fakeOracle{}, "driver test").Account().KeyPair))

	reg := validator.FromInfo(log, chain, st.Validators)
	led := delegation.FromInfo(log, chain, reg, st.Delegation)
	cb := coinbase.FromAccount(log, chain, fakeOracle{}, st.CoinBase)

	curHeight := func() uint64 { return st.CurHeight }
	disp := dispatch.New(log, curHeight, reg, led, cb)
	loop := settlement.New(log, chain, st, reg, led, cb, nil, "staking-settlement")

	return New(log, disp, loop, reg)
}

func TestBeginBlockRejectsUnknownProposer(t *testing.T) {
	d := newTestDriver(t)
	err := d.BeginBlock(context.Background(), BeginBlockRequest{Height: 1, ProposerTDAddr: "deadbeef"})
	if err == nil {
		t.Fatal("expected unknown proposer address to be rejected")
	}
}

func TestFullBlockLifecycle(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	proposerAddr := model.TendermintAddr(tdpk(1))

	if err := d.BeginBlock(ctx, BeginBlockRequest{Height: 1, ProposerTDAddr: proposerAddr}); err != nil {
		t.Fatalf("unexpected BeginBlock error: %v", err)
	}

	tx := dispatch.Transaction{
		HasFeeTransfer: true,
		Ops: []dispatch.Operation{
			{Kind: dispatch.KindDelegation, Delegate: &dispatch.DelegateParams{
				Owner: pk(1), TargetTDAddr: proposerAddr,
				Amount: 32_000_000, StartHeight: 1, EndHeight: 1,
			}},
		},
	}
	raw, err := EncodeEnvelope(Envelope{Tx: tx, SeqIDAnchor: 1})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	resp, err := d.DeliverTx(ctx, DeliverTxRequest{Tx: raw})
	if err != nil {
		t.Fatalf("unexpected DeliverTx error: %v", err)
	}
	if resp.Code != codeOK {
		t.Fatalf("expected code 0, got %d: %s", resp.Code, resp.Log)
	}

	endResp, err := d.EndBlock(ctx)
	if err != nil {
		t.Fatalf("unexpected EndBlock error: %v", err)
	}
	_ = endResp

	commitResp, err := d.Commit(ctx)
	if err != nil {
		t.Fatalf("unexpected Commit error: %v", err)
	}
	var zero [32]byte
	if commitResp.StateHash == zero {
		t.Fatal("expected a non-zero state hash")
	}
}

func TestDeliverTxRejectsExpiredEnvelope(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	proposerAddr := model.TendermintAddr(tdpk(1))

	if err := d.BeginBlock(ctx, BeginBlockRequest{Height: 500, ProposerTDAddr: proposerAddr}); err != nil {
		t.Fatalf("unexpected BeginBlock error: %v", err)
	}

	tx := dispatch.Transaction{HasFeeTransfer: true}
	raw, err := EncodeEnvelope(Envelope{Tx: tx, SeqIDAnchor: 1})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	resp, err := d.DeliverTx(ctx, DeliverTxRequest{Tx: raw})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if resp.Code == codeOK {
		t.Fatal("expected a stale sequence-id anchor to be rejected")
	}
}

func TestMockSatisfiesClientI(t *testing.T) {
	var c ClientI = &Mock{}
	ctx := context.Background()
	if err := c.BeginBlock(ctx, BeginBlockRequest{}); err != nil {
		t.Fatalf("unexpected error from default mock: %v", err)
	}
}
