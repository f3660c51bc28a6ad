package snapshot

import (
	"context"
	"testing"

	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/staking/coinbase"
	"github.com/fra-chain/stakingcore/ulogger"
)

type fakeOracle struct{}

func (fakeOracle) IsUnspentTxo(sid string) (bool, error) { return false, nil }

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

func newTestStaking(t *testing.T) *model.Staking {
	t.Helper()
	log := ulogger.TestLogger()
	chain := &settings.NewTestSettings().Chain

	genesis := model.NewValidatorData(0, chain.CosigThresholdNumerator, chain.CosigThresholdDenominator)
	genesis.Put(pk(1), model.Validator{TDPubKey: tdpk(1), TDPower: 100, ID: pk(1)})

	cbAccount := model.NewCoinBase(coinbase.New(log, chain, fakeOracle{}, "snapshot test mnemonic").Account().KeyPair)

	return model.NewStaking(genesis, cbAccount)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	log := ulogger.TestLogger()
	cfg := settings.Snapshot{Engine: "sqlite", DSN: ":memory:"}
	store, err := Open(context.Background(), log, cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveThenLoadRoundTripsStateRoot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	st := newTestStaking(t)
	st.CurHeight = 5
	wantRoot := st.StateRoot()

	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, 5)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.StateRoot() != wantRoot {
		t.Fatalf("round-tripped state root mismatch: got %x want %x", loaded.StateRoot(), wantRoot)
	}
	if loaded.CurHeight != 5 {
		t.Fatalf("expected CurHeight 5, got %d", loaded.CurHeight)
	}
}

func TestLoadReturnsLatestAtOrBeforeHeight(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	st := newTestStaking(t)
	for _, h := range []uint64{1, 2, 3} {
		st.CurHeight = h
		st.Validators.SetAtHeight(h, model.NewValidatorData(h, 2, 3), false)
		if err := store.Save(ctx, st); err != nil {
			t.Fatalf("Save at height %d: %v", h, err)
		}
	}

	loaded, err := store.Load(ctx, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CurHeight != 2 {
		t.Fatalf("expected the height-2 snapshot, got height %d", loaded.CurHeight)
	}
}

func TestLoadMissingHeightReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Load(context.Background(), 99); err == nil {
		t.Fatal("expected an error loading a missing height")
	}
}

func TestHeightsReturnsAscendingPersistedHeights(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	st := newTestStaking(t)
	for _, h := range []uint64{3, 1, 2} {
		st.CurHeight = h
		if err := store.Save(ctx, st); err != nil {
			t.Fatalf("Save at height %d: %v", h, err)
		}
	}

	heights, err := store.Heights(ctx)
	if err != nil {
		t.Fatalf("Heights: %v", err)
	}
	want := []uint64{1, 2, 3}
	if len(heights) != len(want) {
		t.Fatalf("expected %d heights, got %v", len(want), heights)
	}
	for i, h := range want {
		if heights[i] != h {
			t.Fatalf("heights[%d]: got %d want %d", i, heights[i], h)
		}
	}
}

func TestSaveIsIdempotentForSameHeight(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	st := newTestStaking(t)
	st.CurHeight = 7
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	st.Validators.SetAtHeight(7, model.NewValidatorData(7, 2, 3), true)
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	heights, err := store.Heights(ctx)
	if err != nil {
		t.Fatalf("Heights: %v", err)
	}
	if len(heights) != 1 {
		t.Fatalf("expected a single row for height 7, got %v", heights)
	}

	loaded, err := store.Load(ctx, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.StateRoot() != st.StateRoot() {
		t.Fatal("expected the overwritten row to reflect the latest state")
	}
}
