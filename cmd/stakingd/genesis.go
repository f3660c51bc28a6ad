package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"os"

	"golang.org/x/crypto/ed25519"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/staking/coinbase"
	"github.com/fra-chain/stakingcore/stores/snapshot"
	"github.com/fra-chain/stakingcore/ulogger"
)

// genesisValidator is the JSON shape of a single entry in a genesis file: a
// staking pubkey seed phrase (deterministically expanded to an ed25519
// keypair, standing in for the reference node's WIF import step) plus its
// initial consensus-engine power.
type genesisValidator struct {
	Seed   string `json:"seed"`
	Power  int64  `json:"power"`
	Memo   string `json:"memo"`
	TDSeed string `json:"td_seed"`
}

type genesisFile struct {
	Validators []genesisValidator `json:"validators"`
}

func deriveKeyFromSeed(seed string) ed25519.PrivateKey {
	digest := sha256.Sum256([]byte(seed))
	return ed25519.NewKeyFromSeed(digest[:])
}

func pubKeyFromSeed(seed string) model.PubKey {
	priv := deriveKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	var pk model.PubKey
	copy(pk[:], pub)
	return pk
}

func tdPubKeyFromSeed(seed string) model.TDPubKey {
	priv := deriveKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	var pk model.TDPubKey
	copy(pk[:], pub)
	return pk
}

// buildGenesisStaking reads a genesis file and produces the initial
// aggregate: a height-0 validator snapshot plus a fresh CoinBase identity
// derived from cfg.Coinbase.Mnemonic.
func buildGenesisStaking(log ulogger.Logger, cfg *settings.Settings, path string) (*model.Staking, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to read genesis file %s", path, err)
	}

	var gf genesisFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		return nil, errors.NewConfigurationError("failed to parse genesis file %s", path, err)
	}
	if len(gf.Validators) < cfg.Chain.ValidatorsMin {
		return nil, errors.NewConfigurationError(
			"genesis file declares %d validators, fewer than the configured minimum %d", len(gf.Validators), cfg.Chain.ValidatorsMin)
	}

	vd := model.NewValidatorData(0, cfg.Chain.CosigThresholdNumerator, cfg.Chain.CosigThresholdDenominator)
	for _, gv := range gf.Validators {
		pk := pubKeyFromSeed(gv.Seed)
		tdpk := tdPubKeyFromSeed(gv.TDSeed)
		vd.Put(pk, model.Validator{TDPubKey: tdpk, TDPower: gv.Power, ID: pk, Memo: gv.Memo})
	}
	members := make([]model.PubKey, 0, len(vd.Body))
	for pk := range vd.Body {
		members = append(members, pk)
	}
	vd.CosigRule = model.DefaultCosigRule(members, cfg.Chain.CosigThresholdNumerator, cfg.Chain.CosigThresholdDenominator)

	cbWrapper := coinbase.New(log, &cfg.Chain, nil, cfg.Coinbase.Mnemonic)
	return model.NewStaking(vd, cbWrapper.Account()), nil
}

// runGenesis builds the genesis aggregate and persists it as height 0 in the
// configured snapshot store.
func runGenesis(log ulogger.Logger, cfg *settings.Settings, genesisPath string) error {
	ctx := context.Background()

	st, err := buildGenesisStaking(log, cfg, genesisPath)
	if err != nil {
		return err
	}

	store, err := snapshot.Open(ctx, log, cfg.Snapshot)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(ctx, st); err != nil {
		return err
	}

	root := st.StateRoot()
	log.Infof("genesis committed: height=0 state_root=%x validators=%d", root, len(st.Validators.GetEffectiveAtHeight(0).Body))
	return nil
}
