// Package settings assembles the staking core's runtime configuration from
// gocore's key/value store, the way the reference node's services read
// their own settings at startup.
package settings

import (
	"time"

	"github.com/ordishs/gocore"
)

// Chain holds the normative constants of spec.md 3, overridable for test
// mode so scenario tests don't wait out a 21-day bond period.
type Chain struct {
	FraDecimals                int64
	FraTotalAmount             int64
	MinDelegationAmount        int64
	MaxDelegationAmount        int64
	BlockIntervalSeconds       int64
	BlockHeightMax             uint64
	MaxTotalPower              int64
	MaxPowerPercentNumerator   int64
	MaxPowerPercentDenominator int64
	CosigThresholdNumerator    int64
	CosigThresholdDenominator  int64
	BondBlockCount             uint64
	ValidatorsMin              int
}

// Coinbase holds the reserved system identity's configuration.
type Coinbase struct {
	Mnemonic string
}

// Snapshot configures the dual-engine persistence layer of stores/snapshot.
type Snapshot struct {
	Engine string // "sqlite" or "postgres"
	DSN    string
}

// Kafka configures the optional validator-diff feed.
type Kafka struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Observability configures logging, metrics and tracing toggles.
type Observability struct {
	LogLevel   string
	PrettyLogs bool
	Metrics    bool
	Tracing    bool
}

// Settings is the full configuration surface of the staking core.
type Settings struct {
	Chain         Chain
	Coinbase      Coinbase
	Snapshot      Snapshot
	Kafka         Kafka
	Observability Observability
}

// NewSettings reads from gocore.Config(), defaulting every field to the
// normative production constants of spec.md 3.
func NewSettings() *Settings {
	cfg := gocore.Config()

	getStr := func(key, def string) string {
		v, ok := cfg.Get(key)
		if !ok || v == "" {
			return def
		}
		return v
	}

	bondDays, _ := cfg.GetInt("staking_bond_days", 21)
	blockInterval, _ := cfg.GetInt("staking_block_interval_seconds", 16)
	bondBlocks := uint64(time.Duration(bondDays) * 24 * time.Hour / (time.Duration(blockInterval) * time.Second))

	fraDecimals, _ := cfg.GetInt("staking_fra_decimals", 6)
	fra := int64(1)
	for i := int64(0); i < int64(fraDecimals); i++ {
		fra *= 10
	}

	minDelegation, _ := cfg.GetInt("staking_min_delegation_fra", 32)
	validatorsMin, _ := cfg.GetInt("staking_validators_min", 4)

	maxTotalPower := int64(1<<63-1) / 8
	fraTotal := int64(210_000_000_000) * fra

	return &Settings{
		Chain: Chain{
			FraDecimals:                int64(fraDecimals),
			FraTotalAmount:             fraTotal,
			MinDelegationAmount:        int64(minDelegation) * fra,
			MaxDelegationAmount:        fraTotal,
			BlockIntervalSeconds:       int64(blockInterval),
			BlockHeightMax:             1<<63 - 1,
			MaxTotalPower:              maxTotalPower,
			MaxPowerPercentNumerator:   1,
			MaxPowerPercentDenominator: 5,
			CosigThresholdNumerator:    2,
			CosigThresholdDenominator:  3,
			BondBlockCount:             bondBlocks,
			ValidatorsMin:              validatorsMin,
		},
		Coinbase: Coinbase{
			Mnemonic: getStr("staking_coinbase_mnemonic", "stakingd reserved coinbase identity"),
		},
		Snapshot: Snapshot{
			Engine: getStr("staking_snapshot_engine", "sqlite"),
			DSN:    getStr("staking_snapshot_dsn", "stakingd-snapshot.db"),
		},
		Kafka: Kafka{
			Enabled: cfg.GetBool("staking_kafka_enabled", false),
			Brokers: splitNonEmpty(getStr("staking_kafka_brokers", "")),
			Topic:   getStr("staking_kafka_topic", "staking-settlement"),
		},
		Observability: Observability{
			LogLevel:   getStr("logLevel", "INFO"),
			PrettyLogs: cfg.GetBool("PRETTY_LOGS", true),
			Metrics:    cfg.GetBool("staking_metrics_enabled", true),
			Tracing:    cfg.GetBool("staking_tracing_enabled", false),
		},
	}
}

// NewTestSettings returns the test-mode overrides used by scenario tests: a
// 10-block bond period and a lowered validators-min where a test needs fewer
// than the production floor.
func NewTestSettings() *Settings {
	s := NewSettings()
	s.Chain.BondBlockCount = 10
	s.Chain.ValidatorsMin = 1
	s.Snapshot.Engine = "sqlite"
	s.Snapshot.DSN = ":memory:"
	s.Observability.PrettyLogs = true
	return s
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
