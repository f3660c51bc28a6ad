package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fra-chain/stakingcore/consensus"
	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/metrics"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/staking/coinbase"
	"github.com/fra-chain/stakingcore/staking/delegation"
	"github.com/fra-chain/stakingcore/staking/dispatch"
	"github.com/fra-chain/stakingcore/staking/query"
	"github.com/fra-chain/stakingcore/staking/settlement"
	"github.com/fra-chain/stakingcore/staking/validator"
	"github.com/fra-chain/stakingcore/stores/snapshot"
	"github.com/fra-chain/stakingcore/ulogger"
	"github.com/fra-chain/stakingcore/utxo"
)

// committingDriver wraps consensus.ClientI and performs the two side effects
// a block boundary needs beyond the in-memory state advance itself: writing
// the now-settled aggregate as the next snapshot row, and invalidating the
// read cache so query.Surface never serves a pre-Commit value.
type committingDriver struct {
	consensus.ClientI
	store *snapshot.Store
	query *query.Surface
	st    *model.Staking
	cb    *coinbase.CoinBase
	log   ulogger.Logger
}

func (c *committingDriver) Commit(ctx context.Context) (consensus.CommitResponse, error) {
	resp, err := c.ClientI.Commit(ctx)
	if err != nil {
		return resp, err
	}
	if saveErr := c.store.Save(ctx, c.st); saveErr != nil {
		c.log.Errorf("failed to persist snapshot at height %d: %v", c.st.CurHeight, saveErr)
	}
	metrics.CoinbaseBankSize.Set(float64(c.cb.BankSize()))
	c.query.InvalidateAll()
	return resp, nil
}

var _ consensus.ClientI = (*committingDriver)(nil)

func newKafkaProducer(cfg settings.Kafka) (sarama.SyncProducer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, errors.NewStorageError("failed to connect to kafka brokers %v", cfg.Brokers, err)
	}
	return producer, nil
}

// newUnspentOracle builds the CoinBase component's external collaborator.
// Without a configured oracle address this falls back to a Mock that
// reports every sid as spent, which is safe (it never blocks payment
// eligibility, only bank bookkeeping) but means bank reconciliation drops
// every bank entry until an address is configured.
func newUnspentOracle(log ulogger.Logger, oracleAddr string) (coinbase.UnspentOracle, error) {
	if oracleAddr == "" {
		log.Warnf("no utxo oracle address configured, coinbase bank reconciliation will drop every bank entry")
		return utxo.NewOracleAdapter(&utxo.Mock{}, context.Background()), nil
	}

	conn, err := grpc.NewClient(oracleAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.NewConfigurationError("failed to dial utxo oracle at %s", oracleAddr, err)
	}
	client := utxo.NewClient(conn, 0)
	return utxo.NewOracleAdapter(client, context.Background()), nil
}

// buildNode loads the latest persisted snapshot and wires every component
// wrapper onto the same model.Staking's fields, so mutations made through
// the wrappers are visible through Staking.StateRoot() without any extra
// plumbing.
func buildNode(log ulogger.Logger, cfg *settings.Settings, oracleAddr string) (consensus.ClientI, *query.Surface, *snapshot.Store, error) {
	ctx := context.Background()

	store, err := snapshot.Open(ctx, log, cfg.Snapshot)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Load(ctx, ^uint64(0))
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, errors.NewConfigurationError("failed to load latest snapshot — run `stakingd genesis` first", err)
	}

	oracle, err := newUnspentOracle(log, oracleAddr)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	reg := validator.FromInfo(log, &cfg.Chain, st.Validators)
	led := delegation.FromInfo(log, &cfg.Chain, reg, st.Delegation)
	cb := coinbase.FromAccount(log, &cfg.Chain, oracle, st.CoinBase)

	kafkaProducer, err := newKafkaProducer(cfg.Kafka)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	disp := dispatch.New(log, func() uint64 { return st.CurHeight }, reg, led, cb)
	loop := settlement.New(log, &cfg.Chain, st, reg, led, cb, kafkaProducer, cfg.Kafka.Topic)
	driver := consensus.New(log, disp, loop, reg)
	qs := query.New(reg, led, 2*time.Second)

	wrapped := &committingDriver{ClientI: driver, store: store, query: qs, st: st, cb: cb, log: log}
	return wrapped, qs, store, nil
}

func runServe(log ulogger.Logger, cfg *settings.Settings, grpcAddr, httpAddr, oracleAddr string) error {
	if cfg.Observability.Tracing {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
	}

	driver, qs, store, err := buildNode(log, cfg, oracleAddr)
	if err != nil {
		return err
	}
	defer qs.Close()
	defer store.Close()

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return errors.NewConfigurationError("failed to listen on %s", grpcAddr, err)
	}

	grpcServer := grpc.NewServer()
	consensus.RegisterServer(grpcServer, driver)

	go func() {
		log.Infof("consensus driver listening on %s", grpcAddr)
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			log.Errorf("grpc server stopped: %v", serveErr)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	httpServer := &http.Server{Addr: httpAddr, Handler: mux}
	log.Infof("metrics/health endpoint listening on http://%s", httpAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server stopped: %w", err)
	}
	return nil
}
