// Command stakingd is the staking core's entrypoint: a small cobra command
// tree (serve, replay, genesis) in place of the reference node's single
// monolithic binary with per-service start flags, since this module runs
// exactly one state machine rather than a multi-service node.
package main

import (
	"github.com/ordishs/gocore"
	"github.com/spf13/cobra"

	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/ulogger"
)

const progname = "stakingd"

func init() {
	gocore.SetInfo(progname, "", "")
}

func main() {
	cfg := settings.NewSettings()
	log := ulogger.NewLogger(progname, cfg.Observability.LogLevel, cfg.Observability.PrettyLogs)

	root := &cobra.Command{
		Use:   progname,
		Short: "Staking core consensus driver node",
	}

	var grpcAddr, httpAddr, oracleAddr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the consensus driver gRPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(log, cfg, grpcAddr, httpAddr, oracleAddr)
		},
	}
	serveCmd.Flags().StringVar(&grpcAddr, "grpc-addr", ":9090", "address to serve the Consensus Driver Contract on")
	serveCmd.Flags().StringVar(&httpAddr, "http-addr", ":9091", "address to serve /health and /metrics on")
	serveCmd.Flags().StringVar(&oracleAddr, "utxo-oracle-addr", "", "address of the external UTXO ledger oracle (empty disables reconciliation)")

	var dumpPower bool
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay every persisted snapshot and log recomputed state roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(log, cfg, dumpPower)
		},
	}
	replayCmd.Flags().BoolVar(&dumpPower, "dump-power", false, "print the final effective validator set's voting power")

	var genesisPath string
	genesisCmd := &cobra.Command{
		Use:   "genesis",
		Short: "Build and persist the height-0 snapshot from a genesis file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenesis(log, cfg, genesisPath)
		},
	}
	genesisCmd.Flags().StringVar(&genesisPath, "file", "genesis.json", "path to the genesis validator set file")

	root.AddCommand(serveCmd, replayCmd, genesisCmd)

	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
