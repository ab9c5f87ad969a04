// gasprobe - black-box conformance harness for an execution client's
// gas-pricing schedule and bytecode-size limit, exercised entirely
// through its JSON-RPC endpoint. Each subcommand runs one scenario and
// exits 0 when every probe passed or was skipped, 1 when any failed.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/colorfulnotion/gasprobe/fixture"
	"github.com/colorfulnotion/gasprobe/gaserrors"
	log "github.com/colorfulnotion/gasprobe/log"
	"github.com/colorfulnotion/gasprobe/probes"
	rpcclient "github.com/colorfulnotion/gasprobe/rpc_client"
	"github.com/colorfulnotion/gasprobe/runner"
	"github.com/colorfulnotion/gasprobe/scenario"
	"github.com/colorfulnotion/gasprobe/verdict"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

const defaultRPC = "http://localhost:8545"

// dev account 0 of the local test network; harmless outside of it.
const defaultKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func main() {
	var (
		rpcURL       string
		modelName    string
		keyHex       string
		contractHex  string
		solcPath     string
		contractPath string
		logLevel     string
		debugModules string
	)

	var rootCmd = &cobra.Command{
		Use:   "gasprobe",
		Short: "Gas pricing conformance harness",
		Long: `gasprobe measures an execution client's gas pricing over JSON-RPC and
compares it against the expected cost schedule (reference or modified).`,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "RPC endpoint (default $GASPROBE_RPC or "+defaultRPC+")")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "modified", "gas model under test: reference or modified")
	rootCmd.PersistentFlags().StringVar(&keyHex, "key", defaultKeyHex, "hex signer key for live transactions")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&debugModules, "debug", "", "comma-separated log modules to enable")

	setup := func() (*rpcclient.Client, probes.GasModel, error) {
		log.InitLogger(logLevel)
		log.EnableModules(debugModules)
		model, err := probes.ParseModel(modelName)
		if err != nil {
			return nil, "", err
		}
		endpoint := rpcURL
		if endpoint == "" {
			endpoint = os.Getenv("GASPROBE_RPC")
		}
		if endpoint == "" {
			endpoint = defaultRPC
		}
		client, err := rpcclient.Connect(context.Background(), endpoint)
		if err != nil {
			return nil, "", err
		}
		return client, model, nil
	}

	// fixtureAddress resolves the probe target: an explicit --contract
	// override, a solc build of --source, or the embedded fixture
	// bytecode when no compiler is on hand.
	fixtureAddress := func(ctx context.Context, client *rpcclient.Client) (common.Address, error) {
		if contractHex != "" {
			return common.HexToAddress(contractHex), nil
		}
		var art fixture.Artifact
		var err error
		if contractPath != "" {
			art, err = fixture.NewBuilder(solcPath).Build(contractPath, "GasProbe")
		} else {
			art, err = fixture.EmbeddedArtifact()
		}
		if err != nil {
			return common.Address{}, err
		}
		deployer, err := fixture.NewDeployer(client, keyHex)
		if err != nil {
			return common.Address{}, err
		}
		return deployer.Deploy(ctx, art)
	}

	finish := func(report *verdict.Report) {
		log.Info(log.ReportMonitoring, "run complete",
			"model", report.Model, "passed", report.Passed(), "failed", report.Failed(), "skipped", report.Skipped())
		fmt.Print(report.Summary())
		os.Exit(report.ExitCode())
	}

	fatal := func(err error) {
		if gaserrors.IsFatal(err) {
			log.Error(log.ReportMonitoring, "aborting run", "code", gaserrors.Code(err), "err", err)
		}
		fmt.Fprintf(os.Stderr, "gasprobe: %v\n", err)
		os.Exit(1)
	}

	var opcodesCmd = &cobra.Command{
		Use:   "opcodes",
		Short: "Probe cold storage and account access pricing",
		Run: func(cmd *cobra.Command, args []string) {
			client, model, err := setup()
			if err != nil {
				fatal(err)
			}
			defer client.Close()
			ctx := context.Background()
			contract, err := fixtureAddress(ctx, client)
			if err != nil {
				fatal(err)
			}
			from, err := runner.FreshAddress()
			if err != nil {
				fatal(err)
			}
			report := verdict.NewReport(model)
			runner.New(client, probes.NewTable(), contract, from).RunOpcodes(ctx, report)
			finish(report)
		},
	}
	opcodesCmd.Flags().StringVar(&contractHex, "contract", "", "pre-deployed fixture contract address")
	opcodesCmd.Flags().StringVar(&solcPath, "solc", "solc", "solidity compiler binary")
	opcodesCmd.Flags().StringVar(&contractPath, "source", "", "fixture contract source to compile with solc (default: embedded bytecode)")

	var precompilesCmd = &cobra.Command{
		Use:   "precompiles",
		Short: "Probe precompile repricing multipliers",
		Run: func(cmd *cobra.Command, args []string) {
			client, model, err := setup()
			if err != nil {
				fatal(err)
			}
			defer client.Close()
			from, err := runner.FreshAddress()
			if err != nil {
				fatal(err)
			}
			report := verdict.NewReport(model)
			runner.New(client, probes.NewTable(), common.Address{}, from).RunPrecompiles(context.Background(), report)
			finish(report)
		},
	}

	var transferCmd = &cobra.Command{
		Use:   "transfer",
		Short: "Observe live gas charging via a value transfer's balance delta",
		Run: func(cmd *cobra.Command, args []string) {
			client, model, err := setup()
			if err != nil {
				fatal(err)
			}
			defer client.Close()
			report := verdict.NewReport(model)
			report.Append(scenario.TransferCharging(context.Background(), client, keyHex))
			finish(report)
		},
	}

	var codesizeCmd = &cobra.Command{
		Use:   "codesize",
		Short: "Probe the bytecode-size limit with an oversized deployment",
		Run: func(cmd *cobra.Command, args []string) {
			client, model, err := setup()
			if err != nil {
				fatal(err)
			}
			defer client.Close()
			deployer, err := fixture.NewDeployer(client, keyHex)
			if err != nil {
				fatal(err)
			}
			report := verdict.NewReport(model)
			report.Append(scenario.CodeSizeLimit(context.Background(), deployer, client, model))
			finish(report)
		},
	}

	var allCmd = &cobra.Command{
		Use:   "all",
		Short: "Run every probe and scenario in declared order",
		Run: func(cmd *cobra.Command, args []string) {
			client, model, err := setup()
			if err != nil {
				fatal(err)
			}
			defer client.Close()
			ctx := context.Background()
			contract, err := fixtureAddress(ctx, client)
			if err != nil {
				fatal(err)
			}
			from, err := runner.FreshAddress()
			if err != nil {
				fatal(err)
			}
			report := verdict.NewReport(model)
			runner.New(client, probes.NewTable(), contract, from).RunAll(ctx, report)
			report.Append(scenario.TransferCharging(ctx, client, keyHex))
			deployer, err := fixture.NewDeployer(client, keyHex)
			if err != nil {
				fatal(err)
			}
			report.Append(scenario.CodeSizeLimit(ctx, deployer, client, model))
			finish(report)
		},
	}
	allCmd.Flags().StringVar(&contractHex, "contract", "", "pre-deployed fixture contract address")
	allCmd.Flags().StringVar(&solcPath, "solc", "solc", "solidity compiler binary")
	allCmd.Flags().StringVar(&contractPath, "source", "", "fixture contract source to compile with solc (default: embedded bytecode)")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gasprobe %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}

	rootCmd.AddCommand(opcodesCmd, precompilesCmd, transferCmd, codesizeCmd, allCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
