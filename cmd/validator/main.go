// Command validator runs the weight-publishing daemon: it loads
// configuration, wires the pipeline's collaborators, and drives the
// BOOT/DETECT/WAIT loop until interrupted.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/General-Tao-Ventures/cartha-validator/internal/chain"
	"github.com/General-Tao-Ventures/cartha-validator/internal/config"
	"github.com/General-Tao-Ventures/cartha-validator/internal/daemon"
	"github.com/General-Tao-Ventures/cartha-validator/internal/epoch"
	"github.com/General-Tao-Ventures/cartha-validator/internal/leaderboard"
	"github.com/General-Tao-Ventures/cartha-validator/internal/logging"
	"github.com/General-Tao-Ventures/cartha-validator/internal/poolweights"
	"github.com/General-Tao-Ventures/cartha-validator/internal/roster"
	"github.com/General-Tao-Ventures/cartha-validator/internal/runner"
	"github.com/General-Tao-Ventures/cartha-validator/params"
)

var (
	configFlag = &cli.StringFlag{Name: "config", Usage: "path to a TOML config file (optional)"}
	envFlag    = &cli.StringFlag{Name: "env-file", Value: ".env", Usage: "path to a .env file (optional)"}

	netuidFlag          = &cli.IntFlag{Name: "netuid", Usage: "subnet id"}
	verifierURLFlag     = &cli.StringFlag{Name: "verifier-url", Usage: "verified-roster HTTP service base URL"}
	validatorHotkeyFlag = &cli.StringFlag{Name: "validator-hotkey", Usage: "this validator's subnet hotkey"}
	logDirFlag          = &cli.StringFlag{Name: "log-dir", Usage: "directory for rotated logs and epoch artifacts"}
	leaderboardFlag     = &cli.StringFlag{Name: "leaderboard-api-url", Usage: "optional leaderboard submission endpoint"}

	dryRunFlag  = &cli.BoolFlag{Name: "dry-run", Usage: "compute and log weights without publishing"}
	runOnceFlag = &cli.BoolFlag{Name: "run-once", Usage: "execute a single epoch pass and exit"}
	forceFlag   = &cli.BoolFlag{Name: "force", Usage: "bypass the publish cooldown on the first pass"}

	verbosityFlag = &cli.StringFlag{Name: "verbosity", Value: "info", Usage: "trace|debug|info|warn|error"}
)

func main() {
	app := &cli.App{
		Name:  "validator",
		Usage: "compute and publish subnet weights from verified miner positions",
		Flags: []cli.Flag{
			configFlag, envFlag,
			netuidFlag, verifierURLFlag, validatorHotkeyFlag, logDirFlag, leaderboardFlag,
			dryRunFlag, runOnceFlag, forceFlag, verbosityFlag,
		},
		Version: fmt.Sprintf("%s (spec %d)", params.Version(), params.SpecVersion()),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	settings, err := loadSettings(cliCtx)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logging.Setup(logging.Options{
		LogDir:     settings.LogDir,
		Verbosity:  parseVerbosity(cliCtx.String(verbosityFlag.Name)),
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}); err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	gethlog.Info("starting validator", "version", params.Version(), "netuid", settings.Netuid, "dry_run", settings.DryRun)

	httpClient := &http.Client{Timeout: settings.Timeout}

	chainClient, err := buildChainClient(settings)
	if err != nil {
		return fmt.Errorf("build chain client: %w", err)
	}

	var rpcCaller poolweights.RPCCaller
	if settings.ParentVaultRPCURL != "" {
		ethC, err := ethclient.DialContext(cliCtx.Context, settings.ParentVaultRPCURL)
		if err != nil {
			return fmt.Errorf("dial parent vault RPC endpoint: %w", err)
		}
		rpcCaller = ethC
	}

	oracle := poolweights.New(rpcCaller, poolweights.Config{
		ParentVaultAddresses: settings.ParentVaultAddresses,
		VaultPoolTable:       settings.VaultPoolTable,
		FallbackTable:        settings.PoolWeights,
		CachePath:            settings.PoolWeightCachePath(),
		CacheTTL:             settings.PoolWeightCacheTTL,
		PacingDelay:          settings.ParentVaultPacingDelay,
	})

	rosterFetcher := roster.New(settings.VerifierURL, httpClient)

	var leaderboardClient *leaderboard.Client
	if settings.LeaderboardAPIURL != "" {
		leaderboardClient = leaderboard.New(settings.LeaderboardAPIURL, httpClient)
	}

	r := runner.New(settings, chainClient, chain.Wallet{Hotkey: settings.ValidatorHotkey}, rosterFetcher, oracle, leaderboardClient)

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.RunOnce {
		_, err := r.RunEpoch(ctx, epoch.WeeklyVersion(time.Now()), cliCtx.Bool(forceFlag.Name))
		return err
	}

	d := daemon.New(r, chainClient, settings)
	return d.Run(ctx)
}

func loadSettings(cliCtx *cli.Context) (config.Settings, error) {
	loader := config.NewLoader()
	if err := loader.ApplyDotEnv(cliCtx.String(envFlag.Name)); err != nil {
		return config.Settings{}, fmt.Errorf("load .env file: %w", err)
	}
	if err := loader.ApplyTOMLFile(cliCtx.String(configFlag.Name)); err != nil {
		return config.Settings{}, err
	}
	loader.ApplyEnv()

	settings := loader.Settings()
	if cliCtx.IsSet(netuidFlag.Name) {
		settings.Netuid = cliCtx.Int(netuidFlag.Name)
	}
	if cliCtx.IsSet(verifierURLFlag.Name) {
		settings.VerifierURL = cliCtx.String(verifierURLFlag.Name)
	}
	if cliCtx.IsSet(validatorHotkeyFlag.Name) {
		settings.ValidatorHotkey = cliCtx.String(validatorHotkeyFlag.Name)
	}
	if cliCtx.IsSet(logDirFlag.Name) {
		settings.LogDir = cliCtx.String(logDirFlag.Name)
	}
	if cliCtx.IsSet(leaderboardFlag.Name) {
		settings.LeaderboardAPIURL = cliCtx.String(leaderboardFlag.Name)
	}
	if cliCtx.IsSet(dryRunFlag.Name) {
		settings.DryRun = cliCtx.Bool(dryRunFlag.Name)
	}
	if cliCtx.IsSet(runOnceFlag.Name) {
		settings.RunOnce = cliCtx.Bool(runOnceFlag.Name)
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// buildChainClient constructs the subnet chain client. The chain
// client library is a contract-only external collaborator: production
// deployments inject a concrete chain.Client here (wrapping whatever
// subnet SDK they run); this seam is where that wiring belongs.
var buildChainClient = func(settings config.Settings) (chain.Client, error) {
	return nil, errors.New("no chain.Client implementation wired: set cmd/validator.buildChainClient to your subnet client constructor")
}

func parseVerbosity(v string) slog.Level {
	switch v {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

