// Package main provides xswap, a command line driver for one party of a
// cross-chain atomic swap.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/klingon-exchange/xswap/internal/config"
	"github.com/klingon-exchange/xswap/internal/storage"
	"github.com/klingon-exchange/xswap/internal/swap"
	"github.com/klingon-exchange/xswap/internal/wallet"
	"github.com/klingon-exchange/xswap/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

// passphraseEnv names the variable holding the storage and seed passphrase.
const passphraseEnv = "XSWAP_PASSPHRASE"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"newkey":          {"newkey", "create a contract key and print its public key", runNewKey},
	"propose":         {"propose", "create an offer for a counterparty key", runPropose},
	"counter":         {"counter", "derive the counter-offer of an offer", runCounter},
	"fund":            {"fund", "fund an offer's contract from the node wallet", runFund},
	"wait-funding":    {"wait-funding", "wait until an offer's contract is funded", runWaitFunding},
	"wait-disclosure": {"wait-disclosure", "wait until the preimage appears on chain", runWaitDisclosure},
	"claim":           {"claim", "claim an offer's contract with the preimage", runClaim},
	"wait-claim":      {"wait-claim", "wait until the claim confirms", runWaitClaim},
	"status":          {"status", "list the swap journal", runStatus},
}

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.xswap", "Data directory")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("xswap %s (commit: %s)\n", version, commit)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(*dataDir, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	err = cmd.run(ctx, a, args[1:])
	a.Close()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		a.log.Warn("Interrupted")
		os.Exit(130)
	default:
		a.log.Error("Command failed", "command", cmd.name, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: xswap [flags] <command> [command flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
}

// app holds what every command needs.
type app struct {
	cfg         *config.Config
	store       storage.SecretStore
	coordinator *swap.Coordinator
	log         *logging.Logger
	closers     []io.Closer
}

func setup(dataDir, logLevel string) (*app, error) {
	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	logCfg := &logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	}
	if cfg.Logging.File != "" {
		f, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		logCfg.Output = io.MultiWriter(os.Stderr, f)
	}
	a.log = logging.New(logCfg)
	logging.SetDefault(a.log)
	a.log.Debug("Config loaded", "path", config.ConfigPath(dataDir))

	passphrase := os.Getenv(passphraseEnv)

	store, err := storage.Open(cfg.StorageConfig(passphrase))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store)

	registry, err := cfg.BuildRegistry()
	if err != nil {
		a.Close()
		return nil, err
	}

	keys, err := keySource(cfg, store, passphrase, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.coordinator, err = swap.NewCoordinator(&swap.CoordinatorConfig{
		Registry: registry,
		Store:    store,
		Keys:     keys,
		Windows: swap.Windows{
			Initiator: cfg.Swap.InitiatorWindow,
			Taker:     cfg.Swap.TakerWindow,
		},
		PollInterval:       cfg.Swap.PollInterval,
		HistoryPageSize:    cfg.Swap.HistoryPageSize,
		StaleConfirmations: cfg.Swap.StaleConfirmations,
		Logger:             a.log.Component("swap"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// keySource returns random keys, or HD keys derived along the first
// configured chain when a mnemonic file is configured.
func keySource(cfg *config.Config, indices wallet.IndexStore, passphrase string, log *logging.Logger) (wallet.KeySource, error) {
	if cfg.Keys.Source != config.KeySourceHD {
		return wallet.RandomSource{}, nil
	}

	if err := wallet.ValidatePassword(passphrase); err != nil {
		return nil, fmt.Errorf("hd keys need %s: %w", passphraseEnv, err)
	}
	params, err := cfg.Chains[0].Params()
	if err != nil {
		return nil, err
	}

	mnemonic, created, err := wallet.LoadOrCreateMnemonic(cfg.MnemonicPath(), passphrase)
	if err != nil {
		return nil, err
	}
	if created {
		log.Warn("Created a new wallet seed, back it up", "path", cfg.MnemonicPath())
	}

	w, err := wallet.NewFromMnemonic(mnemonic, "", params.Network)
	if err != nil {
		return nil, err
	}
	return wallet.NewHDSource(w, params, cfg.Keys.Account, indices), nil
}

// Close releases the store and log file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.log != nil {
			a.log.Error("Close failed", "error", err)
		}
	}
	a.closers = nil
}
