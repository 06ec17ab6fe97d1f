package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"packetgate/internal/auditlog"
	"packetgate/internal/config"
	"packetgate/internal/engine"
	"packetgate/internal/monitor"
)

// rootConfig holds the persistent flags shared by every subcommand.
type rootConfig struct {
	configPath   string
	noFSM        bool
	noInvariants bool
	noClock      bool
	auditDB      string
}

// newRootCmd creates the root packetgate command with all subcommands
// attached.
func newRootCmd() *cobra.Command {
	var rc rootConfig

	cmd := &cobra.Command{
		Use:           "packetgate",
		Short:         "Episode protocol validator",
		Long:          "packetgate validates agent packet sequences against the episode protocol:\nFSM transitions, enforcement rules, cross-packet invariants, and integrity supervision.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rc.configPath, "config", "packetgate.toml", "path to the TOML configuration file")
	cmd.PersistentFlags().BoolVar(&rc.noFSM, "no-fsm", false, "demote FSM violations to warnings")
	cmd.PersistentFlags().BoolVar(&rc.noInvariants, "no-invariants", false, "demote invariant violations to warnings")
	cmd.PersistentFlags().BoolVar(&rc.noClock, "no-clock", false, "disable timestamp-based checks (historical replays)")
	cmd.PersistentFlags().StringVar(&rc.auditDB, "audit-db", "", "SQLite audit log path (overrides config)")

	cmd.AddCommand(
		newValidateCmd(&rc),
		newInspectCmd(&rc),
	)
	return cmd
}

// buildEngine assembles a fresh engine from the config file overlaid with
// the command-line flags.
func buildEngine(rc *rootConfig) (*engine.Engine, func(), error) {
	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, nil, err
	}

	var sink monitor.EventSink
	cleanup := func() {}
	dbPath := cfg.Audit.DBPath
	if rc.auditDB != "" {
		dbPath = rc.auditDB
	}

	opts := engine.Options{
		DisableFSM:        rc.noFSM || cfg.Engine.DisableFSM,
		DisableInvariants: rc.noInvariants || cfg.Engine.DisableInvariants,
		DisableClock:      rc.noClock || cfg.Engine.DisableClock,
	}

	if dbPath != "" {
		store, err := auditlog.NewStore(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		sink = store
		opts.Recorder = store
		cleanup = func() { store.Close() }
	}

	mon := monitor.New(monitor.Config{
		WarnRatio:          cfg.Monitor.WarnRatio,
		HaltRatio:          cfg.Monitor.HaltRatio,
		ContradictionLimit: cfg.Monitor.ContradictionLimit,
		HaltOnVeto:         cfg.Monitor.HaltOnVeto,
		HaltOnBudget:       cfg.Monitor.HaltOnBudget,
		RevokeOnHalt:       cfg.Monitor.RevokeOnHalt,
	}, sink)

	return engine.New(opts, mon), cleanup, nil
}
