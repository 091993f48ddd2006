// ABOUTME: Root Cobra command for the bikey CLI.
// ABOUTME: Opens the configured storage and ride engine via PersistentPre/PostRunE.
package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/config"
	"github.com/harperreed/bikey/internal/engine"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logger   *log.Logger
	backend  storage.Backend
	eng      *engine.Engine
	registry = prometheus.NewRegistry()

	flagBackend string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:   "bikey",
	Short: "Bicycle ride tracker",
	Long: `Bikey records bicycle rides: GPS samples with optional cadence and heart
rate, grouped into rides you can start, pause, merge and delete.

QUICK START:

  $ bikey ride new "Lake loop"          # Create a ride and select it
  $ bikey ride start                    # Start recording the current ride
  $ bikey log add 52.5 13.4 --hr 120    # Record a sample
  $ bikey ride pause                    # Pause recording
  $ bikey ride show                     # Distance, speeds, cadence, heart rate

GPX:

  $ bikey log import morning.gpx        # Import a track as a new ride
  $ bikey export gpx --ride 3 -o r.gpx  # Export a ride as GPX

STORAGE:

  Rides are stored in SQLite at ~/.local/share/bikey/bikey.db by default.
  Use --backend badger or set "backend" in ~/.config/bikey/config.json to
  use the embedded Badger store instead. 'bikey migrate --to badger' copies
  existing data across.

MCP INTEGRATION:

  Run 'bikey mcp' to start the Model Context Protocol server for use with
  MCP-compatible AI assistants:

  {
    "mcpServers": {
      "bikey": { "command": "bikey", "args": ["mcp"] }
    }
  }`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if flagBackend != "" {
			cfg.Backend = flagBackend
		}
		if flagDataDir != "" {
			cfg.DataDir = flagDataDir
		}
		logger = cfg.Logger()

		backend, err = cfg.OpenStorage(logger)
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", cfg.GetBackend(), err)
		}

		eng = engine.New(backend, engine.Options{
			Logger:     logger,
			Threshold:  cfg.GetSpeedMinThreshold(),
			NATSURL:    cfg.NATSURL,
			Registerer: registry,
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeStorage()
	},
}

// closeStorage releases the engine and storage opened for a command. It is
// safe to call more than once.
func closeStorage() error {
	if eng != nil {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close event publisher", "err", err)
		}
		eng = nil
	}
	if backend != nil {
		err := backend.Close()
		backend = nil
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bikey version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "bikey", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: sqlite or badger")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.local/share/bikey)")
	rootCmd.AddCommand(versionCmd)
}
