// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs the stdio MCP server and optionally serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/bikey/internal/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var mcpMetricsAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout.

CONFIGURATION:

  {
    "mcpServers": {
      "bikey": {
        "command": "bikey",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  create_ride       Create a ride
  list_rides        List rides
  get_ride          Get a ride with its statistics
  activate_ride     Start or resume recording
  pause_ride        Pause recording
  rename_ride       Rename a ride
  delete_rides      Delete rides and their log points
  merge_rides       Merge rides into the earliest one
  add_log           Record a GPS sample
  ride_series       Downsampled column series or track
  get_current_ride  Get the selected ride
  set_current_ride  Select a ride

AVAILABLE RESOURCES:

  bikey://rides/recent    Recent rides
  bikey://rides/current   Current ride with statistics

METRICS:

  With --metrics-addr, ride event counters are served at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(eng, version)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		if mcpMetricsAddr != "" {
			srv := &http.Server{
				Addr:              mcpMetricsAddr,
				Handler:           metricsHandler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", "addr", mcpMetricsAddr, "err", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			logger.Info("serving metrics", "addr", mcpMetricsAddr)
		}

		return server.Serve(ctx)
	},
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

func init() {
	mcpCmd.Flags().StringVar(&mcpMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(mcpCmd)
}
