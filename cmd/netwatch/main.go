// Package main is the CLI entry point for netwatch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/netwatch/internal/domain"
	"github.com/eliteGoblin/netwatch/internal/journal"
	"github.com/eliteGoblin/netwatch/internal/monitor"
	"github.com/eliteGoblin/netwatch/internal/netstat"
	"github.com/eliteGoblin/netwatch/internal/reach"
	"github.com/eliteGoblin/netwatch/internal/resolve"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "netwatch",
	Short: "Outbound connection monitor with reachability probing",
	Long: `netwatch watches the host's TCP connection table and reports every new
outbound connection together with the owning process. Each poll cycle it
also probes internet reachability via a gateway check, ICMP echoes to
public resolvers, and a DNS fallback.

No payloads are inspected; only connection metadata is observed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the monitor in the foreground",
	Long: `Runs the poll loop until interrupted (SIGINT/SIGTERM). Every cycle probes
reachability, snapshots the connection table, and reports connections not
seen before. Pass --journal to additionally append events to an encrypted
audit journal.`,
	RunE: runStart,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Dump the current TCP connection table once",
	Long:  `Prints all IPv4 TCP connections with owning PID and process name, then exits.`,
	RunE:  runSnapshot,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe internet reachability once",
	Long: `Runs a single reachability probe (gateway gate, ICMP, DNS fallback) and
exits non-zero if the internet is unreachable.`,
	RunE: runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	pollInterval time.Duration
	probeTimeout time.Duration
	journalDir   string
	debugMode    bool
	jsonOutput   bool
)

func init() {
	startCmd.Flags().DurationVar(&pollInterval, "interval", monitor.DefaultConfig().Interval, "Time between poll cycles")
	startCmd.Flags().DurationVar(&probeTimeout, "probe-timeout", reach.DefaultConfig().ProbeTimeout, "Per-probe timeout (ICMP reply / DNS answer)")
	startCmd.Flags().StringVar(&journalDir, "journal", "", "Directory for the encrypted audit journal (disabled when empty)")
	startCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable per-cycle debug logging")
	checkCmd.Flags().DurationVar(&probeTimeout, "probe-timeout", reach.DefaultConfig().ProbeTimeout, "Per-probe timeout (ICMP reply / DNS answer)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := createLogger(debugMode)
	defer func() { _ = logger.Sync() }()

	probeConfig := reach.DefaultConfig()
	probeConfig.ProbeTimeout = probeTimeout

	reader := netstat.NewReader()
	resolver := resolve.NewCachedResolver()
	prober := reach.NewLayeredProber(probeConfig, logger)

	sinks := []domain.EventSink{newLogSink(logger)}
	if journalDir != "" {
		key, err := journal.NewFileKeyProvider(journalDir).EnsureKey()
		if err != nil {
			return fmt.Errorf("failed to prepare journal key: %w", err)
		}
		j, err := journal.Open(journalDir, key)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() { _ = j.Close() }()
		sinks = append(sinks, j)
		logger.Info("audit journal enabled", zap.String("dir", journalDir))
	}

	config := monitor.DefaultConfig()
	config.Interval = pollInterval
	mon := monitor.New(config, reader, monitor.NewTracker(resolver), prober, logger, sinks...)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	reader := netstat.NewReader()
	resolver := resolve.NewCachedResolver()

	conns, err := reader.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to read connection table: %w", err)
	}

	fmt.Printf("%-22s %-22s %-13s %-7s %s\n",
		"Local Address", "Remote Address", "State", "PID", "Process")
	for _, conn := range conns {
		fmt.Printf("%-22s %-22s %-13s %-7d %s\n",
			conn.Local, conn.Remote, conn.State, conn.PID, resolver.Resolve(conn.PID))
	}
	fmt.Printf("\n%d connections\n", len(conns))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	probeConfig := reach.DefaultConfig()
	probeConfig.ProbeTimeout = probeTimeout
	prober := reach.NewLayeredProber(probeConfig, zap.NewNop())

	if prober.Probe(context.Background()) {
		fmt.Println("internet: reachable")
		return nil
	}
	return errors.New("internet: unreachable")
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("netwatch %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func createLogger(debug bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
