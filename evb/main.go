package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	evb "github.com/next-exp/evb_go/pkg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var logger Logger

type rootOptions struct {
	ConfigFile string
}

func main() {
	logger = newLogger(os.Stdout, os.Stderr)
	evb.SetLogger(logger)

	if err := newRootCommand().Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "evb",
		Short: "Build coincidence events from CoMPASS channel files",
		Long: `Build coincidence events from CoMPASS channel files.

Each run directory <input_dir>/run_<N> holds one binary file per digitizer
channel. Hits are merged in time, grouped with the coincidence window and
written as event tables, with scaler channels counted separately.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "configuration file path")
	cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(newRunCommand(opts), newValidateCommand(opts))
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "run",
		Short:         "Build the events of the configured runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventBuilder(cmd.Context(), opts)
		},
	}
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate",
		Short:         "Check channel map and run directories without writing output",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateRuns(cmd, opts)
		},
	}
}

func loadConfiguration(filename string) (evb.Configuration, error) {
	configuration, err := evb.LoadConfiguration(filename)
	if err != nil {
		return configuration, fmt.Errorf("error reading configuration file: %w", err)
	}
	evb.SetConfiguration(configuration)
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", filename), "main")
		evb.PrintConfiguration(configuration)
	}
	return configuration, nil
}

// setupSource reads the channel setup from the channel map file, or from the
// database unless no_db is set. The returned closer releases the connection.
func setupSource(configuration evb.Configuration) (evb.SetupSource, func() error, error) {
	if configuration.NoDB {
		setup, err := evb.LoadChannelSetup(configuration.ChannelMapFile)
		if err != nil {
			return nil, nil, err
		}
		return evb.StaticSetup(setup), func() error { return nil }, nil
	}

	dbConn, err := evb.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("error connection to database: %w", err)
	}
	source := func(runNumber int) (evb.ChannelSetup, error) {
		return evb.LoadChannelSetupFromDB(dbConn, runNumber)
	}
	return source, dbConn.Close, nil
}

func runEventBuilder(ctx context.Context, opts *rootOptions) error {
	configuration, err := loadConfiguration(opts.ConfigFile)
	if err != nil {
		return err
	}
	setups, closeSetups, err := setupSource(configuration)
	if err != nil {
		return err
	}
	defer closeSetups()

	metrics := evb.NewMetrics()
	if configuration.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		if err := metrics.Register(registry); err != nil {
			return err
		}
		go serveMetrics(configuration.MetricsAddr, registry)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lastReported := make(map[int]int)
	progress := func(runNumber int, fraction float64) {
		// log every 10%
		step := int(fraction * 10)
		if configuration.Verbosity > 0 && step > lastReported[runNumber] {
			lastReported[runNumber] = step
			logger.Info(fmt.Sprintf("Run %d: %.0f%%", runNumber, fraction*100), "progress")
		}
	}

	results, err := evb.ProcessRuns(ctx, configuration, setups, metrics, progress)
	for _, result := range results {
		for _, artifact := range result.EventArtifacts {
			logger.Info(fmt.Sprintf("Run %d: wrote %s", result.RunNumber, artifact), "main")
		}
		if result.ScalerArtifact != "" {
			logger.Info(fmt.Sprintf("Run %d: wrote %s", result.RunNumber, result.ScalerArtifact), "main")
		}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("aborted: %w", err)
	}
	return err
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info(fmt.Sprintf("Serving metrics on %s", addr), "metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error(fmt.Errorf("metrics server: %w", err).Error())
	}
}

func validateRuns(cmd *cobra.Command, opts *rootOptions) error {
	configuration, err := loadConfiguration(opts.ConfigFile)
	if err != nil {
		return err
	}
	setups, closeSetups, err := setupSource(configuration)
	if err != nil {
		return err
	}
	defer closeSetups()

	out := cmd.OutOrStdout()
	var errs []error
	for run := configuration.RunMin; run < configuration.RunMax; run++ {
		runDir := evb.RunDirectory(configuration.InputDir, run)
		if _, err := os.Stat(runDir); err != nil {
			continue
		}
		setup, err := setups(run)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", run, err))
			continue
		}
		channelMap, err := evb.NewChannelMap(setup.Channels, setup.Derived)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", run, err))
			continue
		}
		classification, err := evb.Classify(runDir, setup.Scalers, channelMap)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", run, err))
			continue
		}
		fmt.Fprintf(out, "run %d: %d event channels, %d scaler files, %d columns\n", run,
			len(classification.EventFiles), len(classification.ScalerFiles), len(channelMap.Columns()))
		for _, id := range evb.SilentChannels(channelMap, classification.EventFiles) {
			fmt.Fprintf(out, "run %d: no file for %v\n", run, id)
		}
	}
	return errors.Join(errs...)
}
