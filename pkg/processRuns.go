package evb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SetupSource returns the channel setup valid for a run number, from a file
// or from the database.
type SetupSource func(runNumber int) (ChannelSetup, error)

// StaticSetup serves the same channel setup to every run.
func StaticSetup(setup ChannelSetup) SetupSource {
	return func(int) (ChannelSetup, error) { return setup, nil }
}

func RunDirectory(inputDir string, runNumber int) string {
	return filepath.Join(inputDir, fmt.Sprintf("run_%d", runNumber))
}

// ProcessRuns builds every run in [RunMin, RunMax) whose directory exists
// under the input directory. Missing runs are skipped; the first failing run
// stops the processing.
func ProcessRuns(ctx context.Context, config Configuration, setups SetupSource, metrics *Metrics,
	progress func(runNumber int, fraction float64)) ([]*RunResult, error) {
	writer, err := NewTableWriter(config)
	if err != nil {
		return nil, err
	}

	var results []*RunResult
	for run := config.RunMin; run < config.RunMax; run++ {
		runDir := RunDirectory(config.InputDir, run)
		if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
			if config.Verbosity > 0 {
				logger.Info(fmt.Sprintf("Skipping run %d, no directory %s", run, runDir), "runs")
			}
			continue
		}

		setup, err := setups(run)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", run, err)
		}
		channelMap, err := NewChannelMap(setup.Channels, setup.Derived)
		if err != nil {
			return results, fmt.Errorf("run %d: error building channel map: %w", run, err)
		}

		params := RunParams{
			RunNumber:         run,
			RunDir:            runDir,
			OutputDir:         config.OutputDir,
			ChannelMap:        channelMap,
			Scalers:           setup.Scalers,
			Shifts:            NewShiftMap(setup.Shifts),
			CoincidenceWindow: config.CoincidenceWindow,
			MemoryCeiling:     config.MemoryCeiling,
			MissingValue:      config.MissingValue,
			Dither:            config.Dither,
			DitherSeed:        config.DitherSeed,
			NumWorkers:        config.NumWorkers,
			Writer:            writer,
			Metrics:           metrics,
		}
		if progress != nil {
			params.Progress = func(fraction float64) { progress(run, fraction) }
		}

		result, err := Run(ctx, params)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			logger.Error(fmt.Errorf("run %d failed: %w", run, err).Error())
			return results, err
		}
	}
	return results, nil
}
