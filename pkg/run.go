package evb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// hits between two cancellation checks
const cancelCheckInterval = 4096

// progress is reported in steps of this fraction of the run's hits
const progressStep = 0.01

type RunParams struct {
	RunNumber         int
	RunDir            string
	OutputDir         string
	ChannelMap        *ChannelMap
	Scalers           []ScalerEntry
	Shifts            ShiftMap
	CoincidenceWindow int64
	MemoryCeiling     int64
	MissingValue      float64
	Dither            bool
	DitherSeed        uint64
	NumWorkers        int
	Writer            TableWriter
	Metrics           *Metrics
	// Progress, when set, receives the fraction of hits processed.
	Progress func(fraction float64)
}

type RunResult struct {
	RunID          string
	RunNumber      int
	EventArtifacts []string
	ScalerArtifact string
	Scalers        []ScalerRecord
	// mapped channels without a file in the run directory
	SilentChannels []ChannelIdentity
	Hits           int64
	Events         int64
}

// Run builds the events of one run directory. When it fails after event
// artifacts were written the returned result lists them as partial output.
func Run(ctx context.Context, params RunParams) (result *RunResult, err error) {
	result = &RunResult{RunID: uuid.NewString(), RunNumber: params.RunNumber}
	start := time.Now()
	defer func() { params.Metrics.runFinished(err) }()

	if len(params.ChannelMap.Columns()) == 0 {
		return nil, fmt.Errorf("run %d: channel map defines no fields", params.RunNumber)
	}
	builder, err := NewEventBuilder(params.CoincidenceWindow)
	if err != nil {
		return nil, err
	}
	fragments, err := NewFragmentManager(params.Writer, params.OutputDir, params.RunNumber,
		params.ChannelMap.Columns(), params.MissingValue, params.MemoryCeiling, params.Metrics)
	if err != nil {
		return nil, err
	}

	classification, err := Classify(params.RunDir, params.Scalers, params.ChannelMap)
	if err != nil {
		return nil, err
	}

	// scaler files are only sized, a malformed one fails the run before
	// any event table exists
	scalers, err := CountScalers(ctx, params.Scalers, classification.ScalerFiles, params.NumWorkers)
	if err != nil {
		return nil, err
	}
	result.Scalers = scalers
	result.SilentChannels = SilentChannels(params.ChannelMap, classification.EventFiles)
	for _, id := range result.SilentChannels {
		logger.Info(fmt.Sprintf("Run %d: no file for mapped channel %v", params.RunNumber, id), "run")
	}

	files, err := openEventFiles(classification.EventFiles, params)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	var totalHits int64
	sources := make([]MergeSource, len(files))
	for i, f := range files {
		sources[i] = MergeSource{Identity: f.Identity, Stream: f}
		totalHits += f.NumberOfHits()
	}

	logger.Info(fmt.Sprintf("Run %d (%s): %d channels, %d hits, window %d ps",
		params.RunNumber, result.RunID, len(files), totalHits, params.CoincidenceWindow), "run")

	merger, err := NewMerger(sources)
	if err != nil {
		return nil, err
	}
	materializer := NewMaterializer(params.ChannelMap)
	emit := func(group CoincidenceGroup) error {
		record, err := materializer.Materialize(group)
		if err != nil {
			return err
		}
		result.Events++
		params.Metrics.eventBuilt()
		return fragments.Append(&record)
	}
	fail := func(err error) (*RunResult, error) {
		fragments.Discard()
		result.EventArtifacts = fragments.Written()
		params.Metrics.hitsMerged(result.Hits % cancelCheckInterval)
		return result, err
	}

	progressEvery := int64(float64(totalHits) * progressStep)
	for {
		hit, err := merger.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		result.Hits++
		if result.Hits%cancelCheckInterval == 0 {
			params.Metrics.hitsMerged(cancelCheckInterval)
			if err := ctx.Err(); err != nil {
				logger.Error(fmt.Sprintf("run %d aborted after %d hits, discarding buffered events", params.RunNumber, result.Hits))
				return fail(err)
			}
		}
		if params.Progress != nil && progressEvery > 0 && result.Hits%progressEvery == 0 {
			params.Progress(float64(result.Hits) / float64(totalHits))
		}

		if group, ready := builder.PushHit(hit); ready {
			if err := emit(group); err != nil {
				return fail(err)
			}
		}
	}
	params.Metrics.hitsMerged(result.Hits % cancelCheckInterval)
	if group, ready := builder.Flush(); ready {
		if err := emit(group); err != nil {
			return fail(err)
		}
	}
	if err := ctx.Err(); err != nil {
		fragments.Discard()
		result.EventArtifacts = fragments.Written()
		return result, err
	}

	result.EventArtifacts, err = fragments.Finish()
	if err != nil {
		result.EventArtifacts = fragments.Written()
		return result, err
	}
	if params.Progress != nil {
		params.Progress(1)
	}

	params.Metrics.scalers(result.Scalers)

	result.ScalerArtifact = filepath.Join(params.OutputDir, fmt.Sprintf("run_%d_scalers.txt", params.RunNumber))
	if err := WriteScalers(result.Scalers, result.ScalerArtifact); err != nil {
		artifact := result.ScalerArtifact
		result.ScalerArtifact = ""
		return result, &ErrStorageWrite{Artifact: artifact, Written: result.EventArtifacts, Err: err}
	}

	logger.Info(fmt.Sprintf("Run %d (%s): %d hits, %d events, %d artifacts in %d ms",
		params.RunNumber, result.RunID, result.Hits, result.Events, len(result.EventArtifacts),
		time.Since(start).Milliseconds()), "run")
	return result, nil
}

func openEventFiles(eventFiles []EventFile, params RunParams) ([]*ChannelFile, error) {
	files := make([]*ChannelFile, 0, len(eventFiles))
	for _, ef := range eventFiles {
		f, err := OpenChannelFile(ef.Path, ef.Identity, ReaderOptions{
			TimeShift:  params.Shifts.Get(ef.Identity),
			Dither:     params.Dither,
			DitherSeed: params.DitherSeed,
		})
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
