package evb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type EventFile struct {
	Path     string
	Identity ChannelIdentity
}

type ScalerFile struct {
	Path   string
	Scaler int // index in the declared scaler list
}

// Classification is the partition of a run directory into channels merged
// into events and channels only counted.
type Classification struct {
	EventFiles  []EventFile
	ScalerFiles []ScalerFile
}

// Classify partitions the files of a run directory. Scaler patterns are
// checked first; every other file must name a channel of the channel map.
// All unmapped files are reported together.
func Classify(dir string, scalers []ScalerEntry, channelMap *ChannelMap) (*Classification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ErrOpenFile{Filename: dir, Err: err}
	}

	result := &Classification{}
	seen := make(map[ChannelIdentity]string)
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if i, ok := MatchScaler(scalers, entry.Name()); ok {
			result.ScalerFiles = append(result.ScalerFiles, ScalerFile{Path: path, Scaler: i})
			continue
		}
		identity, ok := ParseChannelFilename(entry.Name())
		if !ok {
			errs = append(errs, &ErrUnmappedChannel{File: path})
			continue
		}
		if _, mapped := channelMap.Role(identity); !mapped {
			id := identity
			errs = append(errs, &ErrUnmappedChannel{File: path, Identity: &id})
			continue
		}
		if first, dup := seen[identity]; dup {
			errs = append(errs, &ErrDuplicateChannel{Identity: identity, First: first, Second: path})
			continue
		}
		seen[identity] = path
		result.EventFiles = append(result.EventFiles, EventFile{Path: path, Identity: identity})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("classifying %q: %w", dir, errors.Join(errs...))
	}

	logger.Info(fmt.Sprintf("%d event channels, %d scaler files in %s",
		len(result.EventFiles), len(result.ScalerFiles), dir), "classifier")
	return result, nil
}

// SilentChannels returns the mapped channels that have no event file, in
// channel map order. Their fields are absent from every event of the run.
func SilentChannels(channelMap *ChannelMap, eventFiles []EventFile) []ChannelIdentity {
	found := make(map[ChannelIdentity]bool, len(eventFiles))
	for _, f := range eventFiles {
		found[f.Identity] = true
	}
	var silent []ChannelIdentity
	for _, id := range channelMap.Identities() {
		if !found[id] {
			silent = append(silent, id)
		}
	}
	return silent
}
