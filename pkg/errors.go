package evb

import (
	"fmt"
	"strings"
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrMalformedRecord is returned when bytes in a channel file cannot be
// decoded to the fixed-width record layout announced by its header.
type ErrMalformedRecord struct {
	File   string
	Offset int64
	Err    error
}

func (e *ErrMalformedRecord) Error() string {
	return fmt.Sprintf("malformed record in %q at byte %d: %v", e.File, e.Offset, e.Err)
}

func (e *ErrMalformedRecord) Unwrap() error { return e.Err }

// ErrOutOfOrder is returned when a channel file is not sorted by timestamp.
type ErrOutOfOrder struct {
	File     string
	Identity ChannelIdentity
	Offset   int64
	Previous uint64
	Current  uint64
}

func (e *ErrOutOfOrder) Error() string {
	return fmt.Sprintf("out of order data in %q (%v) at byte %d: timestamp %d after %d",
		e.File, e.Identity, e.Offset, e.Current, e.Previous)
}

// ErrUnsupportedWaveforms is returned for files recorded with waveforms.
type ErrUnsupportedWaveforms struct {
	File string
}

func (e *ErrUnsupportedWaveforms) Error() string {
	return fmt.Sprintf("file %q contains waveform data, which is not supported", e.File)
}

// ErrUnmappedChannel is returned when a file in the run directory matches
// neither the scaler list nor the channel map. Identity is nil when the file
// name does not follow the channel file naming pattern at all.
type ErrUnmappedChannel struct {
	File     string
	Identity *ChannelIdentity
}

func (e *ErrUnmappedChannel) Error() string {
	if e.Identity == nil {
		return fmt.Sprintf("file %q is not a scaler and does not name a channel", e.File)
	}
	return fmt.Sprintf("file %q (%v) is not a scaler and has no channel map entry", e.File, *e.Identity)
}

// ErrDuplicateChannel is returned when two files or two channel map entries
// resolve to the same physical channel.
type ErrDuplicateChannel struct {
	Identity ChannelIdentity
	First    string
	Second   string
}

func (e *ErrDuplicateChannel) Error() string {
	return fmt.Sprintf("channel %v appears twice: %q and %q", e.Identity, e.First, e.Second)
}

// ErrInconsistentMapping signals a hit reaching the materializer whose
// channel has no role. Classification should have rejected it earlier.
type ErrInconsistentMapping struct {
	Identity ChannelIdentity
}

func (e *ErrInconsistentMapping) Error() string {
	return fmt.Sprintf("internal inconsistency: hit from %v has no channel role", e.Identity)
}

// ErrStorageWrite is returned when flushing a fragment or writing the scaler
// summary fails. Written lists the artifacts that were completed before the
// failure; they remain valid partial output.
type ErrStorageWrite struct {
	Artifact string
	Written  []string
	Err      error
}

func (e *ErrStorageWrite) Error() string {
	msg := fmt.Sprintf("error writing %q: %v", e.Artifact, e.Err)
	if len(e.Written) > 0 {
		msg += fmt.Sprintf(" (partial output: %s)", strings.Join(e.Written, ", "))
	}
	return msg
}

func (e *ErrStorageWrite) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }
