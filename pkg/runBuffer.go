package evb

import (
	"fmt"
	"path/filepath"
	"slices"
)

const float64Size = 8

// Table is a row-major block of event rows ready to be written.
type Table struct {
	RunNumber int
	Columns   []string
	Rows      int
	Data      []float64
}

// Row returns the values of row i.
func (t *Table) Row(i int) []float64 {
	n := len(t.Columns)
	return t.Data[i*n : (i+1)*n]
}

// TableWriter stores one event table artifact.
type TableWriter interface {
	Extension() string
	WriteTable(filename string, table *Table) error
}

// RunBuffer accumulates event rows in memory. Absent fields are stored as
// the missing value. With a ceiling the backing array never holds more than
// the whole rows that fit in it.
type RunBuffer struct {
	columns []string
	missing float64
	data    []float64
	rows    int
	// capacity limit in values, 0 for none
	limit int
}

func NewRunBuffer(columns []string, missing float64, ceiling int64) *RunBuffer {
	b := &RunBuffer{columns: columns, missing: missing}
	if ceiling > 0 && len(columns) > 0 {
		b.limit = int(ceiling/b.RowSize()) * len(columns)
	}
	return b
}

// RowSize is the number of bytes one appended event adds to the buffer.
func (b *RunBuffer) RowSize() int64 {
	return int64(len(b.columns)) * float64Size
}

func (b *RunBuffer) UsedSize() int64 {
	return int64(len(b.data)) * float64Size
}

// AllocatedSize is the size of the backing array.
func (b *RunBuffer) AllocatedSize() int64 {
	return int64(cap(b.data)) * float64Size
}

func (b *RunBuffer) Rows() int { return b.rows }

func (b *RunBuffer) Append(record *EventRecord) {
	if len(b.data)+len(b.columns) > cap(b.data) {
		b.grow()
	}
	for i := range b.columns {
		if record.present[i] {
			b.data = append(b.data, record.values[i])
		} else {
			b.data = append(b.data, b.missing)
		}
	}
	b.rows++
}

// grow doubles the capacity, clamped to the limit when the buffer has one.
func (b *RunBuffer) grow() {
	n := len(b.columns)
	capacity := max(2*cap(b.data), 64*n, len(b.data)+n)
	if b.limit > 0 {
		capacity = max(min(capacity, b.limit), len(b.data)+n)
	}
	data := make([]float64, len(b.data), capacity)
	copy(data, b.data)
	b.data = data
}

func (b *RunBuffer) Table() *Table {
	return &Table{Columns: b.columns, Rows: b.rows, Data: b.data}
}

// FragmentManager owns the run buffer for a run. It flushes the buffer to a
// numbered fragment before an append would take it past the memory ceiling,
// and writes the remaining rows when the run finishes.
type FragmentManager struct {
	writer    TableWriter
	outDir    string
	runNumber int
	ceiling   int64
	buffer    *RunBuffer
	fragment  int
	written   []string
	metrics   *Metrics
}

func NewFragmentManager(writer TableWriter, outDir string, runNumber int, columns []string,
	missing float64, ceiling int64, metrics *Metrics) (*FragmentManager, error) {
	buffer := NewRunBuffer(columns, missing, ceiling)
	if ceiling < buffer.RowSize() {
		return nil, fmt.Errorf("memory ceiling of %d bytes is smaller than one event row (%d bytes)",
			ceiling, buffer.RowSize())
	}
	return &FragmentManager{
		writer:    writer,
		outDir:    outDir,
		runNumber: runNumber,
		ceiling:   ceiling,
		buffer:    buffer,
		metrics:   metrics,
	}, nil
}

func (f *FragmentManager) Append(record *EventRecord) error {
	if f.buffer.Rows() > 0 && f.buffer.UsedSize()+f.buffer.RowSize() > f.ceiling {
		if err := f.flush(f.fragmentName(f.fragment)); err != nil {
			return err
		}
		f.fragment++
	}
	f.buffer.Append(record)
	return nil
}

// Finish writes the buffered rows as the last artifact of the run and
// returns every artifact in emission order. A run that never fragmented
// produces a single artifact without fragment suffix, empty if the run had
// no events.
func (f *FragmentManager) Finish() ([]string, error) {
	name := f.runName()
	if f.fragment > 0 {
		name = f.fragmentName(f.fragment)
	}
	if err := f.flush(name); err != nil {
		return nil, err
	}
	return slices.Clone(f.written), nil
}

// Discard drops the buffered rows. Artifacts already written are untouched.
func (f *FragmentManager) Discard() {
	f.buffer = f.newBuffer()
}

func (f *FragmentManager) Written() []string {
	return slices.Clone(f.written)
}

func (f *FragmentManager) flush(filename string) error {
	table := f.buffer.Table()
	table.RunNumber = f.runNumber
	logger.Info(fmt.Sprintf("Writing %d events (%d bytes buffered) to %s",
		table.Rows, f.buffer.AllocatedSize(), filename), "buffer")
	err := writeAtomically(filename, func(tmp string) error {
		return f.writer.WriteTable(tmp, table)
	})
	if err != nil {
		return &ErrStorageWrite{Artifact: filename, Written: slices.Clone(f.written), Err: err}
	}
	f.written = append(f.written, filename)
	f.buffer = f.newBuffer()
	f.metrics.fragmentWritten()
	return nil
}

func (f *FragmentManager) newBuffer() *RunBuffer {
	return NewRunBuffer(f.buffer.columns, f.buffer.missing, f.ceiling)
}

func (f *FragmentManager) runName() string {
	return filepath.Join(f.outDir, fmt.Sprintf("run_%d.%s", f.runNumber, f.writer.Extension()))
}

func (f *FragmentManager) fragmentName(fragment int) string {
	return filepath.Join(f.outDir, fmt.Sprintf("run_%d_%d.%s", f.runNumber, fragment, f.writer.Extension()))
}
