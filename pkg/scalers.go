package evb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScalerEntry declares a counting-only channel. FilePattern is matched
// against file names as a prefix, or as a glob when it has glob
// metacharacters.
type ScalerEntry struct {
	FilePattern string `yaml:"file_pattern" json:"file_pattern" db:"FilePattern"`
	Name        string `yaml:"name" json:"name" db:"Name"`
}

// ScalerRecord is the hit count of one declared scaler for a run.
type ScalerRecord struct {
	Name        string
	FilePattern string
	Count       uint64
	Files       []string
}

func (s ScalerEntry) Matches(filename string) bool {
	base := filepath.Base(filename)
	if strings.ContainsAny(s.FilePattern, "*?[") {
		ok, err := filepath.Match(s.FilePattern, base)
		return err == nil && ok
	}
	return strings.HasPrefix(base, s.FilePattern)
}

// MatchScaler returns the index of the first declared scaler matching the
// file name.
func MatchScaler(scalers []ScalerEntry, filename string) (int, bool) {
	for i, s := range scalers {
		if s.Matches(filename) {
			return i, true
		}
	}
	return -1, false
}

// WriteScalers writes the scaler summary of a run. Declared scalers without
// any file are reported with a zero count.
func WriteScalers(records []ScalerRecord, filename string) error {
	return writeAtomically(filename, func(tmp string) error {
		file, err := os.Create(tmp)
		if err != nil {
			return err
		}
		writer := bufio.NewWriter(file)
		fmt.Fprintln(writer, "Scaler Data")
		for _, r := range records {
			fmt.Fprintf(writer, "%s %d\n", r.Name, r.Count)
		}
		if err := writer.Flush(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	})
}

// writeAtomically lets write produce the artifact under a temporary name and
// renames it into place only once write succeeded.
func writeAtomically(filename string, write func(tmp string) error) error {
	tmp := filename + ".tmp"
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
