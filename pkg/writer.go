package evb

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// HDF5Writer writes an event table artifact as /Run/events (compound rows,
// one double per field), /Run/columns and /Run/runInfo.
type HDF5Writer struct {
	CompressionLevel int
}

func (w *HDF5Writer) Extension() string { return "h5" }

func (w *HDF5Writer) WriteTable(filename string, table *Table) (err error) {
	hdf5.SetStringLength(STRLEN)

	file, err := openFile(filename)
	if err != nil {
		return err
	}
	var closers []interface{ Close() error }
	defer func() {
		var errs []error
		if err != nil {
			errs = append(errs, err)
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("error closing %s: %w", filename, cerr))
			}
		}
		if cerr := file.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", cerr))
		}
		err = errors.Join(errs...)
	}()

	runGroup, err := createGroup(file, "Run")
	if err != nil {
		return err
	}
	closers = append(closers, runGroup)

	events, err := createEventTable(runGroup, "events", table.Columns, w.CompressionLevel)
	if err != nil {
		return err
	}
	closers = append(closers, events)
	if err := writeArrayToTable(events, &table.Data, uint(table.Rows), 0); err != nil {
		return fmt.Errorf("error writing events: %w", err)
	}

	columnsTable, err := createTable(runGroup, "columns", ColumnHDF5{}, w.CompressionLevel)
	if err != nil {
		return err
	}
	closers = append(closers, columnsTable)
	columns := make([]ColumnHDF5, len(table.Columns))
	for i, name := range table.Columns {
		columns[i] = ColumnHDF5{column: int32(i), name: convertToHdf5String(name)}
	}
	if err := writeArrayToTable(columnsTable, &columns, uint(len(columns)), 0); err != nil {
		return fmt.Errorf("error writing columns: %w", err)
	}

	runInfo, err := createTable(runGroup, "runInfo", RunInfoHDF5{}, w.CompressionLevel)
	if err != nil {
		return err
	}
	closers = append(closers, runInfo)
	info := RunInfoHDF5{run_number: int32(table.RunNumber), events: int64(table.Rows)}
	if err := writeEntryToTable(runInfo, info, 0); err != nil {
		return fmt.Errorf("error writing run info: %w", err)
	}
	return nil
}
