package evb

import (
	"bufio"
	"encoding/csv"
	"os"
	"strconv"
)

// CSVWriter writes event tables as comma separated text with a header row.
type CSVWriter struct{}

func (CSVWriter) Extension() string { return "csv" }

func (CSVWriter) WriteTable(filename string, table *Table) error {
	file, err := os.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	buffered := bufio.NewWriter(file)
	w := csv.NewWriter(buffered)
	if err := w.Write(table.Columns); err != nil {
		file.Close()
		return err
	}
	record := make([]string, len(table.Columns))
	for i := 0; i < table.Rows; i++ {
		for j, v := range table.Row(i) {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			file.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
