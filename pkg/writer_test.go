package evb

import (
	"path/filepath"
	"testing"

	"github.com/jmbenlloch/go-hdf5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDataset[T any](t *testing.T, group *hdf5.Group, name string, n int) []T {
	t.Helper()
	dataset, err := group.OpenDataset(name)
	require.NoError(t, err)
	defer dataset.Close()
	data := make([]T, n)
	if n > 0 {
		require.NoError(t, dataset.Read(&data))
	}
	return data
}

func TestHDF5WriterWriteTable(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "run_4.h5")
	table := &Table{
		RunNumber: 4,
		Columns:   []string{"AnodeEnergy", "AnodeTime", "Ratio"},
		Rows:      2,
		Data:      []float64{10, 0.5, -1e6, 20, 1.5, 2},
	}
	writer := &HDF5Writer{CompressionLevel: 4}
	require.NoError(t, writer.WriteTable(filename, table))

	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer file.Close()
	group, err := file.OpenGroup("Run")
	require.NoError(t, err)
	defer group.Close()

	assert.Equal(t, table.Data, readDataset[float64](t, group, "events", 6))

	info := readDataset[RunInfoHDF5](t, group, "runInfo", 1)
	assert.Equal(t, int32(4), info[0].run_number)
	assert.Equal(t, int64(2), info[0].events)

	columns := readDataset[ColumnHDF5](t, group, "columns", 3)
	for i, name := range table.Columns {
		assert.Equal(t, int32(i), columns[i].column)
		assert.Equal(t, convertToHdf5String(name), columns[i].name)
	}
}

func TestHDF5WriterEmptyTable(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "run_5.h5")
	writer := &HDF5Writer{}
	require.NoError(t, writer.WriteTable(filename, &Table{RunNumber: 5, Columns: []string{"E"}}))

	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer file.Close()
	group, err := file.OpenGroup("Run")
	require.NoError(t, err)
	defer group.Close()

	info := readDataset[RunInfoHDF5](t, group, "runInfo", 1)
	assert.Equal(t, int64(0), info[0].events)
}
