package evb

import (
	"fmt"

	"github.com/jmbenlloch/go-hdf5"
)

type RunInfoHDF5 struct {
	run_number int32
	events     int64
}

type ColumnHDF5 struct {
	column int32
	name   [STRLEN]byte
}

const STRLEN = 64

// rows per chunk of the event tables
const tableChunk = 4096

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, fmt.Errorf("error creating group %q: %w", groupName, err)
	}
	return g, nil
}

func tablePropList(compressionLevel int) (*hdf5.PropList, error) {
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, err
	}
	if err := plist.SetChunk([]uint{tableChunk}); err != nil {
		plist.Close()
		return nil, err
	}
	if compressionLevel > 0 {
		if err := plist.SetDeflate(compressionLevel); err != nil {
			plist.Close()
			return nil, err
		}
	}
	return plist, nil
}

func createDataset(group *hdf5.Group, name string, dtype *hdf5.Datatype, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := tablePropList(compressionLevel)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compressionLevel int) (*hdf5.Dataset, error) {
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return createDataset(group, name, dtype, compressionLevel)
}

// createEventTable builds a compound row type with one double per column.
func createEventTable(group *hdf5.Group, name string, columns []string, compressionLevel int) (*hdf5.Dataset, error) {
	compound, err := hdf5.NewCompoundType(len(columns) * float64Size)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	for i, column := range columns {
		if err := compound.Insert(column, i*float64Size, hdf5.T_NATIVE_DOUBLE); err != nil {
			return nil, &ErrCreateTable{TableName: name, Err: fmt.Errorf("column %q: %w", column, err)}
		}
	}
	return createDataset(group, name, &compound.Datatype, compressionLevel)
}

// writeArrayToTable appends length rows held in data after the first
// rowsInTable rows of the dataset.
func writeArrayToTable(dataset *hdf5.Dataset, data interface{}, length uint, rowsInTable uint) error {
	if length == 0 {
		return nil
	}
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	// extend
	newsize := []uint{rowsInTable + length}
	if err := dataset.Resize(newsize); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{rowsInTable}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return err
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowsInTable uint) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, 1, rowsInTable)
}
