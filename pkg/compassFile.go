package evb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"os"
)

type CompassDataType uint16

const (
	ENERGY            CompassDataType = 0x0001
	ENERGY_CALIBRATED CompassDataType = 0x0002
	ENERGY_SHORT      CompassDataType = 0x0004
	WAVES             CompassDataType = 0x0008
)

const (
	compassHeaderSize = 2
	// board, channel, timestamp and flags are always present
	compassMinRecordSize = 16
	// read buffer of each channel file, in hits
	bufferSizeHits = 24000
)

// ReaderOptions tune how hits are decoded from a channel file.
type ReaderOptions struct {
	// TimeShift in ps added to every timestamp of the channel.
	TimeShift  int64
	Dither     bool
	DitherSeed uint64
}

// ChannelFile is a lazy, strictly time ordered reader over one CoMPASS
// channel file.
type ChannelFile struct {
	Filename string
	Identity ChannelIdentity

	file       *os.File
	reader     *bufio.Reader
	dataType   CompassDataType
	recordSize int
	sizeBytes  int64
	buffer     []byte
	offset     int64
	options    ReaderOptions
	rng        *rand.Rand

	next     Hit
	loaded   bool
	eof      bool
	started  bool
	previous uint64
}

// ReadCompassHeader decodes the header word and returns the data type and
// record size it announces.
func ReadCompassHeader(r io.Reader, filename string) (CompassDataType, int, error) {
	var header [compassHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, &ErrMalformedRecord{File: filename, Offset: 0, Err: fmt.Errorf("reading header: %w", err)}
	}
	word := CompassDataType(binary.LittleEndian.Uint16(header[:]))
	if word&WAVES != 0 {
		return 0, 0, &ErrUnsupportedWaveforms{File: filename}
	}
	size := compassMinRecordSize
	var dataType CompassDataType
	if word&ENERGY != 0 {
		dataType |= ENERGY
		size += 2
	}
	if word&ENERGY_SHORT != 0 {
		dataType |= ENERGY_SHORT
		size += 2
	}
	if word&ENERGY_CALIBRATED != 0 {
		dataType |= ENERGY_CALIBRATED
		size += 8
	}
	return dataType, size, nil
}

func OpenChannelFile(filename string, identity ChannelIdentity, options ReaderOptions) (*ChannelFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	dataType, recordSize, err := ReadCompassHeader(file, filename)
	if err != nil {
		file.Close()
		return nil, err
	}

	f := &ChannelFile{
		Filename:   filename,
		Identity:   identity,
		file:       file,
		reader:     bufio.NewReaderSize(file, recordSize*bufferSizeHits),
		dataType:   dataType,
		recordSize: recordSize,
		sizeBytes:  info.Size(),
		buffer:     make([]byte, recordSize),
		offset:     compassHeaderSize,
		options:    options,
	}
	if options.Dither {
		h := fnv.New64a()
		h.Write([]byte(identity.String()))
		f.rng = rand.New(rand.NewPCG(options.DitherSeed, h.Sum64()))
	}
	return f, nil
}

// NumberOfHits is the record count implied by the file size.
func (f *ChannelFile) NumberOfHits() int64 {
	return (f.sizeBytes - compassHeaderSize) / int64(f.recordSize)
}

// Peek returns the timestamp of the next hit without consuming it. ok is
// false once the file is exhausted.
func (f *ChannelFile) Peek() (timestamp int64, ok bool, err error) {
	if err := f.load(); err != nil {
		return 0, false, err
	}
	if f.eof {
		return 0, false, nil
	}
	return f.next.Timestamp, true, nil
}

// Next consumes the next hit. It returns io.EOF when the file is exhausted.
func (f *ChannelFile) Next() (Hit, error) {
	if err := f.load(); err != nil {
		return Hit{}, err
	}
	if f.eof {
		return Hit{}, io.EOF
	}
	f.loaded = false
	return f.next, nil
}

func (f *ChannelFile) load() error {
	if f.loaded || f.eof {
		return nil
	}
	offset := f.offset
	_, err := io.ReadFull(f.reader, f.buffer)
	if errors.Is(err, io.EOF) {
		f.eof = true
		return nil
	}
	if err != nil {
		return &ErrMalformedRecord{File: f.Filename, Offset: offset, Err: err}
	}
	f.offset += int64(f.recordSize)

	hit, raw := f.decode(f.buffer, offset)
	if f.started && raw < f.previous {
		return &ErrOutOfOrder{
			File:     f.Filename,
			Identity: f.Identity,
			Offset:   offset,
			Previous: f.previous,
			Current:  raw,
		}
	}
	f.started = true
	f.previous = raw
	f.next = hit
	f.loaded = true
	return nil
}

func (f *ChannelFile) decode(data []byte, offset int64) (Hit, uint64) {
	le := binary.LittleEndian
	hit := Hit{
		Identity: f.Identity,
		Board:    le.Uint16(data[0:]),
		Channel:  le.Uint16(data[2:]),
		Offset:   offset,
	}
	raw := le.Uint64(data[4:])
	hit.Timestamp = int64(raw) + f.options.TimeShift
	position := 12
	if f.dataType&ENERGY != 0 {
		hit.Energy = float64(le.Uint16(data[position:]))
		position += 2
	}
	if f.dataType&ENERGY_CALIBRATED != 0 {
		hit.EnergyCalibrated = float64(le.Uint64(data[position:]))
		position += 8
	}
	if f.dataType&ENERGY_SHORT != 0 {
		hit.EnergyShort = float64(le.Uint16(data[position:]))
		position += 2
	}
	hit.Flags = le.Uint32(data[position:])

	if f.rng != nil {
		hit.Energy += f.rng.Float64()
		hit.EnergyShort += f.rng.Float64()
	}
	return hit, raw
}

func (f *ChannelFile) Close() error {
	return f.file.Close()
}

// CountHits opens a channel file only to count its records. A file whose
// payload is not a whole number of records is malformed.
func CountHits(filename string) (uint64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, &ErrOpenFile{Filename: filename, Err: err}
	}
	_, recordSize, err := ReadCompassHeader(file, filename)
	if err != nil {
		return 0, err
	}
	payload := info.Size() - compassHeaderSize
	if rest := payload % int64(recordSize); rest != 0 {
		return 0, &ErrMalformedRecord{
			File:   filename,
			Offset: info.Size() - rest,
			Err:    fmt.Errorf("trailing %d bytes do not form a %d byte record", rest, recordSize),
		}
	}
	return uint64(payload / int64(recordSize)), nil
}
