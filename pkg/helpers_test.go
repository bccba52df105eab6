package evb

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testHit struct {
	board      uint16
	channel    uint16
	timestamp  uint64
	energy     uint16
	short      uint16
	calibrated uint64
	flags      uint32
}

// encodeCompass builds the bytes of a CoMPASS channel file with the given
// header word.
func encodeCompass(header CompassDataType, hits []testHit) []byte {
	le := binary.LittleEndian
	data := le.AppendUint16(nil, uint16(header))
	for _, h := range hits {
		data = le.AppendUint16(data, h.board)
		data = le.AppendUint16(data, h.channel)
		data = le.AppendUint64(data, h.timestamp)
		if header&ENERGY != 0 {
			data = le.AppendUint16(data, h.energy)
		}
		if header&ENERGY_CALIBRATED != 0 {
			data = le.AppendUint64(data, h.calibrated)
		}
		if header&ENERGY_SHORT != 0 {
			data = le.AppendUint16(data, h.short)
		}
		data = le.AppendUint32(data, h.flags)
	}
	return data
}

func writeCompassFile(t *testing.T, dir string, name string, header CompassDataType, hits []testHit) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, encodeCompass(header, hits), 0o644))
	return path
}

// hitsAt returns one hit per timestamp with the energy set to the index.
func hitsAt(channel uint16, timestamps ...uint64) []testHit {
	hits := make([]testHit, len(timestamps))
	for i, ts := range timestamps {
		hits[i] = testHit{channel: channel, timestamp: ts, energy: uint16(i + 1), short: uint16(i)}
	}
	return hits
}

func identity(channel uint16) ChannelIdentity {
	return ChannelIdentity{BoardType: "V1730", BoardSerial: 989, Channel: channel}
}

func channelFileName(channel uint16) string {
	return fmt.Sprintf("DataR_CH%d@V1730_989_run_7.BIN", channel)
}
