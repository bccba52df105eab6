package evb

import (
	"cmp"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// ChannelIdentity identifies one physical digitizer channel.
type ChannelIdentity struct {
	BoardType   string `yaml:"board_type" json:"board_type" db:"BoardType"`
	BoardSerial uint32 `yaml:"board_serial" json:"board_serial" db:"BoardSerial"`
	Channel     uint16 `yaml:"channel" json:"channel" db:"Channel"`
}

func (c ChannelIdentity) String() string {
	return fmt.Sprintf("%s_%d/CH%d", c.BoardType, c.BoardSerial, c.Channel)
}

// Compare orders identities by board type, board serial and channel. It is
// the tie-breaker of the time merge.
func (c ChannelIdentity) Compare(o ChannelIdentity) int {
	if r := cmp.Compare(c.BoardType, o.BoardType); r != 0 {
		return r
	}
	if r := cmp.Compare(c.BoardSerial, o.BoardSerial); r != 0 {
		return r
	}
	return cmp.Compare(c.Channel, o.Channel)
}

// Hit is one decoded digitizer measurement.
type Hit struct {
	Identity         ChannelIdentity
	Board            uint16
	Channel          uint16
	Timestamp        int64 // ps, time shift applied
	Energy           float64
	EnergyShort      float64
	EnergyCalibrated float64
	Flags            uint32
	Offset           int64
}

// CoMPASS names its per channel files DataR_CH<ch>@<board>_<serial>_<run>.BIN
// (DataF_ for filtered output).
var channelFilePattern = regexp.MustCompile(`^Data[RF]?_CH(\d+)@([A-Za-z0-9\-]+)_(\d+)(?:_.*)?\.(?i:bin)$`)

// ParseChannelFilename extracts the channel identity encoded in a file name.
func ParseChannelFilename(path string) (ChannelIdentity, bool) {
	m := channelFilePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return ChannelIdentity{}, false
	}
	channel, err := strconv.ParseUint(m[1], 10, 16)
	if err != nil {
		return ChannelIdentity{}, false
	}
	serial, err := strconv.ParseUint(m[3], 10, 32)
	if err != nil {
		return ChannelIdentity{}, false
	}
	return ChannelIdentity{
		BoardType:   m[2],
		BoardSerial: uint32(serial),
		Channel:     uint16(channel),
	}, true
}
