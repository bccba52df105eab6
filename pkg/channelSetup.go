package evb

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ShiftMapEntry is a constant time offset, in ns, applied to one channel.
type ShiftMapEntry struct {
	ChannelIdentity `yaml:",inline"`
	TimeShift       float64 `yaml:"time_shift" json:"time_shift" db:"TimeShift"`
}

// ChannelSetup gathers the operator supplied tables of a run: channel map,
// derived fields, scaler list and time shifts.
type ChannelSetup struct {
	Channels []ChannelMapEntry  `yaml:"channels"`
	Derived  []DerivedFieldSpec `yaml:"derived"`
	Scalers  []ScalerEntry      `yaml:"scalers"`
	Shifts   []ShiftMapEntry    `yaml:"shifts"`
}

func LoadChannelSetup(filename string) (ChannelSetup, error) {
	var setup ChannelSetup
	data, err := os.ReadFile(filename)
	if err != nil {
		return setup, &ErrOpenFile{Filename: filename, Err: err}
	}
	if err := yaml.Unmarshal(data, &setup); err != nil {
		return setup, fmt.Errorf("error parsing channel setup %q: %w", filename, err)
	}
	return setup, nil
}

// ShiftMap holds per channel time shifts in ps.
type ShiftMap map[ChannelIdentity]int64

func NewShiftMap(entries []ShiftMapEntry) ShiftMap {
	shifts := make(ShiftMap, len(entries))
	for _, entry := range entries {
		shifts[entry.ChannelIdentity] = int64(math.Round(entry.TimeShift * 1.0e3))
	}
	return shifts
}

// Get returns the shift of a channel, 0 if it has none.
func (s ShiftMap) Get(id ChannelIdentity) int64 {
	return s[id]
}
