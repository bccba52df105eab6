package evb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChannelFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     ChannelIdentity
		wantOK   bool
	}{
		{"DataR_CH3@V1730_989_run_7.BIN", ChannelIdentity{"V1730", 989, 3}, true},
		{"/data/run_7/DataF_CH12@DT5730-SB_1234.bin", ChannelIdentity{"DT5730-SB", 1234, 12}, true},
		{"Data_CH0@V1725_77_run_3_0.BIN", ChannelIdentity{"V1725", 77, 0}, true},
		{"DataR_CH3@V1730_989_run_7.csv", ChannelIdentity{}, false},
		{"run_7_settings.xml", ChannelIdentity{}, false},
		{"DataR_CH70000@V1730_989.BIN", ChannelIdentity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := ParseChannelFilename(tt.filename)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelIdentityCompare(t *testing.T) {
	a := ChannelIdentity{"V1725", 900, 5}
	b := ChannelIdentity{"V1730", 100, 0}
	c := ChannelIdentity{"V1730", 100, 1}
	d := ChannelIdentity{"V1730", 200, 0}

	assert.Negative(t, a.Compare(b), "board type first")
	assert.Negative(t, b.Compare(c), "then channel within a board")
	assert.Negative(t, c.Compare(d), "serial before channel")
	assert.Zero(t, c.Compare(c))
	assert.Positive(t, d.Compare(a))
	assert.Equal(t, "V1730_100/CH1", c.String())
}
