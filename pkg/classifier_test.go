package evb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewChannelMap(testChannelEntries(), nil)
	require.NoError(t, err)
	scalers := []ScalerEntry{{FilePattern: "DataR_CH15@", Name: "clock"}}

	a := writeCompassFile(t, dir, channelFileName(0), ENERGY, nil)
	b := writeCompassFile(t, dir, channelFileName(1), ENERGY, nil)
	s := writeCompassFile(t, dir, channelFileName(15), ENERGY, nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "waves"), 0o755))

	c, err := Classify(dir, scalers, cm)
	require.NoError(t, err)
	assert.ElementsMatch(t, []EventFile{{Path: a, Identity: identity(0)}, {Path: b, Identity: identity(1)}}, c.EventFiles)
	assert.Equal(t, []ScalerFile{{Path: s, Scaler: 0}}, c.ScalerFiles)
}

func TestClassifyReportsEveryUnmappedFile(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewChannelMap(testChannelEntries(), nil)
	require.NoError(t, err)

	writeCompassFile(t, dir, channelFileName(0), ENERGY, nil)
	unmapped := writeCompassFile(t, dir, channelFileName(8), ENERGY, nil)
	stray := writeCompassFile(t, dir, "settings.xml", 0, nil)

	_, err = Classify(dir, nil, cm)
	require.Error(t, err)

	var found []string
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	for _, e := range joined.Unwrap() {
		var u *ErrUnmappedChannel
		require.ErrorAs(t, e, &u)
		found = append(found, u.File)
		if u.File == unmapped {
			require.NotNil(t, u.Identity)
			assert.Equal(t, identity(8), *u.Identity)
		} else {
			assert.Nil(t, u.Identity)
		}
	}
	assert.ElementsMatch(t, []string{unmapped, stray}, found)
}

func TestClassifyDuplicateChannel(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewChannelMap(testChannelEntries(), nil)
	require.NoError(t, err)

	writeCompassFile(t, dir, "DataR_CH0@V1730_989_run_7.BIN", ENERGY, nil)
	writeCompassFile(t, dir, "DataF_CH0@V1730_989_run_7.BIN", ENERGY, nil)

	_, err = Classify(dir, nil, cm)
	var dup *ErrDuplicateChannel
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, identity(0), dup.Identity)
}

func TestClassifyMissingDirectory(t *testing.T) {
	cm, err := NewChannelMap(testChannelEntries(), nil)
	require.NoError(t, err)
	_, err = Classify(filepath.Join(t.TempDir(), "run_99"), nil, cm)
	var open *ErrOpenFile
	assert.ErrorAs(t, err, &open)
}

func TestSilentChannels(t *testing.T) {
	cm, err := NewChannelMap(testChannelEntries(), nil)
	require.NoError(t, err)

	silent := SilentChannels(cm, []EventFile{{Path: "b", Identity: identity(1)}})
	assert.Equal(t, []ChannelIdentity{identity(0), identity(2)}, silent)
	assert.Empty(t, SilentChannels(cm, []EventFile{
		{Identity: identity(2)}, {Identity: identity(0)}, {Identity: identity(1)},
	}))
}
