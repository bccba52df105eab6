package evb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAll(t *testing.T, window int64, hits []Hit) []CoincidenceGroup {
	t.Helper()
	builder, err := NewEventBuilder(window)
	require.NoError(t, err)
	var groups []CoincidenceGroup
	for _, hit := range hits {
		if group, ok := builder.PushHit(hit); ok {
			groups = append(groups, group)
		}
	}
	if group, ok := builder.Flush(); ok {
		groups = append(groups, group)
	}
	return groups
}

func hit(ch uint16, ts int64) Hit {
	return Hit{Identity: identity(ch), Channel: ch, Timestamp: ts}
}

func timestampsOf(group CoincidenceGroup) []int64 {
	out := make([]int64, len(group.Hits))
	for i, h := range group.Hits {
		out[i] = h.Timestamp
	}
	return out
}

func TestEventBuilderWindow(t *testing.T) {
	// A@100, B@150 and A@3050 with a 3000 ps window
	groups := buildAll(t, 3000, []Hit{hit(0, 100), hit(1, 150), hit(0, 3050)})

	require.Len(t, groups, 2)
	assert.Equal(t, []int64{100, 150}, timestampsOf(groups[0]))
	assert.Equal(t, int64(100), groups[0].Anchor())
	assert.Equal(t, []int64{3050}, timestampsOf(groups[1]))
}

func TestEventBuilderRepeatedChannelOpensNewGroup(t *testing.T) {
	groups := buildAll(t, 1_000_000, []Hit{hit(0, 100), hit(0, 200)})

	require.Len(t, groups, 2)
	assert.Equal(t, []int64{100}, timestampsOf(groups[0]))
	assert.Equal(t, []int64{200}, timestampsOf(groups[1]))
}

func TestEventBuilderWindowIsHalfOpen(t *testing.T) {
	groups := buildAll(t, 1000, []Hit{hit(0, 0), hit(1, 999), hit(2, 1000), hit(3, 1500)})

	require.Len(t, groups, 2)
	assert.Equal(t, []int64{0, 999}, timestampsOf(groups[0]))
	assert.Equal(t, []int64{1000, 1500}, timestampsOf(groups[1]))
}

func TestEventBuilderEmptyStream(t *testing.T) {
	assert.Empty(t, buildAll(t, 3000, nil))
}

func TestEventBuilderInvariants(t *testing.T) {
	const window = 250
	var hits []Hit
	for i := int64(0); i < 2000; i++ {
		hits = append(hits, hit(uint16(i%7), i*37))
	}
	groups := buildAll(t, window, hits)

	total := 0
	var lastAnchor int64 = -1
	for _, g := range groups {
		require.NotEmpty(t, g.Hits)
		assert.Greater(t, g.Anchor(), lastAnchor)
		lastAnchor = g.Anchor()

		seen := make(map[ChannelIdentity]bool)
		for _, h := range g.Hits {
			assert.Less(t, h.Timestamp-g.Anchor(), int64(window))
			assert.False(t, seen[h.Identity], "channel repeated in one group")
			seen[h.Identity] = true
		}
		total += len(g.Hits)
	}
	assert.Equal(t, len(hits), total, "every hit belongs to exactly one group")
}

func TestNewEventBuilderRejectsInvalidWindow(t *testing.T) {
	_, err := NewEventBuilder(0)
	assert.Error(t, err)
	_, err = NewEventBuilder(-5)
	assert.Error(t, err)
}
