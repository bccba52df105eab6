package evb

import "fmt"

// CoincidenceGroup holds the hits of one event in merge order. The first
// hit is the anchor.
type CoincidenceGroup struct {
	Hits []Hit
}

func (g CoincidenceGroup) Anchor() int64 {
	return g.Hits[0].Timestamp
}

// EventBuilder groups a time ordered hit stream into coincidence groups.
// Only the group being built is kept in memory.
type EventBuilder struct {
	window  int64
	event   []Hit
	present map[ChannelIdentity]struct{}
}

func NewEventBuilder(window int64) (*EventBuilder, error) {
	if window <= 0 {
		return nil, fmt.Errorf("coincidence window must be positive, got %d", window)
	}
	return &EventBuilder{
		window:  window,
		present: make(map[ChannelIdentity]struct{}),
	}, nil
}

// PushHit adds the next hit of the merged stream. When the hit cannot join
// the open group, because it falls outside [anchor, anchor+window) or its
// channel already fired in the group, the open group is returned and a new
// one is anchored at the hit.
func (b *EventBuilder) PushHit(hit Hit) (CoincidenceGroup, bool) {
	if len(b.event) == 0 {
		b.open(hit)
		return CoincidenceGroup{}, false
	}
	_, repeated := b.present[hit.Identity]
	if hit.Timestamp-b.event[0].Timestamp < b.window && !repeated {
		b.event = append(b.event, hit)
		b.present[hit.Identity] = struct{}{}
		return CoincidenceGroup{}, false
	}
	ready := CoincidenceGroup{Hits: b.event}
	b.event = nil
	b.open(hit)
	return ready, true
}

// Flush returns the open group at the end of the stream, if any.
func (b *EventBuilder) Flush() (CoincidenceGroup, bool) {
	if len(b.event) == 0 {
		return CoincidenceGroup{}, false
	}
	ready := CoincidenceGroup{Hits: b.event}
	b.event = nil
	clear(b.present)
	return ready, true
}

func (b *EventBuilder) open(hit Hit) {
	clear(b.present)
	b.event = append(make([]Hit, 0, 8), hit)
	b.present[hit.Identity] = struct{}{}
}
