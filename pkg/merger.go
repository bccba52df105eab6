package evb

import (
	"container/heap"
	"io"
)

// HitStream is a time ordered source of hits, such as a ChannelFile.
type HitStream interface {
	Peek() (timestamp int64, ok bool, err error)
	Next() (Hit, error)
}

type MergeSource struct {
	Identity ChannelIdentity
	Stream   HitStream
}

type cursor struct {
	identity  ChannelIdentity
	stream    HitStream
	timestamp int64
}

// cursorHeap keeps the cursor with the earliest pending hit on top. Equal
// timestamps are ordered by channel identity so the merge is reproducible.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp < h[j].timestamp
	}
	return h[i].identity.Compare(h[j].identity) < 0
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Merger performs the k-way time merge of the event channels. It holds one
// pending hit per channel and never more.
type Merger struct {
	cursors cursorHeap
	merged  int64
}

func NewMerger(sources []MergeSource) (*Merger, error) {
	m := &Merger{cursors: make(cursorHeap, 0, len(sources))}
	for _, s := range sources {
		timestamp, ok, err := s.Stream.Peek()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		m.cursors = append(m.cursors, &cursor{identity: s.Identity, stream: s.Stream, timestamp: timestamp})
	}
	heap.Init(&m.cursors)
	return m, nil
}

// Next returns the globally earliest unconsumed hit, or io.EOF once every
// channel is exhausted.
func (m *Merger) Next() (Hit, error) {
	if len(m.cursors) == 0 {
		return Hit{}, io.EOF
	}
	top := m.cursors[0]
	hit, err := top.stream.Next()
	if err != nil {
		return Hit{}, err
	}
	timestamp, ok, err := top.stream.Peek()
	if err != nil {
		return Hit{}, err
	}
	if ok {
		top.timestamp = timestamp
		heap.Fix(&m.cursors, 0)
	} else {
		heap.Pop(&m.cursors)
	}
	m.merged++
	return hit, nil
}

// Active is the number of channels that still have hits.
func (m *Merger) Active() int { return len(m.cursors) }

func (m *Merger) Merged() int64 { return m.merged }
