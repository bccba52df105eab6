package evb

import (
	"fmt"
	"math"
)

// EventRecord is one built event: a value per named field, with fields not
// produced by the event left absent.
type EventRecord struct {
	Anchor  int64
	values  []float64
	present []bool
	columns *ChannelMap
}

func (r *EventRecord) Get(name string) (float64, bool) {
	i, ok := r.columns.ColumnIndex(name)
	if !ok || !r.present[i] {
		return 0, false
	}
	return r.values[i], true
}

// Materializer turns coincidence groups into event records using the
// channel map.
type Materializer struct {
	channelMap *ChannelMap
	env        map[string]any
}

func NewMaterializer(channelMap *ChannelMap) *Materializer {
	return &Materializer{
		channelMap: channelMap,
		env:        make(map[string]any),
	}
}

func (m *Materializer) Materialize(group CoincidenceGroup) (EventRecord, error) {
	n := len(m.channelMap.Columns())
	record := EventRecord{
		Anchor:  group.Anchor(),
		values:  make([]float64, n),
		present: make([]bool, n),
		columns: m.channelMap,
	}

	for i := range group.Hits {
		hit := &group.Hits[i]
		role, ok := m.channelMap.Role(hit.Identity)
		if !ok {
			return EventRecord{}, &ErrInconsistentMapping{Identity: hit.Identity}
		}
		for _, field := range role.Fields {
			column, _ := m.channelMap.ColumnIndex(field.Name)
			record.values[column] = field.Source.value(hit)
			record.present[column] = true
		}
	}

	for i := range m.channelMap.derived {
		field := &m.channelMap.derived[i]
		clear(m.env)
		complete := true
		for _, input := range field.Inputs {
			column, _ := m.channelMap.ColumnIndex(input)
			if !record.present[column] {
				complete = false
				break
			}
			m.env[input] = record.values[column]
		}
		if !complete {
			continue
		}
		value, err := field.evaluate(m.env)
		if err != nil {
			return EventRecord{}, fmt.Errorf("evaluating %q: %w", field.Name, err)
		}
		if math.IsNaN(value) {
			continue
		}
		column, _ := m.channelMap.ColumnIndex(field.Name)
		record.values[column] = value
		record.present[column] = true
	}
	return record, nil
}
