package evb

import (
	"fmt"
	"math"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/exp/maps"
)

type FieldKind int

const (
	RawField FieldKind = iota
	DerivedField
)

func (k FieldKind) String() string {
	switch k {
	case RawField:
		return "raw"
	case DerivedField:
		return "derived"
	default:
		return "Unknown"
	}
}

// RawSource selects which part of a hit a raw field carries.
type RawSource int

const (
	SourceEnergy RawSource = iota
	SourceEnergyShort
	SourceTimestamp
	SourceEnergyCalibrated
)

func (s RawSource) value(hit *Hit) float64 {
	switch s {
	case SourceEnergy:
		return hit.Energy
	case SourceEnergyShort:
		return hit.EnergyShort
	case SourceTimestamp:
		// ns, the unit the downstream analysis works in
		return float64(hit.Timestamp) * 1.0e-3
	case SourceEnergyCalibrated:
		return hit.EnergyCalibrated
	}
	return math.NaN()
}

// FieldSpec is either a raw field filled from one hit, or a derived field
// computed from other fields of the same event.
type FieldSpec struct {
	Kind       FieldKind
	Name       string
	Source     RawSource
	Inputs     []string
	Expression string
	program    *vm.Program
}

// ChannelRole is what a mapped channel contributes to an event.
type ChannelRole struct {
	Component string
	Fields    []FieldSpec
}

// ChannelMapEntry is one line of the operator supplied channel map. Empty
// field names are not written; if all of them are empty the component name
// is used to build <Component>Energy, <Component>Short and <Component>Time.
type ChannelMapEntry struct {
	ChannelIdentity `yaml:",inline"`
	Component       string `yaml:"component" json:"component" db:"Component"`
	Energy          string `yaml:"energy" json:"energy" db:"EnergyField"`
	Short           string `yaml:"short" json:"short" db:"ShortField"`
	Time            string `yaml:"time" json:"time" db:"TimeField"`
	Calibrated      string `yaml:"calibrated" json:"calibrated" db:"CalibratedField"`
}

type DerivedFieldSpec struct {
	Name       string   `yaml:"name" json:"name"`
	Inputs     []string `yaml:"inputs" json:"inputs"`
	Expression string   `yaml:"expression" json:"expression"`
}

// ChannelMap is the immutable lookup from channel identity to role, together
// with the derived fields and the column layout of the event table.
type ChannelMap struct {
	roles   map[ChannelIdentity]*ChannelRole
	derived []FieldSpec
	columns []string
	index   map[string]int
}

var derivedFunctions = []expr.Option{
	expr.Function("atan", func(params ...any) (any, error) {
		return math.Atan(params[0].(float64)), nil
	}, new(func(float64) float64)),
	expr.Function("atan2", func(params ...any) (any, error) {
		return math.Atan2(params[0].(float64), params[1].(float64)), nil
	}, new(func(float64, float64) float64)),
	expr.Function("sqrt", func(params ...any) (any, error) {
		return math.Sqrt(params[0].(float64)), nil
	}, new(func(float64) float64)),
	expr.Function("pi", func(params ...any) (any, error) {
		return math.Pi, nil
	}, new(func() float64)),
}

func NewChannelMap(entries []ChannelMapEntry, derived []DerivedFieldSpec) (*ChannelMap, error) {
	m := &ChannelMap{
		roles: make(map[ChannelIdentity]*ChannelRole, len(entries)),
		index: make(map[string]int),
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b ChannelMapEntry) int {
		return a.ChannelIdentity.Compare(b.ChannelIdentity)
	})

	for _, entry := range sorted {
		if _, ok := m.roles[entry.ChannelIdentity]; ok {
			return nil, &ErrDuplicateChannel{
				Identity: entry.ChannelIdentity,
				First:    "channel map",
				Second:   "channel map",
			}
		}
		role := &ChannelRole{Component: entry.Component}
		names := [...]struct {
			name   string
			source RawSource
		}{
			{entry.Energy, SourceEnergy},
			{entry.Short, SourceEnergyShort},
			{entry.Time, SourceTimestamp},
			{entry.Calibrated, SourceEnergyCalibrated},
		}
		if entry.Energy == "" && entry.Short == "" && entry.Time == "" && entry.Calibrated == "" {
			if entry.Component == "" {
				return nil, fmt.Errorf("channel %v: no component and no field names", entry.ChannelIdentity)
			}
			names[0].name = entry.Component + "Energy"
			names[1].name = entry.Component + "Short"
			names[2].name = entry.Component + "Time"
		}
		for _, n := range names {
			if n.name == "" {
				continue
			}
			if err := m.addColumn(n.name); err != nil {
				return nil, fmt.Errorf("channel %v: %w", entry.ChannelIdentity, err)
			}
			role.Fields = append(role.Fields, FieldSpec{Kind: RawField, Name: n.name, Source: n.source})
		}
		m.roles[entry.ChannelIdentity] = role
	}

	for _, d := range derived {
		spec, err := m.compileDerived(d)
		if err != nil {
			return nil, fmt.Errorf("derived field %q: %w", d.Name, err)
		}
		if err := m.addColumn(d.Name); err != nil {
			return nil, err
		}
		m.derived = append(m.derived, spec)
	}
	return m, nil
}

func (m *ChannelMap) addColumn(name string) error {
	if _, ok := m.index[name]; ok {
		return fmt.Errorf("field %q is assigned twice", name)
	}
	m.index[name] = len(m.columns)
	m.columns = append(m.columns, name)
	return nil
}

// compileDerived only allows the declared inputs in the expression, and
// each input has to be a column defined before this field.
func (m *ChannelMap) compileDerived(d DerivedFieldSpec) (FieldSpec, error) {
	if d.Name == "" {
		return FieldSpec{}, fmt.Errorf("missing name")
	}
	if len(d.Inputs) == 0 {
		return FieldSpec{}, fmt.Errorf("no inputs declared")
	}
	env := make(map[string]any, len(d.Inputs))
	for _, input := range d.Inputs {
		if _, ok := m.index[input]; !ok {
			return FieldSpec{}, fmt.Errorf("unknown input field %q", input)
		}
		env[input] = float64(0)
	}
	options := append([]expr.Option{expr.Env(env), expr.AsFloat64()}, derivedFunctions...)
	program, err := expr.Compile(d.Expression, options...)
	if err != nil {
		return FieldSpec{}, err
	}
	return FieldSpec{
		Kind:       DerivedField,
		Name:       d.Name,
		Inputs:     slices.Clone(d.Inputs),
		Expression: d.Expression,
		program:    program,
	}, nil
}

func (m *ChannelMap) Role(id ChannelIdentity) (*ChannelRole, bool) {
	role, ok := m.roles[id]
	return role, ok
}

// Columns returns the event table layout: raw fields in identity order,
// then derived fields in declaration order.
func (m *ChannelMap) Columns() []string {
	return m.columns
}

func (m *ChannelMap) ColumnIndex(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

func (m *ChannelMap) Derived() []FieldSpec {
	return m.derived
}

// Identities returns the mapped channels in merge tie-break order.
func (m *ChannelMap) Identities() []ChannelIdentity {
	ids := maps.Keys(m.roles)
	slices.SortFunc(ids, ChannelIdentity.Compare)
	return ids
}

func (f *FieldSpec) evaluate(env map[string]any) (float64, error) {
	out, err := expr.Run(f.program, env)
	if err != nil {
		return 0, err
	}
	return out.(float64), nil
}
