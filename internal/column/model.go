package column

import "strings"

// Model is a validated, read-only column model. It is safe for concurrent use.
type Model struct {
	columns     []ColumnSpec
	nStandard   int
	byField     map[StandardField]int
	byName      map[string]int
	primaryKey  string
	columnstore bool
	// options keeps every standard field's spec, stored or not, so
	// sub-options stay available to encoders that mirror other fields.
	options map[StandardField]ColumnSpec
}

// Resolve returns the column implementing f, if f is stored.
func (m *Model) Resolve(f StandardField) (ColumnSpec, bool) {
	i, ok := m.byField[f]
	if !ok {
		return ColumnSpec{}, false
	}
	return m.columns[i], true
}

// Stores reports whether f is materialized as a column.
func (m *Model) Stores(f StandardField) bool {
	_, ok := m.byField[f]
	return ok
}

// AllColumns returns every column in table order: standard columns in store
// order followed by additional columns.
func (m *Model) AllColumns() []ColumnSpec {
	return append([]ColumnSpec(nil), m.columns...)
}

// Standard returns the stored standard columns.
func (m *Model) Standard() []ColumnSpec {
	return append([]ColumnSpec(nil), m.columns[:m.nStandard]...)
}

// Additional returns the user-defined columns.
func (m *Model) Additional() []ColumnSpec {
	return append([]ColumnSpec(nil), m.columns[m.nStandard:]...)
}

// Column looks a column up by name, case-insensitively.
func (m *Model) Column(name string) (ColumnSpec, bool) {
	i, ok := m.byName[strings.ToLower(name)]
	if !ok {
		return ColumnSpec{}, false
	}
	return m.columns[i], true
}

// PrimaryKey returns the primary key column, if one is designated.
func (m *Model) PrimaryKey() (ColumnSpec, bool) {
	if m.primaryKey == "" {
		return ColumnSpec{}, false
	}
	return m.Column(m.primaryKey)
}

// Columnstore reports whether the table gets a clustered columnstore index.
func (m *Model) Columnstore() bool { return m.columnstore }

// Identity returns the auto-increment column, if Id is stored.
func (m *Model) Identity() (ColumnSpec, bool) { return m.Resolve(ID) }

// LevelOptions returns the Level field's sub-options.
func (m *Model) LevelOptions() LevelOptions {
	o, _ := m.options[Level].Options.(LevelOptions)
	return o
}

// TimeStampOptions returns the TimeStamp field's sub-options.
func (m *Model) TimeStampOptions() TimeStampOptions {
	o, _ := m.options[TimeStamp].Options.(TimeStampOptions)
	return o
}

// PropertiesOptions returns the Properties field's sub-options with element
// name defaults applied.
func (m *Model) PropertiesOptions() PropertiesOptions {
	o, _ := m.options[Properties].Options.(PropertiesOptions)
	return o.WithDefaults()
}

// LogEventOptions returns the LogEvent field's sub-options.
func (m *Model) LogEventOptions() LogEventOptions {
	o, _ := m.options[LogEvent].Options.(LogEventOptions)
	return o
}

// AdditionalPropertyNames returns the top-level event property names read
// whole by additional columns. A column bound to a nested path such as
// Address.City does not claim Address, whose other members have no column.
func (m *Model) AdditionalPropertyNames() map[string]struct{} {
	out := make(map[string]struct{}, len(m.columns)-m.nStandard)
	for _, c := range m.columns[m.nStandard:] {
		if path := c.PropertyPath(); len(path) == 1 {
			out[path[0]] = struct{}{}
		}
	}
	return out
}
