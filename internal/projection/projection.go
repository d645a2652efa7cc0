// Package projection turns log events into rows of column values for a
// column model.
//
// Projection is pure: the same event and model always yield the same row,
// and a Projector holds no mutable state, so it can be shared across
// goroutines. Values that cannot be converted to a column's native type are
// stored in their string form rather than failing the row.
package projection

import (
	"errors"

	"sqlsink/internal/column"
	"sqlsink/internal/logevent"
)

// ColumnValue is one column of a projected row.
type ColumnValue struct {
	Name  string
	Value any
}

// Row holds one value per model column, in table order. The identity column
// is included with a nil value.
type Row []ColumnValue

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for _, cv := range r {
		if cv.Name == name {
			return cv.Value, true
		}
	}
	return nil, false
}

// Projector projects events for one model.
type Projector struct {
	columns []column.ColumnSpec
	level   column.LevelOptions
	ts      column.TimeStampOptions
	xml     xmlEncoder
	json    jsonEncoder
}

// New returns a Projector for m.
func New(m *column.Model) (*Projector, error) {
	if m == nil {
		return nil, errors.New("projection: nil column model")
	}
	bound := m.AdditionalPropertyNames()
	props := m.PropertiesOptions()

	p := &Projector{
		columns: m.AllColumns(),
		level:   m.LevelOptions(),
		ts:      m.TimeStampOptions(),
		xml:     xmlEncoder{opts: props},
		json:    jsonEncoder{opts: m.LogEventOptions(), utc: m.TimeStampOptions().ConvertToUTC, exclude: bound},
	}
	if props.ExcludeAdditionalProperties {
		p.xml.exclude = bound
	}
	return p, nil
}

// Project projects e for the model m.
func Project(e *logevent.Event, m *column.Model) (Row, error) {
	p, err := New(m)
	if err != nil {
		return nil, err
	}
	return p.Project(e), nil
}

// Project converts e into a row.
func (p *Projector) Project(e *logevent.Event) Row {
	row := make(Row, 0, len(p.columns))
	for _, c := range p.columns {
		var v any
		if c.IsStandard() {
			v = p.standard(e, c)
		} else {
			v = p.additional(e, c)
		}
		row = append(row, ColumnValue{Name: c.Name, Value: v})
	}
	return row
}

func (p *Projector) standard(e *logevent.Event, c column.ColumnSpec) any {
	switch c.Field {
	case column.ID:
		return nil
	case column.Message:
		return finish(e.RenderMessage(), c)
	case column.MessageTemplate:
		return finish(e.MessageTemplate, c)
	case column.Level:
		if p.level.StoreAsEnum {
			return uint8(e.Level)
		}
		return finish(e.Level.String(), c)
	case column.TimeStamp:
		if p.ts.ConvertToUTC {
			return e.Timestamp.UTC()
		}
		return e.Timestamp
	case column.Exception:
		if e.Exception == nil {
			return nullValue(c)
		}
		return finish(e.Exception.Error(), c)
	case column.Properties:
		return finish(p.xml.encode(e.Properties), c)
	case column.LogEvent:
		return finish(p.json.encode(e), c)
	}
	return nullValue(c)
}

func (p *Projector) additional(e *logevent.Event, c column.ColumnSpec) any {
	v, ok := e.Resolve(c.PropertyPath())
	if !ok {
		return nullValue(c)
	}
	return coerceValue(v, c)
}
