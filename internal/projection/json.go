package projection

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"sqlsink/internal/column"
	"sqlsink/internal/logevent"
)

// jsonEncoder renders the whole event for the LogEvent column.
type jsonEncoder struct {
	opts    column.LogEventOptions
	utc     bool
	exclude map[string]struct{}
}

func (j jsonEncoder) encode(e *logevent.Event) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	field := func(name string) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeString(&buf, name)
		buf.WriteByte(':')
	}

	if !j.opts.ExcludeStandardColumns {
		ts := e.Timestamp
		if j.utc {
			ts = ts.UTC()
		}
		field("TimeStamp")
		writeString(&buf, ts.Format(time.RFC3339Nano))
		field("Level")
		writeString(&buf, e.Level.String())
		field("Message")
		writeString(&buf, e.RenderMessage())
		field("MessageTemplate")
		writeString(&buf, e.MessageTemplate)
		if e.Exception != nil {
			field("Exception")
			writeString(&buf, e.Exception.Error())
		}
	}

	field("Properties")
	buf.WriteByte('{')
	n := 0
	for _, p := range e.Properties {
		if j.opts.ExcludeAdditionalProperties {
			if _, skip := j.exclude[p.Name]; skip {
				continue
			}
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		writeString(&buf, p.Name)
		buf.WriteByte(':')
		writeValue(&buf, p.Value)
	}
	buf.WriteString("}}")
	return buf.String()
}

func writeValue(buf *bytes.Buffer, v logevent.Value) {
	switch c := v.(type) {
	case nil:
		buf.WriteString("null")
	case logevent.Scalar:
		writeScalar(buf, c)
	case logevent.Sequence:
		buf.WriteByte('[')
		for i, el := range c.Elements {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeValue(buf, el)
		}
		buf.WriteByte(']')
	case logevent.Structure:
		buf.WriteByte('{')
		n := 0
		if c.TypeTag != "" {
			writeString(buf, "_typeTag")
			buf.WriteByte(':')
			writeString(buf, c.TypeTag)
			n++
		}
		for _, p := range c.Properties {
			if n > 0 {
				buf.WriteByte(',')
			}
			n++
			writeString(buf, p.Name)
			buf.WriteByte(':')
			writeValue(buf, p.Value)
		}
		buf.WriteByte('}')
	case logevent.Dictionary:
		buf.WriteByte('{')
		for i, e := range c.Entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, e.Key.String())
			buf.WriteByte(':')
			writeValue(buf, e.Value)
		}
		buf.WriteByte('}')
	}
}

func writeScalar(buf *bytes.Buffer, s logevent.Scalar) {
	switch v := s.V.(type) {
	case nil:
		buf.WriteString("null")
		return
	case string:
		writeString(buf, v)
		return
	case time.Time:
		writeString(buf, v.Format(time.RFC3339Nano))
		return
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			writeString(buf, s.String())
			return
		}
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			writeString(buf, s.String())
			return
		}
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
	default:
		writeString(buf, s.String())
		return
	}
	b, err := json.Marshal(s.V)
	if err != nil {
		writeString(buf, s.String())
		return
	}
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
