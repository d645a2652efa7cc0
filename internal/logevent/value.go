package logevent

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Value is a property value. The set of implementations is closed:
// Scalar, Sequence, Structure and Dictionary.
type Value interface {
	isValue()
}

// Scalar wraps a primitive value (string, number, bool, time, nil, ...).
type Scalar struct {
	V any
}

// Sequence is an ordered list of values.
type Sequence struct {
	Elements []Value
}

// Structure is an object with named, ordered properties and an optional
// type tag (the name of the type it was captured from).
type Structure struct {
	TypeTag    string
	Properties []Property
}

// DictionaryEntry is one key/value pair of a Dictionary.
type DictionaryEntry struct {
	Key   Scalar
	Value Value
}

// Dictionary is an ordered map keyed by scalars.
type Dictionary struct {
	Entries []DictionaryEntry
}

func (Scalar) isValue()     {}
func (Sequence) isValue()   {}
func (Structure) isValue()  {}
func (Dictionary) isValue() {}

// Get returns the entry whose key renders as name.
func (d Dictionary) Get(name string) (Value, bool) {
	for _, e := range d.Entries {
		if e.Key.String() == name {
			return e.Value, true
		}
	}
	return nil, false
}

// String renders the scalar without quoting.
func (s Scalar) String() string {
	switch v := s.V.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// Format renders any value as display text, the way it appears inside a
// rendered message.
func Format(v Value) string {
	var sb strings.Builder
	format(&sb, v)
	return sb.String()
}

func format(sb *strings.Builder, v Value) {
	switch c := v.(type) {
	case nil:
		sb.WriteString("null")
	case Scalar:
		if c.V == nil {
			sb.WriteString("null")
			return
		}
		sb.WriteString(c.String())
	case Sequence:
		sb.WriteByte('[')
		for i, el := range c.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, el)
		}
		sb.WriteByte(']')
	case Structure:
		if c.TypeTag != "" {
			sb.WriteString(c.TypeTag)
			sb.WriteByte(' ')
		}
		sb.WriteString("{ ")
		for i, p := range c.Properties {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
			sb.WriteString(": ")
			format(sb, p.Value)
		}
		sb.WriteString(" }")
	case Dictionary:
		sb.WriteByte('[')
		for i, e := range c.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(")
			sb.WriteString(strconv.Quote(e.Key.String()))
			sb.WriteString(": ")
			format(sb, e.Value)
			sb.WriteString(")")
		}
		sb.WriteByte(']')
	}
}

// FromGo converts an arbitrary Go value into a Value. Maps with string keys
// become structures (keys sorted), other maps become dictionaries, slices
// and arrays become sequences, and everything else is a scalar. A Value is
// returned unchanged.
func FromGo(v any) Value {
	if v == nil {
		return Scalar{}
	}
	if val, ok := v.(Value); ok {
		return val
	}
	switch t := v.(type) {
	case []byte, time.Time, error, fmt.Stringer:
		return Scalar{V: t}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make([]Property, 0, len(keys))
		for _, k := range keys {
			props = append(props, Property{Name: k, Value: FromGo(t[k])})
		}
		return Structure{Properties: props}
	case []any:
		els := make([]Value, 0, len(t))
		for _, x := range t {
			els = append(els, FromGo(x))
		}
		return Sequence{Elements: els}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		els := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			els = append(els, FromGo(rv.Index(i).Interface()))
		}
		return Sequence{Elements: els}
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		entries := make([]DictionaryEntry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, DictionaryEntry{
				Key:   Scalar{V: k.Interface()},
				Value: FromGo(rv.MapIndex(k).Interface()),
			})
		}
		return Dictionary{Entries: entries}
	}
	return Scalar{V: v}
}

// Props builds an ordered property list from alternating name/value pairs.
// Values go through FromGo. A trailing name without a value is ignored.
func Props(kv ...any) []Property {
	out := make([]Property, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			name = fmt.Sprint(kv[i])
		}
		out = append(out, Property{Name: name, Value: FromGo(kv[i+1])})
	}
	return out
}
