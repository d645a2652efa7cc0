// Package logevent defines the structured log event consumed by the sink.
//
// An Event carries a timestamp, a level, a message template, an optional
// error and an ordered list of properties. Property values form a small
// closed tree: scalars, sequences, structures and dictionaries. Everything
// downstream (projection, encoders, writers) works from this model only.
package logevent

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of an event.
type Level int

const (
	Verbose Level = iota
	Debug
	Information
	Warning
	Error
	Fatal
)

var levelNames = [...]string{"Verbose", "Debug", "Information", "Warning", "Error", "Fatal"}

// String returns the full level name, e.g. "Information".
func (l Level) String() string {
	if l < Verbose || l > Fatal {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts full level names and the three-letter abbreviations
// used by compact JSON logs (VRB, DBG, INF, WRN, ERR, FTL), case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "vrb", "trace":
		return Verbose, nil
	case "debug", "dbg":
		return Debug, nil
	case "information", "info", "inf", "":
		return Information, nil
	case "warning", "warn", "wrn":
		return Warning, nil
	case "error", "err":
		return Error, nil
	case "fatal", "ftl", "critical":
		return Fatal, nil
	}
	return Information, fmt.Errorf("logevent: unknown level %q", s)
}

// Property is a named value attached to an event or a structure.
type Property struct {
	Name  string
	Value Value
}

// Event is a single structured log record.
type Event struct {
	Timestamp       time.Time
	Level           Level
	MessageTemplate string
	Exception       error
	Properties      []Property
}

// Property returns the top-level property with the given name.
func (e *Event) Property(name string) (Value, bool) {
	return lookup(e.Properties, name)
}

// RenderMessage renders the message template against the event properties.
func (e *Event) RenderMessage() string {
	return Render(e.MessageTemplate, e.Properties)
}

// ExceptionText returns the error text, or "" when the event has no error.
func (e *Event) ExceptionText() string {
	if e.Exception == nil {
		return ""
	}
	return e.Exception.Error()
}

// Resolve walks a dotted path through nested structures and dictionaries.
// The first segment is looked up among the event's top-level properties.
func (e *Event) Resolve(segments []string) (Value, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	v, ok := e.Property(segments[0])
	for _, seg := range segments[1:] {
		if !ok {
			return nil, false
		}
		switch c := v.(type) {
		case Structure:
			v, ok = lookup(c.Properties, seg)
		case Dictionary:
			v, ok = c.Get(seg)
		default:
			return nil, false
		}
	}
	return v, ok
}

func lookup(props []Property, name string) (Value, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}
