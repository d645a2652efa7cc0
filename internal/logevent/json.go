package logevent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DecodeJSON parses one compact JSON log event.
//
// Reserved keys: "@t" timestamp (RFC 3339), "@mt" message template, "@m"
// pre-rendered message (used as a literal template when "@mt" is absent),
// "@l" level (defaults to Information), "@x" exception text. "@i" and "@r"
// are ignored. Any other key becomes a property, in document order; a
// leading "@@" unescapes to "@".
func DecodeJSON(data []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("logevent: decode: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("logevent: decode: event must be a JSON object")
	}

	ev := &Event{Level: Information}
	var (
		rendered    string
		hasTemplate bool
	)

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "@t":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("logevent: decode @t: %w", err)
			}
			ev.Timestamp = ts
		case "@mt":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			ev.MessageTemplate = s
			hasTemplate = true
		case "@m":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			rendered = s
		case "@l":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			lvl, err := ParseLevel(s)
			if err != nil {
				return nil, err
			}
			ev.Level = lvl
		case "@x":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			if s != "" {
				ev.Exception = errors.New(s)
			}
		case "@i", "@r":
			if _, err := readValue(dec); err != nil {
				return nil, err
			}
		default:
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(key, "@@") {
				key = key[1:]
			}
			ev.Properties = append(ev.Properties, Property{Name: key, Value: v})
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("logevent: decode: %w", err)
	}
	if !hasTemplate {
		ev.MessageTemplate = EscapeTemplate(rendered)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return ev, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("logevent: decode key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("logevent: decode: unexpected token %v", tok)
	}
	return key, nil
}

func readString(dec *json.Decoder, key string) (string, error) {
	v, err := readValue(dec)
	if err != nil {
		return "", err
	}
	s, ok := v.(Scalar)
	if !ok {
		return "", fmt.Errorf("logevent: decode %s: expected a scalar", key)
	}
	if str, ok := s.V.(string); ok {
		return str, nil
	}
	return s.String(), nil
}

// readValue reads the next JSON value, preserving object key order.
func readValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("logevent: decode value: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var st Structure
			for dec.More() {
				key, err := readKey(dec)
				if err != nil {
					return nil, err
				}
				v, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				if key == "$type" {
					if s, ok := v.(Scalar); ok {
						st.TypeTag = s.String()
						continue
					}
				}
				st.Properties = append(st.Properties, Property{Name: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("logevent: decode object: %w", err)
			}
			return st, nil
		case '[':
			var seq Sequence
			for dec.More() {
				v, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				seq.Elements = append(seq.Elements, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("logevent: decode array: %w", err)
			}
			return seq, nil
		}
		return nil, fmt.Errorf("logevent: decode: unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Scalar{V: i}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return Scalar{V: t.String()}, nil
		}
		return Scalar{V: f}, nil
	default:
		// string, bool or nil
		return Scalar{V: t}, nil
	}
}
