package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sqlsink/internal/column"
)

// Duration is a time.Duration written as a Go duration string ("5s",
// "30m", "168h"). Bare numbers are seconds.
type Duration struct {
	time.Duration
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
		return nil
	case string:
		parsed, err := parseDuration(v)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}
	return fmt.Errorf("invalid duration %s", b)
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalYAML accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	parsed, err := parseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Duration = parsed
	return nil
}

// Length is a character column length: a positive number or "max".
type Length int

func parseLength(s string) (Length, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "max") {
		return Length(column.MaxLength), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid data length %q", s)
	}
	return Length(n), nil
}

// UnmarshalJSON accepts a number or "max".
func (l *Length) UnmarshalJSON(b []byte) error {
	parsed, err := parseLength(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalYAML accepts a number or "max".
func (l *Length) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: data_length must be a scalar", n.Line)
	}
	parsed, err := parseLength(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*l = parsed
	return nil
}
