package column

import (
	"errors"
	"fmt"
	"strings"

	"sqlsink/internal/sqltype"
)

// MaxLength marks a character column as (MAX).
const MaxLength = sqltype.MaxLength

// ErrConfiguration is matched by every error the Builder returns.
var ErrConfiguration = errors.New("column: invalid configuration")

// ConfigError describes an invalid column model change.
type ConfigError struct {
	Column string
	Msg    string
}

func (e *ConfigError) Error() string {
	if e.Column == "" {
		return "column: " + e.Msg
	}
	return fmt.Sprintf("column %q: %s", e.Column, e.Msg)
}

// Is makes errors.Is(err, ErrConfiguration) hold for any ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

func configErr(col, format string, args ...any) error {
	return &ConfigError{Column: col, Msg: fmt.Sprintf(format, args...)}
}

// ColumnSpec is the definition of one table column.
type ColumnSpec struct {
	Name      string
	Type      sqltype.Type
	AllowNull bool
	// Length is the declared length of character columns. 0 means unset
	// and MaxLength renders (MAX).
	Length int
	// Precision and Scale apply to DECIMAL; zero means DECIMAL(38,10).
	Precision int
	Scale     int
	Indexed   bool

	// Field binds the column to a standard event field. Zero for
	// additional columns.
	Field StandardField

	// PropertyName is the event property an additional column reads.
	// Dots walk nested structures unless LiteralPropertyName is set or the
	// name starts with '#' or '@'.
	PropertyName        string
	LiteralPropertyName bool

	// Options carries the field's sub-options, if it has any.
	Options FieldOptions
}

// IsStandard reports whether the column implements a standard field.
func (c ColumnSpec) IsStandard() bool { return c.Field != 0 }

// IsIdentity reports whether the column is the auto-increment Id column.
func (c ColumnSpec) IsIdentity() bool { return c.Field == ID }

// PropertyPath returns the segments used to look up an additional column's
// value in an event.
func (c ColumnSpec) PropertyPath() []string {
	name := c.PropertyName
	if name == "" {
		name = c.Name
	}
	if strings.HasPrefix(name, "#") || strings.HasPrefix(name, "@") {
		return []string{name[1:]}
	}
	if c.LiteralPropertyName || !strings.Contains(name, ".") {
		return []string{name}
	}
	return strings.Split(name, ".")
}

// DefaultSpec returns the default definition of a standard field's column.
func DefaultSpec(f StandardField) ColumnSpec {
	spec := ColumnSpec{
		Name:      f.String(),
		Field:     f,
		Type:      sqltype.NVarChar,
		Length:    MaxLength,
		AllowNull: true,
	}
	switch f {
	case ID:
		spec.Type = sqltype.Int
		spec.Length = 0
		spec.AllowNull = false
	case Level:
		spec.Length = 128
		spec.Options = LevelOptions{}
	case TimeStamp:
		spec.Type = sqltype.DateTime
		spec.Length = 0
		spec.AllowNull = false
		spec.Options = TimeStampOptions{}
	case Properties:
		spec.Options = PropertiesOptions{}
	case LogEvent:
		spec.Options = LogEventOptions{}
	}
	return spec
}

// validate checks the rules that apply to a single column in isolation.
func validate(c ColumnSpec) error {
	if strings.TrimSpace(c.Name) == "" {
		return configErr("", "column name must not be empty")
	}
	if !c.Type.Valid() {
		return configErr(c.Name, "unsupported SQL type")
	}
	if err := validateLength(c); err != nil {
		return err
	}
	if c.Type == sqltype.Decimal && c.Precision != 0 {
		if c.Precision < 1 || c.Precision > 38 {
			return configErr(c.Name, "DECIMAL precision %d out of range 1..38", c.Precision)
		}
		if c.Scale < 0 || c.Scale > c.Precision {
			return configErr(c.Name, "DECIMAL scale %d out of range 0..%d", c.Scale, c.Precision)
		}
	}
	if c.Indexed && (c.Type == sqltype.Xml || c.Length == MaxLength) {
		return configErr(c.Name, "%s columns cannot be indexed", typeLabel(c))
	}
	if !c.IsStandard() {
		if c.Options != nil {
			return configErr(c.Name, "additional columns take no field options")
		}
		return nil
	}

	if c.Options != nil && c.Options.field() != c.Field {
		return configErr(c.Name, "%T does not apply to the %s field", c.Options, c.Field)
	}
	if !typeAllowed(c.Field, c.Type) {
		return configErr(c.Name, "the %s field cannot be stored as %s", c.Field, c.Type)
	}
	switch c.Field {
	case ID:
		if c.AllowNull {
			return configErr(c.Name, "the identity column must not allow nulls")
		}
	case Level:
		opts, _ := c.Options.(LevelOptions)
		if opts.StoreAsEnum != (c.Type == sqltype.TinyInt) {
			return configErr(c.Name, "TINYINT is required exactly when the level is stored as an enum")
		}
	}
	return nil
}

func validateLength(c ColumnSpec) error {
	if !sqltype.RequiresLength(c.Type) {
		return nil
	}
	switch {
	case c.Length == 0:
		return configErr(c.Name, "type %s requires a non-zero length", c.Type)
	case c.Length == MaxLength:
		if !sqltype.AllowsMax(c.Type) {
			return configErr(c.Name, "type %s does not support MAX length", c.Type)
		}
	case c.Length < 0:
		return configErr(c.Name, "invalid length %d", c.Length)
	case c.Length > sqltype.MaxExplicitLength(c.Type):
		return configErr(c.Name, "length %d exceeds %d for %s", c.Length, sqltype.MaxExplicitLength(c.Type), c.Type)
	}
	return nil
}

func typeLabel(c ColumnSpec) string {
	if c.Length == MaxLength {
		return c.Type.String() + "(MAX)"
	}
	return c.Type.String()
}
