// Package column defines the table's column model: which standard event
// fields are stored, the user-defined additional columns, their SQL types,
// and the primary key / clustered columnstore choice.
//
// A Model is assembled with a Builder, which validates every change as it
// is made, and is immutable once built. Models are shared by the DDL
// generator, the projector and the writers without locking.
package column

import (
	"strings"

	"sqlsink/internal/sqltype"
)

// StandardField is a fixed semantic role an event may contribute a column for.
type StandardField int

const (
	ID StandardField = iota + 1
	Message
	MessageTemplate
	Level
	TimeStamp
	Exception
	Properties
	LogEvent
)

// AllStandardFields lists every standard field in canonical order.
var AllStandardFields = []StandardField{ID, Message, MessageTemplate, Level, TimeStamp, Exception, Properties, LogEvent}

// DefaultStore is the standard field set used when none is given.
var DefaultStore = []StandardField{ID, Message, MessageTemplate, Level, TimeStamp, Exception, Properties}

var fieldNames = map[StandardField]string{
	ID:              "Id",
	Message:         "Message",
	MessageTemplate: "MessageTemplate",
	Level:           "Level",
	TimeStamp:       "TimeStamp",
	Exception:       "Exception",
	Properties:      "Properties",
	LogEvent:        "LogEvent",
}

// String returns the field's default column name.
func (f StandardField) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return "None"
}

// Valid reports whether f is a known standard field.
func (f StandardField) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

// ParseStandardField maps a field name (case-insensitive) to its tag.
func ParseStandardField(s string) (StandardField, bool) {
	s = strings.TrimSpace(s)
	for f, n := range fieldNames {
		if strings.EqualFold(n, s) {
			return f, true
		}
	}
	return 0, false
}

// allowedTypes lists the SQL types each standard field can be stored as.
var allowedTypes = map[StandardField][]sqltype.Type{
	ID:              {sqltype.Int, sqltype.BigInt},
	Message:         {sqltype.NVarChar, sqltype.VarChar},
	MessageTemplate: {sqltype.NVarChar, sqltype.VarChar},
	Level:           {sqltype.NVarChar, sqltype.VarChar, sqltype.TinyInt},
	TimeStamp:       {sqltype.DateTime, sqltype.DateTime2, sqltype.DateTimeOffset, sqltype.SmallDateTime},
	Exception:       {sqltype.NVarChar, sqltype.VarChar},
	Properties:      {sqltype.NVarChar, sqltype.VarChar, sqltype.Xml},
	LogEvent:        {sqltype.NVarChar, sqltype.VarChar},
}

func typeAllowed(f StandardField, t sqltype.Type) bool {
	for _, a := range allowedTypes[f] {
		if a == t {
			return true
		}
	}
	return false
}

// FieldOptions holds the sub-options of one standard field. The concrete
// type is selected by the field: LevelOptions, TimeStampOptions,
// PropertiesOptions or LogEventOptions. Fields without sub-options carry nil.
type FieldOptions interface {
	field() StandardField
}

// LevelOptions configures the Level column.
type LevelOptions struct {
	// StoreAsEnum stores the numeric level in a TINYINT column.
	StoreAsEnum bool
}

// TimeStampOptions configures the TimeStamp column.
type TimeStampOptions struct {
	// ConvertToUTC stores timestamps converted to UTC.
	ConvertToUTC bool
}

// PropertiesOptions configures the XML encoding of the Properties column.
// Empty element names fall back to the defaults.
type PropertiesOptions struct {
	RootElementName       string
	PropertyElementName   string
	ItemElementName       string
	DictionaryElementName string
	SequenceElementName   string
	StructureElementName  string

	OmitDictionaryContainerElement bool
	OmitSequenceContainerElement   bool
	OmitStructureContainerElement  bool
	OmitElementIfEmpty             bool

	// UsePropertyKeyAsElementName writes <Key>v</Key> instead of
	// <property key='Key'>v</property>.
	UsePropertyKeyAsElementName bool

	// ExcludeAdditionalProperties leaves out properties that already have
	// their own additional column.
	ExcludeAdditionalProperties bool

	// Filter, when set, keeps only properties for which it returns true.
	Filter func(name string) bool
}

// LogEventOptions configures the JSON encoding of the LogEvent column.
type LogEventOptions struct {
	// ExcludeAdditionalProperties leaves out properties that already have
	// their own additional column.
	ExcludeAdditionalProperties bool

	// ExcludeStandardColumns writes only the Properties object.
	ExcludeStandardColumns bool
}

func (LevelOptions) field() StandardField      { return Level }
func (TimeStampOptions) field() StandardField  { return TimeStamp }
func (PropertiesOptions) field() StandardField { return Properties }
func (LogEventOptions) field() StandardField   { return LogEvent }

// Element name defaults for the Properties XML encoding.
const (
	DefaultRootElementName       = "properties"
	DefaultPropertyElementName   = "property"
	DefaultItemElementName       = "item"
	DefaultDictionaryElementName = "dictionary"
	DefaultSequenceElementName   = "sequence"
	DefaultStructureElementName  = "structure"
)

// WithDefaults returns o with empty element names replaced by the defaults.
func (o PropertiesOptions) WithDefaults() PropertiesOptions {
	fill := func(s *string, def string) {
		if strings.TrimSpace(*s) == "" {
			*s = def
		}
	}
	fill(&o.RootElementName, DefaultRootElementName)
	fill(&o.PropertyElementName, DefaultPropertyElementName)
	fill(&o.ItemElementName, DefaultItemElementName)
	fill(&o.DictionaryElementName, DefaultDictionaryElementName)
	fill(&o.SequenceElementName, DefaultSequenceElementName)
	fill(&o.StructureElementName, DefaultStructureElementName)
	return o
}
