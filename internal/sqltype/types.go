// Package sqltype is the catalog of SQL Server column types the sink can
// create and write.
//
// The set is closed on purpose: TryParse rejects type names SQL Server
// knows but the sink cannot project into (TEXT, IMAGE, VARBINARY, ...)
// instead of silently falling back to a string type.
package sqltype

import (
	"reflect"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is a SQL Server column type tag. The zero value is not a valid type.
type Type int

const (
	BigInt Type = iota + 1
	Bit
	Char
	Date
	DateTime
	DateTime2
	DateTimeOffset
	Decimal
	Float
	Int
	Money
	NChar
	NVarChar
	Real
	SmallDateTime
	SmallInt
	SmallMoney
	Time
	TinyInt
	UniqueIdentifier
	VarChar
	Xml
)

// MaxLength is the length sentinel rendered as (MAX).
const MaxLength = -1

var names = map[Type]string{
	BigInt:           "BIGINT",
	Bit:              "BIT",
	Char:             "CHAR",
	Date:             "DATE",
	DateTime:         "DATETIME",
	DateTime2:        "DATETIME2",
	DateTimeOffset:   "DATETIMEOFFSET",
	Decimal:          "DECIMAL",
	Float:            "FLOAT",
	Int:              "INT",
	Money:            "MONEY",
	NChar:            "NCHAR",
	NVarChar:         "NVARCHAR",
	Real:             "REAL",
	SmallDateTime:    "SMALLDATETIME",
	SmallInt:         "SMALLINT",
	SmallMoney:       "SMALLMONEY",
	Time:             "TIME",
	TinyInt:          "TINYINT",
	UniqueIdentifier: "UNIQUEIDENTIFIER",
	VarChar:          "VARCHAR",
	Xml:              "XML",
}

var byName = func() map[string]Type {
	m := make(map[string]Type, len(names))
	for t, n := range names {
		m[n] = t
	}
	return m
}()

var (
	typeString  = reflect.TypeOf("")
	typeTime    = reflect.TypeOf(time.Time{})
	typeDecimal = reflect.TypeOf(decimal.Decimal{})
)

var native = map[Type]reflect.Type{
	BigInt:           reflect.TypeOf(int64(0)),
	Bit:              reflect.TypeOf(false),
	Char:             typeString,
	Date:             reflect.TypeOf(civil.Date{}),
	DateTime:         typeTime,
	DateTime2:        typeTime,
	DateTimeOffset:   typeTime,
	Decimal:          typeDecimal,
	Float:            reflect.TypeOf(float64(0)),
	Int:              reflect.TypeOf(int32(0)),
	Money:            typeDecimal,
	NChar:            typeString,
	NVarChar:         typeString,
	Real:             reflect.TypeOf(float32(0)),
	SmallDateTime:    typeTime,
	SmallInt:         reflect.TypeOf(int16(0)),
	SmallMoney:       typeDecimal,
	Time:             reflect.TypeOf(civil.Time{}),
	TinyInt:          reflect.TypeOf(uint8(0)),
	UniqueIdentifier: reflect.TypeOf(uuid.UUID{}),
	VarChar:          typeString,
	Xml:              typeString,
}

// String returns the T-SQL type keyword, e.g. "NVARCHAR".
func (t Type) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Valid reports whether t is one of the catalog's types.
func (t Type) Valid() bool {
	_, ok := names[t]
	return ok
}

// TryParse maps a type name to its tag. Matching is case-insensitive and
// ignores surrounding whitespace; names outside the catalog are rejected.
func TryParse(name string) (Type, bool) {
	t, ok := byName[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// NativeType returns the Go type values of t are coerced to before writing.
// It returns nil for an unknown tag.
func NativeType(t Type) reflect.Type {
	return native[t]
}

// RequiresLength reports whether a column of type t must declare a length.
func RequiresLength(t Type) bool {
	switch t {
	case Char, NChar, VarChar, NVarChar:
		return true
	}
	return false
}

// AllowsMax reports whether t accepts the (MAX) length.
func AllowsMax(t Type) bool {
	return t == VarChar || t == NVarChar
}

// MaxExplicitLength is the largest explicit length SQL Server accepts for t,
// or 0 when t takes no length.
func MaxExplicitLength(t Type) int {
	switch t {
	case Char, VarChar:
		return 8000
	case NChar, NVarChar:
		return 4000
	}
	return 0
}

// IsCharacter reports whether values of t are stored as text.
func IsCharacter(t Type) bool {
	return NativeType(t) == typeString
}

// IsUnicode reports whether t stores UTF-16 text, so that its declared
// length counts UTF-16 code units. Other character types count bytes.
func IsUnicode(t Type) bool {
	return t == NChar || t == NVarChar || t == Xml
}

// ColumnstoreCompatible reports whether a column of type t may be part of a
// table with a clustered columnstore index.
func ColumnstoreCompatible(t Type) bool {
	return t.Valid() && t != Xml
}
