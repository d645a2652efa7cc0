package projection

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"sqlsink/internal/column"
	"sqlsink/internal/logevent"
	"sqlsink/internal/sqltype"
)

// timeLayouts are tried in order when a string is coerced to a time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02 15:04:05.9999999Z07:00",
	"2006-01-02 15:04:05.9999999",
	"2006-01-02",
}

// coerceValue converts a resolved property value to the column's native
// type. It never fails: values that cannot be converted are stored in their
// string form.
func coerceValue(v logevent.Value, spec column.ColumnSpec) any {
	switch c := v.(type) {
	case nil:
		return nullValue(spec)
	case logevent.Scalar:
		if c.V == nil {
			return nullValue(spec)
		}
		if out, ok := coerceScalar(c.V, sqltype.NativeType(spec.Type)); ok {
			return finish(out, spec)
		}
		return finish(c.String(), spec)
	default:
		return finish(logevent.Format(v), spec)
	}
}

// nullValue is NULL for nullable columns and the native zero value otherwise.
func nullValue(spec column.ColumnSpec) any {
	if spec.AllowNull {
		return nil
	}
	if t := sqltype.NativeType(spec.Type); t != nil {
		return reflect.Zero(t).Interface()
	}
	return nil
}

// finish applies the declared length to character values. N-types count
// UTF-16 code units, the others count bytes.
func finish(v any, spec column.ColumnSpec) any {
	s, ok := v.(string)
	if !ok || !sqltype.IsCharacter(spec.Type) || spec.Length <= 0 {
		return v
	}
	if sqltype.IsUnicode(spec.Type) {
		return truncate(s, spec.Length, utf16Units)
	}
	return truncate(s, spec.Length, byteUnits)
}

// unitFunc returns the storage size of rune r, encoded in size UTF-8 bytes.
type unitFunc func(r rune, size int) int

func utf16Units(r rune, _ int) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// byteUnits is the UTF-8 length, an upper bound for every code page.
func byteUnits(_ rune, size int) int { return size }

// truncate shortens s to at most n units. Characters are never split. The
// cut is moved back to the previous normalization boundary so combining
// marks stay with their base character, unless that would leave nothing.
func truncate(s string, n int, unit unitFunc) string {
	if n <= 0 {
		return s
	}
	cut, total := len(s), 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		w := unit(r, size)
		if total+w > n {
			cut = i
			break
		}
		total += w
		i += size
	}
	if cut == len(s) {
		return s
	}
	head := s[:cut]
	if norm.NFC.PropertiesString(s[cut:]).BoundaryBefore() {
		return head
	}
	if b := norm.NFC.LastBoundary([]byte(head)); b > 0 {
		return head[:b]
	}
	return head
}

func coerceScalar(v any, target reflect.Type) (any, bool) {
	if target == nil {
		return nil, false
	}
	if reflect.TypeOf(v) == target {
		return v, true
	}
	switch target.Kind() {
	case reflect.String:
		return logevent.Scalar{V: v}.String(), true
	case reflect.Bool:
		return toBool(v)
	case reflect.Int64, reflect.Int32, reflect.Int16, reflect.Uint8:
		i, ok := toInt(v)
		if !ok {
			return nil, false
		}
		return fitInt(i, target.Kind())
	case reflect.Float64:
		f, ok := toFloat(v)
		return f, ok
	case reflect.Float32:
		f, ok := toFloat(v)
		if !ok || math.Abs(f) > math.MaxFloat32 {
			return nil, false
		}
		return float32(f), true
	}

	switch target {
	case reflect.TypeOf(time.Time{}):
		return toTime(v)
	case reflect.TypeOf(civil.Date{}):
		if t, ok := v.(time.Time); ok {
			return civil.DateOf(t), true
		}
		if s, ok := v.(string); ok {
			d, err := civil.ParseDate(strings.TrimSpace(s))
			return d, err == nil
		}
	case reflect.TypeOf(civil.Time{}):
		if t, ok := v.(time.Time); ok {
			return civil.TimeOf(t), true
		}
		if s, ok := v.(string); ok {
			ct, err := civil.ParseTime(strings.TrimSpace(s))
			return ct, err == nil
		}
	case reflect.TypeOf(decimal.Decimal{}):
		return toDecimal(v)
	case reflect.TypeOf(uuid.UUID{}):
		switch u := v.(type) {
		case [16]byte:
			return uuid.UUID(u), true
		case string:
			id, err := uuid.Parse(strings.TrimSpace(u))
			return id, err == nil
		}
	}
	return nil, false
}

func toBool(v any) (any, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return p, err == nil
	}
	if i, ok := toInt(v); ok {
		return i != 0, true
	}
	return nil, false
}

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	case reflect.String:
		i, err := strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func fitInt(i int64, kind reflect.Kind) (any, bool) {
	switch kind {
	case reflect.Int64:
		return i, true
	case reflect.Int32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, false
		}
		return int32(i), true
	case reflect.Int16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, false
		}
		return int16(i), true
	case reflect.Uint8:
		if i < 0 || i > math.MaxUint8 {
			return nil, false
		}
		return uint8(i), true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		return f, err == nil
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64(), true
	}
	return 0, false
}

func toTime(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return nil, false
}

func toDecimal(v any) (any, bool) {
	switch d := v.(type) {
	case string:
		out, err := decimal.NewFromString(strings.TrimSpace(d))
		return out, err == nil
	case float64:
		return decimal.NewFromFloat(d), true
	case float32:
		return decimal.NewFromFloat32(d), true
	}
	if i, ok := toInt(v); ok {
		return decimal.NewFromInt(i), true
	}
	return nil, false
}
