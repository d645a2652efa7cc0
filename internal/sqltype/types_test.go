package sqltype

import (
	"reflect"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestTryParse verifies case-insensitive parsing restricted to the catalog.
func TestTryParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Type
		wantOK bool
	}{
		{in: "nvarchar", want: NVarChar, wantOK: true},
		{in: "  DateTime2 ", want: DateTime2, wantOK: true},
		{in: "UniqueIdentifier", want: UniqueIdentifier, wantOK: true},
		{in: "tinyint", want: TinyInt, wantOK: true},
		{in: "xml", want: Xml, wantOK: true},
		{in: "text", wantOK: false},
		{in: "varbinary", wantOK: false},
		{in: "image", wantOK: false},
		{in: "nvarchar(50)", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, ok := TryParse(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("TryParse(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("TryParse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestNativeType checks the Go type chosen for each family of SQL types.
func TestNativeType(t *testing.T) {
	t.Parallel()

	cases := map[Type]reflect.Type{
		BigInt:           reflect.TypeOf(int64(0)),
		Int:              reflect.TypeOf(int32(0)),
		SmallInt:         reflect.TypeOf(int16(0)),
		TinyInt:          reflect.TypeOf(uint8(0)),
		Bit:              reflect.TypeOf(true),
		NVarChar:         reflect.TypeOf(""),
		DateTimeOffset:   reflect.TypeOf(time.Time{}),
		Date:             reflect.TypeOf(civil.Date{}),
		Time:             reflect.TypeOf(civil.Time{}),
		Money:            reflect.TypeOf(decimal.Decimal{}),
		Real:             reflect.TypeOf(float32(0)),
		UniqueIdentifier: reflect.TypeOf(uuid.UUID{}),
	}
	for typ, want := range cases {
		if got := NativeType(typ); got != want {
			t.Fatalf("NativeType(%v) = %v, want %v", typ, got, want)
		}
	}
	if NativeType(Type(0)) != nil {
		t.Fatalf("NativeType(0) should be nil")
	}
}

// TestLengthRules covers RequiresLength, AllowsMax and MaxExplicitLength.
func TestLengthRules(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{Char, NChar, VarChar, NVarChar} {
		if !RequiresLength(typ) {
			t.Fatalf("RequiresLength(%v) = false, want true", typ)
		}
	}
	for _, typ := range []Type{Int, DateTime, Xml, Decimal} {
		if RequiresLength(typ) {
			t.Fatalf("RequiresLength(%v) = true, want false", typ)
		}
	}
	if AllowsMax(Char) || AllowsMax(NChar) || !AllowsMax(NVarChar) {
		t.Fatalf("AllowsMax mismatch")
	}
	if MaxExplicitLength(NVarChar) != 4000 || MaxExplicitLength(VarChar) != 8000 || MaxExplicitLength(Int) != 0 {
		t.Fatalf("MaxExplicitLength mismatch")
	}
}

// TestColumnstoreCompatible verifies the allowlist excludes XML only.
func TestColumnstoreCompatible(t *testing.T) {
	t.Parallel()

	if ColumnstoreCompatible(Xml) {
		t.Fatalf("XML must not be columnstore compatible")
	}
	if !ColumnstoreCompatible(NVarChar) || !ColumnstoreCompatible(DateTimeOffset) {
		t.Fatalf("NVARCHAR and DATETIMEOFFSET must be columnstore compatible")
	}
	if ColumnstoreCompatible(Type(99)) {
		t.Fatalf("unknown types must not be columnstore compatible")
	}
	if !IsCharacter(Xml) || IsCharacter(Int) {
		t.Fatalf("IsCharacter mismatch")
	}
	if !IsUnicode(NChar) || !IsUnicode(NVarChar) || IsUnicode(VarChar) || IsUnicode(Char) {
		t.Fatalf("IsUnicode mismatch")
	}
	if NVarChar.String() != "NVARCHAR" || Type(0).String() != "UNKNOWN" {
		t.Fatalf("String mismatch")
	}
}
