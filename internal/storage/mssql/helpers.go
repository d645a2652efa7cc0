package mssql

import (
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"

	"sqlsink/internal/column"
	"sqlsink/internal/projection"
	"sqlsink/internal/storage/mssql/ddl"
)

// writeColumns returns the model's column names in table order, without the
// identity column, which SQL Server fills itself.
func writeColumns(m *column.Model) []string {
	cols := m.AllColumns()
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.IsIdentity() {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// rowValues returns the row's values for cols, matched by name. Rows from the
// projector are already in model order, so the common case is a straight walk.
func rowValues(row projection.Row, cols []string) []any {
	out := make([]any, len(cols))
	j := 0
	for i, name := range cols {
		for j < len(row) && row[j].Name != name {
			j++
		}
		if j < len(row) {
			out[i] = toDriverValue(row[j].Value)
			j++
			continue
		}
		v, _ := row.Get(name)
		out[i] = toDriverValue(v)
		j = 0
	}
	return out
}

// toDriverValue converts native column values into the forms go-mssqldb
// accepts on both the bulk copy and the parameter path.
func toDriverValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case float32:
		return float64(t)
	case civil.Date:
		return t.In(time.UTC)
	case civil.Time:
		return time.Date(1, 1, 1, t.Hour, t.Minute, t.Second, t.Nanosecond, time.UTC)
	case uuid.UUID:
		return mssql.UniqueIdentifier(t)
	case decimal.Decimal:
		return t.String()
	}
	return v
}

// msFQN quotes a schema-qualified table name as [schema].[table].
func msFQN(schema, table string) string { return ddl.QualifiedName(schema, table) }

// mapIdent maps a list of column names to their bracket-quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ddl.QuoteIdent(c)
	}
	return out
}
