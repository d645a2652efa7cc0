package ddl

import (
	"fmt"
	"strings"

	"sqlsink/internal/column"
	"sqlsink/internal/sqltype"
)

const (
	defaultPrecision = 38
	defaultScale     = 10
)

// ColumnType renders the T-SQL type of a column, e.g. NVARCHAR(MAX),
// VARCHAR(50) or DECIMAL(38,10).
func ColumnType(c column.ColumnSpec) string {
	name := c.Type.String()
	switch {
	case sqltype.RequiresLength(c.Type):
		if c.Length == column.MaxLength {
			return name + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", name, c.Length)
	case c.Type == sqltype.Decimal:
		p, s := c.Precision, c.Scale
		if p == 0 {
			p, s = defaultPrecision, defaultScale
		}
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s)
	}
	return name
}

// columnClause renders one column line of CREATE TABLE.
func columnClause(c column.ColumnSpec) string {
	var sb strings.Builder
	sb.WriteString(QuoteIdent(c.Name))
	sb.WriteByte(' ')
	sb.WriteString(ColumnType(c))
	if c.IsIdentity() {
		sb.WriteString(" IDENTITY(1,1)")
	}
	if c.AllowNull {
		sb.WriteString(" NULL")
	} else {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

// QuoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// QualifiedName returns [schema].[table].
func QualifiedName(schema, table string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(table)
}

// quoteLiteral renders s as a T-SQL string literal body, doubling quotes.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
