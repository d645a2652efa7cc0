// Package ddl generates the SQL Server DDL for a log table from a column
// model and applies it.
//
// The builders here:
//   - Use SQL Server-style identifier quoting: [schema].[table], [col].
//   - Guard every statement with a catalog existence check, since T-SQL has
//     no CREATE ... IF NOT EXISTS.
//   - Are pure: identical input always yields byte-identical text.
package ddl

import (
	"errors"
	"fmt"
	"strings"

	"sqlsink/internal/column"
)

// BuildCreateSchema returns a script creating schema if it is missing:
//
//	IF(NOT EXISTS(SELECT * FROM sys.schemas WHERE name = 'dbo'))
//	BEGIN
//	  EXEC('CREATE SCHEMA [dbo]')
//	END;
func BuildCreateSchema(schema string) string {
	return fmt.Sprintf(
		"IF(NOT EXISTS(SELECT * FROM sys.schemas WHERE name = '%s'))\nBEGIN\n  EXEC('CREATE SCHEMA %s')\nEND;",
		quoteLiteral(schema),
		quoteLiteral(QuoteIdent(schema)),
	)
}

// BuildCreateTable returns a script creating the table if it is missing.
// Columns appear in model order; the Id column gets IDENTITY(1,1) and the
// primary key, if any, becomes a trailing clustered constraint:
//
//	IF NOT EXISTS (SELECT s.name, t.name FROM sys.tables t JOIN sys.schemas s ON t.schema_id = s.schema_id WHERE s.name = 'dbo' AND t.name = 'Logs')
//	BEGIN
//	  CREATE TABLE [dbo].[Logs] (
//	    [Id] INT IDENTITY(1,1) NOT NULL,
//	    [Message] NVARCHAR(MAX) NULL,
//	    CONSTRAINT [PK_Logs] PRIMARY KEY CLUSTERED ([Id])
//	  );
//	END;
func BuildCreateTable(schema, table string, m *column.Model) (string, error) {
	if err := checkTarget(schema, table, m); err != nil {
		return "", err
	}
	cols := m.AllColumns()
	if len(cols) == 0 {
		return "", fmt.Errorf("mssql ddl: table %s has no columns", table)
	}

	lines := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		lines = append(lines, columnClause(c))
	}
	if pk, ok := m.PrimaryKey(); ok {
		lines = append(lines, fmt.Sprintf(
			"CONSTRAINT %s PRIMARY KEY CLUSTERED (%s)",
			QuoteIdent("PK_"+table), QuoteIdent(pk.Name),
		))
	}

	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT s.name, t.name FROM sys.tables t JOIN sys.schemas s ON t.schema_id = s.schema_id WHERE s.name = '%s' AND t.name = '%s')\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
		quoteLiteral(schema),
		quoteLiteral(table),
		QualifiedName(schema, table),
		strings.Join(lines, ",\n    "),
	), nil
}

// BuildCreateIndexes returns one guarded CREATE NONCLUSTERED INDEX per
// indexed column, named IX{n}_{table}, or a single clustered columnstore
// index CCI_{table} when the model asks for one. Index flags are ignored
// on columnstore tables.
func BuildCreateIndexes(schema, table string, m *column.Model) ([]string, error) {
	if err := checkTarget(schema, table, m); err != nil {
		return nil, err
	}
	fqn := QualifiedName(schema, table)

	if m.Columnstore() {
		name := "CCI_" + table
		return []string{indexGuard(name, fqn) +
			fmt.Sprintf("  CREATE CLUSTERED COLUMNSTORE INDEX %s ON %s;", QuoteIdent(name), fqn)}, nil
	}

	var out []string
	n := 0
	for _, c := range m.AllColumns() {
		if !c.Indexed {
			continue
		}
		n++
		name := fmt.Sprintf("IX%d_%s", n, table)
		out = append(out, indexGuard(name, fqn)+
			fmt.Sprintf("  CREATE NONCLUSTERED INDEX %s ON %s (%s);", QuoteIdent(name), fqn, QuoteIdent(c.Name)))
	}
	return out, nil
}

func indexGuard(name, fqn string) string {
	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT * FROM sys.indexes WHERE name = '%s' AND object_id = OBJECT_ID(N'%s'))\n",
		quoteLiteral(name), quoteLiteral(fqn),
	)
}

func checkTarget(schema, table string, m *column.Model) error {
	if strings.TrimSpace(schema) == "" {
		return errors.New("mssql ddl: schema name must not be empty")
	}
	if strings.TrimSpace(table) == "" {
		return errors.New("mssql ddl: table name must not be empty")
	}
	if m == nil {
		return errors.New("mssql ddl: nil column model")
	}
	return nil
}
