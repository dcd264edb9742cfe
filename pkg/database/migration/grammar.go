package migration

import (
	"fmt"
	"strings"
)

// ddlCompiler, lehçeler arasında ortak DDL üretimidir.
type ddlCompiler struct {
	quote        string
	types        map[ColumnType]string
	tableSuffix  string
	inlineIndex  bool // MySQL tablo gövdesinde INDEX kabul eder, SQLite etmez
	boolLiterals [2]string
}

func (c ddlCompiler) wrap(name string) string {
	return c.quote + name + c.quote
}

func (c ddlCompiler) wrapAll(names []string) string {
	wrapped := make([]string, len(names))
	for i, n := range names {
		wrapped[i] = c.wrap(n)
	}
	return strings.Join(wrapped, ", ")
}

func (c ddlCompiler) compileColumn(column *Column) string {
	typ := c.types[column.Type]
	if column.Type == TypeString && strings.Contains(typ, "%d") {
		typ = fmt.Sprintf(typ, column.Length)
	}

	parts := []string{c.wrap(column.Name), typ}
	if column.IsNullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}

	if column.HasDefault {
		switch v := column.DefaultVal.(type) {
		case string:
			parts = append(parts, fmt.Sprintf("DEFAULT '%s'", strings.ReplaceAll(v, "'", "''")))
		case bool:
			if v {
				parts = append(parts, "DEFAULT "+c.boolLiterals[1])
			} else {
				parts = append(parts, "DEFAULT "+c.boolLiterals[0])
			}
		case nil:
			parts = append(parts, "DEFAULT NULL")
		default:
			parts = append(parts, fmt.Sprintf("DEFAULT %v", v))
		}
	}

	if column.IsPrimary {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " ")
}

func (c ddlCompiler) compileForeign(fk *ForeignKey) string {
	sql := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		c.wrap(fk.Name), c.wrap(fk.Column), c.wrap(fk.ReferencedTable), c.wrap(fk.ReferencedColumn))
	if fk.OnDeleteAction != "" {
		sql += " ON DELETE " + fk.OnDeleteAction
	}
	return sql
}

// CompileCreateTable generates CREATE TABLE SQL.
func (c ddlCompiler) CompileCreateTable(table string, columns []*Column, indexes []Index, foreignKeys []*ForeignKey) []string {
	defs := make([]string, 0, len(columns)+len(indexes)+len(foreignKeys))
	for _, column := range columns {
		defs = append(defs, c.compileColumn(column))
	}

	var trailing []string
	for _, index := range indexes {
		switch {
		case index.Type == IndexTypeUnique:
			defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", c.wrap(index.Name), c.wrapAll(index.Columns)))
		case c.inlineIndex:
			defs = append(defs, fmt.Sprintf("INDEX %s (%s)", c.wrap(index.Name), c.wrapAll(index.Columns)))
		default:
			trailing = append(trailing, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", c.wrap(index.Name), c.wrap(table), c.wrapAll(index.Columns)))
		}
	}

	for _, fk := range foreignKeys {
		defs = append(defs, c.compileForeign(fk))
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)%s", c.wrap(table), strings.Join(defs, ",\n  "), c.tableSuffix)
	return append([]string{create}, trailing...)
}

// CompileDropTable generates DROP TABLE SQL.
func (c ddlCompiler) CompileDropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", c.wrap(table))
}

// MySQLGrammar implements Grammar interface for MySQL.
type MySQLGrammar struct {
	ddlCompiler
}

// NewMySQLGrammar creates a new MySQLGrammar instance.
func NewMySQLGrammar() *MySQLGrammar {
	return &MySQLGrammar{ddlCompiler{
		quote: "`",
		types: map[ColumnType]string{
			TypeString:    "VARCHAR(%d)",
			TypeText:      "TEXT",
			TypeInteger:   "INT",
			TypeBigInt:    "BIGINT",
			TypeBoolean:   "TINYINT(1)",
			TypeTimestamp: "DATETIME(6)",
		},
		tableSuffix:  " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
		inlineIndex:  true,
		boolLiterals: [2]string{"0", "1"},
	}}
}

func (g *MySQLGrammar) CompileHasTable() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

// SQLiteGrammar, SQLite için Grammar uygulamasıdır.
//
// Zaman kolonları DATETIME olarak tanımlanır; sürücü bu tipteki metin
// değerleri okurken time.Time'a çevirir.
type SQLiteGrammar struct {
	ddlCompiler
}

// NewSQLiteGrammar creates a new SQLiteGrammar instance.
func NewSQLiteGrammar() *SQLiteGrammar {
	return &SQLiteGrammar{ddlCompiler{
		quote: `"`,
		types: map[ColumnType]string{
			TypeString:    "TEXT",
			TypeText:      "TEXT",
			TypeInteger:   "INTEGER",
			TypeBigInt:    "INTEGER",
			TypeBoolean:   "INTEGER",
			TypeTimestamp: "DATETIME",
		},
		boolLiterals: [2]string{"0", "1"},
	}}
}

func (g *SQLiteGrammar) CompileHasTable() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

// GrammarFor, sürücü adına göre DDL grammar'ı döndürür.
func GrammarFor(driver string) (Grammar, error) {
	switch driver {
	case "mysql":
		return NewMySQLGrammar(), nil
	case "sqlite":
		return NewSQLiteGrammar(), nil
	default:
		return nil, fmt.Errorf("unsupported migration driver: %s", driver)
	}
}
