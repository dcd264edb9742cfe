package migration

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Blueprint - Table Schema Builder
// -----------------------------------------------------------------------------

// Blueprint defines the structure of a table.
type Blueprint struct {
	table       string
	columns     []*Column
	indexes     []Index
	foreignKeys []*ForeignKey
}

// NewBlueprint creates a new Blueprint instance.
func NewBlueprint(tableName string) *Blueprint {
	return &Blueprint{table: tableName}
}

// ColumnType, lehçeden bağımsız mantıksal kolon tipidir.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeBigInt    ColumnType = "bigint"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
)

// Column represents a table column.
type Column struct {
	Name       string
	Type       ColumnType
	Length     int
	IsNullable bool
	HasDefault bool
	DefaultVal any
	IsPrimary  bool
}

// Nullable marks the column as nullable.
func (c *Column) Nullable() *Column {
	c.IsNullable = true
	return c
}

// Default sets a default value.
func (c *Column) Default(value any) *Column {
	c.HasDefault = true
	c.DefaultVal = value
	return c
}

// Primary marks the column as the primary key.
func (c *Column) Primary() *Column {
	c.IsPrimary = true
	return c
}

func (b *Blueprint) addColumn(column *Column) *Column {
	b.columns = append(b.columns, column)
	return column
}

// UUID adds a 36 character string column for UUID text identifiers.
func (b *Blueprint) UUID(name string) *Column {
	return b.String(name, 36)
}

// String adds a VARCHAR column.
func (b *Blueprint) String(name string, length int) *Column {
	return b.addColumn(&Column{Name: name, Type: TypeString, Length: length})
}

// Text adds a TEXT column.
func (b *Blueprint) Text(name string) *Column {
	return b.addColumn(&Column{Name: name, Type: TypeText})
}

// Integer adds an INT column.
func (b *Blueprint) Integer(name string) *Column {
	return b.addColumn(&Column{Name: name, Type: TypeInteger})
}

// BigInteger adds a BIGINT column.
func (b *Blueprint) BigInteger(name string) *Column {
	return b.addColumn(&Column{Name: name, Type: TypeBigInt})
}

// Boolean adds a boolean column.
func (b *Blueprint) Boolean(name string) *Column {
	return b.addColumn(&Column{Name: name, Type: TypeBoolean})
}

// Timestamp adds a TIMESTAMP column.
func (b *Blueprint) Timestamp(name string) *Column {
	return b.addColumn(&Column{Name: name, Type: TypeTimestamp})
}

// Timestamps adds created_at and updated_at columns.
func (b *Blueprint) Timestamps() {
	b.Timestamp("created_at")
	b.Timestamp("updated_at")
}

// SoftDeletes adds a deleted_at column for soft delete support.
func (b *Blueprint) SoftDeletes() {
	b.Timestamp("deleted_at").Nullable()
}

// -----------------------------------------------------------------------------
// Index Definition
// -----------------------------------------------------------------------------

// IndexType represents the type of index.
type IndexType string

const (
	IndexTypeIndex  IndexType = "INDEX"
	IndexTypeUnique IndexType = "UNIQUE"
)

// Index represents a table index.
type Index struct {
	Name    string
	Columns []string
	Type    IndexType
}

// Unique adds a unique index.
func (b *Blueprint) Unique(columns ...string) {
	b.indexes = append(b.indexes, Index{
		Name:    fmt.Sprintf("%s_%s_unique", b.table, strings.Join(columns, "_")),
		Columns: columns,
		Type:    IndexTypeUnique,
	})
}

// Index adds a regular index.
func (b *Blueprint) Index(columns ...string) {
	b.indexes = append(b.indexes, Index{
		Name:    fmt.Sprintf("%s_%s_index", b.table, strings.Join(columns, "_")),
		Columns: columns,
		Type:    IndexTypeIndex,
	})
}

// -----------------------------------------------------------------------------
// Foreign Key Definition
// -----------------------------------------------------------------------------

// ForeignKey represents a foreign key constraint.
type ForeignKey struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnDeleteAction   string
}

// Foreign adds a foreign key constraint.
//
//	t.Foreign("parent_id").References("id").On("departments")
func (b *Blueprint) Foreign(column string) *ForeignKey {
	fk := &ForeignKey{
		Name:             fmt.Sprintf("%s_%s_foreign", b.table, column),
		Column:           column,
		ReferencedColumn: "id",
	}
	b.foreignKeys = append(b.foreignKeys, fk)
	return fk
}

// References sets the referenced column.
func (fk *ForeignKey) References(column string) *ForeignKey {
	fk.ReferencedColumn = column
	return fk
}

// On sets the referenced table.
func (fk *ForeignKey) On(table string) *ForeignKey {
	fk.ReferencedTable = table
	return fk
}

// OnDelete sets the ON DELETE action.
func (fk *ForeignKey) OnDelete(action string) *ForeignKey {
	fk.OnDeleteAction = strings.ToUpper(action)
	return fk
}

// Cascade sets ON DELETE CASCADE.
func (fk *ForeignKey) Cascade() *ForeignKey {
	return fk.OnDelete("CASCADE")
}
