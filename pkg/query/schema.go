// -----------------------------------------------------------------------------
// Schema Registry
// -----------------------------------------------------------------------------
// Her entity için istek alanı → kolon eşlemesini tutar. Grid isteklerinden ve
// CRUD data map'lerinden gelen alan adları SQL'e yalnızca bu kayıt üzerinden
// girer; kayıtlı olmayan alanlar validation hatası ile reddedilir.
//
// Kullanım:
//
//	schema := query.NewSchema("department", "departments").
//	    Text("name", "name").
//	    Text("code", "code").
//	    Tree().
//	    Join("parent", "departments", "parent_id").
//	    RelationField("parent", "name", "name", query.FieldText)
// -----------------------------------------------------------------------------

package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/biyonik/orgtree-api/pkg/database"
)

// DefaultAlias, ana tablonun sorgulardaki takma adıdır.
const DefaultAlias = "t"

// Standart alan adları.
const (
	FieldID        = "id"
	FieldParentID  = "parentId"
	FieldOrder     = "order"
	FieldHasChild  = "hasChildren"
	FieldDeletedAt = "deletedAt"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// FieldType, alanın karşılaştırma semantiğini belirler.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumber
	FieldDate
	FieldBool
)

// Field, tek bir sorgulanabilir alandır.
type Field struct {
	Name     string
	Column   string
	Type     FieldType
	Relation string // boşsa ana tablo
	Output   string // sonuç kümesindeki kolon adı
}

// Relation, LEFT JOIN ile bağlanan ilişkidir.
type Relation struct {
	Name          string
	Table         string
	LocalColumn   string
	ForeignColumn string
}

// Schema, bir entity'nin sorgu şemasıdır.
type Schema struct {
	Entity    string
	Table     string
	Alias     string
	fields    map[string]Field
	order     []string
	relations map[string]Relation
	joins     []string
	tree      bool
	ordered   bool
}

// NewSchema, id ve zaman damgası alanları kayıtlı yeni bir şema oluşturur.
func NewSchema(entity, table string) *Schema {
	s := &Schema{
		Entity:    entity,
		Table:     table,
		Alias:     DefaultAlias,
		fields:    make(map[string]Field),
		relations: make(map[string]Relation),
	}
	return s.
		Text(FieldID, "id").
		Date(FieldCreatedAt, "created_at").
		Date(FieldUpdatedAt, "updated_at")
}

func (s *Schema) add(f Field) *Schema {
	if f.Output == "" {
		f.Output = f.Column
	}
	if _, exists := s.fields[f.Name]; !exists {
		s.order = append(s.order, f.Name)
	}
	s.fields[f.Name] = f
	return s
}

// Text registers a text field.
func (s *Schema) Text(name, column string) *Schema {
	return s.add(Field{Name: name, Column: column, Type: FieldText})
}

// Number registers a numeric field.
func (s *Schema) Number(name, column string) *Schema {
	return s.add(Field{Name: name, Column: column, Type: FieldNumber})
}

// Date registers a date/time field.
func (s *Schema) Date(name, column string) *Schema {
	return s.add(Field{Name: name, Column: column, Type: FieldDate})
}

// Bool registers a boolean field.
func (s *Schema) Bool(name, column string) *Schema {
	return s.add(Field{Name: name, Column: column, Type: FieldBool})
}

// SoftDeletes, deletedAt alanını kaydeder. Okumalar silinmiş satırları
// varsayılan olarak dışarıda bırakır.
func (s *Schema) SoftDeletes() *Schema {
	return s.Date(FieldDeletedAt, "deleted_at")
}

// Tree, hiyerarşik entity alanlarını (parentId, order, hasChildren,
// deletedAt) kaydeder.
func (s *Schema) Tree() *Schema {
	s.tree = true
	s.ordered = true
	return s.
		Text(FieldParentID, "parent_id").
		Number(FieldOrder, "sort_order").
		Bool(FieldHasChild, "has_children").
		SoftDeletes()
}

// Join, ana tablodaki localColumn üzerinden başka bir tabloya LEFT JOIN tanımlar.
func (s *Schema) Join(name, table, localColumn string) *Schema {
	s.relations[name] = Relation{Name: name, Table: table, LocalColumn: localColumn, ForeignColumn: "id"}
	s.joins = append(s.joins, name)
	return s
}

// RelationField, ilişki üzerinden erişilen bir alanı "relation.field"
// adıyla kaydeder.
func (s *Schema) RelationField(relation, name, column string, typ FieldType) *Schema {
	if _, ok := s.relations[relation]; !ok {
		panic(fmt.Sprintf("query: unknown relation %q", relation))
	}
	full := relation + "." + name
	return s.add(Field{Name: full, Column: column, Type: typ, Relation: relation, Output: Alias(full)})
}

// IsTree reports whether the entity is hierarchical.
func (s *Schema) IsTree() bool { return s.tree }

// IsOrdered reports whether rows carry a sparse sibling order.
func (s *Schema) IsOrdered() bool { return s.ordered }

// HasSoftDeletes reports whether deletedAt is registered.
func (s *Schema) HasSoftDeletes() bool {
	_, ok := s.fields[FieldDeletedAt]
	return ok
}

// AncestryTable, closure tablosunun adını döner: "department" → "department_ancestry".
func (s *Schema) AncestryTable() string {
	return snake(s.Entity) + "_ancestry"
}

// Lookup, alan adını çözer. Bilinmeyen alanlar validation hatasıdır.
func (s *Schema) Lookup(name string) (Field, error) {
	f, ok := s.fields[name]
	if !ok {
		return Field{}, database.NewError(database.KindValidation, "read", fmt.Sprintf("unknown field %q for %s", name, s.Entity))
	}
	return f, nil
}

// MustColumn, yerel bir alanın kolon adını döner. Kod içinden sabit alan
// adlarıyla çağrılır; bilinmeyen alan programlama hatasıdır.
func (s *Schema) MustColumn(name string) string {
	f, err := s.Lookup(name)
	if err != nil || f.Relation != "" {
		panic(fmt.Sprintf("query: %s has no local field %q", s.Entity, name))
	}
	return f.Column
}

// Fields, kayıt sırasıyla tüm alanları döner.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// Columns, data map'ini (alan adı → değer) kolon map'ine çevirir.
// İlişki alanları yazılamaz.
func (s *Schema) Columns(op string, data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for name, value := range data {
		f, ok := s.fields[name]
		if !ok || f.Relation != "" {
			return nil, database.NewError(database.KindValidation, op, fmt.Sprintf("unknown field %q for %s", name, s.Entity))
		}
		out[f.Column] = value
	}
	return out, nil
}

// Expr, alanın verilen takma ad ile nitelenmiş ve sarmalanmış ifadesidir.
// alias boşsa kolon nitelenmeden yazılır ve ilişki alanları reddedilir.
func (s *Schema) Expr(g database.Grammar, f Field, alias string) (string, error) {
	switch {
	case f.Relation != "":
		if alias == "" {
			return "", database.NewError(database.KindValidation, "read", fmt.Sprintf("field %q requires a joined query", f.Name))
		}
		return g.Wrap(f.Relation + "." + f.Column)
	case alias == "":
		return g.Wrap(f.Column)
	default:
		return g.Wrap(alias + "." + f.Column)
	}
}

// From, ana tablo ve ilişki join'lerini içeren FROM gövdesini üretir.
func (s *Schema) From(g database.Grammar) (string, error) {
	table, err := g.Wrap(s.Table)
	if err != nil {
		return "", err
	}
	alias, err := g.Wrap(s.Alias)
	if err != nil {
		return "", err
	}

	parts := []string{table + " AS " + alias}
	for _, name := range s.joins {
		rel := s.relations[name]
		relTable, err := g.Wrap(rel.Table)
		if err != nil {
			return "", err
		}
		relAlias, err := g.Wrap(rel.Name)
		if err != nil {
			return "", err
		}
		foreign, err := g.Wrap(rel.Name + "." + rel.ForeignColumn)
		if err != nil {
			return "", err
		}
		local, err := g.Wrap(s.Alias + "." + rel.LocalColumn)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s", relTable, relAlias, foreign, local))
	}
	return strings.Join(parts, " "), nil
}

// Alias, alan adını sonuç kolonu adına çevirir ("parent.name" → "parent_name").
func Alias(field string) string {
	return strings.ReplaceAll(field, ".", "_")
}

func snake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
