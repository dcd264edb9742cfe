// -----------------------------------------------------------------------------
// Condition Builder
// -----------------------------------------------------------------------------
// Mantıksal koşul ağacını ({field, operator, value} yaprakları ve AND/OR
// düğümleri) parametreli bir SQL predicate'ine çevirir. Değerler her zaman
// placeholder ile bağlanır; alan adları Schema üzerinden çözülür.
//
// Boş AND her zaman doğru (1 = 1), boş OR her zaman yanlış (1 = 0) üretir.
// -----------------------------------------------------------------------------

package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/biyonik/orgtree-api/pkg/database"
)

// Operator, yaprak koşul operatörüdür.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEqual           Operator = "notEqual"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "notContains"
	OpStartsWith         Operator = "startsWith"
	OpEndsWith           Operator = "endsWith"
	OpBlank              Operator = "blank"
	OpNotBlank           Operator = "notBlank"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpInRange            Operator = "inRange"
	OpIn                 Operator = "in"
)

var comparisons = map[Operator]string{
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
}

// Condition, koşul ağacının bir düğümüdür. Field doluysa yapraktır;
// aksi halde AND ve/veya OR dallarından en az biri bulunmalıdır.
// Boş fakat nil olmayan dal (JSON'da "AND": []) geçerlidir.
type Condition struct {
	Field    string      `json:"field,omitempty"`
	Operator Operator    `json:"operator,omitempty"`
	Value    any         `json:"value,omitempty"`
	ValueTo  any         `json:"valueTo,omitempty"`
	AND      []Condition `json:"AND,omitempty"`
	OR       []Condition `json:"OR,omitempty"`
}

// Where, yaprak koşul oluşturur.
func Where(field string, op Operator, value any) Condition {
	return Condition{Field: field, Operator: op, Value: value}
}

// And, verilen koşulları AND düğümünde toplar.
func And(conds ...Condition) Condition {
	if conds == nil {
		conds = []Condition{}
	}
	return Condition{AND: conds}
}

// Or, verilen koşulları OR düğümünde toplar.
func Or(conds ...Condition) Condition {
	if conds == nil {
		conds = []Condition{}
	}
	return Condition{OR: conds}
}

func (c Condition) isLeaf() bool { return c.Field != "" }

// ConditionBuilder compiles Condition trees for one schema and dialect.
type ConditionBuilder struct {
	schema  *Schema
	grammar database.Grammar
	alias   string
}

// NewConditionBuilder, koşul derleyicisi kurar. alias boşsa kolonlar
// nitelenmeden yazılır (tek tablolu CRUD sorguları için).
func NewConditionBuilder(schema *Schema, grammar database.Grammar, alias string) *ConditionBuilder {
	return &ConditionBuilder{schema: schema, grammar: grammar, alias: alias}
}

// Build, koşul ağacını predicate'e çevirir.
func (b *ConditionBuilder) Build(cond Condition) (Fragment, error) {
	if cond.isLeaf() {
		if cond.AND != nil || cond.OR != nil {
			return Fragment{}, invalid("condition %q cannot have both a field and logical branches", cond.Field)
		}
		return b.leaf(cond)
	}

	if cond.AND == nil && cond.OR == nil {
		return Fragment{}, invalid("condition must have a field or at least one of AND/OR")
	}

	var parts []Fragment
	if cond.AND != nil {
		f, err := b.group(cond.AND, "AND", "1 = 1")
		if err != nil {
			return Fragment{}, err
		}
		parts = append(parts, f)
	}
	if cond.OR != nil {
		f, err := b.group(cond.OR, "OR", "1 = 0")
		if err != nil {
			return Fragment{}, err
		}
		parts = append(parts, f)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return AndFragments(parts...), nil
}

func (b *ConditionBuilder) group(conds []Condition, joiner, empty string) (Fragment, error) {
	if len(conds) == 0 {
		return Fragment{SQL: empty}, nil
	}
	parts := make([]Fragment, 0, len(conds))
	for _, c := range conds {
		f, err := b.Build(c)
		if err != nil {
			return Fragment{}, err
		}
		parts = append(parts, f)
	}
	return joinFragments(joiner, parts), nil
}

func (b *ConditionBuilder) leaf(cond Condition) (Fragment, error) {
	field, err := b.schema.Lookup(cond.Field)
	if err != nil {
		return Fragment{}, err
	}
	expr, err := b.schema.Expr(b.grammar, field, b.alias)
	if err != nil {
		return Fragment{}, err
	}

	switch cond.Operator {
	case OpEquals:
		if cond.Value == nil {
			return Fragment{SQL: expr + " IS NULL"}, nil
		}
		return b.bind(expr+" = ?", field, cond.Value)

	case OpNotEqual:
		if cond.Value == nil {
			return Fragment{SQL: expr + " IS NOT NULL"}, nil
		}
		return b.bind(expr+" <> ?", field, cond.Value)

	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		s, ok := cond.Value.(string)
		if !ok {
			return Fragment{}, invalid("operator %s on %q requires a string value", cond.Operator, cond.Field)
		}
		anyPrefix := cond.Operator != OpStartsWith
		anySuffix := cond.Operator != OpEndsWith
		negate := cond.Operator == OpNotContains
		return Fragment{
			SQL:  b.grammar.PatternMatch(expr, negate),
			Args: []any{b.grammar.Pattern(s, anyPrefix, anySuffix)},
		}, nil

	case OpBlank:
		if field.Type == FieldText {
			return Fragment{SQL: fmt.Sprintf("(%s IS NULL OR %s = '')", expr, expr)}, nil
		}
		return Fragment{SQL: expr + " IS NULL"}, nil

	case OpNotBlank:
		if field.Type == FieldText {
			return Fragment{SQL: fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", expr, expr)}, nil
		}
		return Fragment{SQL: expr + " IS NOT NULL"}, nil

	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		if cond.Value == nil {
			return Fragment{}, invalid("operator %s on %q requires a value", cond.Operator, cond.Field)
		}
		return b.bind(fmt.Sprintf("%s %s ?", expr, comparisons[cond.Operator]), field, cond.Value)

	case OpInRange:
		if cond.Value == nil || cond.ValueTo == nil {
			return Fragment{}, invalid("operator inRange on %q requires both value and valueTo", cond.Field)
		}
		from, err := coerce(field, cond.Value)
		if err != nil {
			return Fragment{}, err
		}
		to, err := coerce(field, cond.ValueTo)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{SQL: expr + " BETWEEN ? AND ?", Args: []any{from, to}}, nil

	case OpIn:
		values := toList(cond.Value)
		if len(values) == 0 {
			return Fragment{SQL: "1 = 0"}, nil
		}
		args := make([]any, len(values))
		for i, v := range values {
			if args[i], err = coerce(field, v); err != nil {
				return Fragment{}, err
			}
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return Fragment{SQL: fmt.Sprintf("%s IN (%s)", expr, placeholders), Args: args}, nil
	}

	return Fragment{}, invalid("unsupported operator %q on %q", cond.Operator, cond.Field)
}

func (b *ConditionBuilder) bind(sql string, field Field, value any) (Fragment, error) {
	v, err := coerce(field, value)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: sql, Args: []any{v}}, nil
}

// coerce, JSON'dan gelen değeri kolon tipine uygun hale getirir.
// Tarih alanlarındaki string değerler time.Time'a çevrilir; böylece sürücü
// saklanan biçimle aynı biçimde bağlar.
func coerce(field Field, value any) (any, error) {
	switch field.Type {
	case FieldDate:
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, invalid("invalid date value %q for %q", s, field.Name)
	case FieldBool:
		switch v := value.(type) {
		case string:
			return v == "true" || v == "1", nil
		}
	}
	return value, nil
}

// toList, tek değeri tek elemanlı listeye, slice'ı []any'ye çevirir.
func toList(value any) []any {
	if value == nil {
		return nil
	}
	if list, ok := value.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func invalid(format string, args ...any) error {
	return database.NewError(database.KindValidation, "read", fmt.Sprintf(format, args...))
}
