package query

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// SQL Assembler
// -----------------------------------------------------------------------------
// Önceden derlenmiş parçaları (SELECT listesi, FROM, WHERE, GROUP BY,
// ORDER BY) tek bir SELECT ifadesinde birleştirir. Parçaların içindeki
// identifier'lar çağıran tarafından sarmalanmış olmalıdır.
// -----------------------------------------------------------------------------

// Fragment, placeholder'lı SQL parçası ve bağlanacak argümanlarıdır.
type Fragment struct {
	SQL  string
	Args []any
}

// Empty reports whether the fragment carries no SQL.
func (f Fragment) Empty() bool { return strings.TrimSpace(f.SQL) == "" }

// AndFragments, boş olmayan parçaları parantez içinde AND ile birleştirir.
func AndFragments(parts ...Fragment) Fragment {
	return joinFragments("AND", parts)
}

// OrFragments, boş olmayan parçaları parantez içinde OR ile birleştirir.
func OrFragments(parts ...Fragment) Fragment {
	return joinFragments("OR", parts)
}

func joinFragments(joiner string, parts []Fragment) Fragment {
	var sqls []string
	var args []any
	for _, p := range parts {
		if p.Empty() {
			continue
		}
		sqls = append(sqls, p.SQL)
		args = append(args, p.Args...)
	}
	switch len(sqls) {
	case 0:
		return Fragment{}
	case 1:
		return Fragment{SQL: sqls[0], Args: args}
	}
	return Fragment{SQL: "(" + strings.Join(sqls, ") "+joiner+" (") + ")", Args: args}
}

// Select, tek bir SELECT ifadesinin parçalarıdır.
type Select struct {
	Columns []string
	From    Fragment // tablo ifadesi veya alt sorgu
	Where   Fragment
	GroupBy []string
	OrderBy []string
	Limit   int // 0: limitsiz
	Offset  int
}

// Build, parçaları SQL'e dönüştürür. FROM argümanları WHERE argümanlarından
// önce gelir.
func (s Select) Build() Fragment {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(s.Columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(s.From.SQL)

	args := append([]any{}, s.From.Args...)
	if !s.Where.Empty() {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.SQL)
		args = append(args, s.Where.Args...)
	}
	if len(s.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(s.OrderBy, ", "))
	}
	if s.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", s.Limit, s.Offset)
	}
	return Fragment{SQL: sb.String(), Args: args}
}

// Subquery, ifadeyi takma adlı bir türetilmiş tabloya çevirir.
func Subquery(f Fragment, alias string) Fragment {
	return Fragment{SQL: "(" + f.SQL + ") AS " + alias, Args: f.Args}
}

// RowNumberOver, ROW_NUMBER penceresi ifadesi üretir.
func RowNumberOver(partition, order, alias string) string {
	return fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS %s", partition, order, alias)
}

var aggregates = map[string]string{
	"sum":   "SUM",
	"min":   "MIN",
	"max":   "MAX",
	"count": "COUNT",
	"avg":   "AVG",
}

// Aggregate, whitelist'teki bir toplama fonksiyonu ifadesi üretir.
func Aggregate(fn, expr, alias string) (string, error) {
	name, ok := aggregates[strings.ToLower(fn)]
	if !ok {
		return "", invalid("unsupported aggregation %q", fn)
	}
	return fmt.Sprintf("%s(%s) AS %s", name, expr, alias), nil
}
