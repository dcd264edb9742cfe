package database

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Grammar Interface
// -----------------------------------------------------------------------------
// Tüm compile metotları error döner; geçersiz identifier veya operatör
// request ortasında panic yerine hata olarak yukarı taşınır.
// -----------------------------------------------------------------------------

// Grammar, SQL lehçesine özgü sorgu üretimini tanımlar.
//
// Implementasyonlar:
//   - MySQLGrammar: MySQL 8 / MariaDB 10.2+ için
//   - SQLiteGrammar: SQLite 3.25+ için (gömülü kullanım ve testler)
type Grammar interface {
	// Name, lehçe adını döndürür ("mysql", "sqlite").
	Name() string

	// Wrap, identifier'ları (kolon/tablo adları) lehçeye göre sarmalar.
	// MySQL: `table`, SQLite: "table"
	Wrap(value string) (string, error)

	CompileSelect(qb *QueryBuilder) (string, []any, error)
	CompileInsert(table string, data map[string]any) (string, []any, error)
	CompileUpdate(table string, data map[string]any, wheres []WhereClause) (string, []any, error)
	CompileDelete(table string, wheres []WhereClause) (string, []any, error)

	// PatternMatch, büyük/küçük harf duyarlı desen eşleşmesi predicate'i
	// üretir. Sonuçta tek bir placeholder bulunur.
	PatternMatch(expr string, negate bool) string

	// Pattern, kullanıcı değerindeki joker karakterleri etkisizleştirir ve
	// istenen taraflara joker ekler.
	Pattern(value string, anyPrefix, anySuffix bool) string
}

var validIdentifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var allowedOperators = map[string]bool{
	"=":           true,
	"!=":          true,
	"<>":          true,
	"<":           true,
	">":           true,
	"<=":          true,
	">=":          true,
	"IN":     true,
	"IS":     true,
	"IS NOT": true,
	"RAW":    true,
}

// sqlCompiler, lehçeler arasında ortak olan SELECT/INSERT/UPDATE/DELETE
// üretimini yapar. Lehçeler yalnızca quote karakterini belirler.
type sqlCompiler struct {
	quote   string
	noLimit string
}

// Wrap, kolon ve tablo isimlerini quote karakteri ile sarmalar.
// "tablo.kolon" formatında her parça ayrı ayrı doğrulanır.
func (c sqlCompiler) Wrap(value string) (string, error) {
	if value == "*" {
		return value, nil
	}

	parts := strings.Split(value, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid SQL identifier: %s (too many dots)", value)
	}
	wrapped := make([]string, len(parts))
	for i, part := range parts {
		if part == "*" && i == len(parts)-1 && i > 0 {
			wrapped[i] = part
			continue
		}
		if !validIdentifierPattern.MatchString(part) {
			return "", fmt.Errorf("invalid SQL identifier: %s (contains unsafe characters)", value)
		}
		wrapped[i] = c.quote + part + c.quote
	}
	return strings.Join(wrapped, "."), nil
}

func (c sqlCompiler) validateOperator(operator string) error {
	op := strings.ToUpper(strings.TrimSpace(operator))
	if !allowedOperators[op] {
		return fmt.Errorf("invalid SQL operator: %s (not in whitelist)", operator)
	}
	return nil
}

// wrapColumnExpr, select listesindeki bir girdiyi sarmalar.
// Fonksiyon ifadeleri (parantez içeren) olduğu gibi bırakılır.
func (c sqlCompiler) wrapColumnExpr(col string) (string, error) {
	if strings.Contains(col, "(") {
		return col, nil
	}
	lower := strings.ToLower(col)
	if idx := strings.Index(lower, " as "); idx > 0 {
		expr, err := c.Wrap(strings.TrimSpace(col[:idx]))
		if err != nil {
			return "", err
		}
		alias, err := c.Wrap(strings.TrimSpace(col[idx+4:]))
		if err != nil {
			return "", err
		}
		return expr + " AS " + alias, nil
	}
	return c.Wrap(col)
}

// compileWheres, WHERE gövdesini üretir (WHERE anahtar kelimesi hariç).
func (c sqlCompiler) compileWheres(wheres []WhereClause) (string, []any, error) {
	var sb strings.Builder
	var args []any

	for i, w := range wheres {
		if err := c.validateOperator(w.Operator); err != nil {
			return "", nil, fmt.Errorf("where clause error: %w", err)
		}
		if i > 0 {
			sb.WriteString(" AND ")
		}

		operator := strings.ToUpper(strings.TrimSpace(w.Operator))
		if operator == "RAW" {
			sb.WriteString("(" + w.SQL + ")")
			if values, ok := w.Value.([]any); ok {
				args = append(args, values...)
			}
			continue
		}

		wrappedCol, err := c.Wrap(w.Column)
		if err != nil {
			return "", nil, fmt.Errorf("where column wrap error: %w", err)
		}

		switch operator {
		case "IN":
			values, ok := w.Value.([]any)
			if !ok {
				return "", nil, fmt.Errorf("IN operator requires []any value")
			}
			// Boş liste hiçbir satırla eşleşmez.
			if len(values) == 0 {
				sb.WriteString("1 = 0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			sb.WriteString(fmt.Sprintf("%s IN (%s)", wrappedCol, placeholders))
			args = append(args, values...)

		case "IS", "IS NOT":
			if w.Value == nil {
				sb.WriteString(fmt.Sprintf("%s %s NULL", wrappedCol, operator))
			} else {
				sb.WriteString(fmt.Sprintf("%s %s ?", wrappedCol, operator))
				args = append(args, w.Value)
			}

		default:
			sb.WriteString(fmt.Sprintf("%s %s ?", wrappedCol, operator))
			args = append(args, w.Value)
		}
	}

	return sb.String(), args, nil
}

// CompileSelect, QueryBuilder'dan SELECT sorgusu üretir.
func (c sqlCompiler) CompileSelect(qb *QueryBuilder) (string, []any, error) {
	cols := make([]string, len(qb.columns))
	for i, col := range qb.columns {
		wrapped, err := c.wrapColumnExpr(col)
		if err != nil {
			return "", nil, fmt.Errorf("column wrap error: %w", err)
		}
		cols[i] = wrapped
	}

	table, err := c.Wrap(qb.table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	var args []any
	if len(qb.wheres) > 0 {
		where, whereArgs, err := c.compileWheres(qb.wheres)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + where)
		args = append(args, whereArgs...)
	}

	if len(qb.orders) > 0 {
		orders := make([]string, len(qb.orders))
		for i, order := range qb.orders {
			col, err := c.Wrap(order.Column)
			if err != nil {
				return "", nil, fmt.Errorf("order column wrap error: %w", err)
			}
			orders[i] = col + " " + string(order.Direction)
		}
		sb.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}

	if qb.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", qb.limit))
	}
	if qb.offset > 0 {
		if qb.limit <= 0 {
			// Her iki lehçe de OFFSET için LIMIT ister.
			sb.WriteString(" LIMIT " + c.noLimit)
		}
		sb.WriteString(fmt.Sprintf(" OFFSET %d", qb.offset))
	}

	return sb.String(), args, nil
}

// sortedKeys, üretilen SQL'in deterministik olması için map anahtarlarını sıralar.
func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompileInsert, INSERT sorgusu üretir.
func (c sqlCompiler) CompileInsert(table string, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("insert requires at least one column")
	}
	wrappedTable, err := c.Wrap(table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}

	keys := sortedKeys(data)
	cols := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		col, err := c.Wrap(k)
		if err != nil {
			return "", nil, fmt.Errorf("column wrap error: %w", err)
		}
		cols[i] = col
		args[i] = data[k]
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", wrappedTable, strings.Join(cols, ", "), placeholders)
	return sql, args, nil
}

// CompileUpdate, UPDATE sorgusu üretir.
func (c sqlCompiler) CompileUpdate(table string, data map[string]any, wheres []WhereClause) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("update requires at least one column")
	}
	wrappedTable, err := c.Wrap(table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}

	keys := sortedKeys(data)
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		col, err := c.Wrap(k)
		if err != nil {
			return "", nil, fmt.Errorf("column wrap error: %w", err)
		}
		sets[i] = col + " = ?"
		args = append(args, data[k])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", wrappedTable, strings.Join(sets, ", "))
	if len(wheres) > 0 {
		where, whereArgs, err := c.compileWheres(wheres)
		if err != nil {
			return "", nil, err
		}
		sql += " WHERE " + where
		args = append(args, whereArgs...)
	}
	return sql, args, nil
}

// CompileDelete, DELETE sorgusu üretir.
func (c sqlCompiler) CompileDelete(table string, wheres []WhereClause) (string, []any, error) {
	wrappedTable, err := c.Wrap(table)
	if err != nil {
		return "", nil, fmt.Errorf("table wrap error: %w", err)
	}

	sql := "DELETE FROM " + wrappedTable
	var args []any
	if len(wheres) > 0 {
		where, whereArgs, err := c.compileWheres(wheres)
		if err != nil {
			return "", nil, err
		}
		sql += " WHERE " + where
		args = whereArgs
	}
	return sql, args, nil
}

// GrammarFor, sürücü adına göre grammar döndürür.
func GrammarFor(driver string) (Grammar, error) {
	switch driver {
	case DriverMySQL:
		return NewMySQLGrammar(), nil
	case DriverSQLite:
		return NewSQLiteGrammar(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
