package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// -----------------------------------------------------------------------------
// QUERY BUILDER
// -----------------------------------------------------------------------------
// Builder; tablo, kolonlar, where'lar, order, limit, offset gibi state
// bilgilerini tutar. Okuma (Get, First, Rows, Count) ve yazma (ExecInsert,
// ExecUpdate, ExecDelete) metodları context alır ve QueryExecutor üzerinden
// çalışır; aynı builder *sql.DB veya *sql.Tx ile kullanılabilir.
//
// GÜVENLİK:
// - Identifier'lar regex whitelist'inden geçer
// - Direction parametresi whitelist kontrolünden geçer
// - Tüm değerler prepared statement ile bağlanır
// -----------------------------------------------------------------------------

// validIdentifierRegex, güvenli SQL identifier pattern'ini tanımlar.
// Sadece alphanumeric, underscore ve nokta (table.column için) kabul eder.
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_\.]+$`)

type QueryBuilder struct {
	executor QueryExecutor
	grammar  Grammar
	table    string
	columns  []string
	wheres   []WhereClause
	orders   []OrderClause
	limit    int
	offset   int
}

// NewBuilder, veritabanı bağlantısını alarak yeni QueryBuilder üretir.
//
// Parametreler:
//   - executor: SQL komutlarını çalıştıracak executor (*sql.DB veya *sql.Tx)
//   - grammar: SQL dialect'ini yöneten grammar (MySQL, SQLite)
func NewBuilder(executor QueryExecutor, grammar Grammar) *QueryBuilder {
	return &QueryBuilder{
		executor: executor,
		grammar:  grammar,
		columns:  []string{"*"},
	}
}

// validateIdentifier, SQL identifier'ı (column/table adı) validate eder.
//
// Identifier'lar kod içinden (schema registry) gelir, kullanıcı input'u
// değildir; geçersiz identifier programlama hatasıdır ve panic atar.
//
// Örnekler:
//   - "users" → geçerli
//   - "users.id" → geçerli
//   - "id; DROP TABLE users--" → panic
func validateIdentifier(identifier string, context string) {
	if identifier == "*" {
		return
	}

	if strings.TrimSpace(identifier) == "" {
		panic(fmt.Sprintf("Invalid %s name: empty identifier", context))
	}

	if !validIdentifierRegex.MatchString(identifier) {
		panic(fmt.Sprintf("Invalid %s name: '%s' (contains unsafe characters)", context, identifier))
	}

	if strings.Contains(identifier, ".") {
		parts := strings.Split(identifier, ".")
		if len(parts) > 2 {
			panic(fmt.Sprintf("Invalid %s name: '%s' (too many dots)", context, identifier))
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				panic(fmt.Sprintf("Invalid %s name: '%s' (empty part)", context, identifier))
			}
		}
	}
}

// Table, sorgunun çalışacağı tablo adını belirler.
func (qb *QueryBuilder) Table(tableName string) *QueryBuilder {
	validateIdentifier(tableName, "table")
	qb.table = tableName
	return qb
}

// Select, sorgudan döndürülecek kolonları belirler.
//
// Örnek:
//
//	qb.Select("id", "name")
//	qb.Select("MAX(`sort_order`) AS max_order")
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	for _, col := range columns {
		// SQL fonksiyonları developer tarafından yazılır; yine de basic bir check yapalım
		if strings.Contains(col, "(") && strings.Contains(col, ")") {
			if strings.Contains(col, ";") || strings.Contains(col, "--") {
				panic(fmt.Sprintf("Invalid column expression: '%s' (suspicious content)", col))
			}
			continue
		}

		if idx := strings.Index(strings.ToLower(col), " as "); idx > 0 {
			validateIdentifier(strings.TrimSpace(col[:idx]), "column")
			validateIdentifier(strings.TrimSpace(col[idx+4:]), "column alias")
			continue
		}

		validateIdentifier(col, "column")
	}

	qb.columns = columns
	return qb
}

// Where, sorguya bir WHERE koşulu ekler.
//
// Örnek:
//
//	qb.Where("status", "=", "active")
func (qb *QueryBuilder) Where(column string, operator string, value any) *QueryBuilder {
	validateIdentifier(column, "column")
	qb.wheres = append(qb.wheres, WhereClause{Column: column, Operator: operator, Value: value})
	return qb
}

// WhereIn, kolon değerinin listede olup olmadığını kontrol eder.
// Boş liste hiçbir satırla eşleşmez.
//
// Örnek:
//
//	qb.WhereIn("status", []any{"active", "pending"})
//	→ SQL: WHERE `status` IN (?, ?)
func (qb *QueryBuilder) WhereIn(column string, values []any) *QueryBuilder {
	validateIdentifier(column, "column")
	qb.wheres = append(qb.wheres, WhereClause{Column: column, Operator: "IN", Value: values})
	return qb
}

// WhereNull, kolonun NULL olduğunu kontrol eder.
// Soft delete pattern'inde aktif kayıtları bulmak için kullanılır.
func (qb *QueryBuilder) WhereNull(column string) *QueryBuilder {
	validateIdentifier(column, "column")
	qb.wheres = append(qb.wheres, WhereClause{Column: column, Operator: "IS", Value: nil})
	return qb
}

// WhereNotNull, kolonun NULL olmadığını kontrol eder.
func (qb *QueryBuilder) WhereNotNull(column string) *QueryBuilder {
	validateIdentifier(column, "column")
	qb.wheres = append(qb.wheres, WhereClause{Column: column, Operator: "IS NOT", Value: nil})
	return qb
}

// WhereRaw, hazır derlenmiş bir predicate ekler. SQL parçası parantez içine
// alınır; args placeholder sırasıyla bağlanır.
//
// Dikkat: sqlFragment kullanıcı input'u içermemelidir. Condition builder
// çıktısı gibi parametrelenmiş parçalar için kullanılır.
func (qb *QueryBuilder) WhereRaw(sqlFragment string, args ...any) *QueryBuilder {
	if strings.TrimSpace(sqlFragment) == "" {
		return qb
	}
	qb.wheres = append(qb.wheres, WhereClause{Operator: "RAW", SQL: sqlFragment, Value: args})
	return qb
}

// OrderBy, sorgu sonuçlarını belirtilen kolona göre sıralar.
// Geçersiz direction değerleri ASC olarak yorumlanır.
func (qb *QueryBuilder) OrderBy(column string, direction string) *QueryBuilder {
	validateIdentifier(column, "column")
	qb.orders = append(qb.orders, OrderClause{
		Column:    column,
		Direction: ParseDirection(strings.ToUpper(strings.TrimSpace(direction))),
	})
	return qb
}

// Limit, döndürülecek maksimum satır sayısını belirler.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	qb.limit = limit
	return qb
}

// Offset, atlanacak satır sayısını belirler.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	qb.offset = offset
	return qb
}

// ToSQL, builder state'ini SQL string'e ve parametrelere dönüştürür.
func (qb *QueryBuilder) ToSQL() (string, []any, error) {
	return qb.grammar.CompileSelect(qb)
}

// Get, sorguyu çalıştırır ve sonuçları bir struct slice'ına tarar.
//
// Örnek:
//
//	var items []models.Department
//	err := qb.Table("departments").WhereNull("deleted_at").Get(ctx, &items)
func (qb *QueryBuilder) Get(ctx context.Context, dest any) error {
	sqlStr, args, err := qb.ToSQL()
	if err != nil {
		return fmt.Errorf("query compilation failed: %w", err)
	}

	rows, err := qb.executor.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	return ScanSlice(rows, dest)
}

// First, sorguyu 'LIMIT 1' ile çalıştırır ve ilk sonucu struct'a tarar.
// Satır bulunamazsa sql.ErrNoRows döner.
func (qb *QueryBuilder) First(ctx context.Context, dest any) error {
	qb.Limit(1)

	sqlStr, args, err := qb.ToSQL()
	if err != nil {
		return fmt.Errorf("query compilation failed: %w", err)
	}

	rows, err := qb.executor.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}

	return ScanStruct(rows, dest)
}

// Rows, sorguyu çalıştırır ve sonuçları kolon adı → değer map'leri olarak döner.
func (qb *QueryBuilder) Rows(ctx context.Context) ([]map[string]any, error) {
	sqlStr, args, err := qb.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("query compilation failed: %w", err)
	}
	return QueryMaps(ctx, qb.executor, sqlStr, args...)
}

// Count, mevcut where koşullarına uyan satır sayısını döner.
// Sıralama, limit ve offset sayıma dahil edilmez.
func (qb *QueryBuilder) Count(ctx context.Context) (int64, error) {
	counter := *qb
	counter.columns = []string{"COUNT(*) AS aggregate"}
	counter.orders = nil
	counter.limit = 0
	counter.offset = 0

	sqlStr, args, err := counter.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("query compilation failed: %w", err)
	}

	var total int64
	if err := qb.executor.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ExecInsert, INSERT sorgusunu çalıştırır.
func (qb *QueryBuilder) ExecInsert(ctx context.Context, data map[string]any) (sql.Result, error) {
	for column := range data {
		validateIdentifier(column, "column")
	}

	sqlStr, args, err := qb.grammar.CompileInsert(qb.table, data)
	if err != nil {
		return nil, fmt.Errorf("insert compilation failed: %w", err)
	}
	return qb.executor.ExecContext(ctx, sqlStr, args...)
}

// ExecUpdate, UPDATE sorgusunu çalıştırır.
//
// GÜVENLİK UYARISI:
// WHERE clause olmadan UPDATE tüm tabloyu günceller. Repository katmanı
// her zaman en az bir koşul ekler.
func (qb *QueryBuilder) ExecUpdate(ctx context.Context, data map[string]any) (sql.Result, error) {
	for column := range data {
		validateIdentifier(column, "column")
	}

	sqlStr, args, err := qb.grammar.CompileUpdate(qb.table, data, qb.wheres)
	if err != nil {
		return nil, fmt.Errorf("update compilation failed: %w", err)
	}
	return qb.executor.ExecContext(ctx, sqlStr, args...)
}

// ExecDelete, DELETE sorgusunu çalıştırır.
func (qb *QueryBuilder) ExecDelete(ctx context.Context) (sql.Result, error) {
	sqlStr, args, err := qb.grammar.CompileDelete(qb.table, qb.wheres)
	if err != nil {
		return nil, fmt.Errorf("delete compilation failed: %w", err)
	}
	return qb.executor.ExecContext(ctx, sqlStr, args...)
}
