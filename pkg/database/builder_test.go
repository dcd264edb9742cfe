// -----------------------------------------------------------------------------
// Query Builder Tests
// -----------------------------------------------------------------------------
// Builder'ın her iki lehçe için ürettiği SQL'i ve SQL injection korumasını
// doğrular. Testler veritabanı bağlantısı gerektirmez.
// -----------------------------------------------------------------------------

package database

import (
	"strings"
	"testing"
)

func TestCompileSelect_BothGrammars(t *testing.T) {
	cases := []struct {
		grammar Grammar
		want    string
	}{
		{NewMySQLGrammar(), "SELECT `id`, `name` FROM `departments` WHERE `parent_id` = ? AND `deleted_at` IS NULL ORDER BY `sort_order` ASC LIMIT 10 OFFSET 20"},
		{NewSQLiteGrammar(), `SELECT "id", "name" FROM "departments" WHERE "parent_id" = ? AND "deleted_at" IS NULL ORDER BY "sort_order" ASC LIMIT 10 OFFSET 20`},
	}

	for _, tc := range cases {
		t.Run(tc.grammar.Name(), func(t *testing.T) {
			sql, args, err := NewBuilder(nil, tc.grammar).
				Table("departments").
				Select("id", "name").
				Where("parent_id", "=", "p-1").
				WhereNull("deleted_at").
				OrderBy("sort_order", "asc").
				Limit(10).
				Offset(20).
				ToSQL()
			if err != nil {
				t.Fatalf("Failed to compile SQL: %v", err)
			}
			if sql != tc.want {
				t.Errorf("Expected:\n%s\nGot:\n%s", tc.want, sql)
			}
			if len(args) != 1 || args[0] != "p-1" {
				t.Errorf("Unexpected args: %v", args)
			}
		})
	}
}

func TestWhereIn_EmptyListMatchesNothing(t *testing.T) {
	sql, args, err := NewBuilder(nil, NewMySQLGrammar()).
		Table("departments").
		WhereIn("id", []any{}).
		Where("code", "=", "X").
		ToSQL()
	if err != nil {
		t.Fatalf("Failed to compile SQL: %v", err)
	}

	if !strings.Contains(sql, "WHERE 1 = 0 AND `code` = ?") {
		t.Errorf("Empty IN must be always false, got: %s", sql)
	}
	if len(args) != 1 {
		t.Errorf("Expected only the code arg, got %v", args)
	}
}

func TestWhereIn_ValuesAreBound(t *testing.T) {
	malicious := []any{"active", "'; DROP TABLE users--"}

	sql, args, err := NewBuilder(nil, NewSQLiteGrammar()).
		Table("departments").
		WhereIn("code", malicious).
		ToSQL()
	if err != nil {
		t.Fatalf("Failed to compile SQL: %v", err)
	}
	if strings.Contains(sql, "DROP TABLE") {
		t.Error("SQL injection detected in WhereIn")
	}
	if !strings.Contains(sql, `"code" IN (?, ?)`) {
		t.Errorf("WhereIn should use placeholders, got: %s", sql)
	}
	if len(args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(args))
	}
}

func TestWhereRaw_KeepsArgumentOrder(t *testing.T) {
	sql, args, err := NewBuilder(nil, NewMySQLGrammar()).
		Table("departments").
		Where("parent_id", "=", "root").
		WhereRaw("`name` = ? OR `code` = ?", "a", "b").
		Where("sort_order", ">=", 100).
		ToSQL()
	if err != nil {
		t.Fatalf("Failed to compile SQL: %v", err)
	}

	want := "SELECT * FROM `departments` WHERE `parent_id` = ? AND (`name` = ? OR `code` = ?) AND `sort_order` >= ?"
	if sql != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, sql)
	}
	if len(args) != 4 || args[0] != "root" || args[1] != "a" || args[3] != 100 {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestOffsetWithoutLimit(t *testing.T) {
	mysqlSQL, _, _ := NewBuilder(nil, NewMySQLGrammar()).Table("departments").Offset(5).ToSQL()
	if !strings.HasSuffix(mysqlSQL, "LIMIT 18446744073709551615 OFFSET 5") {
		t.Errorf("Unexpected MySQL SQL: %s", mysqlSQL)
	}

	sqliteSQL, _, _ := NewBuilder(nil, NewSQLiteGrammar()).Table("departments").Offset(5).ToSQL()
	if !strings.HasSuffix(sqliteSQL, "LIMIT -1 OFFSET 5") {
		t.Errorf("Unexpected SQLite SQL: %s", sqliteSQL)
	}
}

func TestCompileInsert_IsDeterministic(t *testing.T) {
	data := map[string]any{"name": "A", "id": "1", "code": "X"}

	for i := 0; i < 5; i++ {
		sql, args, err := NewSQLiteGrammar().CompileInsert("departments", data)
		if err != nil {
			t.Fatalf("Failed to compile insert: %v", err)
		}
		want := `INSERT INTO "departments" ("code", "id", "name") VALUES (?, ?, ?)`
		if sql != want {
			t.Fatalf("Expected:\n%s\nGot:\n%s", want, sql)
		}
		if args[0] != "X" || args[1] != "1" || args[2] != "A" {
			t.Fatalf("Unexpected args: %v", args)
		}
	}
}

func TestCompileUpdate_WithInClause(t *testing.T) {
	sql, args, err := NewMySQLGrammar().CompileUpdate(
		"departments",
		map[string]any{"has_children": false},
		[]WhereClause{{Column: "id", Operator: "IN", Value: []any{"a", "b"}}},
	)
	if err != nil {
		t.Fatalf("Failed to compile update: %v", err)
	}
	want := "UPDATE `departments` SET `has_children` = ? WHERE `id` IN (?, ?)"
	if sql != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, sql)
	}
	if len(args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(args))
	}
}

func TestPattern_EscapesWildcards(t *testing.T) {
	if got := NewMySQLGrammar().Pattern(`50%_off\`, true, true); got != `%50\%\_off\\%` {
		t.Errorf("Unexpected MySQL pattern: %s", got)
	}
	if got := NewSQLiteGrammar().Pattern("a*b?[c", false, true); got != "a[*]b[?][[]c*" {
		t.Errorf("Unexpected SQLite pattern: %s", got)
	}
	if got := NewSQLiteGrammar().PatternMatch(`"t"."name"`, true); got != `"t"."name" NOT GLOB ?` {
		t.Errorf("Unexpected SQLite predicate: %s", got)
	}
}

// -----------------------------------------------------------------------------
// SQL INJECTION GÜVENLİK TESTLERİ
// -----------------------------------------------------------------------------

func TestSQLInjection_MaliciousIdentifiers(t *testing.T) {
	malicious := []string{
		"id; DROP TABLE users--",
		"id' OR '1'='1",
		"id UNION SELECT * FROM passwords--",
		"id`",
		`id"`,
		"a.b.c",
		"",
	}

	apply := map[string]func(qb *QueryBuilder, ident string){
		"OrderBy": func(qb *QueryBuilder, ident string) { qb.OrderBy(ident, "ASC") },
		"Where":   func(qb *QueryBuilder, ident string) { qb.Where(ident, "=", 1) },
		"WhereIn": func(qb *QueryBuilder, ident string) { qb.WhereIn(ident, []any{1}) },
		"Table":   func(qb *QueryBuilder, ident string) { qb.Table(ident) },
		"Select":  func(qb *QueryBuilder, ident string) { qb.Select(ident) },
	}

	for method, fn := range apply {
		for _, ident := range malicious {
			t.Run(method+"/"+ident, func(t *testing.T) {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("Expected panic for malicious identifier %q in %s", ident, method)
					}
				}()
				fn(NewBuilder(nil, NewMySQLGrammar()), ident)
			})
		}
	}
}

func TestSQLInjection_InvalidOperator(t *testing.T) {
	_, _, err := NewBuilder(nil, NewMySQLGrammar()).
		Table("departments").
		Where("id", "= 1 OR 1 =", 1).
		ToSQL()
	if err == nil {
		t.Error("Expected error for operator outside whitelist")
	}
}

func TestSQLFunctionsInSelect(t *testing.T) {
	sql, _, err := NewBuilder(nil, NewMySQLGrammar()).
		Table("departments").
		Select("MAX(`sort_order`) AS max_order", "parent_id AS parent").
		ToSQL()
	if err != nil {
		t.Fatalf("Failed to compile SQL: %v", err)
	}
	want := "SELECT MAX(`sort_order`) AS max_order, `parent_id` AS `parent` FROM `departments`"
	if sql != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, sql)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for function expression with comment")
		}
	}()
	NewBuilder(nil, NewMySQLGrammar()).Select("COUNT(*); DROP TABLE x--")
}
