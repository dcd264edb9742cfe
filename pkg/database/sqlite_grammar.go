package database

import "strings"

// SQLiteGrammar, SQLite lehçesidir. Identifier'lar çift tırnak ile sarmalanır.
//
// SQLite'ın LIKE operatörü ASCII için büyük/küçük harf duyarsızdır; desen
// eşleşmesi bu yüzden her zaman duyarlı olan GLOB ile yapılır.
type SQLiteGrammar struct {
	sqlCompiler
}

func NewSQLiteGrammar() *SQLiteGrammar {
	return &SQLiteGrammar{sqlCompiler{quote: `"`, noLimit: "-1"}}
}

func (g *SQLiteGrammar) Name() string { return DriverSQLite }

func (g *SQLiteGrammar) PatternMatch(expr string, negate bool) string {
	if negate {
		return expr + " NOT GLOB ?"
	}
	return expr + " GLOB ?"
}

// GLOB'da kaçış karakteri yoktur; joker karakterler tek elemanlı karakter
// sınıfına alınarak literal hale getirilir.
var sqliteGlobEscaper = strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)

func (g *SQLiteGrammar) Pattern(value string, anyPrefix, anySuffix bool) string {
	p := sqliteGlobEscaper.Replace(value)
	if anyPrefix {
		p = "*" + p
	}
	if anySuffix {
		p += "*"
	}
	return p
}
