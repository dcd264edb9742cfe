package database

import "strings"

// MySQLGrammar, MySQL 8 lehçesidir. Identifier'lar backtick ile sarmalanır.
type MySQLGrammar struct {
	sqlCompiler
}

func NewMySQLGrammar() *MySQLGrammar {
	return &MySQLGrammar{sqlCompiler{quote: "`", noLimit: "18446744073709551615"}}
}

func (g *MySQLGrammar) Name() string { return DriverMySQL }

// PatternMatch, binary collation ile büyük/küçük harf duyarlı LIKE üretir.
func (g *MySQLGrammar) PatternMatch(expr string, negate bool) string {
	if negate {
		return expr + " COLLATE utf8mb4_bin NOT LIKE ?"
	}
	return expr + " COLLATE utf8mb4_bin LIKE ?"
}

var mysqlLikeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Pattern, LIKE joker karakterlerini (% ve _) varsayılan kaçış karakteri
// olan ters bölü ile etkisizleştirir.
func (g *MySQLGrammar) Pattern(value string, anyPrefix, anySuffix bool) string {
	p := mysqlLikeEscaper.Replace(value)
	if anyPrefix {
		p = "%" + p
	}
	if anySuffix {
		p += "%"
	}
	return p
}
