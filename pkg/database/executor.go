package database

import (
	"context"
	"database/sql"
)

// QueryExecutor, Go'nun 'database/sql' paketindeki hem *sql.DB (havuz) hem de
// *sql.Tx (transaction) tarafından örtük olarak uygulanan context'li metodları
// tanımlar.
//
// QueryBuilder ve repository katmanı *sql.DB'ye kilitlenmek yerine bu arayüze
// kilitlenir; aynı kod hem normal sorgularda hem de transaction içinde çalışır.
type QueryExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ QueryExecutor = (*sql.DB)(nil)
	_ QueryExecutor = (*sql.Tx)(nil)
)
