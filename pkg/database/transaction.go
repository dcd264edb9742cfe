// pkg/database/transaction.go
//
// Veritabanı işlemlerinin (transaction) güvenli ve okunabilir bir şekilde
// yönetilmesini sağlar.
//
// Hiyerarşi motorundaki her mutasyon (oluşturma, taşıma, silme, sıralama)
// entity satırı ile ancestry satırlarını birlikte yazar; bu yazımların ya
// tamamı ya da hiçbiri uygulanmalıdır.
//
// Örnek kullanım:
//
//	err := database.WithTransaction(ctx, db, grammar, log, func(ctx context.Context, tx *database.Transaction) error {
//	    _, err := tx.NewBuilder().Table("departments").ExecInsert(ctx, data)
//	    return err
//	})

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Transaction, sql.Tx nesnesini ve bağlı grammar'ı saklar.
type Transaction struct {
	Tx      *sql.Tx
	grammar Grammar
	logger  zerolog.Logger
}

// BeginTransaction, yeni bir transaction başlatır.
//
// Dönen Transaction mutlaka Commit() veya Rollback() ile sonlandırılmalıdır.
func BeginTransaction(ctx context.Context, db *sql.DB, grammar Grammar, logger zerolog.Logger) (*Transaction, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	logger.Debug().Msg("transaction başladı")
	return &Transaction{Tx: tx, grammar: grammar, logger: logger}, nil
}

// NewBuilder, transaction'a bağlı yeni bir QueryBuilder oluşturur.
func (t *Transaction) NewBuilder() *QueryBuilder {
	return NewBuilder(t.Tx, t.grammar)
}

// Commit, transaction'ı başarılı şekilde sonlandırır.
func (t *Transaction) Commit() error {
	err := t.Tx.Commit()
	if err == nil {
		t.logger.Debug().Msg("transaction commit edildi")
	}
	return err
}

// Rollback, yapılmış tüm değişiklikleri geri alır.
func (t *Transaction) Rollback() error {
	err := t.Tx.Rollback()
	if err == nil {
		t.logger.Debug().Msg("transaction geri alındı")
	}
	return err
}

// WithTransaction, fn'i tek bir transaction içinde çalıştırır.
// fn hata dönerse veya panic atarsa rollback yapılır, aksi halde commit edilir.
//
// Transaction çağıranın iptalinden ayrılmış bir context üzerinde çalışır:
// başlamış bir hiyerarşi mutasyonu yarıda kesilmez. Zaman aşımları sürücüye aittir.
func WithTransaction(ctx context.Context, db *sql.DB, grammar Grammar, logger zerolog.Logger, fn func(ctx context.Context, tx *Transaction) error) (err error) {
	ctx = context.WithoutCancel(ctx)

	tx, err := BeginTransaction(ctx, db, grammar, logger)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error().Err(rbErr).Msg("transaction rollback başarısız")
		}
		return err
	}

	return tx.Commit()
}
