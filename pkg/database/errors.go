// -----------------------------------------------------------------------------
// Store Error Translation
// -----------------------------------------------------------------------------
// Sürücüye özgü hatalar (MySQL hata numaraları, SQLite sonuç kodları) tek bir
// noktada küçük bir taksonomiye çevrilir. Repository katmanı sürücü hatasını
// asla doğrudan dışarı sızdırmaz.
//
// Taksonomi:
//   - KindValidation: geçersiz input (bad request)
//   - KindNotFound: kayıt bulunamadı
//   - KindConflict: unique / foreign key ihlali
//   - KindInternal: beklenmeyen store hatası (sürücü mesajı loglanır)
//   - KindInvalidOperation: hiyerarşi motoru kontrolleri
//
// Yeniden deneme (retry) yapılmaz.
// -----------------------------------------------------------------------------

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrorKind, hata sınıfıdır.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindInternal         ErrorKind = "internal"
	KindInvalidOperation ErrorKind = "invalid_operation"
)

// Error, taksonomiye çevrilmiş store hatasıdır.
type Error struct {
	Kind    ErrorKind
	Op      string // create, update, delete, read
	Message string
	Err     error // Orijinal sürücü hatası
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError, sürücü hatası olmadan taksonomi hatası üretir.
func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// InvalidOperation, hiyerarşi motoru kontrolleri için kısayoldur.
func InvalidOperation(op, message string) *Error {
	return NewError(KindInvalidOperation, op, message)
}

// KindOf, hata zincirindeki ilk *Error'ın sınıfını döner.
// Taksonomi dışı hatalar KindInternal kabul edilir.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind, hatanın belirtilen sınıfta olup olmadığını kontrol eder.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// MySQL hata numaraları.
var mysqlKinds = map[uint16]ErrorKind{
	1048: KindValidation, // Column cannot be null
	1292: KindValidation, // Incorrect datetime value
	1364: KindValidation, // Field doesn't have a default value
	1366: KindValidation, // Incorrect integer value
	1406: KindValidation, // Data too long for column
	1062: KindConflict,   // Duplicate entry
	1216: KindConflict,   // Cannot add child row (legacy)
	1217: KindConflict,   // Cannot delete parent row (legacy)
	1451: KindConflict,   // Cannot delete or update a parent row
	1452: KindConflict,   // Cannot add or update a child row
	1054: KindInternal,   // Unknown column
	1064: KindInternal,   // Syntax error
	1146: KindInternal,   // Table doesn't exist
	2002: KindInternal,   // Can't connect through socket
	2003: KindInternal,   // Can't connect to server
	2006: KindInternal,   // Server has gone away
	2013: KindInternal,   // Lost connection during query
}

var conflictMessages = map[string]string{
	"create": "a record with the same unique value already exists or a referenced record is missing",
	"update": "the update conflicts with an existing record or a missing reference",
	"delete": "the record is still referenced by other records",
}

// TranslateAndLog, Translate ile aynıdır; ek olarak ilk kez çevrilen
// internal hataları sürücü mesajıyla loglar.
func TranslateAndLog(logger zerolog.Logger, op string, err error) error {
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	translated := Translate(op, err)
	if translated != nil && IsKind(translated, KindInternal) {
		logger.Error().Err(err).Str("op", op).Msg("store hatası")
	}
	return translated
}

// Translate, sürücü hatasını taksonomiye çevirir. nil için nil döner.
// Zaten çevrilmiş hatalar olduğu gibi geçer.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Op: op, Message: "record not found", Err: err}
	}

	kind, detail := classify(err)
	message := detail
	switch kind {
	case KindConflict:
		if m, ok := conflictMessages[op]; ok {
			message = m
		}
	case KindInternal:
		message = "internal store error"
	}

	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func classify(err error) (ErrorKind, string) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if kind, ok := mysqlKinds[myErr.Number]; ok {
			return kind, myErr.Message
		}
		return KindInternal, myErr.Message
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr.Code(), liteErr.Error()), liteErr.Error()
	}

	return KindInternal, err.Error()
}

func classifySQLite(code int, msg string) ErrorKind {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return KindConflict
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_MISMATCH:
		return KindValidation
	}

	// Genişletilmiş kodlar kapalıysa birincil kod ve mesaj üzerinden karar verilir.
	if code&0xff == sqlite3.SQLITE_CONSTRAINT {
		switch {
		case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "FOREIGN KEY"):
			return KindConflict
		default:
			return KindValidation
		}
	}
	return KindInternal
}
