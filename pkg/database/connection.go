// -----------------------------------------------------------------------------
// Database Package
// -----------------------------------------------------------------------------
// Uygulamanın ilişkisel veritabanına bağlanmasını sağlayan merkezi bağlantı
// fonksiyonu. MySQL üretim sürücüsüdür; SQLite (modernc, cgo'suz) gömülü
// kullanım ve testler içindir.
// -----------------------------------------------------------------------------

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config, bağlantı havuzu ayarlarıdır.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect, verilen ayarlarla veritabanına bağlanır ve *sql.DB döndürür.
//
// Adımlar:
//  1. sql.Open ile sürücü ve DSN kullanılarak bağlantı nesnesi oluşturulur.
//  2. Bağlantı havuzu ayarları uygulanır.
//  3. PingContext ile veritabanının ulaşılabilirliği kontrol edilir.
//
// SQLite in-memory veritabanı bağlantı başına ayrı olduğu için havuz tek
// bağlantıya sabitlenir.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*sql.DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}
	if cfg.Driver != DriverMySQL && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
		db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 25))
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		} else {
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	}

	logger.Info().Str("driver", cfg.Driver).Msg("veritabanına bağlanılıyor")
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("driver", cfg.Driver).Msg("veritabanı bağlantısı başarılı")
	return db, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
