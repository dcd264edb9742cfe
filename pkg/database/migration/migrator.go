// -----------------------------------------------------------------------------
// Database Migration System
// -----------------------------------------------------------------------------
// Şema değişikliklerini sıralı ve izlenebilir şekilde uygular.
//
// Özellikler:
// - Schema builder (CreateTable, DropTable)
// - Column types (String, Integer, Boolean, Timestamps, ...)
// - Indexes (unique, index) ve foreign key'ler
// - Migration tracking (migrations tablosu, batch numarası)
// - Rollback (son batch)
//
// Kullanım:
//
//	type createDepartments struct{}
//
//	func (createDepartments) Name() string { return "2024_01_01_create_departments" }
//
//	func (createDepartments) Up(ctx context.Context, m *migration.Migrator) error {
//	    return m.CreateTable(ctx, "departments", func(t *migration.Blueprint) {
//	        t.UUID("id").Primary()
//	        t.String("name", 255)
//	        t.Timestamps()
//	    })
//	}
// -----------------------------------------------------------------------------

package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migration, tek bir şema değişikliğidir.
type Migration interface {
	Name() string
	Up(ctx context.Context, m *Migrator) error
	Down(ctx context.Context, m *Migrator) error
}

// Grammar, lehçeye özgü DDL üretimini tanımlar.
type Grammar interface {
	// CompileCreateTable, tabloyu oluşturan bir veya daha fazla ifade döner.
	CompileCreateTable(table string, columns []*Column, indexes []Index, foreignKeys []*ForeignKey) []string
	CompileDropTable(table string) string
	CompileHasTable() string
}

// Migrator manages database migrations.
type Migrator struct {
	db      *sql.DB
	grammar Grammar
	logger  zerolog.Logger
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB, grammar Grammar, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, grammar: grammar, logger: logger}
}

// CreateTable creates a new table.
func (m *Migrator) CreateTable(ctx context.Context, tableName string, callback func(*Blueprint)) error {
	blueprint := NewBlueprint(tableName)
	callback(blueprint)

	for _, stmt := range m.grammar.CompileCreateTable(blueprint.table, blueprint.columns, blueprint.indexes, blueprint.foreignKeys) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}

	m.logger.Info().Str("table", tableName).Msg("tablo oluşturuldu")
	return nil
}

// DropTable drops a table.
func (m *Migrator) DropTable(ctx context.Context, tableName string) error {
	if _, err := m.db.ExecContext(ctx, m.grammar.CompileDropTable(tableName)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}

	m.logger.Info().Str("table", tableName).Msg("tablo silindi")
	return nil
}

// HasTable checks if a table exists.
func (m *Migrator) HasTable(ctx context.Context, tableName string) (bool, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, m.grammar.CompileHasTable(), tableName).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ensureMigrationsTable creates the migrations tracking table.
func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	exists, err := m.HasTable(ctx, "migrations")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return m.CreateTable(ctx, "migrations", func(t *Blueprint) {
		t.String("migration", 255).Primary()
		t.Integer("batch")
		t.Timestamp("ran_at").Nullable()
	})
}

// Ran returns all migrations that have been run.
func (m *Migrator) Ran(ctx context.Context) (map[string]int, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT migration, batch FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ran := make(map[string]int)
	for rows.Next() {
		var name string
		var batch int
		if err := rows.Scan(&name, &batch); err != nil {
			return nil, err
		}
		ran[name] = batch
	}
	return ran, rows.Err()
}

// Run, henüz çalışmamış migration'ları verilen sırayla uygular ve hepsini
// yeni bir batch numarası altında kaydeder.
func (m *Migrator) Run(ctx context.Context, migrations []Migration) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	ran, err := m.Ran(ctx)
	if err != nil {
		return err
	}

	batch := 1
	for _, b := range ran {
		if b >= batch {
			batch = b + 1
		}
	}

	for _, mig := range migrations {
		if _, done := ran[mig.Name()]; done {
			continue
		}
		if err := mig.Up(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.Name(), err)
		}
		if _, err := m.db.ExecContext(ctx, "INSERT INTO migrations (migration, batch) VALUES (?, ?)", mig.Name(), batch); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", mig.Name(), err)
		}
		m.logger.Info().Str("migration", mig.Name()).Int("batch", batch).Msg("migration uygulandı")
	}

	return nil
}

// Rollback, son batch'teki migration'ları ters sırayla geri alır.
func (m *Migrator) Rollback(ctx context.Context, migrations []Migration) error {
	ran, err := m.Ran(ctx)
	if err != nil {
		return err
	}

	last := 0
	for _, b := range ran {
		if b > last {
			last = b
		}
	}
	if last == 0 {
		return nil
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if ran[mig.Name()] != last {
			continue
		}
		if err := mig.Down(ctx, m); err != nil {
			return fmt.Errorf("rollback %s failed: %w", mig.Name(), err)
		}
		if _, err := m.db.ExecContext(ctx, "DELETE FROM migrations WHERE migration = ?", mig.Name()); err != nil {
			return err
		}
		m.logger.Info().Str("migration", mig.Name()).Msg("migration geri alındı")
	}
	return nil
}
