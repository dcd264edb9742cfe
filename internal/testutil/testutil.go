// -----------------------------------------------------------------------------
// Testing Helpers
// -----------------------------------------------------------------------------
// Paketler arası paylaşılan test yardımcıları:
//
//   - RefreshDatabase: migration'ları uygulanmış, teste özel in-memory SQLite
//   - EventRecorder: yayınlanan data change olaylarını toplayan listener
//
// Kullanım:
//
//	db := testutil.RefreshDatabase(t)
//	rec := testutil.NewEventRecorder()
//	bus.Subscribe(events.EventDataChanged, rec)
// -----------------------------------------------------------------------------

package testutil

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/orgtree-api/internal/migrations"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/database/migration"
	"github.com/biyonik/orgtree-api/pkg/events"
)

// SQLiteDSN, foreign key kontrolü açık in-memory veritabanıdır. Bağlantı
// havuzu tek bağlantıyla sınırlı olduğundan her *sql.DB kendi
// veritabanını görür.
const SQLiteDSN = "file::memory:?_pragma=foreign_keys(1)&_time_format=sqlite"

// RefreshDatabase, boş bir SQLite veritabanı açar ve tüm migration'ları
// uygular. Bağlantı test bitince kapanır.
func RefreshDatabase(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Connect(ctx, database.Config{Driver: database.DriverSQLite, DSN: SQLiteDSN}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mg, err := migration.GrammarFor(database.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, migration.NewMigrator(db, mg, zerolog.Nop()).Run(ctx, migrations.All()))
	return db
}

// EventRecorder, data change olaylarını sırasıyla biriktirir.
type EventRecorder struct {
	mu     sync.Mutex
	events []*events.DataChanged
}

// NewEventRecorder, boş bir recorder döner.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Handle, events.Listener implementasyonu. DataChanged dışındaki payload'lar
// yok sayılır.
func (r *EventRecorder) Handle(_ context.Context, e events.Event) error {
	dc, ok := e.Payload().(*events.DataChanged)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, dc)
	return nil
}

// Take, biriken olayları döner ve listeyi boşaltır.
func (r *EventRecorder) Take() []*events.DataChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
