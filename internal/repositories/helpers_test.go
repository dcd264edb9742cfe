package repositories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/orgtree-api/internal/models"
	"github.com/biyonik/orgtree-api/internal/testutil"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/events"
)

func newDepartments(t *testing.T) (*DepartmentRepository, *testutil.EventRecorder, *sql.DB) {
	t.Helper()
	db := testutil.RefreshDatabase(t)

	bus := events.NewDispatcher(zerolog.Nop())
	rec := testutil.NewEventRecorder()
	bus.Subscribe(events.EventDataChanged, rec)

	repo := NewDepartmentRepository(db, database.NewSQLiteGrammar(), bus, zerolog.Nop(), Options{})
	return repo, rec, db
}

func mustCreate(t *testing.T, repo *DepartmentRepository, data map[string]any) *models.Department {
	t.Helper()
	d, err := repo.Create(context.Background(), data)
	require.NoError(t, err)
	return d
}

// ancestryOf, bir düğümün closure satırlarını "ata:uzaklık" biçiminde döner.
// Kök satırının atası "NULL" olarak yazılır.
func ancestryOf(t *testing.T, db *sql.DB, id string) map[string]int {
	t.Helper()
	rows, err := db.Query("SELECT ancestor_id, rel_depth FROM department_ancestry WHERE descendant_id = ?", id)
	require.NoError(t, err)
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var ancestor sql.NullString
		var depth int
		require.NoError(t, rows.Scan(&ancestor, &depth))
		key := "NULL"
		if ancestor.Valid {
			key = ancestor.String
		}
		out[key] = depth
	}
	require.NoError(t, rows.Err())
	return out
}
