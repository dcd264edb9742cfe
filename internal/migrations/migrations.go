// Package migrations, uygulamanın şema migration'larını içerir.
//
// Sıra önemlidir: ancestry tablosu departments tablosuna foreign key ile
// bağlıdır.
package migrations

import (
	"context"

	"github.com/biyonik/orgtree-api/pkg/database/migration"
)

// All, uygulanma sırasıyla tüm migration'lardır.
func All() []migration.Migration {
	return []migration.Migration{
		createDepartments{},
		createDepartmentAncestry{},
	}
}

type createDepartments struct{}

func (createDepartments) Name() string { return "2024_01_01_000001_create_departments" }

func (createDepartments) Up(ctx context.Context, m *migration.Migrator) error {
	return m.CreateTable(ctx, "departments", func(t *migration.Blueprint) {
		t.UUID("id").Primary()
		t.UUID("parent_id").Nullable()
		t.BigInteger("sort_order").Default(0)
		t.Boolean("has_children").Default(false)
		t.String("name", 255)
		t.String("code", 64)
		t.UUID("manager_id").Nullable()
		t.BigInteger("headcount").Default(0)
		t.Timestamps()
		t.SoftDeletes()

		t.Unique("code")
		t.Index("parent_id", "sort_order")
		t.Index("updated_at")

		// Ebeveyn silinmez, soft delete edilir; cascade yoktur.
		t.Foreign("parent_id").References("id").On("departments")
	})
}

func (createDepartments) Down(ctx context.Context, m *migration.Migrator) error {
	return m.DropTable(ctx, "departments")
}

type createDepartmentAncestry struct{}

func (createDepartmentAncestry) Name() string {
	return "2024_01_01_000002_create_department_ancestry"
}

func (createDepartmentAncestry) Up(ctx context.Context, m *migration.Migrator) error {
	return m.CreateTable(ctx, "department_ancestry", func(t *migration.Blueprint) {
		t.UUID("ancestor_id").Nullable()
		t.UUID("descendant_id")
		t.Integer("rel_depth")

		t.Unique("ancestor_id", "descendant_id")
		t.Index("descendant_id")

		t.Foreign("ancestor_id").References("id").On("departments").Cascade()
		t.Foreign("descendant_id").References("id").On("departments").Cascade()
	})
}

func (createDepartmentAncestry) Down(ctx context.Context, m *migration.Migrator) error {
	return m.DropTable(ctx, "department_ancestry")
}
