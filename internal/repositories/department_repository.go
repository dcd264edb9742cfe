package repositories

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/biyonik/orgtree-api/internal/models"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/query"
)

// EntityDepartment, department olaylarının ve önbellek anahtarlarının
// entity adıdır.
const EntityDepartment = "department"

// DepartmentSchema, departments tablosunun sorgu şemasıdır. parent ilişkisi
// aynı tabloya self-join'dir ve "parent.name" alanı ile açılır.
func DepartmentSchema() *query.Schema {
	return query.NewSchema(EntityDepartment, "departments").
		Text("name", "name").
		Text("code", "code").
		Text("managerId", "manager_id").
		Number("headcount", "headcount").
		Tree().
		Join("parent", "departments", "parent_id").
		RelationField("parent", "name", "name", query.FieldText)
}

// DepartmentRepository, departmanlar için hiyerarşi motorudur.
type DepartmentRepository struct {
	*TreeRepository[models.Department]
}

// NewDepartmentRepository creates the department engine.
func NewDepartmentRepository(db *sql.DB, grammar database.Grammar, bus events.Bus, logger zerolog.Logger, opts Options) *DepartmentRepository {
	base := NewBaseRepository[models.Department](db, grammar, DepartmentSchema(), logger, opts)
	return &DepartmentRepository{TreeRepository: NewTreeRepository(base, bus)}
}

// FindByCode, benzersiz departman kodu ile arar.
func (r *DepartmentRepository) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	c := query.Where("code", query.OpEquals, code)
	return r.FindFirst(ctx, &c)
}

// NamesByIds, id → ad eşlemesini tek sorguda döner. Silinmiş kayıtlar dahil
// edilmez.
func (r *DepartmentRepository) NamesByIds(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.FindMany(ctx, FindOptions{Where: ByIDs(ids)})
	if err != nil {
		return nil, err
	}
	for _, d := range rows {
		out[d.ID] = d.Name
	}
	return out, nil
}
