package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/biyonik/orgtree-api/internal/models"
	"github.com/biyonik/orgtree-api/internal/repositories"
	"github.com/biyonik/orgtree-api/internal/rowcache"
	"github.com/biyonik/orgtree-api/internal/rowmodel"
	"github.com/biyonik/orgtree-api/pkg/auth"
	"github.com/biyonik/orgtree-api/pkg/cache"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/metrics"
	"github.com/biyonik/orgtree-api/pkg/query"
	"github.com/biyonik/orgtree-api/pkg/validation"
	"github.com/biyonik/orgtree-api/pkg/validation/types"
)

// departmentSchema, create ve update payload'larının alan kurallarıdır.
var departmentSchema = validation.Make().Shape(map[string]validation.Type{
	"name":      types.String().Required().Trim().Max(255),
	"code":      types.String().Required().Trim().Max(64).Pattern(`^[A-Za-z0-9_-]+$`, "harf, rakam, '-' veya '_'"),
	"headcount": types.Number().Integer().Min(0),
}).CrossValidate(func(data map[string]any) error {
	if id, ok := data["id"].(string); ok && id != "" && parentIDOf(data) == id {
		return validation.NewFieldError(query.FieldParentID, "departman kendi altına eklenemez")
	}
	return nil
})

// ErrForbidden, isteği yapanın işlem için yetkisi olmadığında döner.
var ErrForbidden = errors.New("bu işlem için yetkiniz yok")

// GridResult, ızgaraya dönen sayfadır. Düz modda satırlar
// models.DepartmentDto, grup modunda kolon map'leridir.
type GridResult = rowmodel.Result[any]

// DepartmentServiceOptions, servis ayarlarıdır.
type DepartmentServiceOptions struct {
	Compiler rowmodel.Options
	Cache    rowcache.Options
}

// DepartmentService, departman ızgarası ve hiyerarşi mutasyonlarıdır.
type DepartmentService struct {
	repo     *repositories.DepartmentRepository
	compiler *rowmodel.Compiler
	rows     *rowcache.RowCache[models.Department, models.DepartmentDto]
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewDepartmentService, departman servisini kurar. bus nil ise row cache
// olaylarla geçersiz kılınmaz.
func NewDepartmentService(
	repo *repositories.DepartmentRepository,
	store cache.Cache,
	bus events.Bus,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts DepartmentServiceOptions,
) *DepartmentService {
	s := &DepartmentService{
		repo:     repo,
		compiler: rowmodel.NewCompiler(repo.Schema(), repo.Grammar(), opts.Compiler),
		metrics:  m,
		logger:   logger.With().Str("service", "department").Logger(),
	}

	cacheOpts := opts.Cache
	cacheOpts.Entity = repositories.EntityDepartment
	cacheOpts.Logger = logger
	cacheOpts.Metrics = m
	s.rows = rowcache.New(store, rowcache.Hooks[models.Department, models.DepartmentDto]{
		Project:     func(d models.Department) models.DepartmentDto { return models.DepartmentDto{Department: d} },
		Relations:   s.relations,
		Merge:       func(dto *models.DepartmentDto, cached models.DepartmentDto) { dto.ChildCount = cached.ChildCount },
		Derive:      s.path,
		Permissions: s.permissions,
		Strip: func(dto *models.DepartmentDto) {
			dto.Path = nil
			dto.Permissions = nil
		},
	}, cacheOpts)

	if bus != nil {
		s.rows.Listen(bus)
	}
	return s
}

// -----------------------------------------------------------------------------
// Izgara
// -----------------------------------------------------------------------------

// GetRows, row model isteğini çalıştırır.
//
// department:read_all yetkisi olmayanlar yalnızca kendi departmanlarını ve
// onların altını görür. Ağaç modunda bu kümeye ataları da eklenir ki ağaç
// kökten gezilebilsin. Filtreli ağaç isteklerinde eşleşen satırların
// ataları da döner.
func (s *DepartmentService) GetRows(ctx context.Context, req rowmodel.Request, requester *auth.Requester) (result GridResult, err error) {
	mode := "flat"
	if req.DoingGroup() {
		mode = "group"
	}
	started := time.Now()
	defer func() { s.metrics.ObserveQuery(repositories.EntityDepartment, mode, started, err) }()

	extra, visible, err := s.scope(ctx, req, requester)
	if err != nil {
		return GridResult{}, err
	}

	if req.TreeData && len(req.FilterModel) > 0 {
		extra, err = s.matchingAncestors(ctx, req, extra)
		if err != nil {
			return GridResult{}, err
		}
		req.FilterModel = nil
	}

	compiled, err := s.compiler.Compile(req, extra)
	if err != nil {
		return GridResult{}, err
	}

	if compiled.Grouping {
		groups, err := database.QueryMaps(ctx, s.repo.Executor(), compiled.SQL, compiled.Args...)
		if err != nil {
			return GridResult{}, s.fail("read", err)
		}
		return rowmodel.Page(lo.ToAnySlice(groups), compiled), nil
	}

	items, err := s.queryDepartments(ctx, compiled)
	if err != nil {
		return GridResult{}, err
	}
	page := rowmodel.Page(items, compiled)

	ctx = withVisible(ctx, visible)
	dtos, err := s.rows.GetRowDtos(ctx, page.RowData, requester)
	if err != nil {
		return GridResult{}, err
	}
	return GridResult{RowCount: page.RowCount, RowData: lo.ToAnySlice(dtos)}, nil
}

// GetRow, tek bir departmanın DTO'sudur. Satır ızgarayla aynı projeksiyondan
// (parent join dahil) okunur. Kapsam dışındaki kayıtlar ErrForbidden döner.
func (s *DepartmentService) GetRow(ctx context.Context, id string, requester *auth.Requester) (*models.DepartmentDto, error) {
	if !s.covers(ctx, requester, id) {
		return nil, ErrForbidden
	}
	compiled, err := s.compiler.Compile(rowmodel.Request{EndRow: 1}, repositories.ByID(id))
	if err != nil {
		return nil, err
	}
	items, err := s.queryDepartments(ctx, compiled)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, s.fail("read", sql.ErrNoRows)
	}
	dto, err := s.rows.GetRowDto(ctx, items[0], requester)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// scope, isteği yapanın görebileceği satır kısıtını üretir. Tam yetkide
// kısıt ve görünür küme nil'dir.
func (s *DepartmentService) scope(ctx context.Context, req rowmodel.Request, requester *auth.Requester) (*query.Condition, visibleSet, error) {
	if requester.Has(auth.PermissionDepartmentReadAll) {
		return nil, nil, nil
	}

	var own []string
	if requester != nil {
		own = requester.DepartmentIDs
	}
	descendants, err := s.repo.GetDescendantIds(ctx, lo.Compact(own), true)
	if err != nil {
		return nil, nil, err
	}
	visible := visibleSet(lo.SliceToMap(descendants, func(id string) (string, struct{}) { return id, struct{}{} }))

	allowed := descendants
	if req.TreeData {
		ancestors, err := s.repo.GetAncestorIds(ctx, lo.Compact(own), false)
		if err != nil {
			return nil, nil, err
		}
		allowed = lo.Union(ancestors, descendants)
	}

	cond := query.Where(query.FieldID, query.OpIn, allowed)
	return &cond, visible, nil
}

// matchingAncestors, filtreye uyan satırları ve atalarını seçen kısıtı
// döner.
func (s *DepartmentService) matchingAncestors(ctx context.Context, req rowmodel.Request, extra *query.Condition) (*query.Condition, error) {
	stmt, err := s.compiler.CompileIDs(req, extra)
	if err != nil {
		return nil, err
	}
	matches, err := database.QueryMaps(ctx, s.repo.Executor(), stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, s.fail("read", err)
	}
	ids := lo.FilterMap(matches, func(row map[string]any, _ int) (string, bool) {
		id := fmt.Sprint(row[query.FieldID])
		return id, id != ""
	})

	widened, err := s.repo.GetAncestorIds(ctx, ids, true)
	if err != nil {
		return nil, err
	}
	cond := query.Where(query.FieldID, query.OpIn, widened)
	return &cond, nil
}

func (s *DepartmentService) queryDepartments(ctx context.Context, c *rowmodel.Compiled) ([]models.Department, error) {
	rows, err := s.repo.Executor().QueryContext(ctx, c.SQL, c.Args...)
	if err != nil {
		return nil, s.fail("read", err)
	}
	defer rows.Close()

	items := make([]models.Department, 0, c.PageSize+1)
	if err := database.ScanSlice(rows, &items); err != nil {
		return nil, s.fail("read", err)
	}
	return items, nil
}

func (s *DepartmentService) fail(op string, err error) error {
	return database.TranslateAndLog(s.logger, op, err)
}

// -----------------------------------------------------------------------------
// Row cache hook'ları
// -----------------------------------------------------------------------------

// relations, önbelleğe yazılan childCount alanını doldurur. Çocuk eklenince,
// taşınınca ya da silinince olay ebeveyni de taşıdığı için girdi silinir.
func (s *DepartmentService) relations(ctx context.Context, dto *models.DepartmentDto) error {
	children, err := s.repo.Count(ctx, repositories.ByParent(dto.ID))
	if err != nil {
		return err
	}
	dto.ChildCount = int(children)
	return nil
}

// path, kökten kendisine ad listesidir. Ata adlarına bağlı olduğundan her
// okumada hesaplanır.
func (s *DepartmentService) path(ctx context.Context, dto *models.DepartmentDto) error {
	ids, err := s.repo.GetAncestorIds(ctx, []string{dto.ID}, true)
	if err != nil {
		return err
	}
	names, err := s.repo.NamesByIds(ctx, ids)
	if err != nil {
		return err
	}
	dto.Path = lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		name, ok := names[id]
		return name, ok
	})
	return nil
}

func (s *DepartmentService) permissions(ctx context.Context, dto *models.DepartmentDto, requester *auth.Requester) {
	inScope := s.covers(ctx, requester, dto.ID)
	dto.Permissions = &models.RowPermissions{
		CanEdit:   inScope && requester.Has(auth.PermissionDepartmentWrite),
		CanDelete: inScope && requester.Has(auth.PermissionDepartmentDelete) && !dto.HasChildren,
		CanMove:   inScope && requester.Has(auth.PermissionDepartmentMove),
	}
}

// visibleSet, bir GetRows çağrısı boyunca kapsam içindeki id'lerdir.
type visibleSet map[string]struct{}

type visibleKey struct{}

func withVisible(ctx context.Context, v visibleSet) context.Context {
	if v == nil {
		return ctx
	}
	return context.WithValue(ctx, visibleKey{}, v)
}

// covers, id'nin isteği yapanın kapsamında olup olmadığını söyler. Bağlamda
// hazır küme yoksa ataları sorgulanır.
func (s *DepartmentService) covers(ctx context.Context, requester *auth.Requester, id string) bool {
	if requester.Has(auth.PermissionDepartmentReadAll) {
		return true
	}
	if requester == nil || len(requester.DepartmentIDs) == 0 {
		return false
	}
	if requester.InDepartment(id) {
		return true
	}
	if v, ok := ctx.Value(visibleKey{}).(visibleSet); ok {
		_, in := v[id]
		return in
	}

	chain, err := s.repo.GetAncestorIds(ctx, []string{id}, true)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("kapsam kontrolü yapılamadı")
		return false
	}
	return lo.Some(chain, requester.DepartmentIDs)
}

// -----------------------------------------------------------------------------
// Mutasyonlar
// -----------------------------------------------------------------------------

// Create, yeni departman oluşturur. Kök departman yalnızca
// department:read_all ile açılabilir.
func (s *DepartmentService) Create(ctx context.Context, requester *auth.Requester, data map[string]any) (*models.Department, error) {
	if !requester.Has(auth.PermissionDepartmentWrite) {
		return nil, ErrForbidden
	}
	data, err := validate(departmentSchema, "create", data)
	if err != nil {
		return nil, err
	}
	if !s.canPlaceUnder(ctx, requester, parentIDOf(data)) {
		return nil, ErrForbidden
	}

	d, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("id", d.ID).Str("requester", requester.ID).Msg("departman oluşturuldu")
	return d, nil
}

// Update, departmanı günceller. parentId değişiyorsa department:move
// yetkisi ve yeni ebeveyn üzerinde kapsam gerekir.
func (s *DepartmentService) Update(ctx context.Context, requester *auth.Requester, id string, data map[string]any) (*models.Department, error) {
	if !requester.Has(auth.PermissionDepartmentWrite) || !s.covers(ctx, requester, id) {
		return nil, ErrForbidden
	}
	data, err := validate(departmentSchema.Partial(), "update", data)
	if err != nil {
		return nil, err
	}
	if _, moving := data[query.FieldParentID]; moving {
		if !requester.Has(auth.PermissionDepartmentMove) || !s.canPlaceUnder(ctx, requester, parentIDOf(data)) {
			return nil, ErrForbidden
		}
	}
	return s.repo.Update(ctx, id, data)
}

// Delete, departmanları soft delete eder ve silinenleri döner.
func (s *DepartmentService) Delete(ctx context.Context, requester *auth.Requester, ids []string) ([]models.Department, error) {
	if !requester.Has(auth.PermissionDepartmentDelete) {
		return nil, ErrForbidden
	}
	for _, id := range ids {
		if !s.covers(ctx, requester, id) {
			return nil, ErrForbidden
		}
	}
	deleted, err := s.repo.SoftDeleteByIds(ctx, ids, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("count", len(deleted)).Str("requester", requester.ID).Msg("departmanlar silindi")
	return deleted, nil
}

// Move, id departmanını aynı ebeveyn altındaki overID'nin yerine taşır.
func (s *DepartmentService) Move(ctx context.Context, requester *auth.Requester, id, overID string) (*models.Department, error) {
	if !requester.Has(auth.PermissionDepartmentMove) || !s.covers(ctx, requester, id) {
		return nil, ErrForbidden
	}
	return s.repo.UpdateOrder(ctx, id, overID)
}

func (s *DepartmentService) canPlaceUnder(ctx context.Context, requester *auth.Requester, parentID string) bool {
	if parentID == repositories.RootParent {
		return requester.Has(auth.PermissionDepartmentReadAll)
	}
	return s.covers(ctx, requester, parentID)
}

func parentIDOf(data map[string]any) string {
	switch v := data[query.FieldParentID].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return repositories.RootParent
}

func validate(schema *validation.ValidationSchema, op string, data map[string]any) (map[string]any, error) {
	res := schema.Validate(data)
	if res.HasErrors() {
		return nil, database.NewError(database.KindValidation, op, res.Summary())
	}
	return res.ValidData(), nil
}
