// -----------------------------------------------------------------------------
// Closure-Table Hierarchy Engine
// -----------------------------------------------------------------------------
// Keyfi derinlikteki ağaçları düz bir tablo ve <entity>_ancestry closure
// tablosu ile saklar.
//
// Closure tablosu değişmezleri:
//   - Kök E için tek satır: (NULL, E, 1)
//   - Kök olmayan E için her atası A başına bir satır: (A, E, uzaklık)
//   - Kök olmayan düğümlerin NULL atalı satırı yoktur
//
// Her hiyerarşi mutasyonu (oluşturma, taşıma, silme, sıralama) entity ve
// ancestry yazımlarını tek bir transaction içinde yapar. Olaylar commit
// sonrası yayınlanır; yayın hataları loglanır, mutasyonu geri almaz.
// -----------------------------------------------------------------------------

package repositories

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/biyonik/orgtree-api/internal/models"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/query"
)

// RootParent, GetDescendantIds için kök seviyesini temsil eden sentinel'dir.
const RootParent = ""

// TreeEntity, hiyerarşik entity sözleşmesidir.
type TreeEntity interface {
	Entity
	GetParentID() string
	GetOrder() int64
	GetHasChildren() bool
}

// TreeRepository, closure table hiyerarşi motorudur.
type TreeRepository[T TreeEntity] struct {
	*BaseRepository[T]
	bus    events.Bus
	logger zerolog.Logger
}

// NewTreeRepository, ağaç motorunu kurar. bus nil ise olay yayınlanmaz.
func NewTreeRepository[T TreeEntity](base *BaseRepository[T], bus events.Bus) *TreeRepository[T] {
	if !base.Schema().IsTree() {
		panic(fmt.Sprintf("repositories: %s is not a tree schema", base.Schema().Entity))
	}
	return &TreeRepository[T]{
		BaseRepository: base,
		bus:            bus,
		logger:         base.Logger().With().Str("component", "tree").Logger(),
	}
}

// change, commit sonrası yayınlanacak bir olaydır.
type change struct {
	op       events.Operation
	id       string
	parentID string
	data     any
}

func changeOf[T TreeEntity](op events.Operation, item T) change {
	return change{op: op, id: item.GetID(), parentID: item.GetParentID(), data: item}
}

func (r *TreeRepository[T]) publish(ctx context.Context, changes []change) {
	if r.bus == nil {
		return
	}
	for _, c := range changes {
		ev := events.NewDataChanged(r.schema.Entity, c.op, c.id, c.parentID, c.data)
		if err := r.bus.Publish(ctx, ev); err != nil {
			r.logger.Error().Err(err).Str("id", c.id).Str("operation", string(c.op)).Msg("data change olayı yayınlanamadı")
		}
	}
}

// mutate, fn'i tek transaction içinde çalıştırır ve commit sonrası olayları
// yayınlar.
func (r *TreeRepository[T]) mutate(ctx context.Context, fn func(ctx context.Context, base *BaseRepository[T]) ([]change, error)) error {
	var changes []change
	err := database.WithTransaction(ctx, r.db, r.grammar, r.logger, func(ctx context.Context, tx *database.Transaction) error {
		var err error
		changes, err = fn(ctx, r.WithTx(tx))
		return err
	})
	if err != nil {
		return err
	}
	r.publish(ctx, changes)
	return nil
}

func (r *TreeRepository[T]) ancestry(base *BaseRepository[T]) *database.QueryBuilder {
	return database.NewBuilder(base.exec, base.grammar).Table(r.schema.AncestryTable())
}

func (r *TreeRepository[T]) insertAncestry(ctx context.Context, base *BaseRepository[T], ancestor *string, descendant string, depth int) error {
	var a any
	if ancestor != nil {
		a = *ancestor
	}
	_, err := r.ancestry(base).ExecInsert(ctx, map[string]any{
		"ancestor_id":   a,
		"descendant_id": descendant,
		"rel_depth":     depth,
	})
	if err != nil {
		return base.fail("create", err)
	}
	return nil
}

// chain, parentID'nin NULL olmayan ata satırlarını döner.
func (r *TreeRepository[T]) chain(ctx context.Context, base *BaseRepository[T], parentID string) ([]models.Ancestry, error) {
	rows := make([]models.Ancestry, 0)
	err := r.ancestry(base).
		Where("descendant_id", "=", parentID).
		WhereNotNull("ancestor_id").
		Get(ctx, &rows)
	if err != nil {
		return nil, base.fail("read", err)
	}
	return rows, nil
}

// linkToParent, node'u (ve verilen uzaklıktaki alt düğümlerini) yeni ebeveyn
// zincirine bağlar. parentID boşsa yalnızca uzaklık 0 olan düğüm kök satırı alır.
func (r *TreeRepository[T]) linkToParent(ctx context.Context, base *BaseRepository[T], parentID string, nodes map[string]int) error {
	if parentID == "" {
		for id, dist := range nodes {
			if dist == 0 {
				if err := r.insertAncestry(ctx, base, nil, id, 1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	chain, err := r.chain(ctx, base, parentID)
	if err != nil {
		return err
	}
	for id, dist := range nodes {
		if err := r.insertAncestry(ctx, base, &parentID, id, dist+1); err != nil {
			return err
		}
		for _, row := range chain {
			if err := r.insertAncestry(ctx, base, row.AncestorID, id, row.Depth+dist+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *TreeRepository[T]) setHasChildren(ctx context.Context, base *BaseRepository[T], id string, value bool) error {
	_, err := database.NewBuilder(base.exec, base.grammar).
		Table(r.schema.Table).
		Where(r.col(query.FieldID), "=", id).
		ExecUpdate(ctx, map[string]any{r.col(query.FieldHasChild): value})
	if err != nil {
		return base.fail("update", err)
	}
	return nil
}

// refreshHasChildren, ebeveynin canlı çocuk sayısına göre bayrağı yeniden hesaplar.
func (r *TreeRepository[T]) refreshHasChildren(ctx context.Context, base *BaseRepository[T], id string) error {
	if id == "" {
		return nil
	}
	n, err := base.Count(ctx, ByParent(id))
	if err != nil {
		return err
	}
	return r.setHasChildren(ctx, base, id, n > 0)
}

// -----------------------------------------------------------------------------
// Mutasyonlar
// -----------------------------------------------------------------------------

// Create, düğümü ve ancestry satırlarını tek transaction içinde oluşturur.
func (r *TreeRepository[T]) Create(ctx context.Context, data map[string]any) (*T, error) {
	var created *T
	err := r.mutate(ctx, func(ctx context.Context, base *BaseRepository[T]) ([]change, error) {
		parentID := parentOf(data)
		if parentID != "" {
			if _, err := base.FindUnique(ctx, parentID); err != nil {
				if database.IsKind(err, database.KindNotFound) {
					return nil, database.InvalidOperation("create", "parent object not found")
				}
				return nil, err
			}
		}

		item, err := base.Create(ctx, data)
		if err != nil {
			return nil, err
		}
		id := (*item).GetID()

		if parentID != "" {
			if err := r.setHasChildren(ctx, base, parentID, true); err != nil {
				return nil, err
			}
		}
		if err := r.linkToParent(ctx, base, parentID, map[string]int{id: 0}); err != nil {
			return nil, err
		}

		created = item
		return []change{changeOf(events.OperationCreated, *item)}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update, düğümü günceller. parentId değişiyorsa tüm alt ağacın ancestry
// satırları yeniden kurulur.
func (r *TreeRepository[T]) Update(ctx context.Context, id string, data map[string]any) (*T, error) {
	var updated *T
	err := r.mutate(ctx, func(ctx context.Context, base *BaseRepository[T]) ([]change, error) {
		current, err := base.FindUnique(ctx, id)
		if err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return nil, database.InvalidOperation("update", "object not found")
			}
			return nil, err
		}

		oldParent := (*current).GetParentID()
		_, moving := data[query.FieldParentID]
		newParent := parentOf(data)

		if !moving || newParent == oldParent {
			item, err := base.Update(ctx, id, data)
			if err != nil {
				return nil, err
			}
			updated = item
			return []change{changeOf(events.OperationUpdated, *item)}, nil
		}

		changes, item, err := r.reparent(ctx, base, *current, newParent, data)
		if err != nil {
			return nil, err
		}
		updated = item
		return changes, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reparent, düğümü alt ağacıyla birlikte yeni ebeveyne taşır.
func (r *TreeRepository[T]) reparent(ctx context.Context, base *BaseRepository[T], current T, newParent string, data map[string]any) ([]change, *T, error) {
	id := current.GetID()
	oldParent := current.GetParentID()

	// Alt ağaç: düğüm (uzaklık 0) ve tüm torunları.
	subtree := map[string]int{id: 0}
	var below []models.Ancestry
	if err := r.ancestry(base).Where("ancestor_id", "=", id).Get(ctx, &below); err != nil {
		return nil, nil, base.fail("read", err)
	}
	for _, row := range below {
		subtree[row.DescendantID] = row.Depth
	}

	if newParent != "" {
		if _, inside := subtree[newParent]; inside {
			return nil, nil, database.InvalidOperation("update", "cannot move a node under itself or its descendants")
		}
		if _, err := base.FindUnique(ctx, newParent); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return nil, nil, database.InvalidOperation("update", "parent object not found")
			}
			return nil, nil, err
		}
	}

	members := lo.Keys(subtree)
	memberArgs := lo.ToAnySlice(members)

	// Alt ağacı dışarıdaki atalara (NULL dahil) bağlayan satırlar silinir.
	_, err := r.ancestry(base).
		WhereIn("descendant_id", memberArgs).
		WhereRaw("ancestor_id IS NULL OR ancestor_id NOT IN ("+placeholders(len(members))+")", memberArgs...).
		ExecDelete(ctx)
	if err != nil {
		return nil, nil, base.fail("update", err)
	}

	if err := r.linkToParent(ctx, base, newParent, subtree); err != nil {
		return nil, nil, err
	}

	row := lo.Assign(map[string]any{}, data)
	if _, ok := row[query.FieldOrder]; !ok && r.schema.IsOrdered() {
		next, err := base.NextOrder(ctx, newParent)
		if err != nil {
			return nil, nil, err
		}
		row[query.FieldOrder] = next
	}
	item, err := base.Update(ctx, id, row)
	if err != nil {
		return nil, nil, err
	}

	if err := r.refreshHasChildren(ctx, base, oldParent); err != nil {
		return nil, nil, err
	}
	if newParent != "" {
		if err := r.setHasChildren(ctx, base, newParent, true); err != nil {
			return nil, nil, err
		}
	}

	changes := []change{changeOf(events.OperationUpdated, *item)}
	if oldParent != "" {
		changes = append(changes, change{op: events.OperationUpdated, id: oldParent})
	}
	// Torunların yolu değişti; önbellekteki satırları geçersizlenmeli.
	if len(below) > 0 {
		descendants, err := base.FindMany(ctx, FindOptions{
			Where: ByIDs(lo.Map(below, func(a models.Ancestry, _ int) string { return a.DescendantID })),
		})
		if err != nil {
			return nil, nil, err
		}
		for _, d := range descendants {
			changes = append(changes, changeOf(events.OperationUpdated, d))
		}
	}

	r.logger.Info().
		Str("id", id).
		Str("from", oldParent).
		Str("to", newParent).
		Int("subtree", len(subtree)).
		Msg("düğüm taşındı")
	return changes, item, nil
}

// SoftDeleteByIds, düğümleri soft delete ile siler, ancestry satırlarını
// kaldırır ve eski ebeveynlerin hasChildren bayrağını yeniden hesaplar.
func (r *TreeRepository[T]) SoftDeleteByIds(ctx context.Context, ids []string, extra map[string]any) ([]T, error) {
	var deleted []T
	err := r.mutate(ctx, func(ctx context.Context, base *BaseRepository[T]) ([]change, error) {
		rows, err := base.SoftDeleteByIds(ctx, ids, extra)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			deleted = rows
			return nil, nil
		}

		removed := lo.ToAnySlice(lo.Map(rows, func(row T, _ int) string { return row.GetID() }))
		_, err = r.ancestry(base).
			WhereRaw("ancestor_id IN ("+placeholders(len(removed))+") OR descendant_id IN ("+placeholders(len(removed))+")",
				append(append([]any{}, removed...), removed...)...).
			ExecDelete(ctx)
		if err != nil {
			return nil, base.fail("delete", err)
		}

		parents := lo.Uniq(lo.Map(rows, func(row T, _ int) string { return row.GetParentID() }))
		for _, p := range lo.Compact(parents) {
			if err := r.refreshHasChildren(ctx, base, p); err != nil {
				return nil, err
			}
		}

		deleted = rows
		return lo.Map(rows, func(row T, _ int) change { return changeOf(events.OperationDeleted, row) }), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// UpdateOrder, id düğümünü aynı ebeveyn altındaki overID düğümünün yerine
// taşır ve tüm kardeşlerin sırasını ebeveynSırası + aralık*(1+i) olarak
// yeniden dağıtır.
func (r *TreeRepository[T]) UpdateOrder(ctx context.Context, id, overID string) (*T, error) {
	var moved *T
	err := r.mutate(ctx, func(ctx context.Context, base *BaseRepository[T]) ([]change, error) {
		node, err := base.FindUnique(ctx, id)
		if err != nil {
			return nil, notFoundAsInvalid("update", err)
		}
		over, err := base.FindUnique(ctx, overID)
		if err != nil {
			return nil, notFoundAsInvalid("update", err)
		}

		parentID := (*node).GetParentID()
		if parentID != (*over).GetParentID() {
			return nil, database.InvalidOperation("update", "cannot move between different parent nodes")
		}

		siblings, err := base.FindMany(ctx, FindOptions{
			Where: ByParent(parentID),
			OrderBy: []Order{
				{Field: query.FieldOrder, Direction: database.OrderAsc},
				{Field: query.FieldID, Direction: database.OrderAsc},
			},
		})
		if err != nil {
			return nil, err
		}

		ids := lo.Map(siblings, func(s T, _ int) string { return s.GetID() })
		from, to := lo.IndexOf(ids, id), lo.IndexOf(ids, overID)
		ordered := arrayMove(siblings, from, to)

		var parentOrder int64
		if parentID != "" {
			parent, err := base.FindUnique(ctx, parentID)
			if err != nil {
				return nil, err
			}
			parentOrder = (*parent).GetOrder()
		}

		var changes []change
		for i, s := range ordered {
			order := parentOrder + base.interval*int64(i+1)
			if s.GetOrder() == order {
				continue
			}
			item, err := base.Update(ctx, s.GetID(), map[string]any{query.FieldOrder: order})
			if err != nil {
				return nil, err
			}
			if item != nil && (*item).GetID() == id {
				moved = item
			}
			changes = append(changes, changeOf(events.OperationUpdated, *item))
		}

		if moved == nil {
			moved = node
		}
		return changes, nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// -----------------------------------------------------------------------------
// Okumalar
// -----------------------------------------------------------------------------

// GetAncestorIds, verilen düğümlerin atalarını kökten yaprağa doğru döner.
// includeOriginal true ise düğümlerin kendileri sona eklenir.
func (r *TreeRepository[T]) GetAncestorIds(ctx context.Context, ids []string, includeOriginal bool) ([]string, error) {
	ids = lo.Compact(ids)
	rows := make([]models.Ancestry, 0)
	if len(ids) > 0 {
		err := r.ancestry(r.BaseRepository).
			WhereIn("descendant_id", lo.ToAnySlice(ids)).
			OrderBy("rel_depth", "DESC").
			Get(ctx, &rows)
		if err != nil {
			return nil, r.fail("read", err)
		}
	}

	out := make([]string, 0, len(rows)+len(ids))
	for _, row := range rows {
		if row.AncestorID != nil {
			out = append(out, *row.AncestorID)
		}
	}
	if includeOriginal {
		out = append(out, ids...)
	}
	return lo.Uniq(out), nil
}

// GetDescendantIds, verilen düğümlerin tüm torunlarını döner. ids içindeki
// RootParent sentinel'i kök düğümleri ekler. includeOriginal true ise
// düğümlerin kendileri başa eklenir.
func (r *TreeRepository[T]) GetDescendantIds(ctx context.Context, ids []string, includeOriginal bool) ([]string, error) {
	withRoot := lo.Contains(ids, RootParent)
	nodes := lo.Compact(ids)

	rows := make([]models.Ancestry, 0)
	if len(nodes) > 0 || withRoot {
		var clauses []string
		var args []any
		if len(nodes) > 0 {
			clauses = append(clauses, "ancestor_id IN ("+placeholders(len(nodes))+")")
			args = append(args, lo.ToAnySlice(nodes)...)
		}
		if withRoot {
			clauses = append(clauses, "ancestor_id IS NULL")
		}
		err := r.ancestry(r.BaseRepository).
			WhereRaw(joinOr(clauses), args...).
			OrderBy("rel_depth", "ASC").
			OrderBy("descendant_id", "ASC").
			Get(ctx, &rows)
		if err != nil {
			return nil, r.fail("read", err)
		}
	}

	out := make([]string, 0, len(rows)+len(nodes))
	if includeOriginal {
		out = append(out, nodes...)
	}
	for _, row := range rows {
		out = append(out, row.DescendantID)
	}
	return lo.Uniq(out), nil
}

// GetNextOrder, parentID altına eklenecek düğümün sırasıdır. Her çağrıda
// yeniden sorgulanır.
func (r *TreeRepository[T]) GetNextOrder(ctx context.Context, parentID string) (int64, error) {
	return r.NextOrder(ctx, parentID)
}

// GetChildren, doğrudan çocukları sırasıyla döner.
func (r *TreeRepository[T]) GetChildren(ctx context.Context, parentID string) ([]T, error) {
	return r.FindMany(ctx, FindOptions{
		Where: ByParent(parentID),
		OrderBy: []Order{
			{Field: query.FieldOrder, Direction: database.OrderAsc},
			{Field: query.FieldID, Direction: database.OrderAsc},
		},
	})
}

// GetRoots returns the live root nodes in order.
func (r *TreeRepository[T]) GetRoots(ctx context.Context) ([]T, error) {
	return r.GetChildren(ctx, RootParent)
}

// RebuildAncestry, closure tablosunu parentId kolonundan baştan kurar ve
// hasChildren bayraklarını yeniden hesaplar. Yazılan satır sayısını döner.
//
// Silinmiş düğümler satır almaz; silinmiş bir ata üzerinden geçen zincirde
// uzaklık sayılır ama ata satırı yazılmaz.
func (r *TreeRepository[T]) RebuildAncestry(ctx context.Context) (int, error) {
	written := 0
	err := database.WithTransaction(ctx, r.db, r.grammar, r.logger, func(ctx context.Context, tx *database.Transaction) error {
		base := r.WithTx(tx)

		all, err := base.FindMany(ctx, FindOptions{WithDeleted: true})
		if err != nil {
			return err
		}
		live, err := base.FindMany(ctx, FindOptions{})
		if err != nil {
			return err
		}
		parents := lo.SliceToMap(all, func(n T) (string, string) { return n.GetID(), n.GetParentID() })
		alive := lo.SliceToMap(live, func(n T) (string, bool) { return n.GetID(), true })

		if _, err := r.ancestry(base).WhereRaw("1 = 1").ExecDelete(ctx); err != nil {
			return base.fail("delete", err)
		}

		for _, n := range live {
			id := n.GetID()
			if n.GetParentID() == "" {
				if err := r.insertAncestry(ctx, base, nil, id, 1); err != nil {
					return err
				}
				written++
				continue
			}

			seen := map[string]bool{id: true}
			depth := 0
			for p := n.GetParentID(); p != ""; p = parents[p] {
				if seen[p] {
					return database.NewError(database.KindInternal, "update", fmt.Sprintf("cycle detected at %s", p))
				}
				seen[p] = true
				depth++
				if !alive[p] {
					continue
				}
				ancestor := p
				if err := r.insertAncestry(ctx, base, &ancestor, id, depth); err != nil {
					return err
				}
				written++
			}
		}

		for _, n := range live {
			has := lo.ContainsBy(live, func(c T) bool { return c.GetParentID() == n.GetID() })
			if has != n.GetHasChildren() {
				if err := r.setHasChildren(ctx, base, n.GetID(), has); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info().Int("rows", written).Msg("ancestry tablosu yeniden kuruldu")
	return written, nil
}

// -----------------------------------------------------------------------------
// Yardımcılar
// -----------------------------------------------------------------------------

// arrayMove, from indeksindeki elemanı to indeksine taşır.
func arrayMove[E any](items []E, from, to int) []E {
	out := append([]E{}, items...)
	if from < 0 || to < 0 || from >= len(out) || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]E{item}, out[to:]...)...)
	return out
}

func notFoundAsInvalid(op string, err error) error {
	if database.IsKind(err, database.KindNotFound) {
		return database.InvalidOperation(op, "object not found")
	}
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}

func joinOr(clauses []string) string {
	if len(clauses) == 1 {
		return clauses[0]
	}
	out := "(" + clauses[0] + ")"
	for _, c := range clauses[1:] {
		out += " OR (" + c + ")"
	}
	return out
}
