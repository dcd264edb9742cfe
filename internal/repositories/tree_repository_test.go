package repositories

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/orgtree-api/internal/models"
	"github.com/biyonik/orgtree-api/internal/testutil"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/query"
)

func TestTree_EndToEnd(t *testing.T) {
	ctx := context.Background()
	repo, _, db := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A", "order": int64(100)})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})
	c := mustCreate(t, repo, map[string]any{"name": "C", "code": "C", "parentId": b.ID})

	assert.Equal(t, int64(100), a.Order)
	assert.Equal(t, int64(200), b.Order)
	assert.Equal(t, int64(300), c.Order)

	descendants, err := repo.GetDescendantIds(ctx, []string{a.ID}, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, descendants)

	ancestors, err := repo.GetAncestorIds(ctx, []string{c.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ancestors)

	_, err = repo.Update(ctx, c.ID, map[string]any{"parentId": a.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{a.ID: 1}, ancestryOf(t, db, c.ID))

	// B'nin canlı çocuğu kalmadı.
	reloaded, err := repo.FindUnique(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.HasChildren)
}

func TestTree_AncestryCompleteness(t *testing.T) {
	repo, _, db := newDepartments(t)

	root := mustCreate(t, repo, map[string]any{"name": "Root", "code": "R"})
	l1 := mustCreate(t, repo, map[string]any{"name": "L1", "code": "L1", "parentId": root.ID})
	l2 := mustCreate(t, repo, map[string]any{"name": "L2", "code": "L2", "parentId": l1.ID})
	l3 := mustCreate(t, repo, map[string]any{"name": "L3", "code": "L3", "parentId": l2.ID})

	assert.Equal(t, map[string]int{"NULL": 1}, ancestryOf(t, db, root.ID))
	assert.Equal(t, map[string]int{root.ID: 1}, ancestryOf(t, db, l1.ID))
	assert.Equal(t, map[string]int{root.ID: 2, l1.ID: 1}, ancestryOf(t, db, l2.ID))
	assert.Equal(t, map[string]int{root.ID: 3, l1.ID: 2, l2.ID: 1}, ancestryOf(t, db, l3.ID))

	parent, err := repo.FindUnique(context.Background(), l2.ID)
	require.NoError(t, err)
	assert.True(t, parent.HasChildren)
}

func TestTree_ReparentMovesWholeSubtree(t *testing.T) {
	ctx := context.Background()
	repo, rec, db := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})
	c := mustCreate(t, repo, map[string]any{"name": "C", "code": "C", "parentId": b.ID})
	d := mustCreate(t, repo, map[string]any{"name": "D", "code": "D"})
	rec.Take()

	moved, err := repo.Update(ctx, b.ID, map[string]any{"parentId": d.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, d.ID, *moved.ParentID)
	assert.Equal(t, d.Order+DefaultOrderInterval, moved.Order)

	assert.Equal(t, map[string]int{d.ID: 1}, ancestryOf(t, db, b.ID))
	assert.Equal(t, map[string]int{b.ID: 1, d.ID: 2}, ancestryOf(t, db, c.ID))

	descendants, err := repo.GetDescendantIds(ctx, []string{a.ID}, false)
	require.NoError(t, err)
	assert.Empty(t, descendants)

	oldParent, _ := repo.FindUnique(ctx, a.ID)
	newParent, _ := repo.FindUnique(ctx, d.ID)
	assert.False(t, oldParent.HasChildren)
	assert.True(t, newParent.HasChildren)

	changed := map[string]bool{}
	for _, e := range rec.Take() {
		assert.Equal(t, events.OperationUpdated, e.Operation)
		changed[e.ID] = true
	}
	assert.Equal(t, map[string]bool{b.ID: true, a.ID: true, c.ID: true}, changed)
}

func TestTree_ReparentToRoot(t *testing.T) {
	ctx := context.Background()
	repo, _, db := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})
	c := mustCreate(t, repo, map[string]any{"name": "C", "code": "C", "parentId": b.ID})

	_, err := repo.Update(ctx, b.ID, map[string]any{"parentId": nil})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"NULL": 1}, ancestryOf(t, db, b.ID))
	assert.Equal(t, map[string]int{b.ID: 1}, ancestryOf(t, db, c.ID))

	roots, err := repo.GetRoots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestTree_RejectsCycles(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})

	_, err := repo.Update(ctx, a.ID, map[string]any{"parentId": b.ID})
	assert.True(t, database.IsKind(err, database.KindInvalidOperation))

	_, err = repo.Update(ctx, a.ID, map[string]any{"parentId": a.ID})
	assert.True(t, database.IsKind(err, database.KindInvalidOperation))

	_, err = repo.Update(ctx, "missing", map[string]any{"name": "x"})
	assert.True(t, database.IsKind(err, database.KindInvalidOperation))
	assert.Contains(t, err.Error(), "object not found")
}

func TestTree_PlainUpdateKeepsAncestry(t *testing.T) {
	ctx := context.Background()
	repo, _, db := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})

	updated, err := repo.Update(ctx, b.ID, map[string]any{"name": "B2", "parentId": a.ID})
	require.NoError(t, err)
	assert.Equal(t, "B2", updated.Name)
	assert.Equal(t, b.Order, updated.Order)
	assert.Equal(t, map[string]int{a.ID: 1}, ancestryOf(t, db, b.ID))
}

func TestTree_NextOrder(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	first, err := repo.GetNextOrder(ctx, RootParent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	r1 := mustCreate(t, repo, map[string]any{"name": "R1", "code": "R1"})
	r2 := mustCreate(t, repo, map[string]any{"name": "R2", "code": "R2"})
	assert.Equal(t, int64(1), r1.Order)
	assert.Equal(t, int64(101), r2.Order)

	c1 := mustCreate(t, repo, map[string]any{"name": "C1", "code": "C1", "parentId": r2.ID})
	c2 := mustCreate(t, repo, map[string]any{"name": "C2", "code": "C2", "parentId": r2.ID})
	assert.Equal(t, int64(201), c1.Order)
	assert.Equal(t, int64(301), c2.Order)
	assert.Greater(t, c2.Order, c1.Order)
}

func TestTree_UpdateOrder(t *testing.T) {
	ctx := context.Background()
	repo, rec, _ := newDepartments(t)

	p := mustCreate(t, repo, map[string]any{"name": "P", "code": "P", "order": int64(100)})
	s1 := mustCreate(t, repo, map[string]any{"name": "S1", "code": "S1", "parentId": p.ID})
	s2 := mustCreate(t, repo, map[string]any{"name": "S2", "code": "S2", "parentId": p.ID})
	s3 := mustCreate(t, repo, map[string]any{"name": "S3", "code": "S3", "parentId": p.ID})
	rec.Take()

	moved, err := repo.UpdateOrder(ctx, s3.ID, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), moved.Order)

	children, err := repo.GetChildren(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, []string{s3.ID, s1.ID, s2.ID}, []string{children[0].ID, children[1].ID, children[2].ID})
	assert.Equal(t, []int64{200, 300, 400}, []int64{children[0].Order, children[1].Order, children[2].Order})
	assert.Len(t, rec.Take(), 3)

	other := mustCreate(t, repo, map[string]any{"name": "O", "code": "O"})
	_, err = repo.UpdateOrder(ctx, s1.ID, other.ID)
	assert.True(t, database.IsKind(err, database.KindInvalidOperation))
	assert.Contains(t, err.Error(), "different parent")

	_, err = repo.UpdateOrder(ctx, "missing", s1.ID)
	assert.True(t, database.IsKind(err, database.KindInvalidOperation))
}

func TestTree_SoftDelete(t *testing.T) {
	ctx := context.Background()
	repo, rec, db := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})
	rec.Take()

	deleted, err := repo.SoftDeleteByIds(ctx, []string{b.ID, b.ID, "missing"}, map[string]any{"name": "B (deleted)"})
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	_, err = repo.FindUnique(ctx, b.ID)
	assert.True(t, database.IsKind(err, database.KindNotFound))
	assert.Empty(t, ancestryOf(t, db, b.ID))

	parent, err := repo.FindUnique(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, parent.HasChildren)

	all, err := repo.FindMany(ctx, FindOptions{Where: ByID(b.ID), WithDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].DeletedAt)
	assert.Equal(t, "B (deleted)", all[0].Name)

	evs := rec.Take()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OperationDeleted, evs[0].Operation)
	assert.Equal(t, a.ID, evs[0].ParentID)
}

func TestTree_DescendantsOfRootSentinel(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})
	c := mustCreate(t, repo, map[string]any{"name": "C", "code": "C"})

	ids, err := repo.GetDescendantIds(ctx, []string{RootParent}, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, ids)

	ids, err = repo.GetDescendantIds(ctx, nil, true)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = repo.GetAncestorIds(ctx, []string{a.ID}, false)
	require.NoError(t, err)
	assert.Empty(t, ids, "the NULL ancestor of a root is never returned")
}

func TestTree_CreateUnderMissingParent(t *testing.T) {
	repo, rec, _ := newDepartments(t)

	_, err := repo.Create(context.Background(), map[string]any{"name": "X", "code": "X", "parentId": "missing"})
	assert.True(t, database.IsKind(err, database.KindInvalidOperation))
	assert.Empty(t, rec.Take(), "failed mutations publish nothing")
}

func TestTree_RebuildAncestry(t *testing.T) {
	ctx := context.Background()
	repo, _, db := newDepartments(t)

	a := mustCreate(t, repo, map[string]any{"name": "A", "code": "A"})
	b := mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "parentId": a.ID})
	c := mustCreate(t, repo, map[string]any{"name": "C", "code": "C", "parentId": b.ID})

	_, err := db.Exec("DELETE FROM department_ancestry")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE departments SET has_children = 0")
	require.NoError(t, err)

	written, err := repo.RebuildAncestry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	assert.Equal(t, map[string]int{"NULL": 1}, ancestryOf(t, db, a.ID))
	assert.Equal(t, map[string]int{a.ID: 1}, ancestryOf(t, db, b.ID))
	assert.Equal(t, map[string]int{a.ID: 2, b.ID: 1}, ancestryOf(t, db, c.ID))

	reloaded, _ := repo.FindUnique(ctx, b.ID)
	assert.True(t, reloaded.HasChildren)
}

func TestArrayMove(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, arrayMove([]int{1, 2, 3}, 2, 0))
	assert.Equal(t, []int{2, 3, 1}, arrayMove([]int{1, 2, 3}, 0, 2))
	assert.Equal(t, []int{1, 2, 3}, arrayMove([]int{1, 2, 3}, 5, 0))
}

func TestTree_RequiresTreeSchema(t *testing.T) {
	db := testutil.RefreshDatabase(t)
	flat := NewBaseRepository[models.Department](db, database.NewSQLiteGrammar(), query.NewSchema("flat", "departments"), zerolog.Nop(), Options{})
	assert.Panics(t, func() { NewTreeRepository(flat, nil) })
}
