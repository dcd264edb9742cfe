package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/query"
)

func TestBase_CreateAssignsIdentityAndTimestamps(t *testing.T) {
	repo, _, _ := newDepartments(t)

	d := mustCreate(t, repo, map[string]any{"name": "Sales", "code": "SALES", "headcount": 12})

	_, err := uuid.Parse(d.ID)
	assert.NoError(t, err)
	assert.False(t, d.CreatedAt.IsZero())
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)
	assert.Nil(t, d.ParentID)
	assert.Equal(t, int64(12), d.Headcount)

	fixed := mustCreate(t, repo, map[string]any{"id": "fixed-id", "name": "Ops", "code": "OPS"})
	assert.Equal(t, "fixed-id", fixed.ID)

	byCode, err := repo.FindByCode(context.Background(), "SALES")
	require.NoError(t, err)
	assert.Equal(t, d.ID, byCode.ID)
}

func TestBase_ErrorTranslation(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	mustCreate(t, repo, map[string]any{"name": "Sales", "code": "SALES"})

	_, err := repo.Create(ctx, map[string]any{"name": "Other", "code": "SALES"})
	assert.True(t, database.IsKind(err, database.KindConflict), "duplicate code: %v", err)

	_, err = repo.Create(ctx, map[string]any{"name": "X", "code": "X", "salary": 1})
	assert.True(t, database.IsKind(err, database.KindValidation))

	_, err = repo.Create(ctx, map[string]any{"name": "X", "code": "X", "parent.name": "nope"})
	assert.True(t, database.IsKind(err, database.KindValidation), "relation fields are read only")

	_, err = repo.FindUnique(ctx, "missing")
	assert.True(t, database.IsKind(err, database.KindNotFound))

	_, err = repo.BaseRepository.Update(ctx, "missing", map[string]any{"name": "x"})
	assert.True(t, database.IsKind(err, database.KindNotFound))

	assert.True(t, database.IsKind(repo.Delete(ctx, "missing"), database.KindNotFound))
}

func TestBase_DeleteReferencedParentConflicts(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	parent := mustCreate(t, repo, map[string]any{"name": "P", "code": "P"})
	child := mustCreate(t, repo, map[string]any{"name": "C", "code": "C", "parentId": parent.ID})

	err := repo.Delete(ctx, parent.ID)
	assert.True(t, database.IsKind(err, database.KindConflict), "%v", err)

	require.NoError(t, repo.Delete(ctx, child.ID))
	require.NoError(t, repo.Delete(ctx, parent.ID))
}

func TestBase_QueriesAndAggregates(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	for i, n := range []int{5, 10, 20} {
		mustCreate(t, repo, map[string]any{"name": fmt.Sprintf("D%d", i), "code": fmt.Sprintf("D%d", i), "headcount": n})
	}

	big := query.Where("headcount", query.OpGreaterThanOrEqual, 10)

	n, err := repo.Count(ctx, &big)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	exists, err := repo.Exists(ctx, &big)
	require.NoError(t, err)
	assert.True(t, exists)

	sum, err := repo.Aggregate(ctx, "sum", "headcount", nil)
	require.NoError(t, err)
	assert.Equal(t, 35.0, sum)

	maxHead, err := repo.Aggregate(ctx, "max", "headcount", nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, maxHead)

	_, err = repo.Aggregate(ctx, "median", "headcount", nil)
	assert.Error(t, err)

	items, err := repo.FindMany(ctx, FindOptions{
		OrderBy: []Order{{Field: "headcount", Direction: database.OrderDesc}},
		Take:    2,
		Skip:    1,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(10), items[0].Headcount)
	assert.Equal(t, int64(5), items[1].Headcount)

	first, err := repo.FindFirst(ctx, nil, Order{Field: "headcount", Direction: database.OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Headcount)

	_, err = repo.FindMany(ctx, FindOptions{OrderBy: []Order{{Field: "parent.name"}}})
	assert.True(t, database.IsKind(err, database.KindValidation))

	none := query.Where("id", query.OpIn, []string{})
	empty, err := repo.FindMany(ctx, FindOptions{Where: &none})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestBase_ManyAndUpsert(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	mustCreate(t, repo, map[string]any{"name": "A", "code": "A", "headcount": 1})
	mustCreate(t, repo, map[string]any{"name": "B", "code": "B", "headcount": 1})

	small := query.Where("headcount", query.OpLessThan, 5)
	updated, err := repo.UpdateMany(ctx, &small, map[string]any{"headcount": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	byCode := query.Where("code", query.OpEquals, "C")
	c, created, err := repo.FindOrCreate(ctx, &byCode, map[string]any{"name": "C", "code": "C"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.FindOrCreate(ctx, &byCode, map[string]any{"name": "C", "code": "C"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)

	up, err := repo.Upsert(ctx, &byCode, map[string]any{"name": "C", "code": "C"}, map[string]any{"name": "C2"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, up.ID)
	assert.Equal(t, "C2", up.Name)

	byNew := query.Where("code", query.OpEquals, "N")
	fresh, err := repo.Upsert(ctx, &byNew, map[string]any{"name": "N", "code": "N"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "N", fresh.Code)

	_, err = repo.DeleteMany(ctx, nil)
	assert.True(t, database.IsKind(err, database.KindValidation))

	removed, err := repo.DeleteMany(ctx, &byNew)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestBase_FindManyWithCursor(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newDepartments(t)

	for i := 0; i < 5; i++ {
		mustCreate(t, repo, map[string]any{"name": fmt.Sprintf("D%d", i), "code": fmt.Sprintf("D%d", i)})
	}

	var seen []string
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination must terminate")
		page, err := repo.FindManyWithCursor(ctx, CursorOptions{Take: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, d := range page.Items {
			seen = append(seen, d.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		cursor = page.NextCursor
	}

	assert.Len(t, seen, 5)
	assert.ElementsMatch(t, seen, uniqueStrings(seen))

	// İstenen sıralama ile de her kayıt bir kez görünür.
	seen = nil
	cursor = ""
	for {
		page, err := repo.FindManyWithCursor(ctx, CursorOptions{
			Take:    3,
			Cursor:  cursor,
			OrderBy: []Order{{Field: "name", Direction: database.OrderAsc}},
		})
		require.NoError(t, err)
		for _, d := range page.Items {
			seen = append(seen, d.Name)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []string{"D0", "D1", "D2", "D3", "D4"}, seen)

	_, err := repo.FindManyWithCursor(ctx, CursorOptions{Cursor: "garbage"})
	assert.True(t, database.IsKind(err, database.KindValidation))
}

func TestCursorEncoding(t *testing.T) {
	stamp := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	cursor := EncodeCursor(stamp, "abc_def")
	assert.Equal(t, "2024-05-06T07:08:09.123456789Z_abc_def", cursor)

	got, id, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(got))
	assert.Equal(t, "abc_def", id, "decoding splits on the first underscore only")

	_, _, err = DecodeCursor("no-separator")
	assert.Error(t, err)
}

func uniqueStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
