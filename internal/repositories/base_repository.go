// -----------------------------------------------------------------------------
// Generic CRUD Repository
// -----------------------------------------------------------------------------
// Şema kaydı (query.Schema) üzerinden çalışan generic repository. Data map'leri
// kolon adlarıyla değil şema alan adlarıyla anahtarlanır ("parentId",
// "createdAt"); bilinmeyen alanlar validation hatası ile reddedilir.
//
// Tüm hatalar database.Translate üzerinden tek bir taksonomiye çevrilir.
// Soft delete destekleyen şemalarda okumalar silinmiş satırları dışarıda
// bırakır.
//
// Transaction:
//
//	err := database.WithTransaction(ctx, db, grammar, log, func(ctx context.Context, tx *database.Transaction) error {
//	    _, err := repo.WithTx(tx).Create(ctx, data)
//	    return err
//	})
// -----------------------------------------------------------------------------

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/query"
)

// DefaultOrderInterval, kardeşler arasında bırakılan varsayılan sıra aralığıdır.
const DefaultOrderInterval int64 = 100

// Entity, generic repository'lerin taşıdığı kayıt sözleşmesidir.
type Entity interface {
	GetID() string
}

// Order, tek bir sıralama girdisidir. Field şema alan adıdır.
type Order struct {
	Field     string
	Direction database.OrderDirection
}

// FindOptions, FindMany parametreleridir.
type FindOptions struct {
	Where       *query.Condition
	OrderBy     []Order
	Take        int
	Skip        int
	WithDeleted bool
}

// CursorOptions, FindManyWithCursor parametreleridir. Cursor boşsa ilk
// sayfa döner.
type CursorOptions struct {
	Where   *query.Condition
	OrderBy []Order
	Take    int
	Cursor  string
}

// CursorPage, cursor sayfalamasının sonucudur.
type CursorPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// Options, repository ayarlarıdır.
type Options struct {
	OrderInterval int64
}

// BaseRepository, T tipindeki entity için CRUD operasyonlarıdır.
type BaseRepository[T Entity] struct {
	db         *sql.DB
	exec       database.QueryExecutor
	grammar    database.Grammar
	schema     *query.Schema
	conditions *query.ConditionBuilder
	logger     zerolog.Logger
	interval   int64
}

// NewBaseRepository creates a repository bound to the connection pool.
func NewBaseRepository[T Entity](db *sql.DB, grammar database.Grammar, schema *query.Schema, logger zerolog.Logger, opts Options) *BaseRepository[T] {
	if opts.OrderInterval <= 0 {
		opts.OrderInterval = DefaultOrderInterval
	}
	return &BaseRepository[T]{
		db:         db,
		exec:       db,
		grammar:    grammar,
		schema:     schema,
		conditions: query.NewConditionBuilder(schema, grammar, ""),
		logger:     logger.With().Str("entity", schema.Entity).Logger(),
		interval:   opts.OrderInterval,
	}
}

// WithTx, transaction'a bağlı bir kopya döner. Kopya üzerindeki tüm
// sorgular tx üzerinden çalışır.
func (r *BaseRepository[T]) WithTx(tx *database.Transaction) *BaseRepository[T] {
	clone := *r
	clone.exec = tx.Tx
	return &clone
}

// Schema returns the entity schema.
func (r *BaseRepository[T]) Schema() *query.Schema { return r.schema }

// Grammar returns the SQL dialect.
func (r *BaseRepository[T]) Grammar() database.Grammar { return r.grammar }

// Logger returns the entity scoped logger.
func (r *BaseRepository[T]) Logger() zerolog.Logger { return r.logger }

// Executor, repository'nin o an kullandığı executor'dır (havuz veya tx).
func (r *BaseRepository[T]) Executor() database.QueryExecutor { return r.exec }

func (r *BaseRepository[T]) col(field string) string {
	return r.schema.MustColumn(field)
}

// fail, hatayı taksonomiye çevirir; internal hatalar sürücü mesajıyla loglanır.
func (r *BaseRepository[T]) fail(op string, err error) error {
	return database.TranslateAndLog(r.logger, op, err)
}

// table, tablo ve koşullarla hazırlanmış bir builder döner.
func (r *BaseRepository[T]) table(where *query.Condition, withDeleted bool) (*database.QueryBuilder, error) {
	qb := database.NewBuilder(r.exec, r.grammar).Table(r.schema.Table)
	if where != nil {
		frag, err := r.conditions.Build(*where)
		if err != nil {
			return nil, err
		}
		qb.WhereRaw(frag.SQL, frag.Args...)
	}
	if r.schema.HasSoftDeletes() && !withDeleted {
		qb.WhereNull(r.col(query.FieldDeletedAt))
	}
	return qb, nil
}

func (r *BaseRepository[T]) applyOrder(qb *database.QueryBuilder, orders []Order) error {
	for _, o := range orders {
		f, err := r.schema.Lookup(o.Field)
		if err != nil {
			return err
		}
		if f.Relation != "" {
			return database.NewError(database.KindValidation, "read", fmt.Sprintf("cannot order by relation field %q", o.Field))
		}
		qb.OrderBy(f.Column, string(o.Direction))
	}
	return nil
}

// ByID, id eşitliği koşuludur.
func ByID(id string) *query.Condition {
	c := query.Where(query.FieldID, query.OpEquals, id)
	return &c
}

// ByIDs, id listesi koşuludur. Boş liste hiçbir satırla eşleşmez.
func ByIDs(ids []string) *query.Condition {
	c := query.Where(query.FieldID, query.OpIn, ids)
	return &c
}

// ByParent, doğrudan çocuk koşuludur. Boş parentID kökleri seçer.
func ByParent(parentID string) *query.Condition {
	var value any
	if parentID != "" {
		value = parentID
	}
	c := query.Where(query.FieldParentID, query.OpEquals, value)
	return &c
}

// -----------------------------------------------------------------------------
// Okuma
// -----------------------------------------------------------------------------

// FindUnique, id ile canlı kaydı bulur. Bulunamazsa KindNotFound döner.
func (r *BaseRepository[T]) FindUnique(ctx context.Context, id string) (*T, error) {
	return r.FindFirst(ctx, ByID(id))
}

// FindFirst, koşula uyan ilk kaydı döner.
func (r *BaseRepository[T]) FindFirst(ctx context.Context, where *query.Condition, orderBy ...Order) (*T, error) {
	qb, err := r.table(where, false)
	if err != nil {
		return nil, err
	}
	if err := r.applyOrder(qb, orderBy); err != nil {
		return nil, err
	}

	var item T
	if err := qb.First(ctx, &item); err != nil {
		return nil, r.fail("read", err)
	}
	return &item, nil
}

// FindMany, koşula uyan kayıtları döner. Sonuç hiçbir zaman nil değildir.
func (r *BaseRepository[T]) FindMany(ctx context.Context, opts FindOptions) ([]T, error) {
	qb, err := r.table(opts.Where, opts.WithDeleted)
	if err != nil {
		return nil, err
	}
	if err := r.applyOrder(qb, opts.OrderBy); err != nil {
		return nil, err
	}
	if opts.Take > 0 {
		qb.Limit(opts.Take)
	}
	if opts.Skip > 0 {
		qb.Offset(opts.Skip)
	}

	items := make([]T, 0)
	if err := qb.Get(ctx, &items); err != nil {
		return nil, r.fail("read", err)
	}
	return items, nil
}

// FindManyWithCursor, keyset sayfalaması yapar.
//
// Sıralama [istenen..., updatedAt DESC, id DESC] olur; take+1 satır okunur ve
// fazlası devam olduğunu gösterir. Cursor "updatedAt_id" biçimindedir
// (updatedAt RFC3339Nano). Sonraki sayfa cursor satırından kesin olarak
// sonra başlar.
func (r *BaseRepository[T]) FindManyWithCursor(ctx context.Context, opts CursorOptions) (*CursorPage[T], error) {
	take := opts.Take
	if take <= 0 {
		take = 20
	}

	orders := append(append([]Order{}, opts.OrderBy...),
		Order{Field: query.FieldUpdatedAt, Direction: database.OrderDesc},
		Order{Field: query.FieldID, Direction: database.OrderDesc},
	)

	qb, err := r.table(opts.Where, false)
	if err != nil {
		return nil, err
	}

	if opts.Cursor != "" {
		keyset, err := r.keyset(ctx, opts.Cursor, orders)
		if err != nil {
			return nil, err
		}
		qb.WhereRaw(keyset.SQL, keyset.Args...)
	}

	if err := r.applyOrder(qb, orders); err != nil {
		return nil, err
	}
	qb.Limit(take + 1)

	items := make([]T, 0, take+1)
	if err := qb.Get(ctx, &items); err != nil {
		return nil, r.fail("read", err)
	}

	page := &CursorPage[T]{Items: items}
	if len(items) > take {
		page.Items = items[:take]
		page.HasMore = true
		page.NextCursor, err = r.cursorOf(ctx, page.Items[take-1].GetID())
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

// EncodeCursor, cursor metnini üretir.
func EncodeCursor(updatedAt time.Time, id string) string {
	return updatedAt.UTC().Format(time.RFC3339Nano) + "_" + id
}

// DecodeCursor, cursor'ı ilk "_" karakterinden böler.
func DecodeCursor(cursor string) (time.Time, string, error) {
	stamp, id, ok := strings.Cut(cursor, "_")
	if !ok || id == "" {
		return time.Time{}, "", database.NewError(database.KindValidation, "read", "malformed cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return time.Time{}, "", database.NewError(database.KindValidation, "read", "malformed cursor timestamp")
	}
	return t.UTC(), id, nil
}

func (r *BaseRepository[T]) cursorOf(ctx context.Context, id string) (string, error) {
	updatedCol := r.col(query.FieldUpdatedAt)
	var updatedAt time.Time
	sqlStr, args, err := database.NewBuilder(r.exec, r.grammar).
		Table(r.schema.Table).
		Select(updatedCol).
		Where(r.col(query.FieldID), "=", id).
		ToSQL()
	if err != nil {
		return "", r.fail("read", err)
	}
	if err := r.exec.QueryRowContext(ctx, sqlStr, args...).Scan(&updatedAt); err != nil {
		return "", r.fail("read", err)
	}
	return EncodeCursor(updatedAt, id), nil
}

// keyset, sıralama listesine göre "cursor satırından sonra" predicate'ini
// üretir: (c1 > v1) OR (c1 = v1 AND c2 > v2) OR ...
//
// updatedAt ve id değerleri cursor'dan, istenen sıralama alanlarının
// değerleri cursor satırından okunur.
func (r *BaseRepository[T]) keyset(ctx context.Context, cursor string, orders []Order) (query.Fragment, error) {
	updatedAt, id, err := DecodeCursor(cursor)
	if err != nil {
		return query.Fragment{}, err
	}

	values := make([]any, len(orders))
	values[len(orders)-2] = updatedAt
	values[len(orders)-1] = id

	if requested := orders[:len(orders)-2]; len(requested) > 0 {
		cols := make([]string, len(requested))
		for i, o := range requested {
			f, err := r.schema.Lookup(o.Field)
			if err != nil {
				return query.Fragment{}, err
			}
			cols[i] = f.Column
		}
		rows, err := database.NewBuilder(r.exec, r.grammar).
			Table(r.schema.Table).
			Select(cols...).
			Where(r.col(query.FieldID), "=", id).
			Rows(ctx)
		if err != nil {
			return query.Fragment{}, r.fail("read", err)
		}
		if len(rows) == 0 {
			return query.Fragment{}, database.NewError(database.KindValidation, "read", "cursor row no longer exists")
		}
		for i, c := range cols {
			values[i] = rows[0][c]
		}
	}

	var branches []query.Fragment
	for i, o := range orders {
		var parts []query.Fragment
		for j := 0; j < i; j++ {
			col, err := r.grammar.Wrap(r.col(orders[j].Field))
			if err != nil {
				return query.Fragment{}, err
			}
			parts = append(parts, query.Fragment{SQL: col + " = ?", Args: []any{values[j]}})
		}
		col, err := r.grammar.Wrap(r.col(o.Field))
		if err != nil {
			return query.Fragment{}, err
		}
		op := ">"
		if o.Direction == database.OrderDesc {
			op = "<"
		}
		parts = append(parts, query.Fragment{SQL: col + " " + op + " ?", Args: []any{values[i]}})
		branches = append(branches, query.AndFragments(parts...))
	}
	return query.OrFragments(branches...), nil
}

// Count, koşula uyan canlı kayıt sayısıdır.
func (r *BaseRepository[T]) Count(ctx context.Context, where *query.Condition) (int64, error) {
	qb, err := r.table(where, false)
	if err != nil {
		return 0, err
	}
	n, err := qb.Count(ctx)
	if err != nil {
		return 0, r.fail("read", err)
	}
	return n, nil
}

// Exists reports whether any live row matches.
func (r *BaseRepository[T]) Exists(ctx context.Context, where *query.Condition) (bool, error) {
	n, err := r.Count(ctx, where)
	return n > 0, err
}

// Aggregate, sayısal bir alan üzerinde sum/min/max/count/avg hesaplar.
// Eşleşen satır yoksa 0 döner.
func (r *BaseRepository[T]) Aggregate(ctx context.Context, fn, field string, where *query.Condition) (float64, error) {
	f, err := r.schema.Lookup(field)
	if err != nil {
		return 0, err
	}
	expr, err := r.schema.Expr(r.grammar, f, "")
	if err != nil {
		return 0, err
	}
	agg, err := query.Aggregate(fn, expr, "aggregate")
	if err != nil {
		return 0, err
	}

	qb, err := r.table(where, false)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := qb.Select(agg).ToSQL()
	if err != nil {
		return 0, r.fail("read", err)
	}

	var out sql.NullFloat64
	if err := r.exec.QueryRowContext(ctx, sqlStr, args...).Scan(&out); err != nil {
		return 0, r.fail("read", err)
	}
	return out.Float64, nil
}

// -----------------------------------------------------------------------------
// Yazma
// -----------------------------------------------------------------------------

// Create, yeni kayıt ekler ve okunmuş halini döner.
//
// id verilmemişse UUID üretilir; createdAt/updatedAt şimdiye ayarlanır.
// Sıralı şemalarda order verilmemişse parentId altındaki bir sonraki seyrek
// sıra atanır.
func (r *BaseRepository[T]) Create(ctx context.Context, data map[string]any) (*T, error) {
	row := lo.Assign(map[string]any{}, data)

	id, _ := row[query.FieldID].(string)
	if id == "" {
		id = uuid.NewString()
		row[query.FieldID] = id
	}

	now := time.Now().UTC()
	row[query.FieldCreatedAt] = now
	row[query.FieldUpdatedAt] = now
	normalizeParent(row)

	if r.schema.IsOrdered() {
		if _, ok := row[query.FieldOrder]; !ok {
			next, err := r.NextOrder(ctx, parentOf(row))
			if err != nil {
				return nil, err
			}
			row[query.FieldOrder] = next
		}
	}

	cols, err := r.schema.Columns("create", row)
	if err != nil {
		return nil, err
	}
	if _, err := database.NewBuilder(r.exec, r.grammar).Table(r.schema.Table).ExecInsert(ctx, cols); err != nil {
		return nil, r.fail("create", err)
	}

	r.logger.Debug().Str("id", id).Msg("kayıt oluşturuldu")
	return r.FindUnique(ctx, id)
}

// Update, canlı kaydı günceller ve yeni halini döner. updatedAt her zaman
// yenilenir.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, data map[string]any) (*T, error) {
	row := lo.Assign(map[string]any{}, data)
	delete(row, query.FieldID)
	row[query.FieldUpdatedAt] = time.Now().UTC()
	normalizeParent(row)

	cols, err := r.schema.Columns("update", row)
	if err != nil {
		return nil, err
	}

	qb, _ := r.table(nil, false)
	res, err := qb.Where(r.col(query.FieldID), "=", id).ExecUpdate(ctx, cols)
	if err != nil {
		return nil, r.fail("update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, r.fail("update", sql.ErrNoRows)
	}
	return r.FindUnique(ctx, id)
}

// UpdateMany, koşula uyan canlı kayıtları günceller; etkilenen satır
// sayısını döner.
func (r *BaseRepository[T]) UpdateMany(ctx context.Context, where *query.Condition, data map[string]any) (int64, error) {
	row := lo.Assign(map[string]any{}, data)
	delete(row, query.FieldID)
	row[query.FieldUpdatedAt] = time.Now().UTC()

	cols, err := r.schema.Columns("update", row)
	if err != nil {
		return 0, err
	}
	qb, err := r.table(where, false)
	if err != nil {
		return 0, err
	}
	res, err := qb.ExecUpdate(ctx, cols)
	if err != nil {
		return 0, r.fail("update", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Delete, kaydı kalıcı olarak siler.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	res, err := database.NewBuilder(r.exec, r.grammar).
		Table(r.schema.Table).
		Where(r.col(query.FieldID), "=", id).
		ExecDelete(ctx)
	if err != nil {
		return r.fail("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.fail("delete", sql.ErrNoRows)
	}
	return nil
}

// DeleteMany, koşula uyan kayıtları kalıcı olarak siler. Koşulsuz çağrı
// reddedilir.
func (r *BaseRepository[T]) DeleteMany(ctx context.Context, where *query.Condition) (int64, error) {
	if where == nil {
		return 0, database.NewError(database.KindValidation, "delete", "deleteMany requires a condition")
	}
	qb, err := r.table(where, true)
	if err != nil {
		return 0, err
	}
	res, err := qb.ExecDelete(ctx)
	if err != nil {
		return 0, r.fail("delete", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Upsert, koşula uyan kayıt varsa update, yoksa create verisini uygular.
// İki adım atomik değildir; yarış durumunda unique ihlali KindConflict olarak
// döner.
func (r *BaseRepository[T]) Upsert(ctx context.Context, where *query.Condition, create, update map[string]any) (*T, error) {
	existing, err := r.FindFirst(ctx, where)
	switch {
	case err == nil:
		return r.Update(ctx, (*existing).GetID(), update)
	case database.IsKind(err, database.KindNotFound):
		return r.Create(ctx, create)
	default:
		return nil, err
	}
}

// FindOrCreate, koşula uyan kaydı döner; yoksa data ile oluşturur. İkinci
// dönüş değeri kaydın yeni oluşturulup oluşturulmadığıdır.
func (r *BaseRepository[T]) FindOrCreate(ctx context.Context, where *query.Condition, data map[string]any) (*T, bool, error) {
	existing, err := r.FindFirst(ctx, where)
	if err == nil {
		return existing, false, nil
	}
	if !database.IsKind(err, database.KindNotFound) {
		return nil, false, err
	}
	created, err := r.Create(ctx, data)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// SoftDeleteByIds, kayıtları deletedAt = şimdi ile işaretler. extra alanları
// aynı update'e eklenir. Silinen kayıtların silinmeden önceki hali döner.
func (r *BaseRepository[T]) SoftDeleteByIds(ctx context.Context, ids []string, extra map[string]any) ([]T, error) {
	if !r.schema.HasSoftDeletes() {
		return nil, database.InvalidOperation("delete", fmt.Sprintf("%s does not support soft deletes", r.schema.Entity))
	}

	rows, err := r.FindMany(ctx, FindOptions{Where: ByIDs(lo.Uniq(ids))})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	now := time.Now().UTC()
	data := lo.Assign(map[string]any{}, extra)
	data[query.FieldDeletedAt] = now
	data[query.FieldUpdatedAt] = now
	cols, err := r.schema.Columns("delete", data)
	if err != nil {
		return nil, err
	}

	live := lo.Map(rows, func(row T, _ int) any { return row.GetID() })
	_, err = database.NewBuilder(r.exec, r.grammar).
		Table(r.schema.Table).
		WhereIn(r.col(query.FieldID), live).
		WhereNull(r.col(query.FieldDeletedAt)).
		ExecUpdate(ctx, cols)
	if err != nil {
		return nil, r.fail("delete", err)
	}
	return rows, nil
}

// NextOrder, parentID altındaki bir sonraki seyrek sıradır:
// max(sonKardeş, ebeveynSırası) + aralık. Kardeşi olmayan ilk kök 1 alır.
// Değer her çağrıda yeniden sorgulanır.
func (r *BaseRepository[T]) NextOrder(ctx context.Context, parentID string) (int64, error) {
	orderCol := r.col(query.FieldOrder)
	wrapped, err := r.grammar.Wrap(orderCol)
	if err != nil {
		return 0, err
	}

	qb, err := r.table(ByParent(parentID), false)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := qb.Select("MAX(" + wrapped + ") AS last_order").ToSQL()
	if err != nil {
		return 0, r.fail("read", err)
	}

	var last sql.NullInt64
	if err := r.exec.QueryRowContext(ctx, sqlStr, args...).Scan(&last); err != nil {
		return 0, r.fail("read", err)
	}

	var parentOrder int64
	if parentID != "" {
		sqlStr, args, err := database.NewBuilder(r.exec, r.grammar).
			Table(r.schema.Table).
			Select(orderCol).
			Where(r.col(query.FieldID), "=", parentID).
			ToSQL()
		if err != nil {
			return 0, r.fail("read", err)
		}
		err = r.exec.QueryRowContext(ctx, sqlStr, args...).Scan(&parentOrder)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, r.fail("read", err)
		}
	}

	if !last.Valid && parentID == "" {
		return 1, nil
	}
	return max(last.Int64, parentOrder) + r.interval, nil
}

// parentOf, data map'indeki parentId değerini string'e çevirir.
func parentOf(data map[string]any) string {
	switch v := data[query.FieldParentID].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}

// normalizeParent, boş parentId değerini NULL'a çevirir.
func normalizeParent(row map[string]any) {
	if _, ok := row[query.FieldParentID]; !ok {
		return
	}
	if p := parentOf(row); p != "" {
		row[query.FieldParentID] = p
	} else {
		row[query.FieldParentID] = nil
	}
}
