package rowmodel

import (
	"fmt"
	"strings"

	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/query"
)

// -----------------------------------------------------------------------------
// Row Model Compiler
// -----------------------------------------------------------------------------
// İki mod vardır:
//
//   - Grup modu (rowGroupCols > groupKeys): sıradaki grup kolonu, değer
//     kolonlarının toplamları ve COUNT(DISTINCT id) AS child_count seçilir.
//   - Düz mod: tam projeksiyon ROW_NUMBER() ile join tekrarlarından
//     arındırılır; dış sorgu row_num = 1 satırlarını istenen sıralama ve
//     updatedAt DESC, id DESC ikincil sıralamasıyla sayfalar.
//
// Her iki modda da pageSize+1 satır okunur; fazladan satır daha fazla kayıt
// olduğunu gösterir.
// -----------------------------------------------------------------------------

const (
	DefaultPageSize = 100
	rowNumColumn    = "row_num"
	childCountCol   = "child_count"
	outerAlias      = "q"
)

// Options, compiler ayarlarıdır.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Compiler, bir entity şeması için row model isteklerini derler.
type Compiler struct {
	schema     *query.Schema
	grammar    database.Grammar
	conditions *query.ConditionBuilder
	opts       Options
}

// NewCompiler creates a compiler for the given schema and dialect.
func NewCompiler(schema *query.Schema, grammar database.Grammar, opts Options) *Compiler {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	return &Compiler{
		schema:     schema,
		grammar:    grammar,
		conditions: query.NewConditionBuilder(schema, grammar, schema.Alias),
		opts:       opts,
	}
}

// Compiled, derlenmiş sorgu ve sayfalama bilgisidir.
type Compiled struct {
	SQL      string
	Args     []any
	StartRow int
	PageSize int
	Grouping bool
}

// Result, ızgaraya dönen sayfadır. RowCount -1 ise devamı vardır.
type Result[T any] struct {
	RowCount int `json:"rowCount"`
	RowData  []T `json:"rowData"`
}

// Page, fazladan okunan satırı atar ve rowCount'u hesaplar.
func Page[T any](rows []T, c *Compiled) Result[T] {
	if len(rows) > c.PageSize {
		return Result[T]{RowCount: -1, RowData: rows[:c.PageSize]}
	}
	if rows == nil {
		rows = []T{}
	}
	return Result[T]{RowCount: c.StartRow + len(rows), RowData: rows}
}

// Compile, isteği tek bir SQL ifadesine çevirir. extra, entity'ye özgü ek
// filtredir (kapsam kısıtı gibi) ve nil olabilir.
func (c *Compiler) Compile(req Request, extra *query.Condition) (*Compiled, error) {
	if req.StartRow < 0 {
		return nil, database.NewError(database.KindValidation, "read", "startRow must not be negative")
	}

	pageSize := req.EndRow - req.StartRow
	if pageSize <= 0 {
		pageSize = c.opts.DefaultPageSize
	}
	if c.opts.MaxPageSize > 0 && pageSize > c.opts.MaxPageSize {
		pageSize = c.opts.MaxPageSize
	}

	where, err := c.where(req, extra)
	if err != nil {
		return nil, err
	}

	var stmt query.Fragment
	if req.DoingGroup() {
		stmt, err = c.groupQuery(req, where, pageSize)
	} else {
		stmt, err = c.flatQuery(req, where, pageSize)
	}
	if err != nil {
		return nil, err
	}

	return &Compiled{
		SQL:      stmt.SQL,
		Args:     stmt.Args,
		StartRow: req.StartRow,
		PageSize: pageSize,
		Grouping: req.DoingGroup(),
	}, nil
}

// CompileIDs, isteğin filtrelerine ve extra'ya uyan satırların id'lerini
// seçen sorguyu derler. Gruplama, ağaç gezinmesi ve sayfalama yok sayılır.
func (c *Compiler) CompileIDs(req Request, extra *query.Condition) (query.Fragment, error) {
	where, err := c.where(Request{FilterModel: req.FilterModel}, extra)
	if err != nil {
		return query.Fragment{}, err
	}
	from, err := c.schema.From(c.grammar)
	if err != nil {
		return query.Fragment{}, err
	}
	idExpr, _ := c.grammar.Wrap(c.schema.Alias + "." + c.schema.MustColumn(query.FieldID))
	idAlias, _ := c.grammar.Wrap(query.FieldID)
	return query.Select{
		Columns: []string{"DISTINCT " + idExpr + " AS " + idAlias},
		From:    query.Fragment{SQL: from},
		Where:   where,
	}.Build(), nil
}

func (c *Compiler) where(req Request, extra *query.Condition) (query.Fragment, error) {
	var conds []query.Condition

	if req.TreeGroup() || req.TreeData {
		if !c.schema.IsTree() {
			return query.Fragment{}, database.NewError(database.KindValidation, "read", fmt.Sprintf("%s is not hierarchical", c.schema.Entity))
		}
	}
	switch {
	case req.TreeGroup():
		conds = append(conds, query.Where(query.FieldParentID, query.OpEquals, req.GroupKeys[len(req.GroupKeys)-1]))
	case req.TreeData && len(req.RowGroupCols) == 0:
		conds = append(conds, query.Where(query.FieldParentID, query.OpEquals, nil))
	}

	for i, key := range req.GroupKeys {
		if i >= len(req.RowGroupCols) {
			break
		}
		conds = append(conds, query.Where(req.RowGroupCols[i].Field, query.OpEquals, key))
	}

	conds = append(conds, req.Filters()...)
	if extra != nil {
		conds = append(conds, *extra)
	}
	if c.schema.HasSoftDeletes() {
		conds = append(conds, query.Where(query.FieldDeletedAt, query.OpEquals, nil))
	}
	if len(conds) == 0 {
		return query.Fragment{}, nil
	}
	return c.conditions.Build(query.And(conds...))
}

func (c *Compiler) groupQuery(req Request, where query.Fragment, pageSize int) (query.Fragment, error) {
	col := req.RowGroupCols[len(req.GroupKeys)]
	field, err := c.schema.Lookup(col.Field)
	if err != nil {
		return query.Fragment{}, err
	}
	expr, err := c.schema.Expr(c.grammar, field, c.schema.Alias)
	if err != nil {
		return query.Fragment{}, err
	}
	groupAlias, err := c.grammar.Wrap(query.Alias(field.Name))
	if err != nil {
		return query.Fragment{}, err
	}

	columns := []string{expr + " AS " + groupAlias}
	outputs := map[string]string{field.Name: groupAlias}

	for _, vc := range req.ValueCols {
		vf, err := c.schema.Lookup(vc.Field)
		if err != nil {
			return query.Fragment{}, err
		}
		vexpr, err := c.schema.Expr(c.grammar, vf, c.schema.Alias)
		if err != nil {
			return query.Fragment{}, err
		}
		valias, err := c.grammar.Wrap(query.Alias(vf.Name))
		if err != nil {
			return query.Fragment{}, err
		}
		fn := vc.AggFunc
		if fn == "" {
			fn = "sum"
		}
		agg, err := query.Aggregate(fn, vexpr, valias)
		if err != nil {
			return query.Fragment{}, err
		}
		columns = append(columns, agg)
		outputs[vf.Name] = valias
	}

	idExpr, _ := c.grammar.Wrap(c.schema.Alias + "." + c.schema.MustColumn(query.FieldID))
	childCount, _ := c.grammar.Wrap(childCountCol)
	columns = append(columns, fmt.Sprintf("COUNT(DISTINCT %s) AS %s", idExpr, childCount))

	var orderBy []string
	for _, s := range req.SortModel {
		if out, ok := outputs[s.ColID]; ok {
			orderBy = append(orderBy, out+" "+string(database.ParseDirection(strings.ToUpper(s.Sort))))
		}
	}
	if len(orderBy) == 0 {
		orderBy = []string{groupAlias + " ASC"}
	}

	from, err := c.schema.From(c.grammar)
	if err != nil {
		return query.Fragment{}, err
	}

	return query.Select{
		Columns: columns,
		From:    query.Fragment{SQL: from},
		Where:   where,
		GroupBy: []string{expr},
		OrderBy: orderBy,
		Limit:   pageSize + 1,
		Offset:  req.StartRow,
	}.Build(), nil
}

func (c *Compiler) flatQuery(req Request, where query.Fragment, pageSize int) (query.Fragment, error) {
	all, _ := c.grammar.Wrap(c.schema.Alias + ".*")
	columns := []string{all}
	for _, f := range c.schema.Fields() {
		if f.Relation == "" {
			continue
		}
		expr, err := c.schema.Expr(c.grammar, f, c.schema.Alias)
		if err != nil {
			return query.Fragment{}, err
		}
		out, err := c.grammar.Wrap(f.Output)
		if err != nil {
			return query.Fragment{}, err
		}
		columns = append(columns, expr+" AS "+out)
	}

	idExpr, _ := c.grammar.Wrap(c.schema.Alias + "." + c.schema.MustColumn(query.FieldID))
	rowNum, _ := c.grammar.Wrap(rowNumColumn)
	columns = append(columns, query.RowNumberOver(idExpr, idExpr, rowNum))

	from, err := c.schema.From(c.grammar)
	if err != nil {
		return query.Fragment{}, err
	}
	inner := query.Select{Columns: columns, From: query.Fragment{SQL: from}, Where: where}.Build()

	outer := func(column string) string {
		w, _ := c.grammar.Wrap(outerAlias + "." + column)
		return w
	}

	var orderBy []string
	for _, s := range req.SortModel {
		f, err := c.schema.Lookup(s.ColID)
		if err != nil {
			return query.Fragment{}, err
		}
		orderBy = append(orderBy, outer(f.Output)+" "+string(database.ParseDirection(strings.ToUpper(s.Sort))))
	}
	orderBy = append(orderBy,
		outer(c.schema.MustColumn(query.FieldUpdatedAt))+" DESC",
		outer(c.schema.MustColumn(query.FieldID))+" DESC",
	)

	alias, _ := c.grammar.Wrap(outerAlias)
	return query.Select{
		From:    query.Subquery(inner, alias),
		Where:   query.Fragment{SQL: outer(rowNumColumn) + " = 1"},
		OrderBy: orderBy,
		Limit:   pageSize + 1,
		Offset:  req.StartRow,
	}.Build(), nil
}
