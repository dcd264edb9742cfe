// Package rowmodel, sunucu taraflı gruplanan veri ızgarası isteklerini
// (row model) SQL'e derler.
package rowmodel

import (
	"sort"
	"strings"

	"github.com/biyonik/orgtree-api/pkg/query"
)

// ColumnVO, gruplama veya değer kolonunu tanımlar.
type ColumnVO struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Field       string `json:"field"`
	AggFunc     string `json:"aggFunc,omitempty"`
}

// SortModelItem, tek bir sıralama girdisidir.
type SortModelItem struct {
	ColID string `json:"colId"`
	Sort  string `json:"sort"`
}

// FilterItem, ızgaranın tek kolon filtresidir. Operator ve Conditions
// doluysa birleşik filtredir.
type FilterItem struct {
	FilterType string       `json:"filterType"`
	Type       string       `json:"type,omitempty"`
	Filter     any          `json:"filter,omitempty"`
	FilterTo   any          `json:"filterTo,omitempty"`
	DateFrom   string       `json:"dateFrom,omitempty"`
	DateTo     string       `json:"dateTo,omitempty"`
	Values     []any        `json:"values,omitempty"`
	Operator   string       `json:"operator,omitempty"`
	Conditions []FilterItem `json:"conditions,omitempty"`
}

// Request, row model isteğidir.
type Request struct {
	StartRow     int                   `json:"startRow"`
	EndRow       int                   `json:"endRow"`
	RowGroupCols []ColumnVO            `json:"rowGroupCols"`
	ValueCols    []ColumnVO            `json:"valueCols"`
	GroupKeys    []string              `json:"groupKeys"`
	FilterModel  map[string]FilterItem `json:"filterModel"`
	SortModel    []SortModelItem       `json:"sortModel"`
	TreeData     bool                  `json:"treeData,omitempty"`
}

// DoingGroup reports whether the request asks for group rows.
func (r Request) DoingGroup() bool {
	return len(r.RowGroupCols) > len(r.GroupKeys)
}

// TreeGroup, bir ağaç düğümünün çocuklarının istendiğini belirtir.
func (r Request) TreeGroup() bool {
	return len(r.RowGroupCols) == 0 && len(r.GroupKeys) > 0
}

// Filters, filterModel'i koşul listesine çevirir. Çıktı alan adına göre
// sıralıdır.
func (r Request) Filters() []query.Condition {
	fields := make([]string, 0, len(r.FilterModel))
	for field := range r.FilterModel {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conds := make([]query.Condition, 0, len(fields))
	for _, field := range fields {
		conds = append(conds, r.FilterModel[field].condition(field))
	}
	return conds
}

func (f FilterItem) condition(field string) query.Condition {
	if len(f.Conditions) > 0 {
		children := make([]query.Condition, len(f.Conditions))
		for i, c := range f.Conditions {
			children[i] = c.condition(field)
		}
		if strings.EqualFold(f.Operator, "OR") {
			return query.Or(children...)
		}
		return query.And(children...)
	}

	if f.FilterType == "set" {
		values := f.Values
		if values == nil {
			values = []any{}
		}
		return query.Condition{Field: field, Operator: query.OpIn, Value: values}
	}

	cond := query.Condition{Field: field, Operator: query.Operator(f.Type), Value: f.Filter, ValueTo: f.FilterTo}
	if f.FilterType == "date" {
		cond.Value, cond.ValueTo = nilIfEmpty(f.DateFrom), nilIfEmpty(f.DateTo)
	}
	return cond
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
