package models

import "time"

// TreeNode, closure table ile saklanan hiyerarşik entity'lerin ortak
// alanlarıdır.
//
// Order seyrek bir sıra numarasıdır: kardeşler arasında varsayılan olarak
// 100'lük aralık bırakılır. HasChildren, canlı (silinmemiş) çocuk olup
// olmadığını gösteren denormalize bayraktır.
type TreeNode struct {
	ParentID    *string    `json:"parentId" db:"parent_id"`
	Order       int64      `json:"order" db:"sort_order"`
	HasChildren bool       `json:"hasChildren" db:"has_children"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// IsRoot reports whether the node has no parent.
func (n TreeNode) IsRoot() bool { return n.ParentID == nil }

// GetParentID, kök için boş string döner.
func (n TreeNode) GetParentID() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// GetOrder returns the sparse sibling order.
func (n TreeNode) GetOrder() int64 { return n.Order }

// GetHasChildren returns the denormalized child flag.
func (n TreeNode) GetHasChildren() bool { return n.HasChildren }

// Ancestry, closure tablosunun bir satırıdır. Kökün tek satırı
// (NULL, id, 1) biçimindedir.
type Ancestry struct {
	AncestorID   *string `json:"ancestorId" db:"ancestor_id"`
	DescendantID string  `json:"descendantId" db:"descendant_id"`
	Depth        int     `json:"depth" db:"rel_depth"`
}
