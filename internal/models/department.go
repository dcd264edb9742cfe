package models

// Department, organizasyon birimidir. Ağaç yapısı closure table
// (department_ancestry) ile tutulur.
type Department struct {
	BaseModel
	TreeNode

	Name      string  `json:"name" db:"name"`
	Code      string  `json:"code" db:"code"`
	ManagerID *string `json:"managerId" db:"manager_id"`
	Headcount int64   `json:"headcount" db:"headcount"`

	// ParentName yalnızca parent join'i içeren okumalarda doludur.
	ParentName *string `json:"parentName,omitempty" db:"parent_name"`
}

// DepartmentDto, ızgaraya dönen satırdır. Relations ve Permissions
// alanları row cache hook'ları tarafından doldurulur.
type DepartmentDto struct {
	Department

	Path       []string `json:"path"`
	ChildCount int      `json:"childCount"`

	Permissions *RowPermissions `json:"permissions,omitempty"`
}

// RowPermissions, isteği yapana göre hesaplanan satır yetkileridir.
// Önbelleğe hiçbir zaman yazılmaz.
type RowPermissions struct {
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
	CanMove   bool `json:"canMove"`
}
