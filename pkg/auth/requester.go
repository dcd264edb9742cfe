package auth

import (
	"slices"
)

// Bilinen yetki etiketleri.
const (
	PermissionDepartmentReadAll = "department:read_all"
	PermissionDepartmentWrite   = "department:write"
	PermissionDepartmentDelete  = "department:delete"
	PermissionDepartmentMove    = "department:move"
)

// Requester, isteği yapan kimliğin uygulama içindeki temsilidir.
//
// Kimlik doğrulama ve yetki hesaplama bu servisin dışındadır; Requester
// doğrulanmış token claim'lerinden üretilir ve salt okunur kullanılır.
type Requester struct {
	ID            string   `json:"id"`
	Permissions   []string `json:"permissions"`
	DepartmentIDs []string `json:"departmentIds"`
}

// Has reports whether the requester carries the permission tag.
func (r *Requester) Has(permission string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.Permissions, permission)
}

// InDepartment reports whether id is one of the requester's own departments.
func (r *Requester) InDepartment(id string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.DepartmentIDs, id)
}
