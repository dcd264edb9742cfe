// internal/models/base_model.go
//
// Bu dosya, tüm modellerin gömerek devraldığı temel alanları
// (ID, CreatedAt, UpdatedAt) içerir.
//
// Kullanım:
//    type Department struct {
//        models.BaseModel
//        models.TreeNode
//        Name string `db:"name"`
//    }
//
// ID, veritabanı tarafından değil uygulama tarafından üretilen UUID
// metnidir; kayıt insert edilmeden önce bilinir.

package models

import "time"

// BaseModel
//
// Alanlar:
//   - ID:        string → UUID metni, birincil anahtar
//   - CreatedAt: time   → oluşturulma zamanı (UTC)
//   - UpdatedAt: time   → güncellenme zamanı (UTC), cursor sayfalamada kullanılır
type BaseModel struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Initialize
//
// CreatedAt ve UpdatedAt alanlarını şu anki zamana ayarlar.
func (m *BaseModel) Initialize() {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
}

// Touch
//
// UpdatedAt alanını şu anki zamana günceller.
func (m *BaseModel) Touch() {
	m.UpdatedAt = time.Now().UTC()
}

// GetID, generic repository'lerin kayıt kimliğine erişimi içindir.
func (m BaseModel) GetID() string { return m.ID }
