// Package validation, servis katmanına gelen map payload'larını şema
// üzerinden temizler ve doğrular.
//
// Tip bazlı doğrulama (Type) ile şema bazlı doğrulama (Schema) ayrıdır:
// tipler tek bir alanı dönüştürür ve kontrol eder, şema bütün payload'ı
// dolaşır ve alanlar arası kuralları çalıştırır.
package validation

import (
	"sort"
	"strings"
)

// Result, bir doğrulama işleminin sonucunu temsil eder.
// Hem hataları hem de temizlenmiş veriyi tutar.
type Result struct {
	errors    map[string][]string
	validData map[string]any
}

// NewResult, boş bir Result döner.
func NewResult() *Result {
	return &Result{
		errors:    make(map[string][]string),
		validData: make(map[string]any),
	}
}

// AddError, alan için bir doğrulama hatası ekler.
func (r *Result) AddError(field, message string) {
	r.errors[field] = append(r.errors[field], message)
}

// HasErrors, en az bir hata varsa true döner.
func (r *Result) HasErrors() bool {
	return len(r.errors) > 0
}

// FieldHasErrors, verilen alan için hata olup olmadığını döner.
func (r *Result) FieldHasErrors(field string) bool {
	return len(r.errors[field]) > 0
}

// Errors, alan bazlı hata mesajlarını döner.
func (r *Result) Errors() map[string][]string {
	return r.errors
}

// ValidData, hata yoksa temizlenmiş veriyi döner.
func (r *Result) ValidData() map[string]any {
	return r.validData
}

// SetValidData, temizlenmiş veriyi ayarlar.
func (r *Result) SetValidData(data map[string]any) {
	r.validData = data
}

// Summary, hataları alan adına göre sıralı tek satırlık bir metne çevirir.
//
// Örnek:
//
//	code: code alanı zorunludur; name: name alanı en fazla 255 karakter olmalıdır
func (r *Result) Summary() string {
	fields := make([]string, 0, len(r.errors))
	for field := range r.errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(r.errors[field], ", "))
	}
	return strings.Join(parts, "; ")
}

// Type, tek bir alanın dönüşüm ve doğrulama kurallarıdır.
type Type interface {
	// Transform, doğrulamadan önce değeri temizler (trim, sayı dönüşümü).
	Transform(value any) (any, error)

	// Validate, dönüştürülmüş değeri kontrol eder ve hataları result'a yazar.
	Validate(field string, value any, result *Result)
}

// Schema, bir payload'ın tamamını doğrular.
type Schema interface {
	Validate(data map[string]any) *Result
}
