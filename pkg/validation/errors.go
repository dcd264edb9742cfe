package validation

import "fmt"

// FieldError, alanlar arası bir kuralın belirli bir alana ait hatasıdır.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewFieldError, yeni bir FieldError döner.
//
// Örnek:
//
//	return validation.NewFieldError("parentId", "departman kendi altına taşınamaz")
func NewFieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
