// Package types, validation şemalarında kullanılan alan tiplerini içerir.
package types

import (
	"fmt"

	"github.com/biyonik/orgtree-api/pkg/validation"
)

// BaseType, tiplerin gömdüğü ortak davranıştır: zorunluluk, etiket,
// varsayılan değer ve dönüşüm zinciri.
type BaseType struct {
	isRequired      bool
	label           string
	defaultValue    any
	transformations []func(any) (any, error)
}

func (b *BaseType) SetRequired()         { b.isRequired = true }
func (b *BaseType) SetLabel(label string) { b.label = label }
func (b *BaseType) SetDefault(value any)  { b.defaultValue = value }

// AddTransform, dönüşüm zincirine bir adım ekler.
func (b *BaseType) AddTransform(fn func(any) (any, error)) {
	b.transformations = append(b.transformations, fn)
}

// Transform, varsayılan değeri uygular ve dönüşümleri sırayla çalıştırır.
// nil değer dönüşümlerden geçmez.
func (b *BaseType) Transform(value any) (any, error) {
	if value == nil && b.defaultValue != nil {
		value = b.defaultValue
	}
	if value == nil {
		return nil, nil
	}

	var err error
	for _, fn := range b.transformations {
		value, err = fn(value)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}

// Validate, zorunluluk kontrolünü yapar. Boş string eksik sayılır.
func (b *BaseType) Validate(field string, value any, result *validation.Result) {
	if !b.isRequired {
		return
	}
	if value == nil {
		result.AddError(field, fmt.Sprintf("%s alanı zorunludur", b.name(field)))
		return
	}
	if str, ok := value.(string); ok && str == "" {
		result.AddError(field, fmt.Sprintf("%s alanı zorunludur", b.name(field)))
	}
}

func (b *BaseType) name(field string) string {
	if b.label != "" {
		return b.label
	}
	return field
}
