package validation

import (
	"errors"
	"fmt"
)

// ValidationSchema, alan tiplerini ve alanlar arası kuralları tutar.
//
// Partial modda yalnızca payload'da bulunan alanlar doğrulanır; güncelleme
// isteklerinde gönderilmeyen zorunlu alanlar hata üretmez.
type ValidationSchema struct {
	shape           map[string]Type
	partial         bool
	crossValidators []func(data map[string]any) error
}

// Make, boş bir şema döner.
func Make() *ValidationSchema {
	return &ValidationSchema{shape: make(map[string]Type)}
}

// Shape, alan adı → tip eşlemesini ayarlar.
func (vs *ValidationSchema) Shape(shape map[string]Type) *ValidationSchema {
	vs.shape = shape
	return vs
}

// CrossValidate, tüm alanlar geçerliyse çalışan bir kural ekler. Kural
// *FieldError dönerse hata ilgili alana, aksi halde "_cross" altına yazılır.
func (vs *ValidationSchema) CrossValidate(fn func(data map[string]any) error) *ValidationSchema {
	vs.crossValidators = append(vs.crossValidators, fn)
	return vs
}

// Partial, aynı kurallarla partial modda çalışan bir kopya döner.
func (vs *ValidationSchema) Partial() *ValidationSchema {
	cp := *vs
	cp.partial = true
	return &cp
}

// Validate, şemayı data üzerinde çalıştırır:
//  1. Transform: alanlar temizlenir
//  2. Validate: tip kuralları uygulanır
//  3. Cross-validate: yalnızca hata yoksa çalışır
//
// Hata yoksa ValidData, data'nın dönüştürülmüş alanlarla güncellenmiş
// kopyasıdır. Şemada olmayan alanlar olduğu gibi taşınır.
func (vs *ValidationSchema) Validate(data map[string]any) *Result {
	result := NewResult()

	transformed := make(map[string]any, len(data))
	for k, v := range data {
		transformed[k] = v
	}

	for field, typ := range vs.shape {
		value, present := data[field]
		if vs.partial && !present {
			continue
		}
		out, err := typ.Transform(value)
		if err != nil {
			result.AddError(field, fmt.Sprintf("%s alanı dönüştürülemedi: %s", field, err.Error()))
			continue
		}
		if out != nil || present {
			transformed[field] = out
		}
	}

	for field, typ := range vs.shape {
		if result.FieldHasErrors(field) {
			continue
		}
		if _, present := data[field]; vs.partial && !present {
			continue
		}
		typ.Validate(field, transformed[field], result)
	}

	if !result.HasErrors() {
		for _, fn := range vs.crossValidators {
			err := fn(transformed)
			if err == nil {
				continue
			}
			var fe *FieldError
			if errors.As(err, &fe) {
				result.AddError(fe.Field, fe.Message)
			} else {
				result.AddError("_cross", err.Error())
			}
		}
	}

	if !result.HasErrors() {
		result.SetValidData(transformed)
	}
	return result
}
