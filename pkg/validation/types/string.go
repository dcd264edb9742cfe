package types

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/biyonik/orgtree-api/pkg/validation"
)

// StringType, metin alanlarını doğrular. Uzunluk rune cinsinden ölçülür.
type StringType struct {
	BaseType
	minLength     *int
	maxLength     *int
	pattern       *regexp.Regexp
	patternHint   string
	allowedValues []string
}

func (s *StringType) Required() *StringType {
	s.SetRequired()
	return s
}

func (s *StringType) Label(label string) *StringType {
	s.SetLabel(label)
	return s
}

func (s *StringType) Default(value string) *StringType {
	s.SetDefault(value)
	return s
}

// Min, minimum uzunluğu ayarlar.
func (s *StringType) Min(length int) *StringType {
	s.minLength = &length
	return s
}

// Max, maksimum uzunluğu ayarlar.
func (s *StringType) Max(length int) *StringType {
	s.maxLength = &length
	return s
}

// Pattern, değerin verilen ifadeyle eşleşmesini zorunlu kılar. hint,
// hata mesajında beklenen biçimi anlatır.
func (s *StringType) Pattern(expr, hint string) *StringType {
	s.pattern = regexp.MustCompile(expr)
	s.patternHint = hint
	return s
}

// OneOf, değerin verilen listeden biri olmasını sağlar.
func (s *StringType) OneOf(values ...string) *StringType {
	s.allowedValues = values
	return s
}

// Trim, baştaki ve sondaki boşlukları temizler.
func (s *StringType) Trim() *StringType {
	s.AddTransform(func(value any) (any, error) {
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("metin bekleniyordu, %T geldi", value)
		}
		return strings.TrimSpace(str), nil
	})
	return s
}

// Upper, değeri büyük harfe çevirir.
func (s *StringType) Upper() *StringType {
	s.AddTransform(func(value any) (any, error) {
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("metin bekleniyordu, %T geldi", value)
		}
		return strings.ToUpper(str), nil
	})
	return s
}

func (s *StringType) Validate(field string, value any, result *validation.Result) {
	s.BaseType.Validate(field, value, result)
	if result.FieldHasErrors(field) || value == nil {
		return
	}

	name := s.name(field)
	str, ok := value.(string)
	if !ok {
		result.AddError(field, fmt.Sprintf("%s alanı metin tipinde olmalıdır", name))
		return
	}

	length := utf8.RuneCountInString(str)
	if s.minLength != nil && length < *s.minLength {
		result.AddError(field, fmt.Sprintf("%s alanı en az %d karakter olmalıdır", name, *s.minLength))
	}
	if s.maxLength != nil && length > *s.maxLength {
		result.AddError(field, fmt.Sprintf("%s alanı en fazla %d karakter olmalıdır", name, *s.maxLength))
	}
	if s.pattern != nil && str != "" && !s.pattern.MatchString(str) {
		result.AddError(field, fmt.Sprintf("%s alanı %s olmalıdır", name, s.patternHint))
	}
	if len(s.allowedValues) > 0 {
		for _, allowed := range s.allowedValues {
			if str == allowed {
				return
			}
		}
		result.AddError(field, fmt.Sprintf("%s alanı şunlardan biri olmalıdır: %s", name, strings.Join(s.allowedValues, ", ")))
	}
}
