package types

import (
	"fmt"
	"strconv"

	"github.com/biyonik/orgtree-api/pkg/validation"
)

// NumberType, sayısal alanları doğrular. JSON'dan gelen float64 ve
// metin olarak gönderilen sayılar da kabul edilir.
type NumberType struct {
	BaseType
	min       *float64
	max       *float64
	isInteger bool
}

func (n *NumberType) Required() *NumberType {
	n.SetRequired()
	return n
}

func (n *NumberType) Label(label string) *NumberType {
	n.SetLabel(label)
	return n
}

// Min, minimum değeri belirler.
func (n *NumberType) Min(val float64) *NumberType {
	n.min = &val
	return n
}

// Max, maksimum değeri belirler.
func (n *NumberType) Max(val float64) *NumberType {
	n.max = &val
	return n
}

// Integer, değerin tamsayı olmasını zorunlu kılar. Geçerli değerler
// doğrulamadan sonra int64 olarak taşınır.
func (n *NumberType) Integer() *NumberType {
	n.isInteger = true
	return n
}

func (n *NumberType) Transform(value any) (any, error) {
	value, err := n.BaseType.Transform(value)
	if err != nil || value == nil {
		return value, err
	}
	num, ok := toFloat(value)
	if !ok {
		// Tip hatası Validate'te raporlanır.
		return value, nil
	}
	if n.isInteger && num == float64(int64(num)) {
		return int64(num), nil
	}
	return num, nil
}

func (n *NumberType) Validate(field string, value any, result *validation.Result) {
	n.BaseType.Validate(field, value, result)
	if result.FieldHasErrors(field) || value == nil {
		return
	}

	name := n.name(field)
	num, ok := toFloat(value)
	if !ok {
		result.AddError(field, fmt.Sprintf("%s alanı sayısal bir değer olmalıdır", name))
		return
	}
	if n.isInteger && num != float64(int64(num)) {
		result.AddError(field, fmt.Sprintf("%s alanı tamsayı olmalıdır", name))
	}
	if n.min != nil && num < *n.min {
		result.AddError(field, fmt.Sprintf("%s alanı %v değerinden küçük olamaz", name, *n.min))
	}
	if n.max != nil && num > *n.max {
		result.AddError(field, fmt.Sprintf("%s alanı %v değerinden büyük olamaz", name, *n.max))
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
