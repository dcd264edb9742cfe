package database

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Reflection-Based SQL Scanner
// -----------------------------------------------------------------------------
// `db` tag'lerine göre satırları struct alanlarına tarar. Gömülü (embedded)
// struct'lar özyineli olarak işlenir; BaseModel ve TreeNode alanları bu
// sayede entity struct'larına doğrudan taranabilir.
//
// Tip başına alan haritası bir kez hesaplanır ve cache'lenir. Entity tipleri
// derleme zamanında sabit olduğu için cache sınırsız büyümez.
// -----------------------------------------------------------------------------

type fieldMap map[string][]int

var fieldMapCache sync.Map // reflect.Type → fieldMap

// structFieldMap, struct tipini analiz eder: kolon adı → alan index yolu.
func structFieldMap(structType reflect.Type) fieldMap {
	if cached, ok := fieldMapCache.Load(structType); ok {
		return cached.(fieldMap)
	}

	mapping := make(fieldMap)
	collectFields(structType, nil, mapping)

	actual, _ := fieldMapCache.LoadOrStore(structType, mapping)
	return actual.(fieldMap)
}

func collectFields(structType reflect.Type, prefix []int, mapping fieldMap) {
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		path := append(append([]int{}, prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, path, mapping)
			continue
		}
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = strings.ToLower(field.Name)
		}

		// Dış struct'taki alan gömülü alanı gölgeler.
		if _, exists := mapping[tag]; exists && len(path) > 1 {
			continue
		}
		mapping[tag] = path
	}
}

// ScanStruct, tek bir *sql.Rows satırını bir struct'a tarar.
// Struct'ta karşılığı olmayan kolonlar yok sayılır.
func ScanStruct(rows *sql.Rows, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest bir struct pointer olmalıdır, %T alındı", dest)
	}

	destElem := destValue.Elem()
	fields := structFieldMap(destElem.Type())

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	scanArgs := make([]any, len(cols))
	for i, colName := range cols {
		path, ok := fields[colName]
		if !ok {
			scanArgs[i] = new(any)
			continue
		}

		fieldVal := destElem.FieldByIndex(path)
		if !fieldVal.CanSet() {
			return fmt.Errorf("scanner: '%s' alanı ayarlanamıyor", colName)
		}
		scanArgs[i] = fieldVal.Addr().Interface()
	}

	return rows.Scan(scanArgs...)
}

// ScanSlice, tüm *sql.Rows sonuç kümesini bir struct slice'ına tarar.
func ScanSlice(rows *sql.Rows, dest any) error {
	sliceValue := reflect.ValueOf(dest)
	if sliceValue.Kind() != reflect.Ptr || sliceValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest bir slice pointer olmalıdır, %T alındı", dest)
	}

	sliceElem := sliceValue.Elem()
	structType := sliceElem.Type().Elem()

	for rows.Next() {
		item := reflect.New(structType)
		if err := ScanStruct(rows, item.Interface()); err != nil {
			return err
		}
		sliceElem.Set(reflect.Append(sliceElem, item.Elem()))
	}

	return rows.Err()
}
