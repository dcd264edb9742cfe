package database

import (
	"context"
	"database/sql"
)

// -----------------------------------------------------------------------------
// RESULT HELPERS
// -----------------------------------------------------------------------------
// SQL'den dönen sonuçları map[string]any biçiminde okuma yardımcıları.
// Row-model sorguları gibi kolon kümesi derleme anında belli olan sorgular
// struct'a değil map'e taranır.
// -----------------------------------------------------------------------------

// QueryMaps, sorguyu çalıştırır ve tüm satırları map olarak döner.
// Rows nesnesi fonksiyon dönmeden kapatılır.
func QueryMaps(ctx context.Context, exec QueryExecutor, query string, args ...any) ([]map[string]any, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

// rowsToMaps, sql.Rows'ı []map[string]any biçimine dönüştürür.
// MySQL sürücüsünün döndürdüğü []byte değerler string'e çevrilir.
func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		m := make(map[string]any, len(cols))
		for i, name := range cols {
			if b, ok := values[i].([]byte); ok {
				m[name] = string(b)
				continue
			}
			m[name] = values[i]
		}

		res = append(res, m)
	}

	return res, rows.Err()
}
