// -----------------------------------------------------------------------------
// Database Types - SQL Builder İçin Yardımcı Tipler
// -----------------------------------------------------------------------------
// QueryBuilder'ın kullandığı internal struct tipleri.
//
// OrderClause, direction alanını enum gibi kullanarak sadece "ASC" ve "DESC"
// değerlerini kabul eder. Kullanıcı input'u direkt SQL'e enjekte edilemez.
// -----------------------------------------------------------------------------

package database

// OrderDirection, ORDER BY için izin verilen yönleri temsil eder.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// ParseDirection, serbest metni güvenli bir yöne çevirir.
// Geçersiz değerler ASC olarak yorumlanır.
func ParseDirection(direction string) OrderDirection {
	switch direction {
	case "DESC", "desc", "Desc":
		return OrderDesc
	default:
		return OrderAsc
	}
}

// OrderClause, bir ORDER BY ifadesini güvenli bir şekilde temsil eder.
//
// Örnek:
//
//	OrderClause{Column: "created_at", Direction: OrderDesc}
//	→ SQL: ORDER BY `created_at` DESC
type OrderClause struct {
	Column    string
	Direction OrderDirection
}

// WhereClause, bir WHERE koşulunu temsil eder.
// Tüm değerler placeholder (?) olarak bağlanır.
//
// Alanlar:
//   - Column: Koşul uygulanacak kolon adı
//   - Operator: Karşılaştırma operatörü (=, <, >, IN, RAW, vb.)
//   - Value: Karşılaştırılacak değer
//
// Koşullar AND ile birleştirilir.
//   - SQL: Operator RAW olduğunda kullanılan hazır predicate
type WhereClause struct {
	Column   string
	Operator string
	Value    any
	SQL      string
}
