package types

// String, yeni bir StringType döner.
func String() *StringType {
	return &StringType{}
}

// Number, yeni bir NumberType döner.
func Number() *NumberType {
	return &NumberType{}
}
