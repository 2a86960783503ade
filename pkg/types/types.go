package types

// Type enumerates the column types a schema can hold.
type Type int

const (
	IntType Type = iota
	BigIntType
	StringType
)

const (
	// StringMaxSize is the fixed payload width of a STRING column in bytes.
	StringMaxSize = 128

	// BigIntMaxBytes is the widest magnitude a BIG_INTEGER column can store.
	// 64 bytes holds ciphertexts of a 256-bit Paillier modulus.
	BigIntMaxBytes = 64
)

// Size returns the serialized width of a field of this type.
func (t Type) Size() int {
	switch t {
	case IntType:
		return 4
	case BigIntType:
		return 1 + BigIntMaxBytes
	case StringType:
		return 4 + StringMaxSize
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "INTEGER"
	case BigIntType:
		return "BIG_INTEGER"
	case StringType:
		return "STRING"
	default:
		return "UNKNOWN_TYPE"
	}
}

// IsInteger reports whether values of this type have an integer reading.
func (t Type) IsInteger() bool {
	return t == IntType || t == BigIntType
}
