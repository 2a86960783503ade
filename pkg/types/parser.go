package types

import (
	"io"

	"cipherdb/pkg/dberror"
)

// ParseField reads one field of the given type from r.
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	switch fieldType {
	case IntType:
		return parseIntField(r)
	case BigIntType:
		return parseBigIntField(r)
	case StringType:
		return parseStringField(r)
	default:
		return nil, dberror.UnsupportedFieldType("unsupported field type: %v", fieldType)
	}
}
