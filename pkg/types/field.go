package types

import (
	"io"
	"math/big"

	"cipherdb/pkg/primitives"
)

// Field is a single typed value inside a tuple.
type Field interface {
	// Serialize writes exactly Type().Size() bytes.
	Serialize(w io.Writer) error

	// Compare evaluates "f op other". Fields of different types never
	// satisfy a predicate.
	Compare(op primitives.Predicate, other Field) (bool, error)

	Type() Type

	String() string

	Equals(other Field) bool

	Hash() (primitives.HashCode, error)
}

// IntegerValue returns the integer reading of an INTEGER or BIG_INTEGER
// field. The result is a fresh value the caller may modify.
func IntegerValue(f Field) (*big.Int, bool) {
	switch v := f.(type) {
	case *IntField:
		return big.NewInt(int64(v.Value)), true
	case *BigIntField:
		return new(big.Int).Set(v.Value), true
	default:
		return nil, false
	}
}
