package types

import (
	"hash/fnv"
	"io"
	"math/big"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/primitives"
)

const (
	signPositive byte = 0
	signNegative byte = 1
)

// BigIntField is an arbitrary precision BIG_INTEGER value. Encrypted columns
// use it so that ciphertexts are stored without truncation.
//
// On disk it is one sign byte followed by a BigIntMaxBytes big-endian
// magnitude, left padded with zeros.
type BigIntField struct {
	Value *big.Int
}

// NewBigIntField copies v. A nil v is stored as zero.
func NewBigIntField(v *big.Int) *BigIntField {
	if v == nil {
		return &BigIntField{Value: new(big.Int)}
	}
	return &BigIntField{Value: new(big.Int).Set(v)}
}

// FitsBigInt reports whether v can be stored in a BIG_INTEGER column.
func FitsBigInt(v *big.Int) bool {
	return (v.BitLen()+7)/8 <= BigIntMaxBytes
}

func (f *BigIntField) Serialize(w io.Writer) error {
	if !FitsBigInt(f.Value) {
		return dberror.ValueOutOfRange("big integer of %d bits exceeds %d-byte column",
			f.Value.BitLen(), BigIntMaxBytes)
	}

	buf := make([]byte, 1+BigIntMaxBytes)
	if f.Value.Sign() < 0 {
		buf[0] = signNegative
	}
	new(big.Int).Abs(f.Value).FillBytes(buf[1:])
	_, err := w.Write(buf)
	return err
}

func (f *BigIntField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherField, ok := other.(*BigIntField)
	if !ok {
		return false, nil
	}
	return op.EvaluateCompare(f.Value.Cmp(otherField.Value)), nil
}

func (f *BigIntField) Type() Type {
	return BigIntType
}

func (f *BigIntField) String() string {
	return f.Value.String()
}

func (f *BigIntField) Equals(other Field) bool {
	otherField, ok := other.(*BigIntField)
	if !ok {
		return false
	}
	return f.Value.Cmp(otherField.Value) == 0
}

func (f *BigIntField) Hash() (primitives.HashCode, error) {
	h := fnv.New64a()
	if f.Value.Sign() < 0 {
		_, _ = h.Write([]byte{signNegative})
	}
	_, _ = h.Write(f.Value.Bytes())
	return primitives.HashCode(h.Sum64()), nil
}

func parseBigIntField(r io.Reader) (*BigIntField, error) {
	buf := make([]byte, 1+BigIntMaxBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	v := new(big.Int).SetBytes(buf[1:])
	switch buf[0] {
	case signPositive:
	case signNegative:
		v.Neg(v)
	default:
		return nil, dberror.ValueOutOfRange("invalid big integer sign byte %d", buf[0])
	}
	return &BigIntField{Value: v}, nil
}
