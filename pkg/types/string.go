package types

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"strings"

	"cipherdb/pkg/primitives"
)

// StringField is a STRING value stored in a fixed StringMaxSize slot.
type StringField struct {
	Value string
}

// NewStringField truncates value to StringMaxSize bytes.
func NewStringField(value string) *StringField {
	if len(value) > StringMaxSize {
		value = value[:StringMaxSize]
	}
	return &StringField{Value: value}
}

func (s *StringField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherStringField, ok := other.(*StringField)
	if !ok {
		return false, nil
	}

	if op == primitives.Like {
		return strings.Contains(s.Value, otherStringField.Value), nil
	}
	return op.EvaluateCompare(strings.Compare(s.Value, otherStringField.Value)), nil
}

func (s *StringField) Serialize(w io.Writer) error {
	length := min(len(s.Value), StringMaxSize)

	buf := make([]byte, 4+StringMaxSize)
	binary.BigEndian.PutUint32(buf, uint32(length)) // #nosec G115
	copy(buf[4:], s.Value[:length])
	_, err := w.Write(buf)
	return err
}

func (s *StringField) Type() Type {
	return StringType
}

func (s *StringField) String() string {
	return s.Value
}

func (s *StringField) Equals(other Field) bool {
	otherStringField, ok := other.(*StringField)
	if !ok {
		return false
	}
	return s.Value == otherStringField.Value
}

func (s *StringField) Hash() (primitives.HashCode, error) {
	h := fnv.New64a()
	h.Write([]byte(s.Value))
	return primitives.HashCode(h.Sum64()), nil
}

func parseStringField(r io.Reader) (*StringField, error) {
	buf := make([]byte, 4+StringMaxSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	length := int(binary.BigEndian.Uint32(buf))
	if length > StringMaxSize {
		length = StringMaxSize
	}
	return &StringField{Value: string(buf[4 : 4+length])}, nil
}
