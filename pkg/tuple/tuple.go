package tuple

import (
	"strings"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/types"
)

// Tuple is a row of typed fields conforming to TupleDesc. RecordID is set by
// storage when the tuple is inserted and cleared when it is deleted.
type Tuple struct {
	TupleDesc *TupleDescription
	fields    []types.Field
	RecordID  *RecordID
}

func NewTuple(td *TupleDescription) *Tuple {
	return &Tuple{
		TupleDesc: td,
		fields:    make([]types.Field, td.NumFields()),
	}
}

// FromFields builds a tuple and type-checks every value.
func FromFields(td *TupleDescription, fields ...types.Field) (*Tuple, error) {
	if len(fields) != td.NumFields() {
		return nil, dberror.SchemaMismatch("expected %d fields, got %d", td.NumFields(), len(fields))
	}
	t := NewTuple(td)
	for i, f := range fields {
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return dberror.OutOfRange("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	if field == nil {
		return dberror.InvalidTuple("field %d cannot be set to nil", i)
	}

	expectedType, _ := t.TupleDesc.TypeAtIndex(i)
	if field.Type() != expectedType {
		return dberror.SchemaMismatch("field type mismatch: expected %v, got %v",
			expectedType, field.Type())
	}

	t.fields[i] = field
	return nil
}

func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, dberror.OutOfRange("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// IsComplete reports whether every field has been set.
func (t *Tuple) IsComplete() bool {
	for _, f := range t.fields {
		if f == nil {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, 0, len(t.fields))
	for _, field := range t.fields {
		if field != nil {
			parts = append(parts, field.String())
		} else {
			parts = append(parts, "null")
		}
	}
	return strings.Join(parts, "\t")
}

// Clone copies the field slice. Field values are shared; the copy has no
// RecordID.
func (t *Tuple) Clone() *Tuple {
	newTup := NewTuple(t.TupleDesc)
	copy(newTup.fields, t.fields)
	return newTup
}

// Equals compares schema and field values, ignoring RecordID.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || !t.TupleDesc.Equals(other.TupleDesc) {
		return false
	}
	for i, f := range t.fields {
		o := other.fields[i]
		if f == nil || o == nil {
			if f != o {
				return false
			}
			continue
		}
		if !f.Equals(o) {
			return false
		}
	}
	return true
}
