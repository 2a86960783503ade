package tuple

import (
	"fmt"
	"strings"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/types"
)

// TupleDescription is a table schema: an ordered list of column types with
// optional names. The field count is fixed at creation.
type TupleDescription struct {
	Types      []types.Type
	FieldNames []string
}

// NewTupleDesc copies its inputs. fieldNames may be nil; when present it must
// match fieldTypes in length.
func NewTupleDesc(fieldTypes []types.Type, fieldNames []string) (*TupleDescription, error) {
	if len(fieldTypes) < 1 {
		return nil, dberror.SchemaMismatch("must provide at least one field type")
	}

	typesCopy := make([]types.Type, len(fieldTypes))
	copy(typesCopy, fieldTypes)

	var namesCopy []string
	if fieldNames != nil {
		if len(fieldNames) != len(fieldTypes) {
			return nil, dberror.SchemaMismatch("field names length (%d) must match field types length (%d)",
				len(fieldNames), len(fieldTypes))
		}
		namesCopy = make([]string, len(fieldNames))
		copy(namesCopy, fieldNames)
	}

	return &TupleDescription{
		Types:      typesCopy,
		FieldNames: namesCopy,
	}, nil
}

func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.Types) {
		return "", dberror.OutOfRange("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	if td.FieldNames == nil {
		return "", nil
	}
	return td.FieldNames[i], nil
}

func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(td.Types) {
		return 0, dberror.OutOfRange("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// GetSize is the serialized width in bytes of one tuple of this schema.
func (td *TupleDescription) GetSize() int {
	size := 0
	for _, fieldType := range td.Types {
		size += fieldType.Size()
	}
	return size
}

// Equals compares types field-for-field. Names are not part of equality.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil || len(td.Types) != len(other.Types) {
		return false
	}
	for i, fieldType := range td.Types {
		if fieldType != other.Types[i] {
			return false
		}
	}
	return true
}

func (td *TupleDescription) String() string {
	parts := make([]string, 0, len(td.Types))
	for i, fieldType := range td.Types {
		fieldName := "null"
		if td.FieldNames != nil {
			fieldName = td.FieldNames[i]
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", fieldType, fieldName))
	}
	return strings.Join(parts, ",")
}

// FindFieldIndex looks a column up by exact name.
func (td *TupleDescription) FindFieldIndex(fieldName string) (int, error) {
	for i := range td.NumFields() {
		name, _ := td.GetFieldName(i)
		if name == fieldName {
			return i, nil
		}
	}
	return -1, dberror.NotFound("column %s not found", fieldName)
}

// WithPrefix returns a copy whose names are "<prefix>.<name>".
func (td *TupleDescription) WithPrefix(prefix string) *TupleDescription {
	names := make([]string, td.NumFields())
	for i := range names {
		name, _ := td.GetFieldName(i)
		names[i] = prefix + "." + name
	}
	prefixed, _ := NewTupleDesc(td.Types, names)
	return prefixed
}
