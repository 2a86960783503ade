package encryption

import (
	"strconv"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/scheme/paillier"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"
)

// sourceColumnName names column i of a source schema. Unnamed columns are
// known by their position.
func sourceColumnName(td *tuple.TupleDescription, i int) string {
	name, _ := td.GetFieldName(i)
	if name == "" {
		return strconv.Itoa(i)
	}
	return name
}

// checkEncryptable fails with UnsupportedFieldType unless every column of td
// holds integers.
func checkEncryptable(td *tuple.TupleDescription) error {
	for i, t := range td.Types {
		if !t.IsInteger() {
			return dberror.UnsupportedFieldType("column %s has type %s; only integer columns can be encrypted",
				sourceColumnName(td, i), t).In("Encrypt", "Transformer")
		}
	}
	return nil
}

// EncryptedSchema returns the 2N+2 column schema produced for src.
func EncryptedSchema(src *tuple.TupleDescription) (*tuple.TupleDescription, error) {
	if err := checkEncryptable(src); err != nil {
		return nil, err
	}

	n := src.NumFields()
	names := make([]string, 0, 2*n+2)
	for _, s := range scheme.All {
		for i := range n {
			names = append(names, s.Column(sourceColumnName(src, i)))
		}
	}
	names = append(names, paillier.ModulusColumn, paillier.GeneratorColumn)

	fieldTypes := make([]types.Type, len(names))
	for i := range fieldTypes {
		fieldTypes[i] = types.BigIntType
	}
	return tuple.NewTupleDesc(fieldTypes, names)
}
