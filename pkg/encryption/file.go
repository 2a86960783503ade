package encryption

import (
	"math/big"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/scheme/paillier"
	"cipherdb/pkg/storage/heap"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"
)

// EncryptedFile is the output of a transformation: the heap file plus the
// names needed to address its ciphertext columns.
type EncryptedFile struct {
	*heap.HeapFile

	// Name is the generated catalog name.
	Name string

	// Source is the schema of the table that was encrypted.
	Source *tuple.TupleDescription
}

// ColumnIndex returns the index of the s-ciphertext of the source column
// named original.
func (ef *EncryptedFile) ColumnIndex(s scheme.Name, original string) (int, error) {
	idx, err := ef.GetTupleDesc().FindFieldIndex(s.Column(original))
	if err != nil {
		return -1, dberror.NotFound("no %s column for %q", s, original)
	}
	return idx, nil
}

// PublicKeyAt rebuilds the Paillier public key carried in the trailing
// columns of a row of an encrypted table.
func PublicKeyAt(t *tuple.Tuple) (*paillier.PublicKey, error) {
	n := t.TupleDesc.NumFields()
	if n < 2 {
		return nil, dberror.SchemaMismatch("tuple has %d fields; an encrypted row has at least 2", n)
	}

	values := make([]*big.Int, 2)
	for i := range values {
		f, err := t.GetField(n - 2 + i)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, dberror.InvalidTuple("key material field %d is unset", n-2+i)
		}
		v, ok := types.IntegerValue(f)
		if !ok {
			return nil, dberror.SchemaMismatch("field %d holds %s, not key material", n-2+i, f.Type())
		}
		values[i] = v
	}
	return paillier.NewPublicKey(values[0], values[1])
}

// PublicKeyAt is the package-level PublicKeyAt for rows of this file.
func (ef *EncryptedFile) PublicKeyAt(t *tuple.Tuple) (*paillier.PublicKey, error) {
	if !t.TupleDesc.Equals(ef.GetTupleDesc()) {
		return nil, dberror.SchemaMismatch("tuple schema %s is not the schema of %s", t.TupleDesc, ef.Name)
	}
	return PublicKeyAt(t)
}

// Decrypt reads f as a ciphertext and decrypts it with kp.
func Decrypt(kp scheme.KeyPair, f types.Field) (*big.Int, error) {
	if f == nil {
		return nil, dberror.InvalidTuple("cannot decrypt an unset field")
	}
	c, ok := types.IntegerValue(f)
	if !ok {
		return nil, dberror.UnsupportedFieldType("cannot decrypt a %s field", f.Type())
	}
	return kp.Decrypt(c)
}
