package aggregation

import (
	"math/big"
	"testing"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/scheme/ope"
	"cipherdb/pkg/scheme/paillier"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encryptedRows builds rows (group, PAILLIER_v, OPE_v, PAILLIER_MODULUS)
// for the given (group, plaintext) pairs.
type encryptedRows struct {
	td  *tuple.TupleDescription
	hom *paillier.KeyPair
	ord *ope.KeyPair
}

func newEncryptedRows(t *testing.T) *encryptedRows {
	t.Helper()
	td, err := tuple.NewTupleDesc(
		[]types.Type{types.IntType, types.BigIntType, types.BigIntType, types.BigIntType},
		[]string{"g", "PAILLIER_v", "OPE_v", "PAILLIER_MODULUS"},
	)
	require.NoError(t, err)

	hom, err := paillier.GenerateKeyPair(nil, 64, nil)
	require.NoError(t, err)
	ord, err := ope.GenerateKeyPair(nil, 16, nil, ope.NoisyMult{})
	require.NoError(t, err)
	return &encryptedRows{td: td, hom: hom, ord: ord}
}

func (e *encryptedRows) child(t *testing.T, pairs ...[2]int64) *iterator.TupleSliceIterator {
	t.Helper()
	rows := make([]*tuple.Tuple, 0, len(pairs))
	for _, p := range pairs {
		m := big.NewInt(p[1])
		hc, err := e.hom.Encrypt(m)
		require.NoError(t, err)
		oc, err := e.ord.Encrypt(m)
		require.NoError(t, err)

		row, err := tuple.FromFields(e.td,
			types.NewIntField(int32(p[0])),
			types.NewBigIntField(hc),
			types.NewBigIntField(oc),
			types.NewBigIntField(e.hom.Public.N),
		)
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return iterator.NewTupleSliceIterator(e.td, rows)
}

func run(t *testing.T, agg *EncryptedAggregate) []*tuple.Tuple {
	t.Helper()
	require.NoError(t, agg.Open())
	rows, err := iterator.Collect(agg)
	require.NoError(t, err)
	return rows
}

func decryptField(t *testing.T, row *tuple.Tuple, i int, decrypt func(*big.Int) (*big.Int, error)) int64 {
	t.Helper()
	f, err := row.GetField(i)
	require.NoError(t, err)
	c, ok := types.IntegerValue(f)
	require.True(t, ok)
	m, err := decrypt(c)
	require.NoError(t, err)
	return m.Int64()
}

func TestEncryptedAggregate_NoGrouping(t *testing.T) {
	e := newEncryptedRows(t)
	input := [][2]int64{{0, 5}, {0, 7}, {0, -3}, {0, 1}}

	tests := []struct {
		kind  Kind
		field int
		want  int64
	}{
		{OPEMax, 2, 7},
		{OPEMin, 2, -3},
		{HomSum, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			agg, err := NewEncryptedAggregate(e.child(t, input...), tt.field, NoGrouping, tt.kind)
			require.NoError(t, err)
			defer agg.Close()

			rows := run(t, agg)
			require.Len(t, rows, 1)

			decrypt := e.ord.Decrypt
			if tt.kind == HomSum {
				decrypt = e.hom.Decrypt
			}
			assert.Equal(t, tt.want, decryptField(t, rows[0], 0, decrypt))
		})
	}
}

func TestEncryptedAggregate_Count(t *testing.T) {
	e := newEncryptedRows(t)
	agg, err := NewEncryptedAggregate(e.child(t, [2]int64{0, 1}, [2]int64{0, 2}), 2, NoGrouping, Count)
	require.NoError(t, err)

	rows := run(t, agg)
	require.Len(t, rows, 1)
	assert.Equal(t, types.IntType, agg.GetTupleDesc().Types[0])
	assert.Equal(t, "2", rows[0].String())
}

func TestEncryptedAggregate_Grouping(t *testing.T) {
	e := newEncryptedRows(t)
	input := [][2]int64{{2, 10}, {1, 4}, {2, 30}, {1, 8}, {3, -1}}

	agg, err := NewEncryptedAggregate(e.child(t, input...), 1, 0, HomSum)
	require.NoError(t, err)
	assert.Equal(t, []string{"group", "HOM_SUM"}, agg.GetTupleDesc().FieldNames)

	rows := run(t, agg)
	require.Len(t, rows, 3)

	want := []struct{ group, sum int64 }{{2, 40}, {1, 12}, {3, -1}}
	for i, w := range want {
		g, err := rows[i].GetField(0)
		require.NoError(t, err)
		assert.Equal(t, types.NewIntField(int32(w.group)), g)
		assert.Equal(t, w.sum, decryptField(t, rows[i], 1, e.hom.Decrypt))
	}
}

func TestEncryptedAggregate_EmptyInput(t *testing.T) {
	e := newEncryptedRows(t)

	tests := []struct {
		kind  Kind
		field int
		rows  []string
	}{
		{OPEMax, 2, []string{"null"}},
		{OPEMin, 2, []string{"null"}},
		{HomSum, 1, []string{"1"}},
		{Count, 2, []string{"0"}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			agg, err := NewEncryptedAggregate(e.child(t), tt.field, NoGrouping, tt.kind)
			require.NoError(t, err)

			var got []string
			for _, row := range run(t, agg) {
				got = append(got, row.String())
			}
			assert.Equal(t, tt.rows, got)
		})
	}

	agg, err := NewEncryptedAggregate(e.child(t), 2, NoGrouping, OPEMax)
	require.NoError(t, err)
	rows := run(t, agg)
	require.Len(t, rows, 1)
	f, err := rows[0].GetField(0)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.False(t, rows[0].IsComplete())

	agg, err = NewEncryptedAggregate(e.child(t), 1, 0, HomSum)
	require.NoError(t, err)
	assert.Empty(t, run(t, agg))
}

func TestEncryptedAggregate_UnsetFields(t *testing.T) {
	e := newEncryptedRows(t)

	onlyGroup := tuple.NewTuple(e.td)
	require.NoError(t, onlyGroup.SetField(0, types.NewIntField(1)))
	onlyValue := tuple.NewTuple(e.td)
	require.NoError(t, onlyValue.SetField(2, types.NewBigIntField(big.NewInt(4))))

	tests := []struct {
		name   string
		row    *tuple.Tuple
		gField int
	}{
		{"aggregate field", onlyGroup, NoGrouping},
		{"group field", onlyValue, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child := iterator.NewTupleSliceIterator(e.td, []*tuple.Tuple{tt.row})
			agg, err := NewEncryptedAggregate(child, 2, tt.gField, OPEMax)
			require.NoError(t, err)
			defer agg.Close()

			assert.ErrorIs(t, agg.Open(), dberror.ErrInvalidTuple)
		})
	}
}

func TestEncryptedAggregate_Protocol(t *testing.T) {
	e := newEncryptedRows(t)
	agg, err := NewEncryptedAggregate(e.child(t, [2]int64{0, 3}), 2, NoGrouping, OPEMax)
	require.NoError(t, err)

	_, err = agg.HasNext()
	assert.ErrorIs(t, err, dberror.ErrIllegalState)
	assert.ErrorIs(t, agg.Rewind(), dberror.ErrIllegalState)

	require.Len(t, run(t, agg), 1)
	assert.ErrorIs(t, agg.Open(), dberror.ErrIllegalState)

	require.NoError(t, agg.Rewind())
	n, err := iterator.Count(agg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, agg.Close())
	_, err = agg.Next()
	assert.ErrorIs(t, err, dberror.ErrIllegalState)
}

func TestNewEncryptedAggregate_Validation(t *testing.T) {
	e := newEncryptedRows(t)

	_, err := NewEncryptedAggregate(nil, 0, NoGrouping, OPEMax)
	assert.ErrorIs(t, err, dberror.ErrIllegalState)

	_, err = NewEncryptedAggregate(e.child(t), 9, NoGrouping, OPEMax)
	assert.ErrorIs(t, err, dberror.ErrOutOfRange)

	_, err = NewEncryptedAggregate(e.child(t), 1, 9, OPEMax)
	assert.ErrorIs(t, err, dberror.ErrOutOfRange)

	td, err := tuple.NewTupleDesc([]types.Type{types.StringType, types.BigIntType}, []string{"s", "c"})
	require.NoError(t, err)
	plain := iterator.NewTupleSliceIterator(td, nil)

	_, err = NewEncryptedAggregate(plain, 0, NoGrouping, OPEMax)
	assert.ErrorIs(t, err, dberror.ErrUnsupportedFieldType)

	_, err = NewEncryptedAggregate(plain, 1, NoGrouping, HomSum)
	assert.ErrorIs(t, err, dberror.ErrSchemaMismatch)

	_, err = NewEncryptedAggregate(plain, 0, NoGrouping, Count)
	assert.NoError(t, err)
}

func TestFindColumn_Aliased(t *testing.T) {
	td, err := tuple.NewTupleDesc([]types.Type{types.BigIntType, types.BigIntType}, []string{"t.OPE_a", "t.PAILLIER_MODULUS"})
	require.NoError(t, err)
	assert.Equal(t, 1, findColumn(td, paillier.ModulusColumn))
	assert.Equal(t, -1, findColumn(td, "PAILLIER_G"))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{OPEMax, OPEMin, HomSum, Count} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("AVG")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}
