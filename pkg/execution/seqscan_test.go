package execution

import (
	"path/filepath"
	"testing"

	"cipherdb/pkg/catalog"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/memory"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/heap"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanTable(t *testing.T, values ...int32) (*memory.BufferPool, *heap.HeapFile) {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"id"})
	require.NoError(t, err)

	cat := catalog.NewCatalog()
	pool := memory.NewBufferPool(cat, memory.Options{MaxPages: 16})
	hf, err := heap.NewHeapFile(primitives.Filepath(filepath.Join(t.TempDir(), "scan.dat")), td, pool)
	require.NoError(t, err)
	require.NoError(t, cat.AddTable(hf, "scan"))
	t.Cleanup(func() { _ = hf.Close() })

	tid := primitives.NewTransactionID()
	for _, v := range values {
		row, err := tuple.FromFields(td, types.NewIntField(v))
		require.NoError(t, err)
		require.NoError(t, pool.InsertTuple(tid, hf.GetID(), row))
	}
	require.NoError(t, pool.CommitTransaction(tid))
	return pool, hf
}

func TestSeqScan_ReadsAllRows(t *testing.T) {
	pool, hf := newScanTable(t, 3, 1, 2)
	tid := primitives.NewTransactionID()
	defer pool.CommitTransaction(tid)

	scan := NewSeqScan(tid, hf, "")
	require.NoError(t, scan.Open())
	rows, err := iterator.Collect(scan)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "3", rows[0].String())
	assert.Equal(t, "2", rows[2].String())
	assert.NotNil(t, rows[0].RecordID)

	require.NoError(t, scan.Rewind())
	n, err := iterator.Count(scan)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, scan.Close())
}

func TestSeqScan_Alias(t *testing.T) {
	pool, hf := newScanTable(t, 7)
	tid := primitives.NewTransactionID()
	defer pool.CommitTransaction(tid)

	scan := NewSeqScan(tid, hf, "u")
	name, err := scan.GetTupleDesc().GetFieldName(0)
	require.NoError(t, err)
	assert.Equal(t, "u.id", name)

	require.NoError(t, scan.Open())
	rows, err := iterator.Collect(scan)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Same(t, scan.GetTupleDesc(), rows[0].TupleDesc)
	assert.NotNil(t, rows[0].RecordID)
}

func TestSeqScan_UnderFilter(t *testing.T) {
	pool, hf := newScanTable(t, 1, 2, 3, 4)
	tid := primitives.NewTransactionID()
	defer pool.CommitTransaction(tid)

	f, err := NewFilter(NewPredicate(0, primitives.GreaterThanOrEqual, types.NewIntField(3)), NewSeqScan(tid, hf, ""))
	require.NoError(t, err)
	require.NoError(t, f.Open())

	rows, err := iterator.Collect(f)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0].String())
	assert.Equal(t, "4", rows[1].String())
}
