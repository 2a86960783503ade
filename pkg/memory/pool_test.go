package memory

import (
	"path/filepath"
	"testing"
	"time"

	"cipherdb/pkg/catalog"
	"cipherdb/pkg/concurrency/lock"
	"cipherdb/pkg/dberror"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/heap"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolFixture struct {
	pool *BufferPool
	cat  *catalog.Catalog
	file *heap.HeapFile
	td   *tuple.TupleDescription
	path primitives.Filepath
	reg  *prometheus.Registry
}

func newPoolFixture(t *testing.T, maxPages int) *poolFixture {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType, types.IntType}, []string{"a", "b"})
	require.NoError(t, err)

	path := primitives.Filepath(filepath.Join(t.TempDir(), "t.dat"))
	return openPoolFixture(t, path, td, maxPages)
}

func openPoolFixture(t *testing.T, path primitives.Filepath, td *tuple.TupleDescription, maxPages int) *poolFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	cat := catalog.NewCatalog()
	pool := NewBufferPool(cat, Options{
		MaxPages:   maxPages,
		Lock:       lock.Options{Timeout: 100 * time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Registerer: reg,
	})

	hf, err := heap.NewHeapFile(path, td, pool)
	require.NoError(t, err)
	require.NoError(t, cat.AddTable(hf, "t"))
	t.Cleanup(func() { _ = hf.Close() })

	return &poolFixture{pool: pool, cat: cat, file: hf, td: td, path: path, reg: reg}
}

func (f *poolFixture) row(t *testing.T, a, b int32) *tuple.Tuple {
	t.Helper()
	tup, err := tuple.FromFields(f.td, types.NewIntField(a), types.NewIntField(b))
	require.NoError(t, err)
	return tup
}

func (f *poolFixture) scan(t *testing.T, tid primitives.TransactionID) []*tuple.Tuple {
	t.Helper()
	it := f.file.Iterator(tid)
	require.NoError(t, it.Open())
	defer it.Close()
	rows, err := iterator.Collect(it)
	require.NoError(t, err)
	return rows
}

func TestBufferPool_GetPageHitsCache(t *testing.T) {
	f := newPoolFixture(t, 10)
	pid, err := f.file.AppendEmptyPage()
	require.NoError(t, err)

	tid := primitives.NewTransactionID()
	p1, err := f.pool.GetPage(tid, pid, primitives.ReadOnly)
	require.NoError(t, err)
	p2, err := f.pool.GetPage(tid, pid, primitives.ReadOnly)
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.True(t, f.pool.HoldsLock(tid, pid))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.pool.metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.pool.metrics.hits))

	require.NoError(t, f.pool.CommitTransaction(tid))
	assert.False(t, f.pool.HoldsLock(tid, pid))
}

func TestBufferPool_RejectsInvalidTransaction(t *testing.T) {
	f := newPoolFixture(t, 10)
	_, err := f.pool.GetPage(primitives.InvalidTransactionID, primitives.NewPageID(f.file.GetID(), 0), primitives.ReadOnly)
	assert.ErrorIs(t, err, dberror.ErrIllegalState)
}

func TestBufferPool_OutOfRangePage(t *testing.T) {
	f := newPoolFixture(t, 10)
	tid := primitives.NewTransactionID()
	defer f.pool.AbortTransaction(tid)

	_, err := f.pool.GetPage(tid, primitives.NewPageID(f.file.GetID(), 3), primitives.ReadOnly)
	assert.ErrorIs(t, err, dberror.ErrOutOfRange)
}

func TestBufferPool_CommitIsDurable(t *testing.T) {
	f := newPoolFixture(t, 10)
	tid := primitives.NewTransactionID()

	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 1, 2)))
	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 3, 4)))
	require.NoError(t, f.pool.CommitTransaction(tid))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.pool.metrics.flushes))

	// A fresh pool over the same file sees the committed rows.
	reopened := openPoolFixture(t, f.path, f.td, 10)
	rows := reopened.scan(t, primitives.NewTransactionID())
	require.Len(t, rows, 2)
	assert.Equal(t, "1\t2", rows[0].String())
	assert.Equal(t, "3\t4", rows[1].String())
}

func TestBufferPool_AbortRestoresBeforeImage(t *testing.T) {
	f := newPoolFixture(t, 10)

	setup := primitives.NewTransactionID()
	require.NoError(t, f.pool.InsertTuple(setup, f.file.GetID(), f.row(t, 1, 1)))
	require.NoError(t, f.pool.CommitTransaction(setup))

	tid := primitives.NewTransactionID()
	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 2, 2)))
	assert.Len(t, f.scan(t, tid), 2)
	require.NoError(t, f.pool.AbortTransaction(tid))

	reader := primitives.NewTransactionID()
	rows := f.scan(t, reader)
	require.Len(t, rows, 1)
	assert.Equal(t, "1\t1", rows[0].String())
	require.NoError(t, f.pool.CommitTransaction(reader))
}

func TestBufferPool_FlushPagesKeepsTransactionOpen(t *testing.T) {
	f := newPoolFixture(t, 10)
	tid := primitives.NewTransactionID()
	pid := primitives.NewPageID(f.file.GetID(), 0)

	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 5, 6)))
	require.NoError(t, f.pool.FlushPages(tid))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.pool.metrics.flushes))

	// The row is on disk while tid still runs and still holds its lock.
	onDisk, err := f.file.ReadPage(pid)
	require.NoError(t, err)
	require.Len(t, onDisk.(*heap.HeapPage).GetTuples(), 1)
	assert.True(t, f.pool.HoldsLock(tid, pid))
	assert.Equal(t, 1, f.pool.ActiveTransactions())

	cached, err := f.pool.GetPage(tid, pid, primitives.ReadOnly)
	require.NoError(t, err)
	_, dirty := cached.IsDirty()
	assert.False(t, dirty)

	// Nothing is left to write at commit.
	require.NoError(t, f.pool.CommitTransaction(tid))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.pool.metrics.flushes))

	assert.NoError(t, f.pool.FlushPages(primitives.NewTransactionID()), "unknown transaction")
}

func TestBufferPool_DiscardPage(t *testing.T) {
	f := newPoolFixture(t, 10)
	pid := primitives.NewPageID(f.file.GetID(), 0)

	setup := primitives.NewTransactionID()
	require.NoError(t, f.pool.InsertTuple(setup, f.file.GetID(), f.row(t, 1, 1)))
	require.NoError(t, f.pool.CommitTransaction(setup))
	require.Equal(t, 1, f.pool.NumCachedPages())
	misses := testutil.ToFloat64(f.pool.metrics.misses)

	f.pool.DiscardPage(pid)
	assert.Zero(t, f.pool.NumCachedPages())

	reader := primitives.NewTransactionID()
	rows := f.scan(t, reader)
	require.Len(t, rows, 1)
	assert.Equal(t, "1\t1", rows[0].String())
	assert.Equal(t, misses+1, testutil.ToFloat64(f.pool.metrics.misses))
	require.NoError(t, f.pool.CommitTransaction(reader))

	f.pool.DiscardTable(f.file.GetID())
	assert.Zero(t, f.pool.NumCachedPages())
}

func TestBufferPool_DeleteTuple(t *testing.T) {
	f := newPoolFixture(t, 10)
	tid := primitives.NewTransactionID()

	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 1, 1)))
	rows := f.scan(t, tid)
	require.Len(t, rows, 1)

	require.NoError(t, f.pool.DeleteTuple(tid, rows[0]))
	assert.Empty(t, f.scan(t, tid))

	err := f.pool.DeleteTuple(tid, f.row(t, 9, 9))
	assert.ErrorIs(t, err, dberror.ErrInvalidTuple)
	require.NoError(t, f.pool.CommitTransaction(tid))
}

func TestBufferPool_TryGetPageConflict(t *testing.T) {
	f := newPoolFixture(t, 10)
	pid, err := f.file.AppendEmptyPage()
	require.NoError(t, err)

	writer := primitives.NewTransactionID()
	_, err = f.pool.GetPage(writer, pid, primitives.ReadWrite)
	require.NoError(t, err)

	other := primitives.NewTransactionID()
	_, err = f.pool.TryGetPage(other, pid, primitives.ReadOnly)
	assert.ErrorIs(t, err, dberror.ErrLockConflict)

	require.NoError(t, f.pool.CommitTransaction(writer))
	_, err = f.pool.TryGetPage(other, pid, primitives.ReadOnly)
	assert.NoError(t, err)
	require.NoError(t, f.pool.CommitTransaction(other))
}

func TestBufferPool_ReleasePage(t *testing.T) {
	f := newPoolFixture(t, 10)
	pid, err := f.file.AppendEmptyPage()
	require.NoError(t, err)

	tid := primitives.NewTransactionID()
	_, err = f.pool.GetPage(tid, pid, primitives.ReadWrite)
	require.NoError(t, err)
	f.pool.ReleasePage(tid, pid)
	assert.False(t, f.pool.HoldsLock(tid, pid))
	require.NoError(t, f.pool.CommitTransaction(tid))
}

func TestBufferPool_EvictsCleanPages(t *testing.T) {
	f := newPoolFixture(t, 2)
	for range 4 {
		_, err := f.file.AppendEmptyPage()
		require.NoError(t, err)
	}

	tid := primitives.NewTransactionID()
	for pageNo := range primitives.PageNumber(4) {
		_, err := f.pool.GetPage(tid, primitives.NewPageID(f.file.GetID(), pageNo), primitives.ReadOnly)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.pool.NumCachedPages())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.pool.metrics.evictions))
	require.NoError(t, f.pool.CommitTransaction(tid))
}

func TestBufferPool_NoStealWhenAllDirty(t *testing.T) {
	f := newPoolFixture(t, 1)
	for range 2 {
		_, err := f.file.AppendEmptyPage()
		require.NoError(t, err)
	}

	tid := primitives.NewTransactionID()
	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 1, 1)))

	other := primitives.NewTransactionID()
	_, err := f.pool.GetPage(other, primitives.NewPageID(f.file.GetID(), 1), primitives.ReadOnly)
	assert.ErrorIs(t, err, dberror.ErrBufferFull)

	require.NoError(t, f.pool.CommitTransaction(tid))
	_, err = f.pool.GetPage(other, primitives.NewPageID(f.file.GetID(), 1), primitives.ReadOnly)
	assert.NoError(t, err)
	require.NoError(t, f.pool.CommitTransaction(other))
}

func TestBufferPool_CloseAbortsActive(t *testing.T) {
	f := newPoolFixture(t, 10)
	tid := primitives.NewTransactionID()
	require.NoError(t, f.pool.InsertTuple(tid, f.file.GetID(), f.row(t, 5, 5)))
	assert.Equal(t, 1, f.pool.ActiveTransactions())

	require.NoError(t, f.pool.Close())
	assert.Zero(t, f.pool.ActiveTransactions())

	reopened := openPoolFixture(t, f.path, f.td, 10)
	assert.Empty(t, reopened.scan(t, primitives.NewTransactionID()))
}

func TestBufferPool_MetricsRegistered(t *testing.T) {
	f := newPoolFixture(t, 10)
	families, err := f.reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "cipherdb_buffer_pool_cached_pages")
	assert.Contains(t, names, "cipherdb_lock_deadlocks_total")
}

func TestBufferPool_BeginTransactionIsTracked(t *testing.T) {
	f := newPoolFixture(t, 4)

	tid := f.pool.BeginTransaction()
	assert.True(t, tid.IsValid())
	assert.Equal(t, 1, f.pool.ActiveTransactions())

	require.NoError(t, f.pool.CommitTransaction(tid))
	assert.Equal(t, 0, f.pool.ActiveTransactions())
}
