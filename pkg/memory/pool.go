// Package memory implements the buffer pool: the transaction-aware page
// cache every operator goes through to reach table files.
package memory

import (
	"errors"
	"sync"

	"cipherdb/pkg/concurrency/lock"
	"cipherdb/pkg/concurrency/transaction"
	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/page"
	"cipherdb/pkg/tuple"

	cerrors "github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxPages = 1000

// TableSource resolves table ids to their files. The catalog implements it.
type TableSource interface {
	GetDbFile(id primitives.TableID) (page.DbFile, error)
}

// TupleFile is a DbFile that can place and remove tuples itself.
type TupleFile interface {
	page.DbFile
	InsertTuple(tid primitives.TransactionID, t *tuple.Tuple) ([]page.Page, error)
	DeleteTuple(tid primitives.TransactionID, t *tuple.Tuple) ([]page.Page, error)
}

type Options struct {
	MaxPages int
	Lock     lock.Options

	// Registerer receives the pool's metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// BufferPool caches at most MaxPages pages. Pages are handed out only after
// the requesting transaction holds the matching page lock; locks are kept
// until TransactionComplete (strict two-phase locking).
//
// Eviction is NO-STEAL: a page dirtied by a live transaction never leaves
// memory before that transaction ends, so abort only has to restore
// in-memory before-images.
type BufferPool struct {
	tables      TableSource
	lockManager *lock.LockManager
	cache       PageCache
	registry    *transaction.TransactionRegistry
	maxPages    int
	mutex       sync.Mutex
	metrics     *poolMetrics
}

func NewBufferPool(tables TableSource, opts Options) *BufferPool {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	bp := &BufferPool{
		tables:      tables,
		lockManager: lock.NewLockManager(opts.Lock),
		cache:       NewLRUPageCache(opts.MaxPages),
		registry:    transaction.NewTransactionRegistry(),
		maxPages:    opts.MaxPages,
	}
	bp.metrics = newPoolMetrics(opts.Registerer, bp.cache.Size, bp.lockManager)
	return bp
}

// GetPage acquires perm on pid for tid, waiting if necessary, and returns
// the cached page. A deadlock or lock timeout surfaces as TransactionAbort.
func (bp *BufferPool) GetPage(tid primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (page.Page, error) {
	if !tid.IsValid() {
		return nil, dberror.IllegalState("invalid transaction id").In("GetPage", "BufferPool")
	}
	if err := bp.lockManager.LockPage(tid, pid, perm.IsExclusive()); err != nil {
		return nil, err
	}
	return bp.fetch(tid, pid)
}

// TryGetPage is GetPage without waiting: a conflicting lock fails
// immediately with LockConflict.
func (bp *BufferPool) TryGetPage(tid primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (page.Page, error) {
	if !tid.IsValid() {
		return nil, dberror.IllegalState("invalid transaction id").In("TryGetPage", "BufferPool")
	}
	if err := bp.lockManager.TryLockPage(tid, pid, perm.IsExclusive()); err != nil {
		return nil, err
	}
	return bp.fetch(tid, pid)
}

func (bp *BufferPool) fetch(tid primitives.TransactionID, pid primitives.PageID) (page.Page, error) {
	bp.registry.GetOrCreate(tid).RecordPageRead()

	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if p, ok := bp.cache.Get(pid); ok {
		bp.metrics.hits.Inc()
		return p, nil
	}
	bp.metrics.misses.Inc()

	dbFile, err := bp.tables.GetDbFile(pid.TableID)
	if err != nil {
		return nil, err
	}
	p, err := dbFile.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	if err := bp.installLocked(pid, p); err != nil {
		return nil, err
	}
	logging.WithPage(pid.TableID, pid.PageNo).Debug("page read into buffer pool", "tx_id", uint64(tid))
	return p, nil
}

// installLocked puts p in the cache, evicting first if it is full.
func (bp *BufferPool) installLocked(pid primitives.PageID, p page.Page) error {
	if _, cached := bp.cache.Peek(pid); !cached && bp.cache.Size() >= bp.maxPages {
		if err := bp.evictLocked(); err != nil {
			return err
		}
	}
	return bp.cache.Put(pid, p)
}

// evictLocked drops the least recently used clean page, preferring pages
// nobody holds a lock on. Dirty pages are never candidates.
func (bp *BufferPool) evictLocked() error {
	pids := bp.cache.GetAll()

	var lockedFallback *primitives.PageID
	for _, pid := range pids {
		p, ok := bp.cache.Peek(pid)
		if !ok {
			continue
		}
		if _, dirty := p.IsDirty(); dirty {
			continue
		}
		if bp.lockManager.IsPageLocked(pid) {
			if lockedFallback == nil {
				lockedFallback = &pid
			}
			continue
		}
		bp.evict(pid)
		return nil
	}

	if lockedFallback != nil {
		bp.evict(*lockedFallback)
		return nil
	}
	return dberror.BufferFull("all %d cached pages are dirty", bp.maxPages).
		WithHint("commit or abort transactions to free buffer pool pages")
}

func (bp *BufferPool) evict(pid primitives.PageID) {
	bp.cache.Remove(pid)
	bp.metrics.evictions.Inc()
}

// ReleasePage drops tid's lock on pid before the transaction ends. Only the
// heap file's insert scan does this, for pages it only inspected.
func (bp *BufferPool) ReleasePage(tid primitives.TransactionID, pid primitives.PageID) {
	bp.lockManager.UnlockPage(tid, pid)
}

func (bp *BufferPool) HoldsLock(tid primitives.TransactionID, pid primitives.PageID) bool {
	_, held := bp.lockManager.HoldsLock(tid, pid)
	return held
}

func (bp *BufferPool) tupleFile(tableID primitives.TableID) (TupleFile, error) {
	dbFile, err := bp.tables.GetDbFile(tableID)
	if err != nil {
		return nil, err
	}
	tf, ok := dbFile.(TupleFile)
	if !ok {
		return nil, dberror.IllegalState("table %d does not support tuple updates", uint64(tableID))
	}
	return tf, nil
}

// InsertTuple adds t to the table and marks every page it touched dirty
// on behalf of tid.
func (bp *BufferPool) InsertTuple(tid primitives.TransactionID, tableID primitives.TableID, t *tuple.Tuple) error {
	tf, err := bp.tupleFile(tableID)
	if err != nil {
		return err
	}
	pages, err := tf.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	if err := bp.markPagesDirty(tid, pages); err != nil {
		return err
	}
	bp.registry.GetOrCreate(tid).RecordTupleWrite()
	return nil
}

func (bp *BufferPool) DeleteTuple(tid primitives.TransactionID, t *tuple.Tuple) error {
	if t == nil || t.RecordID == nil {
		return dberror.InvalidTuple("tuple has no record id").In("DeleteTuple", "BufferPool")
	}
	tf, err := bp.tupleFile(t.RecordID.PageID.TableID)
	if err != nil {
		return err
	}
	pages, err := tf.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	if err := bp.markPagesDirty(tid, pages); err != nil {
		return err
	}
	bp.registry.GetOrCreate(tid).RecordTupleDelete()
	return nil
}

func (bp *BufferPool) markPagesDirty(tid primitives.TransactionID, pages []page.Page) error {
	ctx := bp.registry.GetOrCreate(tid)

	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	for _, p := range pages {
		p.MarkDirty(true, tid)
		if err := bp.installLocked(p.GetID(), p); err != nil {
			return err
		}
		ctx.MarkPageDirty(p.GetID())
	}
	return nil
}

// TransactionComplete ends tid. On commit its dirty pages are written to
// disk and become the new before-images; on abort they are rolled back to
// their before-images in memory. Either way every lock tid holds is
// released.
func (bp *BufferPool) TransactionComplete(tid primitives.TransactionID, commit bool) error {
	ctx, tracked := bp.registry.Get(tid)
	log := logging.WithTx(tid)

	var err error
	if tracked {
		dirty := ctx.GetDirtyPages()
		if commit {
			err = bp.flushPages(dirty)
		} else {
			bp.restorePages(tid, dirty)
		}
	}

	if commit && err != nil {
		// The transaction still holds its locks, so the caller can abort.
		return cerrors.Wrapf(err, "commit of transaction %d failed", uint64(tid))
	}

	released := bp.lockManager.UnlockAllPages(tid)
	if tracked {
		if commit {
			ctx.SetStatus(transaction.TxCommitted)
		} else {
			ctx.SetStatus(transaction.TxAborted)
		}
		bp.registry.Remove(tid)
	}

	if commit {
		bp.metrics.commits.Inc()
		log.Debug("transaction committed", "locks_released", len(released))
	} else {
		bp.metrics.aborts.Inc()
		log.Debug("transaction aborted", "locks_released", len(released))
	}
	return nil
}

// BeginTransaction registers a new transaction. Any valid id also starts a
// transaction implicitly on its first page access.
func (bp *BufferPool) BeginTransaction() primitives.TransactionID {
	return bp.registry.Begin().ID
}

func (bp *BufferPool) CommitTransaction(tid primitives.TransactionID) error {
	return bp.TransactionComplete(tid, true)
}

func (bp *BufferPool) AbortTransaction(tid primitives.TransactionID) error {
	return bp.TransactionComplete(tid, false)
}

func (bp *BufferPool) restorePages(tid primitives.TransactionID, pids []primitives.PageID) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	for _, pid := range pids {
		p, ok := bp.cache.Peek(pid)
		if !ok {
			continue
		}
		if dirtier, dirty := p.IsDirty(); !dirty || dirtier != tid {
			continue
		}

		before, err := p.GetBeforeImage()
		if err != nil {
			logging.WithPage(pid.TableID, pid.PageNo).Warn("dropping page without usable before-image", "error", err)
			bp.discardLocked(pid)
			continue
		}
		_ = bp.cache.Put(pid, before)
	}
}

// flushPages writes the given pages concurrently. Pages that are clean or
// no longer cached are skipped.
func (bp *BufferPool) flushPages(pids []primitives.PageID) error {
	var g errgroup.Group
	for _, pid := range pids {
		g.Go(func() error {
			return bp.flushPage(pid)
		})
	}
	return g.Wait()
}

func (bp *BufferPool) flushPage(pid primitives.PageID) error {
	p, ok := bp.cache.Peek(pid)
	if !ok {
		return nil
	}
	if _, dirty := p.IsDirty(); !dirty {
		return nil
	}

	dbFile, err := bp.tables.GetDbFile(pid.TableID)
	if err != nil {
		return err
	}
	if err := dbFile.WritePage(p); err != nil {
		return cerrors.Wrapf(err, "flush %s", pid)
	}

	p.MarkDirty(false, primitives.InvalidTransactionID)
	p.SetBeforeImage()
	bp.metrics.flushes.Inc()
	return nil
}

// FlushPages writes tid's dirty pages without ending the transaction.
func (bp *BufferPool) FlushPages(tid primitives.TransactionID) error {
	ctx, ok := bp.registry.Get(tid)
	if !ok {
		return nil
	}
	return bp.flushPages(ctx.GetDirtyPages())
}

// FlushAllPages writes every dirty cached page, committed or not.
func (bp *BufferPool) FlushAllPages() error {
	return bp.flushPages(bp.cache.GetAll())
}

// DiscardPage drops pid from the cache without writing it. Uncommitted
// changes on the page are lost; the next GetPage rereads it from disk.
func (bp *BufferPool) DiscardPage(pid primitives.PageID) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	bp.discardLocked(pid)
}

// DiscardTable drops every cached page of the table without writing it.
func (bp *BufferPool) DiscardTable(tableID primitives.TableID) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	for _, pid := range bp.cache.GetAll() {
		if pid.TableID == tableID {
			bp.discardLocked(pid)
		}
	}
}

func (bp *BufferPool) discardLocked(pid primitives.PageID) {
	if bp.cache.Remove(pid) {
		logging.WithPage(pid.TableID, pid.PageNo).Debug("page discarded")
	}
}

func (bp *BufferPool) NumCachedPages() int {
	return bp.cache.Size()
}

func (bp *BufferPool) ActiveTransactions() int {
	return len(bp.registry.GetActive())
}

func (bp *BufferPool) LockStats() lock.Stats {
	return bp.lockManager.Stats()
}

// Close aborts transactions that are still running and writes back
// whatever remains dirty.
func (bp *BufferPool) Close() error {
	var errs error
	for _, ctx := range bp.registry.GetActive() {
		logging.WithTx(ctx.ID).Warn("aborting transaction still active at shutdown")
		errs = errors.Join(errs, bp.TransactionComplete(ctx.ID, false))
	}
	if err := bp.FlushAllPages(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}
