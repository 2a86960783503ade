package lock

import (
	"sync"
	"sync/atomic"
	"time"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
)

const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxBackoff = 50 * time.Millisecond
	baseRetryDelay    = time.Millisecond
)

// Options tunes how long a blocked request waits.
type Options struct {
	Timeout    time.Duration
	MaxBackoff time.Duration
}

// Stats are cumulative counters, read by the buffer pool's metrics.
type Stats struct {
	Waits     uint64
	Deadlocks uint64
	Timeouts  uint64
}

type LockManager struct {
	lockTable *LockTable
	grantor   *LockGrantor
	depGraph  *DependencyGraph
	mutex     sync.Mutex
	opts      Options

	waits     atomic.Uint64
	deadlocks atomic.Uint64
	timeouts  atomic.Uint64
}

func NewLockManager(opts Options) *LockManager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}

	lockTable := NewLockTable()
	return &LockManager{
		lockTable: lockTable,
		grantor:   NewLockGrantor(lockTable),
		depGraph:  NewDependencyGraph(),
		opts:      opts,
	}
}

// LockPage blocks until tid holds the requested mode on pid. It fails with
// dberror.ErrTransactionAbort on deadlock or timeout.
func (lm *LockManager) LockPage(tid primitives.TransactionID, pid primitives.PageID, exclusive bool) error {
	if !tid.IsValid() {
		return dberror.IllegalState("invalid transaction id")
	}

	lockType := SharedLock
	if exclusive {
		lockType = ExclusiveLock
	}

	deadline := time.Now().Add(lm.opts.Timeout)
	waited := false
	for attempt := 0; ; attempt++ {
		lm.mutex.Lock()

		if lm.tryGrantLocked(tid, pid, lockType) {
			lm.depGraph.RemoveWaiter(tid)
			lm.mutex.Unlock()
			return nil
		}

		lm.depGraph.RemoveWaiter(tid)
		for _, holder := range lm.grantor.Blockers(tid, pid, lockType) {
			lm.depGraph.AddEdge(tid, holder)
		}

		if lm.depGraph.HasCycleFrom(tid) {
			lm.depGraph.RemoveWaiter(tid)
			lm.mutex.Unlock()
			lm.deadlocks.Add(1)
			logging.WithLock(tid, pid.String()).Warn("deadlock detected, aborting requester")
			return dberror.TransactionAbort("deadlock detected for transaction %d", uint64(tid)).
				In("LockPage", "LockManager")
		}

		if time.Now().After(deadline) {
			lm.depGraph.RemoveWaiter(tid)
			lm.mutex.Unlock()
			lm.timeouts.Add(1)
			return dberror.TransactionAbort("timeout waiting for %s lock on %s", lockType, pid).
				In("LockPage", "LockManager")
		}
		lm.mutex.Unlock()

		if !waited {
			waited = true
			lm.waits.Add(1)
		}
		time.Sleep(lm.retryDelay(attempt))
	}
}

// TryLockPage grants the lock only if that is possible right now.
func (lm *LockManager) TryLockPage(tid primitives.TransactionID, pid primitives.PageID, exclusive bool) error {
	if !tid.IsValid() {
		return dberror.IllegalState("invalid transaction id")
	}

	lockType := SharedLock
	if exclusive {
		lockType = ExclusiveLock
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.tryGrantLocked(tid, pid, lockType) {
		return nil
	}
	return dberror.LockConflict("%s lock on %s is held by another transaction", lockType, pid)
}

func (lm *LockManager) tryGrantLocked(tid primitives.TransactionID, pid primitives.PageID, lockType LockType) bool {
	if lm.lockTable.HasSufficientLock(tid, pid, lockType) {
		return true
	}

	var grantable bool
	if held, ok := lm.lockTable.HeldLock(tid, pid); ok && held == SharedLock {
		// Only Exclusive is insufficient over a held Shared lock.
		grantable = lm.grantor.CanUpgradeLock(tid, pid)
	} else {
		grantable = lm.grantor.CanGrantImmediately(tid, pid, lockType)
	}
	if !grantable {
		return false
	}
	lm.grantor.Grant(tid, pid, lockType)
	return true
}

func (lm *LockManager) retryDelay(attempt int) time.Duration {
	exponentialFactor := min(attempt/10, 10)
	delay := baseRetryDelay * time.Duration(1<<uint(exponentialFactor))
	return min(delay, lm.opts.MaxBackoff)
}

// UnlockPage drops tid's lock on pid, if any.
func (lm *LockManager) UnlockPage(tid primitives.TransactionID, pid primitives.PageID) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	lm.lockTable.ReleaseLock(tid, pid)
}

// UnlockAllPages ends tid's locking and returns the pages it held.
func (lm *LockManager) UnlockAllPages(tid primitives.TransactionID) []primitives.PageID {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	pages := lm.lockTable.ReleaseAllLocks(tid)
	lm.depGraph.RemoveTransaction(tid)
	return pages
}

// HoldsLock returns the mode tid holds on pid.
func (lm *LockManager) HoldsLock(tid primitives.TransactionID, pid primitives.PageID) (LockType, bool) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.lockTable.HeldLock(tid, pid)
}

func (lm *LockManager) IsPageLocked(pid primitives.PageID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.lockTable.IsPageLocked(pid)
}

// LockedPages lists the pages tid currently holds.
func (lm *LockManager) LockedPages(tid primitives.TransactionID) []primitives.PageID {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.lockTable.PagesOf(tid)
}

func (lm *LockManager) Stats() Stats {
	return Stats{
		Waits:     lm.waits.Load(),
		Deadlocks: lm.deadlocks.Load(),
		Timeouts:  lm.timeouts.Load(),
	}
}
