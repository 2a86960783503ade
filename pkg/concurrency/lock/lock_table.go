package lock

import (
	"cipherdb/pkg/primitives"
)

// LockTable indexes granted locks by page and by transaction.
// It is not safe for concurrent use; LockManager guards it.
type LockTable struct {
	pageLocks        map[primitives.PageID][]*Lock
	transactionLocks map[primitives.TransactionID]map[primitives.PageID]LockType
}

func NewLockTable() *LockTable {
	return &LockTable{
		pageLocks:        make(map[primitives.PageID][]*Lock),
		transactionLocks: make(map[primitives.TransactionID]map[primitives.PageID]LockType),
	}
}

// HasSufficientLock reports whether tid already holds a lock at least as
// strong as reqLockType on pid.
func (lt *LockTable) HasSufficientLock(tid primitives.TransactionID, pid primitives.PageID, reqLockType LockType) bool {
	current, ok := lt.HeldLock(tid, pid)
	if !ok {
		return false
	}
	return current == ExclusiveLock || reqLockType == SharedLock
}

// HeldLock returns the mode tid holds on pid.
func (lt *LockTable) HeldLock(tid primitives.TransactionID, pid primitives.PageID) (LockType, bool) {
	txPages, exists := lt.transactionLocks[tid]
	if !exists {
		return SharedLock, false
	}
	lockType, ok := txPages[pid]
	return lockType, ok
}

func (lt *LockTable) GetPageLocks(pid primitives.PageID) []*Lock {
	return lt.pageLocks[pid]
}

// PagesOf lists the pages tid holds locks on.
func (lt *LockTable) PagesOf(tid primitives.TransactionID) []primitives.PageID {
	txPages := lt.transactionLocks[tid]
	pages := make([]primitives.PageID, 0, len(txPages))
	for pid := range txPages {
		pages = append(pages, pid)
	}
	return pages
}

func (lt *LockTable) AddLock(tid primitives.TransactionID, pid primitives.PageID, lockType LockType) {
	lt.pageLocks[pid] = append(lt.pageLocks[pid], NewLock(tid, lockType))

	if lt.transactionLocks[tid] == nil {
		lt.transactionLocks[tid] = make(map[primitives.PageID]LockType)
	}
	lt.transactionLocks[tid][pid] = lockType
}

func (lt *LockTable) IsPageLocked(pid primitives.PageID) bool {
	return len(lt.pageLocks[pid]) > 0
}

func (lt *LockTable) UpgradeLock(tid primitives.TransactionID, pid primitives.PageID) {
	for _, lock := range lt.pageLocks[pid] {
		if lock.TID == tid {
			lock.LockType = ExclusiveLock
			break
		}
	}
	lt.transactionLocks[tid][pid] = ExclusiveLock
}

// ReleaseAllLocks drops every lock tid holds and returns the affected pages.
func (lt *LockTable) ReleaseAllLocks(tid primitives.TransactionID) []primitives.PageID {
	affectedPages := lt.PagesOf(tid)
	for _, pid := range affectedPages {
		lt.removePageLock(tid, pid)
	}
	delete(lt.transactionLocks, tid)
	return affectedPages
}

func (lt *LockTable) ReleaseLock(tid primitives.TransactionID, pid primitives.PageID) {
	lt.removePageLock(tid, pid)

	if txPages, exists := lt.transactionLocks[tid]; exists {
		delete(txPages, pid)
		if len(txPages) == 0 {
			delete(lt.transactionLocks, tid)
		}
	}
}

func (lt *LockTable) removePageLock(tid primitives.TransactionID, pid primitives.PageID) {
	locks := lt.pageLocks[pid]
	newLocks := make([]*Lock, 0, len(locks))
	for _, lock := range locks {
		if lock.TID != tid {
			newLocks = append(newLocks, lock)
		}
	}
	updateOrDelete(lt.pageLocks, pid, newLocks)
}
