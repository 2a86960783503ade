package lock

import (
	"slices"

	"cipherdb/pkg/primitives"
)

// LockGrantor holds the compatibility rules.
type LockGrantor struct {
	lockTable *LockTable
}

func NewLockGrantor(lockTable *LockTable) *LockGrantor {
	return &LockGrantor{lockTable: lockTable}
}

// CanGrantImmediately: Shared is compatible with Shared; Exclusive only with
// the requester's own locks.
func (lg *LockGrantor) CanGrantImmediately(tid primitives.TransactionID, pid primitives.PageID, lockType LockType) bool {
	locks := lg.lockTable.GetPageLocks(pid)
	if lockType == ExclusiveLock {
		return !slices.ContainsFunc(locks, func(l *Lock) bool { return l.TID != tid })
	}
	return !slices.ContainsFunc(locks, func(l *Lock) bool {
		return l.TID != tid && l.LockType == ExclusiveLock
	})
}

// CanUpgradeLock requires tid to hold Shared and be the page's only holder.
func (lg *LockGrantor) CanUpgradeLock(tid primitives.TransactionID, pid primitives.PageID) bool {
	held, ok := lg.lockTable.HeldLock(tid, pid)
	if !ok || held != SharedLock {
		return false
	}
	return lg.CanGrantImmediately(tid, pid, ExclusiveLock)
}

// Grant adds, upgrades, or leaves alone tid's lock so that it is at least
// lockType. The caller has checked compatibility.
func (lg *LockGrantor) Grant(tid primitives.TransactionID, pid primitives.PageID, lockType LockType) {
	held, ok := lg.lockTable.HeldLock(tid, pid)
	switch {
	case !ok:
		lg.lockTable.AddLock(tid, pid, lockType)
	case held == SharedLock && lockType == ExclusiveLock:
		lg.lockTable.UpgradeLock(tid, pid)
	}
}

// Blockers lists the other transactions whose locks conflict with the request.
func (lg *LockGrantor) Blockers(tid primitives.TransactionID, pid primitives.PageID, lockType LockType) []primitives.TransactionID {
	var blockers []primitives.TransactionID
	for _, l := range lg.lockTable.GetPageLocks(pid) {
		if l.TID == tid {
			continue
		}
		if lockType == ExclusiveLock || l.LockType == ExclusiveLock {
			blockers = append(blockers, l.TID)
		}
	}
	return blockers
}
