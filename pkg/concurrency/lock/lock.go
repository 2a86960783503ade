package lock

import (
	"time"

	"cipherdb/pkg/primitives"
)

type LockType int

const (
	SharedLock LockType = iota
	ExclusiveLock
)

func (lt LockType) String() string {
	if lt == ExclusiveLock {
		return "X"
	}
	return "S"
}

// LockTypeFor maps a buffer-pool permission onto a lock mode.
func LockTypeFor(perm primitives.Permissions) LockType {
	if perm.IsExclusive() {
		return ExclusiveLock
	}
	return SharedLock
}

// Lock is one granted lock on a page.
type Lock struct {
	TID       primitives.TransactionID
	LockType  LockType
	GrantTime time.Time
}

func NewLock(tid primitives.TransactionID, lockType LockType) *Lock {
	return &Lock{
		TID:       tid,
		LockType:  lockType,
		GrantTime: time.Now(),
	}
}
