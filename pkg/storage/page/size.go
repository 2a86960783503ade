package page

import "sync/atomic"

// DefaultPageSize is the page size used unless configuration overrides it.
const DefaultPageSize = 4096

var pageSize atomic.Int64

// Size returns the process-wide page size in bytes.
func Size() int {
	if n := pageSize.Load(); n > 0 {
		return int(n)
	}
	return DefaultPageSize
}

// SetSize changes the process-wide page size. Files written under one size
// cannot be read under another; call it before opening any table.
func SetSize(n int) {
	pageSize.Store(int64(n))
}

// ResetSize restores DefaultPageSize.
func ResetSize() {
	pageSize.Store(0)
}
