package transaction

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"cipherdb/pkg/primitives"
)

type TransactionStatus int32

const (
	TxActive TransactionStatus = iota
	TxCommitted
	TxAborted
)

var statusNames = [...]string{
	TxActive:    "ACTIVE",
	TxCommitted: "COMMITTED",
	TxAborted:   "ABORTED",
}

func (ts TransactionStatus) String() string {
	if ts < 0 || int(ts) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[ts]
}

// TransactionStats is a point-in-time copy of a context's counters.
type TransactionStats struct {
	PagesRead     int
	PagesWritten  int
	TuplesWritten int
	TuplesDeleted int
	Duration      time.Duration
}

// TransactionContext is the buffer pool's bookkeeping for one transaction.
// Counters are lock-free; only the dirty set needs the mutex.
type TransactionContext struct {
	ID primitives.TransactionID

	status  atomic.Int32
	started time.Time
	ended   atomic.Int64 // unix nanos, zero while active

	reads   atomic.Int64
	writes  atomic.Int64
	deletes atomic.Int64

	dirtyMu sync.Mutex
	dirty   map[primitives.PageID]struct{}
}

func NewTransactionContext(tid primitives.TransactionID) *TransactionContext {
	return &TransactionContext{
		ID:      tid,
		started: time.Now(),
		dirty:   make(map[primitives.PageID]struct{}),
	}
}

func (tc *TransactionContext) IsActive() bool {
	return tc.GetStatus() == TxActive
}

func (tc *TransactionContext) GetStatus() TransactionStatus {
	return TransactionStatus(tc.status.Load())
}

// SetStatus moves the context to status. Leaving TxActive stamps the end time once.
func (tc *TransactionContext) SetStatus(status TransactionStatus) {
	tc.status.Store(int32(status))
	if status != TxActive {
		tc.ended.CompareAndSwap(0, time.Now().UnixNano())
	}
}

func (tc *TransactionContext) RecordPageRead() { tc.reads.Add(1) }
func (tc *TransactionContext) RecordTupleWrite() { tc.writes.Add(1) }
func (tc *TransactionContext) RecordTupleDelete() { tc.deletes.Add(1) }

func (tc *TransactionContext) MarkPageDirty(pid primitives.PageID) {
	tc.dirtyMu.Lock()
	tc.dirty[pid] = struct{}{}
	tc.dirtyMu.Unlock()
}

func (tc *TransactionContext) GetDirtyPages() []primitives.PageID {
	tc.dirtyMu.Lock()
	defer tc.dirtyMu.Unlock()
	return slices.Collect(maps.Keys(tc.dirty))
}

func (tc *TransactionContext) GetStatistics() TransactionStats {
	end := time.Now()
	if ns := tc.ended.Load(); ns != 0 {
		end = time.Unix(0, ns)
	}

	tc.dirtyMu.Lock()
	written := len(tc.dirty)
	tc.dirtyMu.Unlock()

	return TransactionStats{
		PagesRead:     int(tc.reads.Load()),
		PagesWritten:  written,
		TuplesWritten: int(tc.writes.Load()),
		TuplesDeleted: int(tc.deletes.Load()),
		Duration:      end.Sub(tc.started),
	}
}
