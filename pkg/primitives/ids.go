package primitives

import (
	"fmt"
	"sync/atomic"
)

// TableID identifies a table. It is derived from the table file's path.
type TableID uint64

// PageNumber addresses a page inside a table file. It is signed so that
// callers can express (and storage can reject) negative page numbers.
type PageNumber int64

// SlotID is the index of a tuple slot inside a heap page.
type SlotID int

// HashCode is the hash of a field value, used for grouping.
type HashCode uint64

// TransactionID is the opaque identity of a transaction.
// The zero value never names a live transaction.
type TransactionID uint64

const InvalidTransactionID TransactionID = 0

var transactionCounter atomic.Uint64

// NewTransactionID hands out a fresh, process-unique transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(transactionCounter.Add(1))
}

func (t TableID) IsValid() bool {
	return t != 0
}

func (t TableID) String() string {
	return fmt.Sprintf("TableID(%d)", uint64(t))
}

func (t TransactionID) IsValid() bool {
	return t != InvalidTransactionID
}

func (t TransactionID) String() string {
	return fmt.Sprintf("TID(%d)", uint64(t))
}

// Permissions is the lock mode a transaction requests on a page.
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	switch p {
	case ReadOnly:
		return "SHARED"
	case ReadWrite:
		return "EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// IsExclusive reports whether the permission requires an exclusive lock.
func (p Permissions) IsExclusive() bool {
	return p == ReadWrite
}

// PageID is the (table id, page number) pair naming one page. It is a plain
// comparable value and can be used as a map key.
type PageID struct {
	TableID TableID
	PageNo  PageNumber
}

func NewPageID(tableID TableID, pageNo PageNumber) PageID {
	return PageID{TableID: tableID, PageNo: pageNo}
}

func (p PageID) String() string {
	return fmt.Sprintf("PageID(table=%d, page=%d)", uint64(p.TableID), int64(p.PageNo))
}
