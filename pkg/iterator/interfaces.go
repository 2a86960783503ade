package iterator

import "cipherdb/pkg/tuple"

// TupleIterator is the pull half of the protocol. HasNext may be called any
// number of times without consuming; Next returns io.EOF once exhausted.
type TupleIterator interface {
	HasNext() (bool, error)
	Next() (*tuple.Tuple, error)
}

// DbFileIterator is what a table file hands out for a sequential scan.
type DbFileIterator interface {
	TupleIterator

	Open() error

	// Rewind restarts the scan from the first page.
	Rewind() error

	// Close drops iteration state. It never releases page locks.
	Close() error
}

// DbIterator is the contract every query operator implements. Operators
// move between Closed and Open; positional calls while Closed fail with
// IllegalState.
type DbIterator interface {
	DbFileIterator

	// GetTupleDesc is valid in either state.
	GetTupleDesc() *tuple.TupleDescription
}
