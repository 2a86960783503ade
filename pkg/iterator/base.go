package iterator

import (
	"io"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/tuple"
)

// ReadNextFunc produces the next tuple, or (nil, nil) at end of data.
type ReadNextFunc func() (*tuple.Tuple, error)

// BaseIterator owns the Open/Closed state and a one-tuple lookahead for an
// operator. Operators supply readNext and delegate HasNext/Next to it.
type BaseIterator struct {
	nextTuple    *tuple.Tuple
	opened       bool
	exhausted    bool
	readNextFunc ReadNextFunc
}

func NewBaseIterator(readNextFunc ReadNextFunc) *BaseIterator {
	return &BaseIterator{readNextFunc: readNextFunc}
}

func (it *BaseIterator) fill() error {
	if !it.opened {
		return dberror.IllegalState("iterator not opened")
	}
	if it.nextTuple != nil || it.exhausted {
		return nil
	}

	t, err := it.readNextFunc()
	if err != nil {
		return err
	}
	if t == nil {
		it.exhausted = true
	}
	it.nextTuple = t
	return nil
}

func (it *BaseIterator) HasNext() (bool, error) {
	if err := it.fill(); err != nil {
		return false, err
	}
	return it.nextTuple != nil, nil
}

// Next returns io.EOF at end of data.
func (it *BaseIterator) Next() (*tuple.Tuple, error) {
	if err := it.fill(); err != nil {
		return nil, err
	}
	if it.nextTuple == nil {
		return nil, io.EOF
	}

	result := it.nextTuple
	it.nextTuple = nil
	return result, nil
}

func (it *BaseIterator) MarkOpened() {
	it.opened = true
	it.ClearCache()
}

func (it *BaseIterator) IsOpen() bool {
	return it.opened
}

// ClearCache forgets the lookahead tuple and the end-of-data mark.
func (it *BaseIterator) ClearCache() {
	it.nextTuple = nil
	it.exhausted = false
}

func (it *BaseIterator) Rewind() error {
	if !it.opened {
		return dberror.IllegalState("cannot rewind a closed iterator")
	}
	it.ClearCache()
	return nil
}

func (it *BaseIterator) Close() error {
	it.ClearCache()
	it.opened = false
	return nil
}
