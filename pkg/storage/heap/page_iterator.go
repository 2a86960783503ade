package heap

import (
	"io"

	"cipherdb/pkg/tuple"
)

// HeapPageIterator walks a snapshot of one page's occupied slots in slot order.
type HeapPageIterator struct {
	page         *HeapPage
	tuples       []*tuple.Tuple
	currentIndex int
}

func NewHeapPageIterator(page *HeapPage) *HeapPageIterator {
	return &HeapPageIterator{
		page:   page,
		tuples: page.GetTuples(),
	}
}

func (it *HeapPageIterator) HasNext() bool {
	return it.currentIndex < len(it.tuples)
}

func (it *HeapPageIterator) Next() (*tuple.Tuple, error) {
	if !it.HasNext() {
		return nil, io.EOF
	}
	t := it.tuples[it.currentIndex]
	it.currentIndex++
	return t, nil
}
