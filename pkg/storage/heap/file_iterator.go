package heap

import (
	"io"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/tuple"
)

// HeapFileIterator visits pages 0..NumPages()-1 in order and each page's
// occupied slots in slot order. The page count is re-read whenever the
// iterator moves past a page, so pages appended mid-scan are seen.
//
// Closing the iterator drops its position only; page locks stay with the
// transaction.
type HeapFileIterator struct {
	file        *HeapFile
	tid         primitives.TransactionID
	currentPage primitives.PageNumber
	pageIter    *HeapPageIterator
	isOpen      bool
}

func NewHeapFileIterator(file *HeapFile, tid primitives.TransactionID) *HeapFileIterator {
	return &HeapFileIterator{
		file:        file,
		tid:         tid,
		currentPage: -1,
	}
}

func (it *HeapFileIterator) Open() error {
	if err := it.file.requirePool("Iterator"); err != nil {
		return err
	}
	it.currentPage = -1
	it.pageIter = nil
	it.isOpen = true
	return nil
}

func (it *HeapFileIterator) HasNext() (bool, error) {
	if !it.isOpen {
		return false, dberror.IllegalState("heap file iterator not opened")
	}

	for it.pageIter == nil || !it.pageIter.HasNext() {
		numPages, err := it.file.NumPages()
		if err != nil {
			return false, err
		}
		if it.currentPage+1 >= numPages {
			return false, nil
		}

		it.currentPage++
		pid := primitives.NewPageID(it.file.GetID(), it.currentPage)
		p, err := it.file.pool.GetPage(it.tid, pid, primitives.ReadOnly)
		if err != nil {
			return false, err
		}
		hp, err := asHeapPage(p)
		if err != nil {
			return false, err
		}
		it.pageIter = NewHeapPageIterator(hp)
	}
	return true, nil
}

// Next returns io.EOF once the file is exhausted.
func (it *HeapFileIterator) Next() (*tuple.Tuple, error) {
	hasNext, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, io.EOF
	}
	return it.pageIter.Next()
}

// Rewind returns to page -1.
func (it *HeapFileIterator) Rewind() error {
	if !it.isOpen {
		return dberror.IllegalState("heap file iterator not opened")
	}
	it.currentPage = -1
	it.pageIter = nil
	return nil
}

func (it *HeapFileIterator) Close() error {
	it.pageIter = nil
	it.isOpen = false
	return nil
}
