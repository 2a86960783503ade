package iterator

import (
	"cipherdb/pkg/tuple"
)

// TupleSliceIterator serves already materialized tuples through the full
// operator protocol. Aggregates use it for their result rows.
type TupleSliceIterator struct {
	base   *BaseIterator
	td     *tuple.TupleDescription
	tuples []*tuple.Tuple
	pos    int
}

func NewTupleSliceIterator(td *tuple.TupleDescription, tuples []*tuple.Tuple) *TupleSliceIterator {
	it := &TupleSliceIterator{td: td, tuples: tuples}
	it.base = NewBaseIterator(it.readNext)
	return it
}

func (it *TupleSliceIterator) readNext() (*tuple.Tuple, error) {
	if it.pos >= len(it.tuples) {
		return nil, nil
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}

func (it *TupleSliceIterator) Open() error {
	it.pos = 0
	it.base.MarkOpened()
	return nil
}

func (it *TupleSliceIterator) Rewind() error {
	if err := it.base.Rewind(); err != nil {
		return err
	}
	it.pos = 0
	return nil
}

func (it *TupleSliceIterator) Close() error {
	return it.base.Close()
}

func (it *TupleSliceIterator) GetTupleDesc() *tuple.TupleDescription {
	return it.td
}

func (it *TupleSliceIterator) HasNext() (bool, error)      { return it.base.HasNext() }
func (it *TupleSliceIterator) Next() (*tuple.Tuple, error) { return it.base.Next() }

// Len is the number of materialized tuples.
func (it *TupleSliceIterator) Len() int {
	return len(it.tuples)
}
