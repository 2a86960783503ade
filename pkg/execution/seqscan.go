package execution

import (
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/heap"
	"cipherdb/pkg/tuple"
)

// SeqScan reads every tuple of a heap file under tid's Shared page locks.
// With a non-empty alias, output field names become "<alias>.<name>".
type SeqScan struct {
	base      *iterator.BaseIterator
	file      *heap.HeapFile
	tid       primitives.TransactionID
	alias     string
	tupleDesc *tuple.TupleDescription
	fileIter  *heap.HeapFileIterator
}

func NewSeqScan(tid primitives.TransactionID, file *heap.HeapFile, alias string) *SeqScan {
	td := file.GetTupleDesc()
	if alias != "" {
		td = td.WithPrefix(alias)
	}

	ss := &SeqScan{
		file:      file,
		tid:       tid,
		alias:     alias,
		tupleDesc: td,
	}
	ss.base = iterator.NewBaseIterator(ss.readNext)
	return ss
}

func (ss *SeqScan) Open() error {
	ss.fileIter = ss.file.Iterator(ss.tid)
	if err := ss.fileIter.Open(); err != nil {
		return err
	}
	ss.base.MarkOpened()
	return nil
}

func (ss *SeqScan) readNext() (*tuple.Tuple, error) {
	hasNext, err := ss.fileIter.HasNext()
	if err != nil || !hasNext {
		return nil, err
	}

	t, err := ss.fileIter.Next()
	if err != nil {
		return nil, err
	}
	if ss.alias == "" {
		return t, nil
	}

	// Same values under the aliased schema; the record id still points at
	// the stored tuple.
	out := t.Clone()
	out.TupleDesc = ss.tupleDesc
	out.RecordID = t.RecordID
	return out, nil
}

func (ss *SeqScan) Rewind() error {
	if err := ss.base.Rewind(); err != nil {
		return err
	}
	return ss.fileIter.Rewind()
}

func (ss *SeqScan) Close() error {
	if ss.fileIter != nil {
		_ = ss.fileIter.Close()
	}
	return ss.base.Close()
}

func (ss *SeqScan) GetTupleDesc() *tuple.TupleDescription {
	return ss.tupleDesc
}

func (ss *SeqScan) HasNext() (bool, error)      { return ss.base.HasNext() }
func (ss *SeqScan) Next() (*tuple.Tuple, error) { return ss.base.Next() }

func (ss *SeqScan) TableAlias() string {
	return ss.alias
}
