package heap

import (
	"errors"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/page"
	"cipherdb/pkg/tuple"
)

// PageProvider is the buffer pool as seen by a heap file. All page access
// made on behalf of a transaction goes through it.
type PageProvider interface {
	// GetPage blocks until perm is granted or the transaction must abort.
	GetPage(tid primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (page.Page, error)

	// TryGetPage fails with a LockConflict instead of waiting.
	TryGetPage(tid primitives.TransactionID, pid primitives.PageID, perm primitives.Permissions) (page.Page, error)

	ReleasePage(tid primitives.TransactionID, pid primitives.PageID)

	HoldsLock(tid primitives.TransactionID, pid primitives.PageID) bool
}

// HeapFile stores an unordered collection of tuples in a page file.
type HeapFile struct {
	*page.BaseFile
	tupleDesc *tuple.TupleDescription
	pool      PageProvider
}

// NewHeapFile opens the file at filename. pool may be nil when only raw
// page I/O is needed; tuple operations and iteration then fail.
func NewHeapFile(filename primitives.Filepath, td *tuple.TupleDescription, pool PageProvider) (*HeapFile, error) {
	if td == nil {
		return nil, dberror.IllegalState("tuple description cannot be nil")
	}
	if SlotsPerPage(td) < 1 {
		return nil, dberror.SchemaMismatch("tuple width %d does not fit a %d-byte page", td.GetSize(), page.Size())
	}

	baseFile, err := page.NewBaseFile(filename)
	if err != nil {
		return nil, err
	}

	return &HeapFile{
		BaseFile:  baseFile,
		tupleDesc: td,
		pool:      pool,
	}, nil
}

func (hf *HeapFile) GetTupleDesc() *tuple.TupleDescription {
	return hf.tupleDesc
}

func (hf *HeapFile) ReadPage(pid primitives.PageID) (page.Page, error) {
	if pid.TableID != hf.GetID() {
		return nil, dberror.OutOfRange("%s does not belong to %s", pid, hf.GetID())
	}

	pageData, err := hf.ReadPageData(pid.PageNo)
	if err != nil {
		return nil, err
	}
	return NewHeapPage(pid, pageData, hf.tupleDesc)
}

func (hf *HeapFile) WritePage(p page.Page) error {
	if p == nil {
		return dberror.IllegalState("page cannot be nil")
	}
	pid := p.GetID()
	if pid.TableID != hf.GetID() {
		return dberror.OutOfRange("%s does not belong to %s", pid, hf.GetID())
	}
	return hf.WritePageData(pid.PageNo, p.GetPageData())
}

// AppendEmptyPage extends the file by one zero-filled page.
func (hf *HeapFile) AppendEmptyPage() (primitives.PageID, error) {
	pageNo, err := hf.AllocateNewPage()
	if err != nil {
		return primitives.PageID{}, err
	}
	return primitives.NewPageID(hf.GetID(), pageNo), nil
}

func (hf *HeapFile) requirePool(op string) error {
	if hf.pool == nil {
		return dberror.IllegalState("heap file %s has no page provider", hf.FilePath().Base()).In(op, "HeapFile")
	}
	return nil
}

// InsertTuple puts t on the first existing page with a free slot, probing
// pages in order without waiting on locks held by others. If every page is
// full or busy it appends a fresh page. It returns the modified pages.
func (hf *HeapFile) InsertTuple(tid primitives.TransactionID, t *tuple.Tuple) ([]page.Page, error) {
	if err := hf.requirePool("InsertTuple"); err != nil {
		return nil, err
	}
	if !t.TupleDesc.Equals(hf.tupleDesc) {
		return nil, dberror.SchemaMismatch("tuple schema %s does not match table schema %s", t.TupleDesc, hf.tupleDesc)
	}
	if err := validateTuple(t); err != nil {
		return nil, err
	}

	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	tried := make([]primitives.PageNumber, 0, numPages)
	for pageNo := range numPages {
		pid := primitives.NewPageID(hf.GetID(), pageNo)
		inserted, err := hf.tryInsertAt(tid, pid, t)
		if err != nil {
			return nil, err
		}
		if inserted != nil {
			return []page.Page{inserted}, nil
		}
		tried = append(tried, pageNo)
	}

	pid, err := hf.AppendEmptyPage()
	if err != nil {
		return nil, err
	}
	p, err := hf.pool.GetPage(tid, pid, primitives.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, err := asHeapPage(p)
	if err != nil {
		return nil, err
	}
	if err := hp.AddTuple(t); err != nil {
		return nil, err
	}

	logging.WithTableTx(tid, hf.GetID()).Debug("tuple placed on appended page",
		"page_no", int64(pid.PageNo), "pages_tried", len(tried))
	return []page.Page{hp}, nil
}

// tryInsertAt returns the page if t was placed on it, or nil if the page is
// full or locked by another transaction. A lock taken only for this attempt is
// released again; locks the transaction already held are kept.
func (hf *HeapFile) tryInsertAt(tid primitives.TransactionID, pid primitives.PageID, t *tuple.Tuple) (*HeapPage, error) {
	heldBefore := hf.pool.HoldsLock(tid, pid)

	p, err := hf.pool.TryGetPage(tid, pid, primitives.ReadWrite)
	if err != nil {
		if errors.Is(err, dberror.ErrLockConflict) {
			return nil, nil
		}
		return nil, err
	}

	hp, err := asHeapPage(p)
	if err != nil {
		return nil, err
	}
	if hp.GetNumEmptySlots() > 0 {
		if err := hp.AddTuple(t); err != nil {
			return nil, err
		}
		return hp, nil
	}

	if !heldBefore {
		hf.pool.ReleasePage(tid, pid)
	}
	return nil, nil
}

// DeleteTuple frees t's slot on the page its RecordID names.
func (hf *HeapFile) DeleteTuple(tid primitives.TransactionID, t *tuple.Tuple) ([]page.Page, error) {
	if err := hf.requirePool("DeleteTuple"); err != nil {
		return nil, err
	}
	if t.RecordID == nil {
		return nil, dberror.InvalidTuple("tuple has no record id").In("DeleteTuple", "HeapFile")
	}
	if t.RecordID.PageID.TableID != hf.GetID() {
		return nil, dberror.InvalidTuple("tuple belongs to %s, not %s", t.RecordID.PageID.TableID, hf.GetID())
	}

	p, err := hf.pool.GetPage(tid, t.RecordID.PageID, primitives.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, err := asHeapPage(p)
	if err != nil {
		return nil, err
	}
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []page.Page{hp}, nil
}

// Iterator scans the file's tuples under Shared locks held by tid.
func (hf *HeapFile) Iterator(tid primitives.TransactionID) *HeapFileIterator {
	return NewHeapFileIterator(hf, tid)
}

func asHeapPage(p page.Page) (*HeapPage, error) {
	hp, ok := p.(*HeapPage)
	if !ok {
		return nil, dberror.IllegalState("expected *HeapPage, got %T", p)
	}
	return hp, nil
}
