package page

import (
	"errors"
	"io"
	"os"
	"sync"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
)

// BaseFile is page-granular I/O over one OS file. It does no locking beyond
// keeping its own reads and writes atomic; transactional coordination lives
// in the buffer pool.
type BaseFile struct {
	file     *os.File
	tableID  primitives.TableID
	mutex    sync.RWMutex
	filePath primitives.Filepath
}

// NewBaseFile opens (creating if needed) the file and derives the table id
// from its absolute path.
func NewBaseFile(filePath primitives.Filepath) (*BaseFile, error) {
	if filePath.IsEmpty() {
		return nil, dberror.IllegalState("file path cannot be empty")
	}

	abs, err := filePath.Abs()
	if err != nil {
		return nil, dberror.StorageIO(err, "resolve path %s", filePath)
	}

	file, err := os.OpenFile(abs.String(), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, dberror.StorageIO(err, "open %s", abs)
	}

	return &BaseFile{
		file:     file,
		tableID:  abs.Hash(),
		filePath: abs,
	}, nil
}

func (bf *BaseFile) GetID() primitives.TableID {
	return bf.tableID
}

func (bf *BaseFile) FilePath() primitives.Filepath {
	return bf.filePath
}

// NumPages is recomputed from the file length on every call, rounding a
// trailing partial page up.
func (bf *BaseFile) NumPages() (primitives.PageNumber, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()
	return bf.numPagesLocked()
}

func (bf *BaseFile) numPagesLocked() (primitives.PageNumber, error) {
	if bf.file == nil {
		return 0, dberror.IllegalState("file %s is closed", bf.filePath)
	}

	fileInfo, err := bf.file.Stat()
	if err != nil {
		return 0, dberror.StorageIO(err, "stat %s", bf.filePath)
	}

	size := int64(Size())
	numPages := fileInfo.Size() / size
	if fileInfo.Size()%size != 0 {
		numPages++
	}
	return primitives.PageNumber(numPages), nil
}

func (bf *BaseFile) checkRange(op string, pageNo primitives.PageNumber) error {
	numPages, err := bf.numPagesLocked()
	if err != nil {
		return err
	}
	if pageNo < 0 || pageNo >= numPages {
		return dberror.OutOfRange("page %d out of range", pageNo).
			WithDetail("%s has %d pages", bf.filePath.Base(), numPages).
			In(op, "BaseFile")
	}
	return nil
}

// ReadPageData reads one page-size block at pageNo × Size(). A short trailing
// page reads back zero-filled.
func (bf *BaseFile) ReadPageData(pageNo primitives.PageNumber) ([]byte, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if err := bf.checkRange("ReadPage", pageNo); err != nil {
		return nil, err
	}

	pageData := make([]byte, Size())
	offset := int64(pageNo) * int64(Size())
	if _, err := bf.file.ReadAt(pageData, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, dberror.StorageIO(err, "read page %d of %s", pageNo, bf.filePath)
	}
	return pageData, nil
}

// WritePageData overwrites an existing page. It never grows the file; use
// AllocateNewPage first.
func (bf *BaseFile) WritePageData(pageNo primitives.PageNumber, pageData []byte) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if err := bf.checkRange("WritePage", pageNo); err != nil {
		return err
	}
	if len(pageData) != Size() {
		return dberror.IllegalState("invalid page data size: expected %d, got %d", Size(), len(pageData))
	}

	offset := int64(pageNo) * int64(Size())
	if _, err := bf.file.WriteAt(pageData, offset); err != nil {
		return dberror.StorageIO(err, "write page %d of %s", pageNo, bf.filePath)
	}
	if err := bf.file.Sync(); err != nil {
		return dberror.StorageIO(err, "sync %s", bf.filePath)
	}
	return nil
}

// AllocateNewPage appends a zero-filled page at end-of-file and returns its
// number. Concurrent callers always receive distinct pages.
func (bf *BaseFile) AllocateNewPage() (primitives.PageNumber, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	pageNo, err := bf.numPagesLocked()
	if err != nil {
		return 0, err
	}

	zeroPage := make([]byte, Size())
	offset := int64(pageNo) * int64(Size())
	if _, err := bf.file.WriteAt(zeroPage, offset); err != nil {
		return 0, dberror.StorageIO(err, "append page %d to %s", pageNo, bf.filePath)
	}
	if err := bf.file.Sync(); err != nil {
		return 0, dberror.StorageIO(err, "sync %s after append", bf.filePath)
	}

	logging.WithPage(bf.tableID, pageNo).Debug("page appended", "file", bf.filePath.Base())
	return pageNo, nil
}

// Truncate discards every page.
func (bf *BaseFile) Truncate() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return dberror.IllegalState("file %s is closed", bf.filePath)
	}
	if err := bf.file.Truncate(0); err != nil {
		return dberror.StorageIO(err, "truncate %s", bf.filePath)
	}
	return nil
}

func (bf *BaseFile) Close() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file != nil {
		err := bf.file.Close()
		bf.file = nil
		return err
	}
	return nil
}
