package page

import (
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/tuple"
)

// Page is one fixed-size block of a table file held in memory.
type Page interface {
	GetID() primitives.PageID

	// IsDirty returns the transaction that last dirtied the page, if any.
	IsDirty() (primitives.TransactionID, bool)

	MarkDirty(dirty bool, tid primitives.TransactionID)

	// GetPageData serializes the page into exactly Size() bytes.
	GetPageData() []byte

	// GetBeforeImage returns the page as it was when last made durable.
	GetBeforeImage() (Page, error)

	// SetBeforeImage records the current contents as the new before-image.
	SetBeforeImage()
}

// DbFile is a table stored as a sequence of pages.
type DbFile interface {
	GetID() primitives.TableID

	GetTupleDesc() *tuple.TupleDescription

	ReadPage(pid primitives.PageID) (Page, error)

	WritePage(p Page) error

	NumPages() (primitives.PageNumber, error)

	Close() error
}
