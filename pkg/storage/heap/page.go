package heap

import (
	"bytes"
	"io"
	"sync"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/page"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	"github.com/cockroachdb/errors"
)

// HeapPage is a slotted page: an occupancy bitmap followed by numSlots
// fixed-width tuple slots. Bit i of the header (byte i/8, LSB first) is set
// when slot i holds a tuple.
type HeapPage struct {
	pageID    primitives.PageID
	tupleDesc *tuple.TupleDescription
	header    []byte
	tuples    []*tuple.Tuple
	numSlots  int
	dirtier   primitives.TransactionID
	oldData   []byte
	mutex     sync.RWMutex
}

// SlotsPerPage is how many tuples of td fit on one page: each needs its
// serialized width plus one header bit.
func SlotsPerPage(td *tuple.TupleDescription) int {
	return (page.Size() * 8) / (td.GetSize()*8 + 1)
}

func headerSize(numSlots int) int {
	return (numSlots + 7) / 8
}

func NewEmptyHeapPage(pid primitives.PageID, td *tuple.TupleDescription) (*HeapPage, error) {
	return NewHeapPage(pid, make([]byte, page.Size()), td)
}

// NewHeapPage decodes a page image read from disk.
func NewHeapPage(pid primitives.PageID, data []byte, td *tuple.TupleDescription) (*HeapPage, error) {
	if len(data) != page.Size() {
		return nil, dberror.OutOfRange("invalid page data size: expected %d, got %d", page.Size(), len(data)).In("NewHeapPage", "HeapPage")
	}

	numSlots := SlotsPerPage(td)
	if numSlots < 1 {
		return nil, dberror.SchemaMismatch("tuple width %d does not fit a %d-byte page", td.GetSize(), page.Size())
	}

	hp := &HeapPage{
		pageID:    pid,
		tupleDesc: td,
		numSlots:  numSlots,
		header:    make([]byte, headerSize(numSlots)),
		tuples:    make([]*tuple.Tuple, numSlots),
		oldData:   make([]byte, len(data)),
	}
	if err := hp.parsePageData(data); err != nil {
		return nil, err
	}

	copy(hp.oldData, data)
	return hp, nil
}

func (hp *HeapPage) GetID() primitives.PageID {
	return hp.pageID
}

func (hp *HeapPage) GetTupleDesc() *tuple.TupleDescription {
	return hp.tupleDesc
}

func (hp *HeapPage) IsDirty() (primitives.TransactionID, bool) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.dirtier, hp.dirtier.IsValid()
}

func (hp *HeapPage) MarkDirty(dirty bool, tid primitives.TransactionID) {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	if dirty {
		hp.dirtier = tid
	} else {
		hp.dirtier = primitives.InvalidTransactionID
	}
}

func (hp *HeapPage) GetPageData() []byte {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	pageData := make([]byte, page.Size())
	copy(pageData, hp.header)

	tupleSize := hp.tupleDesc.GetSize()
	base := len(hp.header)
	for i, t := range hp.tuples {
		if t == nil {
			continue
		}
		offset := base + i*tupleSize
		buffer := bytes.NewBuffer(pageData[offset:offset])
		for j := range hp.tupleDesc.NumFields() {
			field, _ := t.GetField(j)
			_ = field.Serialize(buffer)
		}
	}
	return pageData
}

func (hp *HeapPage) GetBeforeImage() (page.Page, error) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return NewHeapPage(hp.pageID, hp.oldData, hp.tupleDesc)
}

func (hp *HeapPage) SetBeforeImage() {
	data := hp.GetPageData()

	hp.mutex.Lock()
	hp.oldData = data
	hp.mutex.Unlock()
}

// AddTuple stores t in the lowest free slot and sets its RecordID.
func (hp *HeapPage) AddTuple(t *tuple.Tuple) error {
	if !t.TupleDesc.Equals(hp.tupleDesc) {
		return dberror.SchemaMismatch("tuple schema %s does not match page schema %s", t.TupleDesc, hp.tupleDesc)
	}
	if err := validateTuple(t); err != nil {
		return err
	}

	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	for slot := range hp.numSlots {
		if hp.isSlotUsed(slot) {
			continue
		}
		hp.setSlot(slot, true)
		hp.tuples[slot] = t
		t.RecordID = tuple.NewRecordID(hp.pageID, primitives.SlotID(slot))
		return nil
	}
	return dberror.OutOfRange("no empty slot on %s", hp.pageID)
}

// DeleteTuple frees t's slot and clears its RecordID.
func (hp *HeapPage) DeleteTuple(t *tuple.Tuple) error {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	recordID := t.RecordID
	if recordID == nil {
		return dberror.InvalidTuple("tuple has no record id")
	}
	if recordID.PageID != hp.pageID {
		return dberror.InvalidTuple("tuple lives on %s, not %s", recordID.PageID, hp.pageID)
	}

	slot := int(recordID.Slot)
	if slot < 0 || slot >= hp.numSlots {
		return dberror.OutOfRange("slot %d out of range [0, %d)", slot, hp.numSlots)
	}
	if !hp.isSlotUsed(slot) {
		return dberror.InvalidTuple("slot %d is already empty", slot)
	}

	hp.setSlot(slot, false)
	hp.tuples[slot] = nil
	t.RecordID = nil
	return nil
}

// GetTuples returns the occupied slots' tuples in slot order.
func (hp *HeapPage) GetTuples() []*tuple.Tuple {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	tuples := make([]*tuple.Tuple, 0, hp.numSlots)
	for _, t := range hp.tuples {
		if t != nil {
			tuples = append(tuples, t)
		}
	}
	return tuples
}

func (hp *HeapPage) GetTupleAt(slot primitives.SlotID) (*tuple.Tuple, error) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	if int(slot) < 0 || int(slot) >= hp.numSlots {
		return nil, dberror.OutOfRange("slot %d out of range [0, %d)", slot, hp.numSlots)
	}
	return hp.tuples[slot], nil
}

func (hp *HeapPage) NumSlots() int {
	return hp.numSlots
}

func (hp *HeapPage) GetNumEmptySlots() int {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	empty := 0
	for slot := range hp.numSlots {
		if !hp.isSlotUsed(slot) {
			empty++
		}
	}
	return empty
}

func (hp *HeapPage) IsSlotUsed(slot primitives.SlotID) bool {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return int(slot) >= 0 && int(slot) < hp.numSlots && hp.isSlotUsed(int(slot))
}

func (hp *HeapPage) isSlotUsed(slot int) bool {
	return hp.header[slot/8]&(1<<(slot%8)) != 0
}

func (hp *HeapPage) setSlot(slot int, used bool) {
	if used {
		hp.header[slot/8] |= 1 << (slot % 8)
	} else {
		hp.header[slot/8] &^= 1 << (slot % 8)
	}
}

func (hp *HeapPage) parsePageData(data []byte) error {
	copy(hp.header, data[:len(hp.header)])

	tupleSize := hp.tupleDesc.GetSize()
	base := len(hp.header)
	for slot := range hp.numSlots {
		if !hp.isSlotUsed(slot) {
			continue
		}

		offset := base + slot*tupleSize
		t, err := readTuple(bytes.NewReader(data[offset:offset+tupleSize]), hp.tupleDesc)
		if err != nil {
			return errors.Wrapf(err, "read tuple at slot %d of %s", slot, hp.pageID)
		}
		t.RecordID = tuple.NewRecordID(hp.pageID, primitives.SlotID(slot))
		hp.tuples[slot] = t
	}
	return nil
}

func readTuple(reader io.Reader, td *tuple.TupleDescription) (*tuple.Tuple, error) {
	t := tuple.NewTuple(td)

	for j := range td.NumFields() {
		fieldType, err := td.TypeAtIndex(j)
		if err != nil {
			return nil, err
		}

		field, err := types.ParseField(reader, fieldType)
		if err != nil {
			return nil, err
		}

		if err := t.SetField(j, field); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// validateTuple checks that every field is set and serializes cleanly, so
// GetPageData cannot fail later.
func validateTuple(t *tuple.Tuple) error {
	var sink bytes.Buffer
	for j := range t.TupleDesc.NumFields() {
		field, err := t.GetField(j)
		if err != nil {
			return err
		}
		if field == nil {
			return dberror.InvalidTuple("field %d is not set", j)
		}
		if err := field.Serialize(&sink); err != nil {
			return err
		}
	}
	return nil
}
