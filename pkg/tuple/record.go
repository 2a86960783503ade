package tuple

import (
	"fmt"

	"cipherdb/pkg/primitives"
)

// RecordID locates a stored tuple: the page holding it and its slot.
// It is a value, resolved through the buffer pool when needed.
type RecordID struct {
	PageID primitives.PageID
	Slot   primitives.SlotID
}

func NewRecordID(pageID primitives.PageID, slot primitives.SlotID) *RecordID {
	return &RecordID{PageID: pageID, Slot: slot}
}

func (rid *RecordID) Equals(other *RecordID) bool {
	if rid == nil || other == nil {
		return rid == other
	}
	return rid.PageID == other.PageID && rid.Slot == other.Slot
}

func (rid *RecordID) String() string {
	return fmt.Sprintf("RecordID(%s, slot=%d)", rid.PageID, rid.Slot)
}
