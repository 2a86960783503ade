package primitives

import (
	"sync"
	"testing"
)

func TestNewTransactionID_Unique(t *testing.T) {
	const n = 200
	ids := make(chan TransactionID, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- NewTransactionID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[TransactionID]bool, n)
	for id := range ids {
		if !id.IsValid() {
			t.Fatalf("got invalid id %v", id)
		}
		if seen[id] {
			t.Fatalf("duplicate transaction id %v", id)
		}
		seen[id] = true
	}
}

func TestPredicate_EvaluateCompare(t *testing.T) {
	tests := []struct {
		op   Predicate
		cmp  int
		want bool
	}{
		{Equals, 0, true},
		{Equals, 1, false},
		{LessThan, -1, true},
		{LessThan, 0, false},
		{GreaterThan, 1, true},
		{LessThanOrEqual, 0, true},
		{GreaterThanOrEqual, -1, false},
		{NotEqual, 1, true},
		{NotEqual, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := tt.op.EvaluateCompare(tt.cmp); got != tt.want {
				t.Errorf("%v.EvaluateCompare(%d) = %v, want %v", tt.op, tt.cmp, got, tt.want)
			}
		})
	}
}

func TestPermissions(t *testing.T) {
	if ReadOnly.IsExclusive() {
		t.Error("ReadOnly must not be exclusive")
	}
	if !ReadWrite.IsExclusive() {
		t.Error("ReadWrite must be exclusive")
	}
	if ReadWrite.String() != "EXCLUSIVE" {
		t.Errorf("unexpected string %q", ReadWrite.String())
	}
}
