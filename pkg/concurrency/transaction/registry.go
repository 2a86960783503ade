package transaction

import (
	"sync"

	"cipherdb/pkg/primitives"
)

// TransactionRegistry maps live transaction ids to their contexts.
type TransactionRegistry struct {
	contexts map[primitives.TransactionID]*TransactionContext
	mutex    sync.RWMutex
}

func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{
		contexts: make(map[primitives.TransactionID]*TransactionContext),
	}
}

// Begin allocates a fresh transaction id and registers it.
func (tr *TransactionRegistry) Begin() *TransactionContext {
	ctx := NewTransactionContext(primitives.NewTransactionID())

	tr.mutex.Lock()
	tr.contexts[ctx.ID] = ctx
	tr.mutex.Unlock()
	return ctx
}

func (tr *TransactionRegistry) Get(tid primitives.TransactionID) (*TransactionContext, bool) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	ctx, ok := tr.contexts[tid]
	return ctx, ok
}

// GetOrCreate registers ids handed out elsewhere (e.g. by NewTransactionID).
func (tr *TransactionRegistry) GetOrCreate(tid primitives.TransactionID) *TransactionContext {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if ctx, exists := tr.contexts[tid]; exists {
		return ctx
	}
	ctx := NewTransactionContext(tid)
	tr.contexts[tid] = ctx
	return ctx
}

func (tr *TransactionRegistry) Remove(tid primitives.TransactionID) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	delete(tr.contexts, tid)
}

func (tr *TransactionRegistry) GetActive() []*TransactionContext {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	active := make([]*TransactionContext, 0, len(tr.contexts))
	for _, ctx := range tr.contexts {
		if ctx.IsActive() {
			active = append(active, ctx)
		}
	}
	return active
}

func (tr *TransactionRegistry) Count() int {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	return len(tr.contexts)
}
