package lock

import (
	"cipherdb/pkg/primitives"
)

// DependencyGraph is the wait-for graph between transactions. It is guarded
// by the LockManager's mutex.
type DependencyGraph struct {
	edges map[primitives.TransactionID]map[primitives.TransactionID]bool
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		edges: make(map[primitives.TransactionID]map[primitives.TransactionID]bool),
	}
}

// AddEdge records that waiter waits for holder.
func (dg *DependencyGraph) AddEdge(waiter, holder primitives.TransactionID) {
	if dg.edges[waiter] == nil {
		dg.edges[waiter] = make(map[primitives.TransactionID]bool)
	}
	dg.edges[waiter][holder] = true
}

// RemoveWaiter drops waiter's outgoing edges; it has stopped waiting.
func (dg *DependencyGraph) RemoveWaiter(waiter primitives.TransactionID) {
	delete(dg.edges, waiter)
}

// RemoveTransaction drops every edge touching tid.
func (dg *DependencyGraph) RemoveTransaction(tid primitives.TransactionID) {
	delete(dg.edges, tid)
	for waiter, holders := range dg.edges {
		delete(holders, tid)
		if len(holders) == 0 {
			delete(dg.edges, waiter)
		}
	}
}

// HasCycleFrom reports whether a cycle is reachable from start.
func (dg *DependencyGraph) HasCycleFrom(start primitives.TransactionID) bool {
	visited := make(map[primitives.TransactionID]bool)
	onStack := make(map[primitives.TransactionID]bool)
	return dg.hasCycleDFS(start, visited, onStack)
}

// HasCycle checks the whole graph.
func (dg *DependencyGraph) HasCycle() bool {
	visited := make(map[primitives.TransactionID]bool)
	onStack := make(map[primitives.TransactionID]bool)
	for tid := range dg.edges {
		if !visited[tid] && dg.hasCycleDFS(tid, visited, onStack) {
			return true
		}
	}
	return false
}

func (dg *DependencyGraph) hasCycleDFS(tid primitives.TransactionID, visited, onStack map[primitives.TransactionID]bool) bool {
	visited[tid] = true
	onStack[tid] = true

	for neighbor := range dg.edges[tid] {
		if onStack[neighbor] {
			return true
		}
		if !visited[neighbor] && dg.hasCycleDFS(neighbor, visited, onStack) {
			return true
		}
	}

	onStack[tid] = false
	return false
}

func (dg *DependencyGraph) GetWaitingTransactions() []primitives.TransactionID {
	waiters := make([]primitives.TransactionID, 0, len(dg.edges))
	for tid := range dg.edges {
		waiters = append(waiters, tid)
	}
	return waiters
}
