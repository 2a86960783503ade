// Package execution holds the query operators that sit between table scans
// and callers: SeqScan feeds tuples from a heap file, Filter drops tuples a
// predicate rejects. Every operator implements iterator.DbIterator and pulls
// from its child one tuple at a time.
//
// Encrypted aggregation lives in the aggregation sub-package.
package execution
