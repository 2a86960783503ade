// Package lock implements page-level two-phase locking.
//
// A transaction acquires Shared locks to read pages and Exclusive locks to
// write them, and keeps every lock until it commits or aborts. The single
// exception is [LockManager.UnlockPage], used by the heap file's insert scan
// to drop a lock it took only to inspect a full page.
//
// A Shared lock may be upgraded to Exclusive when the requester is the page's
// only holder. Exclusive locks are never downgraded.
//
// # Components
//
//   - [LockTable] tracks which pages each transaction holds and which
//     transactions hold each page.
//   - [LockGrantor] decides whether a request can be granted or upgraded now.
//   - [DependencyGraph] is the wait-for graph. An edge A→B means A waits for a
//     page B holds; a cycle is a deadlock.
//   - [LockManager] ties them together.
//
// # Acquisition
//
// [LockManager.LockPage] grants immediately when it can. Otherwise it records
// wait-for edges, checks the graph for a cycle (aborting the requester if one
// exists) and sleeps with exponential backoff before retrying. A request that
// is still waiting after the configured timeout also aborts. Both outcomes
// surface as dberror.ErrTransactionAbort: the caller must roll back and rerun
// the whole transaction. [LockManager.TryLockPage] never waits and reports
// dberror.ErrLockConflict instead.
package lock
