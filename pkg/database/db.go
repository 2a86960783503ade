// Package database wires configuration, logging, the catalog, the buffer
// pool, the keystore and the encryption transformer into one handle.
package database

import (
	"context"
	"errors"
	"sync"

	"cipherdb/pkg/catalog"
	"cipherdb/pkg/concurrency/lock"
	"cipherdb/pkg/concurrency/transaction"
	"cipherdb/pkg/config"
	"cipherdb/pkg/dberror"
	"cipherdb/pkg/encryption"
	"cipherdb/pkg/execution"
	"cipherdb/pkg/keystore"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/memory"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/storage/heap"
	"cipherdb/pkg/storage/page"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	cerrors "github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Database is the engine handle. All collaborators are owned by it and
// released by Close.
type Database struct {
	cfg         *config.Config
	catalog     *catalog.Catalog
	pool        *memory.BufferPool
	keys        *keystore.BoltStore
	transformer *encryption.Transformer

	mutex  sync.RWMutex
	closed bool
	stats  *DatabaseStats
}

// DatabaseStats tracks transaction outcomes
type DatabaseStats struct {
	TransactionsCount int64
	CommitCount       int64
	AbortCount        int64
	ErrorCount        int64
	mutex             sync.RWMutex
}

// DatabaseInfo contains database metadata
type DatabaseInfo struct {
	Tables             []string
	TableCount         int
	TransactionsCount  int64
	CommitCount        int64
	AbortCount         int64
	ErrorCount         int64
	CachedPages        int
	ActiveTransactions int
}

// Options carry what cannot come from the configuration file.
type Options struct {
	// Registerer receives the buffer-pool metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// Open builds a database from cfg (the defaults when nil).
func Open(cfg *config.Config) (*Database, error) {
	return OpenWithOptions(cfg, Options{})
}

func OpenWithOptions(cfg *config.Config, opts Options) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Wrap(err, "invalid configuration")
	}

	if err := logging.Init(cfg.LoggingConfig()); err != nil && !errors.Is(err, logging.ErrAlreadyInitialized) {
		return nil, cerrors.Wrap(err, "initialise logging")
	}
	page.SetSize(cfg.Storage.PageSize)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	keys, err := keystore.OpenBoltStore(cfg.KeyStore.Path, keystore.Options{CacheEntries: cfg.KeyStore.CacheEntries})
	if err != nil {
		return nil, err
	}

	cat := catalog.NewCatalog()
	pool := memory.NewBufferPool(cat, memory.Options{
		MaxPages: cfg.Storage.BufferPoolPages,
		Lock: lock.Options{
			Timeout:    cfg.Lock.Timeout.Duration,
			MaxBackoff: cfg.Lock.MaxBackoff.Duration,
		},
		Registerer: opts.Registerer,
	})

	db := &Database{
		cfg:         cfg,
		catalog:     cat,
		pool:        pool,
		keys:        keys,
		transformer: encryption.NewTransformer(cat, pool, keys, cfg.Crypto),
		stats:       &DatabaseStats{},
	}

	if opts.Registerer != nil {
		if err := opts.Registerer.Register(newStatsCollector(db)); err != nil {
			_ = db.Close()
			return nil, cerrors.Wrap(err, "register database metrics")
		}
	}

	logging.WithComponent("database").Info("database opened",
		"data_dir", cfg.Storage.DataDir, "page_size", cfg.Storage.PageSize, "buffer_pool_pages", cfg.Storage.BufferPoolPages)
	return db, nil
}

func (db *Database) checkOpen() error {
	if db.closed {
		return dberror.IllegalState("database is closed")
	}
	return nil
}

// CreateTable makes an empty table in the data directory. An existing file
// of the same name is emptied.
func (db *Database) CreateTable(name string, td *tuple.TupleDescription) (*heap.HeapFile, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if db.catalog.TableExists(name) {
		return nil, dberror.IllegalState("table %q already exists", name)
	}

	hf, err := heap.NewHeapFile(primitives.Filepath(db.cfg.TablePath(name)), td, db.pool)
	if err != nil {
		return nil, err
	}
	if err := hf.Truncate(); err != nil {
		_ = hf.Close()
		return nil, err
	}
	if err := db.catalog.AddTable(hf, name); err != nil {
		_ = hf.Close()
		return nil, err
	}
	return hf, nil
}

// OpenTable registers an existing heap file under name.
func (db *Database) OpenTable(name string, path primitives.Filepath, td *tuple.TupleDescription) (*heap.HeapFile, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if !path.Exists() {
		return nil, dberror.NotFound("table file %s does not exist", path)
	}

	hf, err := heap.NewHeapFile(path, td, db.pool)
	if err != nil {
		return nil, err
	}
	if err := db.catalog.AddTable(hf, name); err != nil {
		_ = hf.Close()
		return nil, err
	}
	return hf, nil
}

// Table looks a registered table up by name.
func (db *Database) Table(name string) (*heap.HeapFile, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	id, err := db.catalog.GetTableID(name)
	if err != nil {
		return nil, err
	}
	f, err := db.catalog.GetDbFile(id)
	if err != nil {
		return nil, err
	}
	hf, ok := f.(*heap.HeapFile)
	if !ok {
		return nil, dberror.IllegalState("table %q is a %T, not a heap file", name, f)
	}
	return hf, nil
}

// Insert adds one row built from values to the named table.
func (db *Database) Insert(tid primitives.TransactionID, name string, values ...types.Field) error {
	hf, err := db.Table(name)
	if err != nil {
		return err
	}
	t, err := tuple.FromFields(hf.GetTupleDesc(), values...)
	if err != nil {
		return err
	}
	return db.pool.InsertTuple(tid, hf.GetID(), t)
}

// Scan returns an unopened sequential scan of the named table.
func (db *Database) Scan(tid primitives.TransactionID, name, alias string) (*execution.SeqScan, error) {
	hf, err := db.Table(name)
	if err != nil {
		return nil, err
	}
	return execution.NewSeqScan(tid, hf, alias), nil
}

// EncryptTable encrypts the named table under tid. See
// encryption.Transformer.Encrypt for how keyPairs is used.
func (db *Database) EncryptTable(tid primitives.TransactionID, name string, keyPairs scheme.KeyPairs) (*encryption.EncryptedFile, error) {
	src, err := db.Table(name)
	if err != nil {
		return nil, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	enc, err := db.transformer.Encrypt(tid, src, keyPairs)
	if err != nil {
		db.recordError()
		return nil, err
	}
	return enc, nil
}

func (db *Database) Begin() primitives.TransactionID {
	db.stats.mutex.Lock()
	db.stats.TransactionsCount++
	db.stats.mutex.Unlock()
	return db.pool.BeginTransaction()
}

func (db *Database) Commit(tid primitives.TransactionID) error {
	if err := db.pool.CommitTransaction(tid); err != nil {
		db.recordError()
		return err
	}
	db.stats.mutex.Lock()
	db.stats.CommitCount++
	db.stats.mutex.Unlock()
	return nil
}

func (db *Database) Abort(tid primitives.TransactionID) error {
	db.stats.mutex.Lock()
	db.stats.AbortCount++
	db.stats.mutex.Unlock()
	return db.pool.AbortTransaction(tid)
}

// Run executes fn in a transaction, rerunning it from scratch while it fails
// with a retryable concurrency error.
func (db *Database) Run(ctx context.Context, fn func(tid primitives.TransactionID) error) error {
	err := transaction.Run(ctx, db.pool, transaction.DefaultRetryOptions, fn)
	if err != nil {
		db.recordError()
	}
	return err
}

func (db *Database) recordError() {
	db.stats.mutex.Lock()
	db.stats.ErrorCount++
	db.stats.mutex.Unlock()
}

func (db *Database) KeyStore() keystore.Store {
	return db.keys
}

func (db *Database) Catalog() *catalog.Catalog {
	return db.catalog
}

func (db *Database) BufferPool() *memory.BufferPool {
	return db.pool
}

// GetStatistics returns current database statistics
func (db *Database) GetStatistics() DatabaseInfo {
	db.stats.mutex.RLock()
	defer db.stats.mutex.RUnlock()

	tables := db.catalog.TableNames()
	return DatabaseInfo{
		Tables:             tables,
		TableCount:         len(tables),
		TransactionsCount:  db.stats.TransactionsCount,
		CommitCount:        db.stats.CommitCount,
		AbortCount:         db.stats.AbortCount,
		ErrorCount:         db.stats.ErrorCount,
		CachedPages:        db.pool.NumCachedPages(),
		ActiveTransactions: db.pool.ActiveTransactions(),
	}
}

// Close aborts unfinished transactions, flushes the buffer pool and closes
// every file. It is safe to call more than once.
func (db *Database) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var errs error
	if err := db.pool.Close(); err != nil {
		errs = errors.Join(errs, cerrors.Wrap(err, "close buffer pool"))
	}
	db.catalog.Clear()
	if err := db.keys.Close(); err != nil {
		errs = errors.Join(errs, err)
	}

	logging.WithComponent("database").Info("database closed")
	return errs
}
