package keystore

import (
	"bytes"
	"strconv"
	"time"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/scheme"

	"github.com/boltdb/bolt"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
)

var bucketKeyPairs = []byte("keypairs")

// Options configure a BoltStore.
type Options struct {
	// CacheEntries bounds the decoded key pairs kept in memory. Zero
	// disables the cache.
	CacheEntries int64
	// OpenTimeout bounds the wait for bolt's file lock.
	OpenTimeout time.Duration
}

// BoltStore keeps one record per (table, scheme) in a bolt bucket. Record
// values are scheme.Marshal envelopes.
type BoltStore struct {
	db    *bolt.DB
	cache *ristretto.Cache[string, scheme.KeyPair]
}

var _ Store = (*BoltStore)(nil)

func OpenBoltStore(path string, opts Options) (*BoltStore, error) {
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, dberror.StorageIO(err, "open keystore %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKeyPairs); err != nil {
			return errors.Wrap(err, "create bucket")
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, dberror.StorageIO(err, "initialise keystore %s", path)
	}

	store := &BoltStore{db: db}
	if opts.CacheEntries > 0 {
		store.cache, err = ristretto.NewCache(&ristretto.Config[string, scheme.KeyPair]{
			NumCounters: opts.CacheEntries * 10,
			MaxCost:     opts.CacheEntries,
			BufferItems: 64,
		})
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create keystore cache")
		}
	}

	logging.WithComponent("keystore").Info("keystore opened", "path", path, "cache_entries", opts.CacheEntries)
	return store, nil
}

func recordKey(tableID primitives.TableID, name scheme.Name) []byte {
	return []byte(tablePrefix(tableID) + string(name))
}

func tablePrefix(tableID primitives.TableID) string {
	return strconv.FormatUint(uint64(tableID), 10) + "/"
}

// Save overwrites any pair already stored for the same table and scheme.
func (s *BoltStore) Save(tableID primitives.TableID, kp scheme.KeyPair) error {
	data, err := scheme.Marshal(kp)
	if err != nil {
		return err
	}

	key := recordKey(tableID, kp.Scheme())
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeyPairs).Put(key, data)
	})
	if err != nil {
		return dberror.StorageIO(err, "save %s key pair for table %d", kp.Scheme(), tableID)
	}

	if s.cache != nil {
		s.cache.Set(string(key), kp, 1)
		s.cache.Wait()
	}
	logging.WithTable(tableID).Debug("key pair saved", "scheme", string(kp.Scheme()))
	return nil
}

// Load returns NotFound when no pair was saved for tableID and name.
func (s *BoltStore) Load(tableID primitives.TableID, name scheme.Name) (scheme.KeyPair, error) {
	key := recordKey(tableID, name)
	if s.cache != nil {
		if kp, ok := s.cache.Get(string(key)); ok {
			return kp, nil
		}
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value = cloneBytes(tx.Bucket(bucketKeyPairs).Get(key))
		return nil
	})
	if err != nil {
		return nil, dberror.StorageIO(err, "load %s key pair for table %d", name, tableID)
	}
	if value == nil {
		return nil, dberror.NotFound("no %s key pair stored for table %d", name, tableID)
	}

	kp, err := scheme.Unmarshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s key pair for table %d", name, tableID)
	}
	if s.cache != nil {
		s.cache.Set(string(key), kp, 1)
	}
	return kp, nil
}

// LoadAll returns every pair stored for tableID; the map is empty, not an
// error, when there are none.
func (s *BoltStore) LoadAll(tableID primitives.TableID) (scheme.KeyPairs, error) {
	prefix := []byte(tablePrefix(tableID))
	var records [][]byte

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKeyPairs).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			records = append(records, cloneBytes(v))
		}
		return nil
	})
	if err != nil {
		return nil, dberror.StorageIO(err, "load key pairs for table %d", tableID)
	}

	pairs := make(scheme.KeyPairs, len(records))
	for _, data := range records {
		kp, err := scheme.Unmarshal(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode key pair for table %d", tableID)
		}
		pairs[kp.Scheme()] = kp
	}
	return pairs, nil
}

// Delete removes every pair stored for tableID.
func (s *BoltStore) Delete(tableID primitives.TableID) error {
	prefix := []byte(tablePrefix(tableID))
	var removed []string

	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKeyPairs).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			removed = append(removed, string(k))
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dberror.StorageIO(err, "delete key pairs for table %d", tableID)
	}

	if s.cache != nil {
		for _, key := range removed {
			s.cache.Del(key)
		}
	}
	return nil
}

func (s *BoltStore) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	if err := s.db.Close(); err != nil {
		return dberror.StorageIO(err, "close keystore")
	}
	return nil
}

func cloneBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
