// Package catalog tracks the tables known to a database instance.
package catalog

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/page"
	"cipherdb/pkg/tuple"
)

// TableInfo pairs a table's backing file with the name it is registered under.
type TableInfo struct {
	File page.DbFile
	Name string
}

func (ti *TableInfo) GetID() primitives.TableID {
	return ti.File.GetID()
}

// Catalog maps table ids and names to their files. Names and ids are kept
// in lock step: registering either one again replaces the old entry.
type Catalog struct {
	nameToTable map[string]*TableInfo
	idToTable   map[primitives.TableID]*TableInfo
	mutex       sync.RWMutex
}

func NewCatalog() *Catalog {
	return &Catalog{
		nameToTable: make(map[string]*TableInfo),
		idToTable:   make(map[primitives.TableID]*TableInfo),
	}
}

// AddTable registers f under name. A table already registered under the
// same name or the same id is replaced (its file is left open).
func (c *Catalog) AddTable(f page.DbFile, name string) error {
	if f == nil {
		return dberror.IllegalState("file cannot be nil").In("AddTable", "Catalog")
	}
	if strings.TrimSpace(name) == "" {
		return dberror.IllegalState("table name cannot be empty").In("AddTable", "Catalog")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	id := f.GetID()
	if existing, ok := c.nameToTable[name]; ok {
		delete(c.idToTable, existing.GetID())
	}
	if existing, ok := c.idToTable[id]; ok {
		delete(c.nameToTable, existing.Name)
	}

	info := &TableInfo{File: f, Name: name}
	c.nameToTable[name] = info
	c.idToTable[id] = info

	logging.WithTable(id).Debug("table registered", "name", name)
	return nil
}

func (c *Catalog) lookup(id primitives.TableID) (*TableInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	info, ok := c.idToTable[id]
	if !ok {
		return nil, dberror.NotFound("no table with id %d", uint64(id))
	}
	return info, nil
}

func (c *Catalog) GetDbFile(id primitives.TableID) (page.DbFile, error) {
	info, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return info.File, nil
}

func (c *Catalog) GetTupleDesc(id primitives.TableID) (*tuple.TupleDescription, error) {
	info, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return info.File.GetTupleDesc(), nil
}

func (c *Catalog) TableName(id primitives.TableID) (string, error) {
	info, err := c.lookup(id)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

func (c *Catalog) GetTableID(name string) (primitives.TableID, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	info, ok := c.nameToTable[name]
	if !ok {
		return 0, dberror.NotFound("table %q not found", name)
	}
	return info.GetID(), nil
}

func (c *Catalog) TableExists(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.nameToTable[name]
	return ok
}

// RemoveTable unregisters the table with the given id and closes its file.
func (c *Catalog) RemoveTable(id primitives.TableID) error {
	c.mutex.Lock()
	info, ok := c.idToTable[id]
	if ok {
		delete(c.idToTable, id)
		delete(c.nameToTable, info.Name)
	}
	c.mutex.Unlock()

	if !ok {
		return dberror.NotFound("no table with id %d", uint64(id))
	}
	if err := info.File.Close(); err != nil {
		logging.WithTable(id).Warn("failed to close table file", "name", info.Name, "error", err)
	}
	return nil
}

// TableIDs lists registered ids in ascending order.
func (c *Catalog) TableIDs() []primitives.TableID {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return slices.Sorted(maps.Keys(c.idToTable))
}

func (c *Catalog) TableNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return slices.Sorted(maps.Keys(c.nameToTable))
}

// Clear closes every registered file and empties the catalog.
func (c *Catalog) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for id, info := range c.idToTable {
		if err := info.File.Close(); err != nil {
			logging.WithTable(id).Warn("failed to close table file", "name", info.Name, "error", err)
		}
	}
	clear(c.nameToTable)
	clear(c.idToTable)
}

// ValidateIntegrity checks that the name and id indexes agree.
func (c *Catalog) ValidateIntegrity() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if len(c.nameToTable) != len(c.idToTable) {
		return dberror.IllegalState("catalog index size mismatch: %d names, %d ids", len(c.nameToTable), len(c.idToTable))
	}
	for name, info := range c.nameToTable {
		if c.idToTable[info.GetID()] != info {
			return dberror.IllegalState("table %q missing from id index", name)
		}
	}
	return nil
}
