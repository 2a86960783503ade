package encryption

import (
	"errors"
	"math/big"

	"cipherdb/pkg/config"
	"cipherdb/pkg/dberror"
	"cipherdb/pkg/execution"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/keystore"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/scheme/paillier"
	"cipherdb/pkg/storage/heap"
	"cipherdb/pkg/storage/page"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	cerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// OutputSuffix is appended to the source file path to name the output file.
const OutputSuffix = "_enc"

// Registry is the part of the catalog the transformation writes to.
type Registry interface {
	AddTable(f page.DbFile, name string) error
	RemoveTable(id primitives.TableID) error
}

// Pool is the buffer pool as seen by the transformation.
type Pool interface {
	heap.PageProvider
	InsertTuple(tid primitives.TransactionID, tableID primitives.TableID, t *tuple.Tuple) error
	DiscardTable(tableID primitives.TableID)
}

// Transformer produces encrypted copies of heap files. It holds no state of
// its own between runs; every collaborator is passed in.
type Transformer struct {
	registry Registry
	pool     Pool
	keys     keystore.Store
	crypto   config.CryptoConfig
}

func NewTransformer(registry Registry, pool Pool, keys keystore.Store, crypto config.CryptoConfig) *Transformer {
	return &Transformer{
		registry: registry,
		pool:     pool,
		keys:     keys,
		crypto:   crypto,
	}
}

// rowEncrypter turns one source row into one output row.
type rowEncrypter struct {
	pairs   []scheme.KeyPair
	public  *paillier.PublicKey
	outDesc *tuple.TupleDescription
}

func newRowEncrypter(pairs scheme.KeyPairs, outDesc *tuple.TupleDescription) (*rowEncrypter, error) {
	ordered := make([]scheme.KeyPair, 0, len(scheme.All))
	for _, name := range scheme.All {
		kp, err := pairs.Get(name)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, kp)
	}

	pk, ok := pairs[scheme.Paillier].(*paillier.KeyPair)
	if !ok {
		return nil, dberror.IllegalState("%s key pair has type %T, want *paillier.KeyPair",
			scheme.Paillier, pairs[scheme.Paillier])
	}

	return &rowEncrypter{pairs: ordered, public: pk.Public, outDesc: outDesc}, nil
}

func (re *rowEncrypter) encrypt(src *tuple.Tuple) (*tuple.Tuple, error) {
	n := src.TupleDesc.NumFields()
	plain := make([]*big.Int, n)
	for i := range n {
		f, err := src.GetField(i)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, dberror.InvalidTuple("field %d of the source row is unset", i)
		}
		v, ok := types.IntegerValue(f)
		if !ok {
			return nil, dberror.UnsupportedFieldType("field %d holds %s, not an integer", i, f.Type())
		}
		plain[i] = v
	}

	out := tuple.NewTuple(re.outDesc)
	col := 0
	for _, kp := range re.pairs {
		for i, m := range plain {
			c, err := kp.Encrypt(m)
			if err != nil {
				return nil, cerrors.Wrapf(err, "encrypt column %d with %s", i, kp.Scheme())
			}
			if err := out.SetField(col, types.NewBigIntField(c)); err != nil {
				return nil, err
			}
			col++
		}
	}

	if err := out.SetField(col, types.NewBigIntField(re.public.N)); err != nil {
		return nil, err
	}
	if err := out.SetField(col+1, types.NewBigIntField(re.public.G)); err != nil {
		return nil, err
	}
	return out, nil
}

// Encrypt drains one scan of src under tid and writes the encrypted rows to
// a new table at "<src path>_enc", registered under a generated name.
// Schemes missing from keyPairs (or all of them, when it is nil) get fresh
// key pairs. Every pair used is saved under the new table's id.
//
// Any failure discards the output table and its file; the caller should then
// abort tid.
func (tr *Transformer) Encrypt(tid primitives.TransactionID, src *heap.HeapFile, keyPairs scheme.KeyPairs) (*EncryptedFile, error) {
	outDesc, err := EncryptedSchema(src.GetTupleDesc())
	if err != nil {
		return nil, err
	}

	pairs, err := completeKeyPairs(keyPairs, tr.crypto)
	if err != nil {
		return nil, err
	}
	rows, err := newRowEncrypter(pairs, outDesc)
	if err != nil {
		return nil, err
	}

	outPath := src.FilePath().WithSuffix(OutputSuffix)
	out, err := tr.createOutput(outPath, outDesc)
	if err != nil {
		return nil, err
	}
	name := uuid.NewString()
	log := logging.WithTableTx(tid, out.GetID()).With("name", name, "source", src.FilePath().Base())

	fail := func(cause error) (*EncryptedFile, error) {
		tr.discardOutput(out)
		log.Warn("encryption failed, output discarded", "error", cause)
		return nil, cause
	}

	if err := tr.registry.AddTable(out, name); err != nil {
		_ = out.Close()
		_ = outPath.Remove()
		return nil, err
	}
	if _, err := out.AppendEmptyPage(); err != nil {
		return fail(err)
	}

	count, err := tr.copyRows(tid, src, out.GetID(), rows)
	if err != nil {
		return fail(err)
	}

	for _, s := range scheme.All {
		if err := tr.keys.Save(out.GetID(), pairs[s]); err != nil {
			return fail(cerrors.Wrapf(err, "persist %s key pair", s))
		}
	}

	log.Info("table encrypted", "rows", count, "columns", outDesc.NumFields())
	return &EncryptedFile{HeapFile: out, Name: name, Source: src.GetTupleDesc()}, nil
}

// createOutput opens an empty output file. A table left registered at the
// same path by an earlier run is dropped first.
func (tr *Transformer) createOutput(path primitives.Filepath, desc *tuple.TupleDescription) (*heap.HeapFile, error) {
	out, err := heap.NewHeapFile(path, desc, tr.pool)
	if err != nil {
		return nil, err
	}

	if err := tr.registry.RemoveTable(out.GetID()); err != nil && !errors.Is(err, dberror.ErrNotFound) {
		_ = out.Close()
		return nil, err
	}
	tr.pool.DiscardTable(out.GetID())

	if err := out.Truncate(); err != nil {
		_ = out.Close()
		return nil, err
	}
	return out, nil
}

func (tr *Transformer) copyRows(tid primitives.TransactionID, src *heap.HeapFile, outID primitives.TableID, rows *rowEncrypter) (int, error) {
	scan := execution.NewSeqScan(tid, src, "")
	if err := scan.Open(); err != nil {
		return 0, err
	}
	defer scan.Close()

	count := 0
	err := iterator.ForEach(scan, func(t *tuple.Tuple) error {
		enc, err := rows.encrypt(t)
		if err != nil {
			return err
		}
		if err := tr.pool.InsertTuple(tid, outID, enc); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (tr *Transformer) discardOutput(out *heap.HeapFile) {
	id := out.GetID()
	if err := tr.registry.RemoveTable(id); err != nil {
		_ = out.Close()
	}
	tr.pool.DiscardTable(id)
	if err := tr.keys.Delete(id); err != nil {
		logging.WithTable(id).Warn("could not delete saved key pairs", "error", err)
	}
	if err := out.FilePath().Remove(); err != nil {
		logging.WithTable(id).Warn("could not remove output file", "error", err)
	}
}
