package database

import (
	"fmt"
	"math/big"

	"cipherdb/pkg/encryption"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	"github.com/cockroachdb/errors"
)

// QueryResult is a fully drained operator tree rendered as strings.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// Execute opens it, drains it and closes it.
func (db *Database) Execute(it iterator.DbIterator) (QueryResult, error) {
	if err := it.Open(); err != nil {
		db.recordError()
		return QueryResult{}, errors.Wrap(err, "open operator")
	}
	defer it.Close()

	rows, err := iterator.Collect(it)
	if err != nil {
		db.recordError()
		return QueryResult{}, errors.Wrap(err, "execute operator")
	}
	return FormatRows(it.GetTupleDesc(), rows), nil
}

// FormatRows renders rows; unnamed columns are called col_<i>.
func FormatRows(td *tuple.TupleDescription, rows []*tuple.Tuple) QueryResult {
	numFields := td.NumFields()
	columns := make([]string, numFields)
	for i := range numFields {
		name, _ := td.GetFieldName(i)
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		columns[i] = name
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		values := make([]string, numFields)
		for i := range numFields {
			f, err := row.GetField(i)
			if err != nil || f == nil {
				values[i] = "NULL"
				continue
			}
			values[i] = f.String()
		}
		out = append(out, values)
	}
	return QueryResult{Columns: columns, Rows: out}
}

// Decrypt decrypts a ciphertext produced for the encrypted table tableID
// with the s key pair stored for it.
func (db *Database) Decrypt(tableID primitives.TableID, s scheme.Name, f types.Field) (*big.Int, error) {
	kp, err := db.keys.Load(tableID, s)
	if err != nil {
		return nil, err
	}
	return encryption.Decrypt(kp, f)
}
