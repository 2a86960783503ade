package aggregation

import (
	"math/big"
	"strings"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/scheme/paillier"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"

	"github.com/cockroachdb/errors"
)

// EncryptedAggregate drains its child on Open and then serves one tuple per
// group: (group value, aggregate) with grouping, or exactly one (aggregate)
// tuple without. Groups come out in the order they were first seen.
type EncryptedAggregate struct {
	child        iterator.DbIterator
	aField       int
	gField       int
	kind         Kind
	modulusField int
	tupleDesc    *tuple.TupleDescription
	results      *iterator.TupleSliceIterator
}

var _ iterator.DbIterator = (*EncryptedAggregate)(nil)

// NewEncryptedAggregate aggregates column aField of child, grouped by gField
// (or NoGrouping). HOM_SUM needs child rows to carry the PAILLIER_MODULUS
// column of an encrypted table.
func NewEncryptedAggregate(child iterator.DbIterator, aField, gField int, kind Kind) (*EncryptedAggregate, error) {
	if child == nil {
		return nil, dberror.IllegalState("child iterator cannot be nil").In("NewEncryptedAggregate", "aggregation")
	}

	src := child.GetTupleDesc()
	aType, err := src.TypeAtIndex(aField)
	if err != nil {
		return nil, dberror.OutOfRange("invalid aggregate field index %d", aField)
	}
	if kind.needsIntegers() && !aType.IsInteger() {
		return nil, dberror.UnsupportedFieldType("%s needs an integer ciphertext column, field %d is %s", kind, aField, aType)
	}

	agg := &EncryptedAggregate{
		child:        child,
		aField:       aField,
		gField:       gField,
		kind:         kind,
		modulusField: -1,
	}

	if kind == HomSum {
		agg.modulusField = findColumn(src, paillier.ModulusColumn)
		if agg.modulusField < 0 {
			return nil, dberror.SchemaMismatch("HOM_SUM input has no %s column", paillier.ModulusColumn).
				WithHint("aggregate a scan of an encrypted table")
		}
	}

	if gField == NoGrouping {
		agg.tupleDesc, err = tuple.NewTupleDesc([]types.Type{kind.resultType()}, []string{kind.String()})
	} else {
		gType, typeErr := src.TypeAtIndex(gField)
		if typeErr != nil {
			return nil, dberror.OutOfRange("invalid group field index %d", gField)
		}
		agg.tupleDesc, err = tuple.NewTupleDesc([]types.Type{gType, kind.resultType()}, []string{"group", kind.String()})
	}
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// findColumn matches name exactly or as the suffix of an aliased
// "<alias>.<name>" column.
func findColumn(td *tuple.TupleDescription, name string) int {
	for i := range td.NumFields() {
		fieldName, _ := td.GetFieldName(i)
		if fieldName == name || strings.HasSuffix(fieldName, "."+name) {
			return i
		}
	}
	return -1
}

type group struct {
	value types.Field
	acc   accumulator
}

func (agg *EncryptedAggregate) Open() error {
	if agg.results != nil {
		return dberror.IllegalState("aggregate already opened")
	}
	if err := agg.child.Open(); err != nil {
		return errors.Wrap(err, "open aggregate input")
	}

	groups := make(map[string]*group)
	var order []string
	if agg.gField == NoGrouping {
		groups[""] = &group{acc: newAccumulator(agg.kind)}
		order = append(order, "")
	}

	err := iterator.ForEach(agg.child, func(t *tuple.Tuple) error {
		g, err := agg.groupOf(t, groups, &order)
		if err != nil {
			return err
		}
		return agg.merge(g, t)
	})
	if err != nil {
		return errors.Wrapf(err, "compute %s", agg.kind)
	}

	rows := make([]*tuple.Tuple, 0, len(order))
	for _, key := range order {
		row, err := agg.resultRow(groups[key])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	agg.results = iterator.NewTupleSliceIterator(agg.tupleDesc, rows)
	return agg.results.Open()
}

// resultRow builds the output tuple of g. An aggregate with no value, such
// as OPE_MAX over empty input, stays unset and prints as null.
func (agg *EncryptedAggregate) resultRow(g *group) (*tuple.Tuple, error) {
	row := tuple.NewTuple(agg.tupleDesc)
	col := 0
	if agg.gField != NoGrouping {
		if err := row.SetField(0, g.value); err != nil {
			return nil, err
		}
		col = 1
	}
	if value, ok := g.acc.result(); ok {
		if err := row.SetField(col, value); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (agg *EncryptedAggregate) groupOf(t *tuple.Tuple, groups map[string]*group, order *[]string) (*group, error) {
	if agg.gField == NoGrouping {
		return groups[""], nil
	}

	value, err := t.GetField(agg.gField)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, dberror.InvalidTuple("group field %d is unset", agg.gField)
	}
	key := value.Type().String() + ":" + value.String()
	g, ok := groups[key]
	if !ok {
		g = &group{value: value, acc: newAccumulator(agg.kind)}
		groups[key] = g
		*order = append(*order, key)
	}
	return g, nil
}

func (agg *EncryptedAggregate) merge(g *group, t *tuple.Tuple) error {
	value, err := t.GetField(agg.aField)
	if err != nil {
		return err
	}
	if value == nil {
		return dberror.InvalidTuple("aggregate field %d is unset", agg.aField)
	}

	var modulus *big.Int
	if agg.modulusField >= 0 {
		f, err := t.GetField(agg.modulusField)
		if err != nil {
			return err
		}
		modulus, _ = types.IntegerValue(f)
	}
	return g.acc.add(value, modulus)
}

func (agg *EncryptedAggregate) opened() error {
	if agg.results == nil {
		return dberror.IllegalState("aggregate not opened")
	}
	return nil
}

func (agg *EncryptedAggregate) HasNext() (bool, error) {
	if err := agg.opened(); err != nil {
		return false, err
	}
	return agg.results.HasNext()
}

func (agg *EncryptedAggregate) Next() (*tuple.Tuple, error) {
	if err := agg.opened(); err != nil {
		return nil, err
	}
	return agg.results.Next()
}

// Rewind replays the computed results; the child is not read again.
func (agg *EncryptedAggregate) Rewind() error {
	if err := agg.opened(); err != nil {
		return err
	}
	return agg.results.Rewind()
}

func (agg *EncryptedAggregate) Close() error {
	if agg.results != nil {
		_ = agg.results.Close()
		agg.results = nil
	}
	return agg.child.Close()
}

func (agg *EncryptedAggregate) GetTupleDesc() *tuple.TupleDescription {
	return agg.tupleDesc
}

func (agg *EncryptedAggregate) Kind() Kind {
	return agg.kind
}
