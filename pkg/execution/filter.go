package execution

import (
	"cipherdb/pkg/dberror"
	"cipherdb/pkg/iterator"
	"cipherdb/pkg/tuple"

	"github.com/cockroachdb/errors"
)

// Filter passes through the child's tuples that satisfy a predicate. Its
// schema is the child's.
type Filter struct {
	*iterator.UnaryOperator
	predicate TuplePredicate
}

func NewFilter(predicate TuplePredicate, child iterator.DbIterator) (*Filter, error) {
	if predicate == nil {
		return nil, dberror.IllegalState("predicate cannot be nil")
	}

	f := &Filter{predicate: predicate}
	op, err := iterator.NewUnaryOperator(child, f.readNext)
	if err != nil {
		return nil, err
	}
	f.UnaryOperator = op
	return f, nil
}

func (f *Filter) readNext() (*tuple.Tuple, error) {
	for {
		t, err := f.FetchNext()
		if err != nil || t == nil {
			return nil, err
		}

		passes, err := f.predicate.Filter(t)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate filter predicate")
		}
		if passes {
			return t, nil
		}
	}
}
