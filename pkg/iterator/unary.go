package iterator

import (
	"cipherdb/pkg/dberror"
	"cipherdb/pkg/tuple"

	"github.com/cockroachdb/errors"
)

// UnaryOperator is the lifecycle plumbing for an operator with one child:
// it opens, rewinds and closes the child alongside its own BaseIterator.
// Embedders provide only the readNext function.
type UnaryOperator struct {
	base  *BaseIterator
	child DbIterator
}

func NewUnaryOperator(child DbIterator, readNextFunc ReadNextFunc) (*UnaryOperator, error) {
	if child == nil {
		return nil, dberror.IllegalState("child operator cannot be nil")
	}
	return &UnaryOperator{
		base:  NewBaseIterator(readNextFunc),
		child: child,
	}, nil
}

// FetchNext pulls one tuple from the child, or nil when it is exhausted.
func (u *UnaryOperator) FetchNext() (*tuple.Tuple, error) {
	hasNext, err := u.child.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, nil
	}
	return u.child.Next()
}

func (u *UnaryOperator) Open() error {
	if err := u.child.Open(); err != nil {
		return errors.Wrap(err, "open child operator")
	}
	u.base.MarkOpened()
	return nil
}

func (u *UnaryOperator) Close() error {
	err := u.child.Close()
	_ = u.base.Close()
	return err
}

// Rewind rewinds the child first, then drops the lookahead.
func (u *UnaryOperator) Rewind() error {
	if !u.base.IsOpen() {
		return dberror.IllegalState("cannot rewind a closed operator")
	}
	if err := u.child.Rewind(); err != nil {
		return err
	}
	return u.base.Rewind()
}

// GetTupleDesc passes the child's schema through.
func (u *UnaryOperator) GetTupleDesc() *tuple.TupleDescription {
	return u.child.GetTupleDesc()
}

func (u *UnaryOperator) HasNext() (bool, error)      { return u.base.HasNext() }
func (u *UnaryOperator) Next() (*tuple.Tuple, error) { return u.base.Next() }

func (u *UnaryOperator) GetChild() DbIterator {
	return u.child
}
