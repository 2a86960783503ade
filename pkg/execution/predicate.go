package execution

import (
	"fmt"

	"cipherdb/pkg/primitives"
	"cipherdb/pkg/tuple"
	"cipherdb/pkg/types"
)

// TuplePredicate decides whether a tuple passes a Filter.
type TuplePredicate interface {
	Filter(t *tuple.Tuple) (bool, error)
}

// PredicateFunc adapts a plain function to TuplePredicate.
type PredicateFunc func(t *tuple.Tuple) (bool, error)

func (f PredicateFunc) Filter(t *tuple.Tuple) (bool, error) {
	return f(t)
}

// Predicate compares one field of a tuple against a constant.
type Predicate struct {
	fieldIndex int
	op         primitives.Predicate
	operand    types.Field
}

func NewPredicate(fieldIndex int, op primitives.Predicate, operand types.Field) *Predicate {
	return &Predicate{
		fieldIndex: fieldIndex,
		op:         op,
		operand:    operand,
	}
}

// Filter evaluates "t[field] op operand". An unset field never passes.
func (p *Predicate) Filter(t *tuple.Tuple) (bool, error) {
	field, err := t.GetField(p.fieldIndex)
	if err != nil {
		return false, err
	}
	if field == nil {
		return false, nil
	}
	return field.Compare(p.op, p.operand)
}

func (p *Predicate) FieldIndex() int { return p.fieldIndex }

func (p *Predicate) Op() primitives.Predicate { return p.op }

func (p *Predicate) Operand() types.Field { return p.operand }

func (p *Predicate) String() string {
	return fmt.Sprintf("field[%d] %s %s", p.fieldIndex, p.op, p.operand)
}
