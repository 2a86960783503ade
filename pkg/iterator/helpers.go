package iterator

import "cipherdb/pkg/tuple"

// Iterate drives iter until it is exhausted, fn returns false, or an error
// occurs. iter must already be open.
func Iterate(iter TupleIterator, fn func(*tuple.Tuple) (bool, error)) error {
	for {
		hasNext, err := iter.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			return nil
		}

		t, err := iter.Next()
		if err != nil {
			return err
		}

		more, err := fn(t)
		if err != nil || !more {
			return err
		}
	}
}

func ForEach(iter TupleIterator, fn func(*tuple.Tuple) error) error {
	return Iterate(iter, func(t *tuple.Tuple) (bool, error) {
		return true, fn(t)
	})
}

// Collect drains iter into memory.
func Collect(iter TupleIterator) ([]*tuple.Tuple, error) {
	var results []*tuple.Tuple
	err := ForEach(iter, func(t *tuple.Tuple) error {
		results = append(results, t)
		return nil
	})
	return results, err
}

func Take(iter TupleIterator, n int) ([]*tuple.Tuple, error) {
	if n <= 0 {
		return nil, nil
	}
	results := make([]*tuple.Tuple, 0, n)
	err := Iterate(iter, func(t *tuple.Tuple) (bool, error) {
		results = append(results, t)
		return len(results) < n, nil
	})
	return results, err
}

func Count(iter TupleIterator) (int, error) {
	n := 0
	err := ForEach(iter, func(*tuple.Tuple) error {
		n++
		return nil
	})
	return n, err
}
