package aggregation

import (
	"math/big"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/types"
)

// accumulator folds the aggregated column of one group.
type accumulator interface {
	// add folds in value v; modulus is the row's Paillier N (nil when the
	// kind does not need it).
	add(v types.Field, modulus *big.Int) error

	// result returns the aggregate, or false when no value was folded in.
	result() (types.Field, bool)
}

func newAccumulator(k Kind) accumulator {
	switch k {
	case OPEMax:
		return &extremeAccumulator{sign: 1}
	case OPEMin:
		return &extremeAccumulator{sign: -1}
	case HomSum:
		return &sumAccumulator{product: big.NewInt(1)}
	default:
		return &countAccumulator{}
	}
}

// extremeAccumulator keeps the largest (sign 1) or smallest (sign -1)
// ciphertext seen. OPE ciphertexts order like their plaintexts.
type extremeAccumulator struct {
	sign int
	best *big.Int
}

func (a *extremeAccumulator) add(v types.Field, _ *big.Int) error {
	c, ok := types.IntegerValue(v)
	if !ok {
		return dberror.UnsupportedFieldType("cannot order a %s ciphertext", v.Type())
	}
	if a.best == nil || c.Cmp(a.best)*a.sign > 0 {
		a.best = c
	}
	return nil
}

func (a *extremeAccumulator) result() (types.Field, bool) {
	if a.best == nil {
		return nil, false
	}
	return types.NewBigIntField(a.best), true
}

// sumAccumulator multiplies Paillier ciphertexts modulo N², which adds
// their plaintexts. The empty product 1 encrypts zero.
type sumAccumulator struct {
	product  *big.Int
	modulus  *big.Int
	nSquared *big.Int
}

func (a *sumAccumulator) add(v types.Field, modulus *big.Int) error {
	c, ok := types.IntegerValue(v)
	if !ok {
		return dberror.UnsupportedFieldType("cannot add a %s ciphertext", v.Type())
	}
	if modulus == nil || modulus.Sign() <= 0 {
		return dberror.IllegalState("row carries no usable Paillier modulus")
	}

	if a.modulus == nil {
		a.modulus = modulus
		a.nSquared = new(big.Int).Mul(modulus, modulus)
	} else if a.modulus.Cmp(modulus) != 0 {
		return dberror.IllegalState("rows of one group were encrypted under different Paillier keys")
	}

	a.product.Mul(a.product, c)
	a.product.Mod(a.product, a.nSquared)
	return nil
}

func (a *sumAccumulator) result() (types.Field, bool) {
	return types.NewBigIntField(new(big.Int).Set(a.product)), true
}

type countAccumulator struct {
	n int32
}

func (a *countAccumulator) add(types.Field, *big.Int) error {
	a.n++
	return nil
}

func (a *countAccumulator) result() (types.Field, bool) {
	return types.NewIntField(a.n), true
}
