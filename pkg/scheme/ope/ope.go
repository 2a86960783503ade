// Package ope provides order-preserving encryption: for p1 < p2 under one
// key, Encrypt(p1) < Encrypt(p2) as plain integers. Comparison based
// aggregates can then run on ciphertexts directly.
//
// The two strategies here are keyed affine maps. They satisfy the ordering
// contract but are not cryptographically strong; Strategy is the seam for
// replacing them.
package ope

import (
	"math/big"

	"cipherdb/pkg/dberror"
)

// Strategy is one order-preserving construction keyed by a secret factor.
type Strategy interface {
	Name() string
	Encrypt(factor, m *big.Int) (*big.Int, error)
	Decrypt(factor, c *big.Int) (*big.Int, error)
}

const (
	MultName      = "mult"
	NoisyMultName = "noisy-mult"
)

// Mult maps m to factor·m. Only exact multiples decrypt.
type Mult struct{}

func (Mult) Name() string { return MultName }

func (Mult) Encrypt(factor, m *big.Int) (*big.Int, error) {
	return new(big.Int).Mul(factor, m), nil
}

func (Mult) Decrypt(factor, c *big.Int) (*big.Int, error) {
	q, r := new(big.Int).QuoRem(c, factor, new(big.Int))
	if r.Sign() != 0 {
		return nil, dberror.ValueOutOfRange("%s is not a ciphertext under this key", c)
	}
	return q, nil
}

// NoisyMult maps m to factor·m + r with r uniform in [0, factor). Equal
// plaintexts no longer share a ciphertext; order is still preserved because
// every ciphertext of m lies in [factor·m, factor·(m+1)).
type NoisyMult struct {
	noise func(limit *big.Int) (*big.Int, error)
}

func (NoisyMult) Name() string { return NoisyMultName }

func (s NoisyMult) Encrypt(factor, m *big.Int) (*big.Int, error) {
	draw := s.noise
	if draw == nil {
		draw = cryptoNoise
	}
	r, err := draw(factor)
	if err != nil {
		return nil, err
	}
	c := new(big.Int).Mul(factor, m)
	return c.Add(c, r), nil
}

// Decrypt floors c/factor; big.Int.Div is Euclidean, which is floor
// division for a positive divisor.
func (NoisyMult) Decrypt(factor, c *big.Int) (*big.Int, error) {
	return new(big.Int).Div(c, factor), nil
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case MultName, "":
		return Mult{}, nil
	case NoisyMultName:
		return NoisyMult{}, nil
	default:
		return nil, dberror.NotFound("unknown OPE strategy %q", name)
	}
}
