package ope

import (
	"crypto/rand"
	"math/big"

	"github.com/cockroachdb/errors"
)

func cryptoNoise(limit *big.Int) (*big.Int, error) {
	r, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, errors.Wrap(err, "draw OPE noise")
	}
	return r, nil
}
