package ope

import (
	"crypto/rand"
	"io"
	"math/big"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/scheme"

	"github.com/cockroachdb/errors"
)

func init() {
	scheme.RegisterDecoder(scheme.OPE, func(payload []byte) (scheme.KeyPair, error) {
		return unmarshalKeyPair(payload)
	})
}

// KeyPair carries the private factor. The scheme is symmetric, so the
// "public" half is the same factor; it is kept together with the strategy
// that uses it.
type KeyPair struct {
	Strategy   Strategy
	Factor     *big.Int
	UpperBound *big.Int
}

var _ scheme.KeyPair = (*KeyPair)(nil)

// NewKeyPair builds a key from a known factor (at least 2).
func NewKeyPair(strategy Strategy, factor, upperBound *big.Int) (*KeyPair, error) {
	if strategy == nil {
		strategy = Mult{}
	}
	if factor == nil || factor.Cmp(big.NewInt(2)) < 0 {
		return nil, dberror.ValueOutOfRange("OPE factor must be at least 2")
	}
	if upperBound != nil && upperBound.Sign() <= 0 {
		return nil, dberror.ValueOutOfRange("OPE upper bound must be positive")
	}

	kp := &KeyPair{Strategy: strategy, Factor: new(big.Int).Set(factor)}
	if upperBound != nil {
		kp.UpperBound = new(big.Int).Set(upperBound)
	}
	return kp, nil
}

// GenerateKeyPair draws a random factor of exactly bits bits.
func GenerateKeyPair(random io.Reader, bits int, upperBound *big.Int, strategy Strategy) (*KeyPair, error) {
	if bits < 2 {
		return nil, dberror.ValueOutOfRange("OPE factor needs at least 2 bits, got %d", bits)
	}
	if random == nil {
		random = rand.Reader
	}

	// Uniform in [2^(bits-1), 2^bits).
	low := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	offset, err := rand.Int(random, low)
	if err != nil {
		return nil, errors.Wrap(err, "draw OPE factor")
	}
	return NewKeyPair(strategy, offset.Add(offset, low), upperBound)
}

func (kp *KeyPair) Scheme() scheme.Name {
	return scheme.OPE
}

func (kp *KeyPair) checkRange(m *big.Int) error {
	if kp.UpperBound != nil && new(big.Int).Abs(m).Cmp(kp.UpperBound) > 0 {
		return dberror.ValueOutOfRange("plaintext %s exceeds upper bound %s", m, kp.UpperBound)
	}
	return nil
}

func (kp *KeyPair) Encrypt(m *big.Int) (*big.Int, error) {
	if err := kp.checkRange(m); err != nil {
		return nil, err
	}
	return kp.Strategy.Encrypt(kp.Factor, m)
}

func (kp *KeyPair) Decrypt(c *big.Int) (*big.Int, error) {
	return kp.Strategy.Decrypt(kp.Factor, c)
}

type payload struct {
	Strategy   string `json:"strategy"`
	Factor     string `json:"factor"`
	UpperBound string `json:"upper_bound,omitempty"`
}

func (kp *KeyPair) MarshalPayload() ([]byte, error) {
	return scheme.EncodePayload(payload{
		Strategy:   kp.Strategy.Name(),
		Factor:     scheme.IntString(kp.Factor),
		UpperBound: scheme.IntString(kp.UpperBound),
	})
}

func unmarshalKeyPair(data []byte) (*KeyPair, error) {
	var p payload
	if err := scheme.DecodePayload(data, &p); err != nil {
		return nil, errors.Wrap(err, "decode OPE key pair")
	}

	strategy, err := StrategyByName(p.Strategy)
	if err != nil {
		return nil, err
	}
	factor, err := scheme.ParseInt("factor", p.Factor)
	if err != nil {
		return nil, err
	}

	var upper *big.Int
	if p.UpperBound != "" {
		if upper, err = scheme.ParseInt("upper_bound", p.UpperBound); err != nil {
			return nil, err
		}
	}
	return NewKeyPair(strategy, factor, upper)
}
