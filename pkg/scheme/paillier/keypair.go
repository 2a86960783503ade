package paillier

import (
	"crypto/rand"
	"io"
	"math/big"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/scheme"

	"github.com/cockroachdb/errors"
)

const (
	ModulusColumn   = "PAILLIER_MODULUS"
	GeneratorColumn = "PAILLIER_G"
)

func init() {
	scheme.RegisterDecoder(scheme.Paillier, func(payload []byte) (scheme.KeyPair, error) {
		return unmarshalKeyPair(payload)
	})
}

// KeyPair is a Paillier key with the plaintext bound it was generated for.
type KeyPair struct {
	Public     *PublicKey
	Private    *PrivateKey
	UpperBound *big.Int
}

var _ scheme.KeyPair = (*KeyPair)(nil)

// GenerateKeyPair draws two distinct bits/2-bit primes p and q, sets
// N = pq and G = N+1. upperBound must be below N/2; nil means "anything
// below N/2".
func GenerateKeyPair(random io.Reader, bits int, upperBound *big.Int) (*KeyPair, error) {
	if bits < minBits {
		return nil, dberror.ValueOutOfRange("paillier modulus needs at least %d bits, got %d", minBits, bits)
	}
	if random == nil {
		random = rand.Reader
	}

	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, errors.Wrap(err, "generate paillier prime p")
		}
		q, err := rand.Prime(random, bits-bits/2)
		if err != nil {
			return nil, errors.Wrap(err, "generate paillier prime q")
		}
		if p.Cmp(q) == 0 {
			continue
		}

		kp, ok := fromPrimes(p, q)
		if !ok {
			continue
		}
		if err := kp.setUpperBound(upperBound); err != nil {
			return nil, err
		}
		return kp, nil
	}
}

// fromPrimes derives the key; ok is false when gcd(N, φ(N)) != 1.
func fromPrimes(p, q *big.Int) (*KeyPair, bool) {
	n := new(big.Int).Mul(p, q)
	pm1 := new(big.Int).Sub(p, one)
	qm1 := new(big.Int).Sub(q, one)
	phi := new(big.Int).Mul(pm1, qm1)
	if new(big.Int).GCD(nil, nil, n, phi).Cmp(one) != 0 {
		return nil, false
	}

	gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
	lambda := new(big.Int).Div(phi, gcd)

	pk, err := NewPublicKey(n, new(big.Int).Add(n, one))
	if err != nil {
		return nil, false
	}

	mu := lFunc(new(big.Int).Exp(pk.G, lambda, pk.NSquared), n)
	if mu.ModInverse(mu, n) == nil {
		return nil, false
	}

	return &KeyPair{
		Public:  pk,
		Private: &PrivateKey{Lambda: lambda, Mu: mu, Public: pk},
	}, true
}

func (kp *KeyPair) setUpperBound(upperBound *big.Int) error {
	limit := new(big.Int).Sub(kp.Public.halfN(), one)
	if upperBound == nil {
		kp.UpperBound = limit
		return nil
	}
	if upperBound.Sign() <= 0 || upperBound.Cmp(limit) > 0 {
		return dberror.ValueOutOfRange("upper bound %s exceeds N/2 for a %d-bit modulus", upperBound, kp.Public.Bits)
	}
	kp.UpperBound = new(big.Int).Set(upperBound)
	return nil
}

func (kp *KeyPair) Scheme() scheme.Name {
	return scheme.Paillier
}

// Encrypt rejects plaintexts whose magnitude exceeds the upper bound.
func (kp *KeyPair) Encrypt(m *big.Int) (*big.Int, error) {
	if new(big.Int).Abs(m).Cmp(kp.UpperBound) > 0 {
		return nil, dberror.ValueOutOfRange("plaintext %s exceeds upper bound %s", m, kp.UpperBound)
	}
	return kp.Public.Encrypt(m)
}

func (kp *KeyPair) Decrypt(c *big.Int) (*big.Int, error) {
	return kp.Private.Decrypt(c)
}

type payload struct {
	N          string `json:"n"`
	G          string `json:"g"`
	Lambda     string `json:"lambda"`
	Mu         string `json:"mu"`
	UpperBound string `json:"upper_bound"`
}

func (kp *KeyPair) MarshalPayload() ([]byte, error) {
	return scheme.EncodePayload(payload{
		N:          scheme.IntString(kp.Public.N),
		G:          scheme.IntString(kp.Public.G),
		Lambda:     scheme.IntString(kp.Private.Lambda),
		Mu:         scheme.IntString(kp.Private.Mu),
		UpperBound: scheme.IntString(kp.UpperBound),
	})
}

func unmarshalKeyPair(data []byte) (*KeyPair, error) {
	var p payload
	if err := scheme.DecodePayload(data, &p); err != nil {
		return nil, errors.Wrap(err, "decode paillier key pair")
	}

	var ints [5]*big.Int
	for i, f := range []struct{ name, value string }{
		{"n", p.N}, {"g", p.G}, {"lambda", p.Lambda}, {"mu", p.Mu}, {"upper_bound", p.UpperBound},
	} {
		v, err := scheme.ParseInt(f.name, f.value)
		if err != nil {
			return nil, err
		}
		ints[i] = v
	}

	pk, err := NewPublicKey(ints[0], ints[1])
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		Public:     pk,
		Private:    &PrivateKey{Lambda: ints[2], Mu: ints[3], Public: pk},
		UpperBound: ints[4],
	}, nil
}
