// Package paillier implements the Paillier cryptosystem: additively
// homomorphic public-key encryption over Z_N with ciphertexts in Z*_{N^2}.
//
// Plaintexts are signed. A value m with |m| <= UpperBound is encoded as its
// residue mod N, and residues above N/2 decode as negative. Sums stay exact
// as long as the true sum's magnitude stays below N/2.
package paillier

import (
	"crypto/rand"
	"io"
	"math/big"

	"cipherdb/pkg/dberror"

	"github.com/cockroachdb/errors"
)

const minBits = 16

var one = big.NewInt(1)

// PublicKey is (N, G). NSquared is cached because every operation needs it.
type PublicKey struct {
	N        *big.Int
	G        *big.Int
	NSquared *big.Int
	Bits     int
}

// NewPublicKey rebuilds a public key from its modulus and generator, for
// example from the columns an encrypted table carries on every row.
func NewPublicKey(n, g *big.Int) (*PublicKey, error) {
	if n == nil || g == nil || n.Cmp(one) <= 0 {
		return nil, dberror.IllegalState("paillier modulus must be greater than 1")
	}
	nn := new(big.Int).Mul(n, n)
	if g.Sign() <= 0 || g.Cmp(nn) >= 0 {
		return nil, dberror.IllegalState("paillier generator outside Z*_{N^2}")
	}
	return &PublicKey{
		N:        new(big.Int).Set(n),
		G:        new(big.Int).Set(g),
		NSquared: nn,
		Bits:     n.BitLen(),
	}, nil
}

// Encrypt computes G^m * r^N mod N^2 for a fresh random r. Any m in Z is
// accepted here; range checks against an upper bound belong to KeyPair.
func (pk *PublicKey) Encrypt(m *big.Int) (*big.Int, error) {
	return pk.encrypt(rand.Reader, m)
}

func (pk *PublicKey) encrypt(random io.Reader, m *big.Int) (*big.Int, error) {
	if new(big.Int).Abs(m).Cmp(pk.halfN()) >= 0 {
		return nil, dberror.ValueOutOfRange("plaintext %s does not fit modulus of %d bits", m, pk.Bits)
	}

	r, err := pk.randomUnit(random)
	if err != nil {
		return nil, err
	}

	gm := new(big.Int).Exp(pk.G, new(big.Int).Mod(m, pk.N), pk.NSquared)
	rn := new(big.Int).Exp(r, pk.N, pk.NSquared)
	return gm.Mul(gm, rn).Mod(gm, pk.NSquared), nil
}

// randomUnit draws r uniformly from [1, N) with gcd(r, N) = 1.
func (pk *PublicKey) randomUnit(random io.Reader) (*big.Int, error) {
	gcd := new(big.Int)
	for {
		r, err := rand.Int(random, pk.N)
		if err != nil {
			return nil, errors.Wrap(err, "draw paillier randomness")
		}
		if r.Sign() == 0 {
			continue
		}
		if gcd.GCD(nil, nil, r, pk.N).Cmp(one) == 0 {
			return r, nil
		}
	}
}

func (pk *PublicKey) halfN() *big.Int {
	return new(big.Int).Rsh(pk.N, 1)
}

// Add returns a ciphertext of m1+m2 given ciphertexts of m1 and m2.
func (pk *PublicKey) Add(c1, c2 *big.Int) *big.Int {
	sum := new(big.Int).Mul(c1, c2)
	return sum.Mod(sum, pk.NSquared)
}

// AddPlain returns a ciphertext of m+k given a ciphertext of m.
func (pk *PublicKey) AddPlain(c, k *big.Int) *big.Int {
	gk := new(big.Int).Exp(pk.G, new(big.Int).Mod(k, pk.N), pk.NSquared)
	return gk.Mul(gk, c).Mod(gk, pk.NSquared)
}

// MulPlain returns a ciphertext of m*k given a ciphertext of m.
func (pk *PublicKey) MulPlain(c, k *big.Int) *big.Int {
	return new(big.Int).Exp(c, new(big.Int).Mod(k, pk.N), pk.NSquared)
}

// Zero is the trivial encryption of 0; Add(Zero(), c) == c.
func (pk *PublicKey) Zero() *big.Int {
	return big.NewInt(1)
}

func (pk *PublicKey) Equals(other *PublicKey) bool {
	return other != nil && pk.N.Cmp(other.N) == 0 && pk.G.Cmp(other.G) == 0
}

// PrivateKey holds λ = lcm(p-1, q-1) and μ = L(G^λ mod N^2)^-1 mod N.
type PrivateKey struct {
	Lambda *big.Int
	Mu     *big.Int
	Public *PublicKey
}

// Decrypt computes L(c^λ mod N^2)·μ mod N and maps the residue back to a
// signed value.
func (sk *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	pk := sk.Public
	if c.Sign() <= 0 || c.Cmp(pk.NSquared) >= 0 {
		return nil, dberror.ValueOutOfRange("ciphertext outside Z_{N^2}")
	}

	u := new(big.Int).Exp(c, sk.Lambda, pk.NSquared)
	m := lFunc(u, pk.N)
	m.Mul(m, sk.Mu).Mod(m, pk.N)

	if m.Cmp(pk.halfN()) > 0 {
		m.Sub(m, pk.N)
	}
	return m, nil
}

// lFunc is L(u) = (u - 1) / n.
func lFunc(u, n *big.Int) *big.Int {
	l := new(big.Int).Sub(u, one)
	return l.Div(l, n)
}
