package ope

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/scheme"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var maxInt32 = big.NewInt(2147483647)

func strategies() []Strategy {
	return []Strategy{Mult{}, NoisyMult{}}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			kp, err := GenerateKeyPair(nil, 32, maxInt32, s)
			require.NoError(t, err)

			for _, v := range []int64{0, 1, -1, 7, -7, 2147483647, -2147483647} {
				c, err := kp.Encrypt(big.NewInt(v))
				require.NoError(t, err)
				m, err := kp.Decrypt(c)
				require.NoError(t, err)
				assert.Equal(t, v, m.Int64())
			}
		})
	}
}

func TestMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			kp, err := GenerateKeyPair(nil, 16, maxInt32, s)
			require.NoError(t, err)

			for range 500 {
				a := int64(rng.Int32()) - int64(rng.Int32())/2
				b := a + 1 + int64(rng.IntN(1000))
				if b > maxInt32.Int64() {
					continue
				}
				ca, err := kp.Encrypt(big.NewInt(a))
				require.NoError(t, err)
				cb, err := kp.Encrypt(big.NewInt(b))
				require.NoError(t, err)
				require.Negative(t, ca.Cmp(cb), "E(%d) >= E(%d)", a, b)
			}
		})
	}
}

func TestMult_KnownFactor(t *testing.T) {
	kp, err := NewKeyPair(Mult{}, big.NewInt(5), nil)
	require.NoError(t, err)

	c, err := kp.Encrypt(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(35), c.Int64())

	_, err = kp.Decrypt(big.NewInt(36))
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)
}

func TestNoisyMult_NoiseStaysBelowFactor(t *testing.T) {
	s := NoisyMult{noise: func(limit *big.Int) (*big.Int, error) {
		return new(big.Int).Sub(limit, big.NewInt(1)), nil
	}}
	kp, err := NewKeyPair(s, big.NewInt(10), nil)
	require.NoError(t, err)

	c, err := kp.Encrypt(big.NewInt(-3))
	require.NoError(t, err)
	assert.Equal(t, int64(-21), c.Int64())

	m, err := kp.Decrypt(c)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), m.Int64())
}

func TestKeyPair_Validation(t *testing.T) {
	_, err := NewKeyPair(Mult{}, big.NewInt(1), nil)
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)

	_, err = GenerateKeyPair(nil, 1, nil, nil)
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)

	kp, err := GenerateKeyPair(nil, 8, big.NewInt(100), nil)
	require.NoError(t, err)
	assert.Equal(t, 8, kp.Factor.BitLen())

	_, err = kp.Encrypt(big.NewInt(101))
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("noisy-mult")
	require.NoError(t, err)
	assert.Equal(t, NoisyMultName, s.Name())

	_, err = StrategyByName("rot13")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestKeyPair_MarshalRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(nil, 24, maxInt32, NoisyMult{})
	require.NoError(t, err)

	data, err := scheme.Marshal(kp)
	require.NoError(t, err)
	restored, err := scheme.Unmarshal(data)
	require.NoError(t, err)

	got, ok := restored.(*KeyPair)
	require.True(t, ok)
	assert.Equal(t, NoisyMultName, got.Strategy.Name())
	assert.Equal(t, 0, got.Factor.Cmp(kp.Factor))
	assert.Equal(t, 0, got.UpperBound.Cmp(maxInt32))
}
