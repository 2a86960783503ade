package paillier

import (
	"math/big"
	"testing"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/scheme"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBits = 128

var maxInt32 = big.NewInt(2147483647)

func newTestKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair(nil, testBits, maxInt32)
	require.NoError(t, err)
	return kp
}

func TestGenerateKeyPair_Setup(t *testing.T) {
	kp := newTestKeyPair(t)
	pk := kp.Public

	assert.Equal(t, testBits, pk.Bits)
	assert.Equal(t, 0, new(big.Int).Mul(pk.N, pk.N).Cmp(pk.NSquared))
	assert.Equal(t, 0, new(big.Int).Add(pk.N, one).Cmp(pk.G))

	// L(G^λ mod N^2) must be invertible mod N.
	l := lFunc(new(big.Int).Exp(pk.G, kp.Private.Lambda, pk.NSquared), pk.N)
	assert.Equal(t, 0, new(big.Int).GCD(nil, nil, l, pk.N).Cmp(one))
}

func TestGenerateKeyPair_Validation(t *testing.T) {
	_, err := GenerateKeyPair(nil, 8, nil)
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)

	_, err = GenerateKeyPair(nil, 32, new(big.Int).Lsh(one, 40))
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	kp := newTestKeyPair(t)

	for _, v := range []int64{0, 1, -1, 42, -31337, 2147483647, -2147483647} {
		m := big.NewInt(v)
		c, err := kp.Encrypt(m)
		require.NoError(t, err)
		assert.NotEqual(t, 0, c.Cmp(m), "ciphertext equals plaintext for %d", v)

		got, err := kp.Decrypt(c)
		require.NoError(t, err)
		assert.Equal(t, v, got.Int64())
	}
}

func TestEncrypt_IsProbabilistic(t *testing.T) {
	kp := newTestKeyPair(t)
	c1, err := kp.Encrypt(big.NewInt(7))
	require.NoError(t, err)
	c2, err := kp.Encrypt(big.NewInt(7))
	require.NoError(t, err)
	assert.NotEqual(t, 0, c1.Cmp(c2))
}

func TestEncrypt_OutOfRange(t *testing.T) {
	kp := newTestKeyPair(t)
	_, err := kp.Encrypt(big.NewInt(2147483648))
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)

	_, err = kp.Public.Encrypt(kp.Public.N)
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)
}

func TestHomomorphicOps(t *testing.T) {
	kp := newTestKeyPair(t)
	pk := kp.Public

	enc := func(v int64) *big.Int {
		c, err := kp.Encrypt(big.NewInt(v))
		require.NoError(t, err)
		return c
	}
	dec := func(c *big.Int) int64 {
		m, err := kp.Decrypt(c)
		require.NoError(t, err)
		return m.Int64()
	}

	assert.Equal(t, int64(12), dec(pk.Add(enc(5), enc(7))))
	assert.Equal(t, int64(-2), dec(pk.Add(enc(5), enc(-7))))
	assert.Equal(t, int64(15), dec(pk.AddPlain(enc(5), big.NewInt(10))))
	assert.Equal(t, int64(-15), dec(pk.MulPlain(enc(5), big.NewInt(-3))))
	assert.Equal(t, int64(9), dec(pk.Add(pk.Zero(), enc(9))))
	assert.Equal(t, int64(0), dec(pk.Zero()))
}

func TestDecrypt_RejectsOutsideGroup(t *testing.T) {
	kp := newTestKeyPair(t)
	_, err := kp.Decrypt(big.NewInt(0))
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)
	_, err = kp.Decrypt(kp.Public.NSquared)
	assert.ErrorIs(t, err, dberror.ErrValueOutOfRange)
}

func TestNewPublicKey_FromColumns(t *testing.T) {
	kp := newTestKeyPair(t)
	pk, err := NewPublicKey(kp.Public.N, kp.Public.G)
	require.NoError(t, err)
	assert.True(t, pk.Equals(kp.Public))

	_, err = NewPublicKey(big.NewInt(1), big.NewInt(2))
	assert.Error(t, err)
}

func TestKeyPair_MarshalRoundTrip(t *testing.T) {
	kp := newTestKeyPair(t)

	data, err := scheme.Marshal(kp)
	require.NoError(t, err)

	restored, err := scheme.Unmarshal(data)
	require.NoError(t, err)
	require.IsType(t, &KeyPair{}, restored)

	got := restored.(*KeyPair)
	assert.True(t, got.Public.Equals(kp.Public))
	assert.Equal(t, 0, got.UpperBound.Cmp(maxInt32))

	c, err := kp.Encrypt(big.NewInt(123))
	require.NoError(t, err)
	m, err := got.Decrypt(c)
	require.NoError(t, err)
	assert.Equal(t, int64(123), m.Int64())
}
