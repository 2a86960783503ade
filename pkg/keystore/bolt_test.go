package keystore

import (
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/scheme/ope"
	"cipherdb/pkg/scheme/paillier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, cacheEntries int64) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.db")
	s, err := OpenBoltStore(path, Options{CacheEntries: cacheEntries})
	require.NoError(t, err)
	return s, path
}

func testPairs(t *testing.T) (*paillier.KeyPair, *ope.KeyPair) {
	t.Helper()
	pk, err := paillier.GenerateKeyPair(nil, 64, nil)
	require.NoError(t, err)
	ok, err := ope.NewKeyPair(ope.Mult{}, big.NewInt(5), big.NewInt(1000))
	require.NoError(t, err)
	return pk, ok
}

func TestBoltStore_SaveLoad(t *testing.T) {
	for _, entries := range []int64{0, 16} {
		t.Run(fmt.Sprintf("cache=%d", entries), func(t *testing.T) {
			s, _ := openStore(t, entries)
			defer s.Close()

			pk, ok := testPairs(t)
			require.NoError(t, s.Save(7, pk))
			require.NoError(t, s.Save(7, ok))

			got, err := s.Load(7, scheme.Paillier)
			require.NoError(t, err)
			assert.True(t, got.(*paillier.KeyPair).Public.Equals(pk.Public))

			got, err = s.Load(7, scheme.OPE)
			require.NoError(t, err)
			assert.Equal(t, int64(5), got.(*ope.KeyPair).Factor.Int64())

			_, err = s.Load(8, scheme.OPE)
			assert.ErrorIs(t, err, dberror.ErrNotFound)
		})
	}
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	s, path := openStore(t, 0)
	pk, ok := testPairs(t)
	require.NoError(t, s.Save(42, pk))
	require.NoError(t, s.Save(42, ok))
	require.NoError(t, s.Close())

	s, err := OpenBoltStore(path, Options{CacheEntries: 4})
	require.NoError(t, err)
	defer s.Close()

	pairs, err := s.LoadAll(42)
	require.NoError(t, err)
	assert.Empty(t, pairs.Missing())

	c, err := pairs[scheme.Paillier].Encrypt(big.NewInt(-12))
	require.NoError(t, err)
	m, err := pk.Decrypt(c)
	require.NoError(t, err)
	assert.Equal(t, int64(-12), m.Int64())
}

func TestBoltStore_LoadAllIsScopedToTable(t *testing.T) {
	s, _ := openStore(t, 0)
	defer s.Close()

	pk, ok := testPairs(t)
	require.NoError(t, s.Save(1, pk))
	require.NoError(t, s.Save(11, ok))

	pairs, err := s.LoadAll(1)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.Contains(t, pairs, scheme.Paillier)

	pairs, err = s.LoadAll(primitives.TableID(99))
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestBoltStore_Delete(t *testing.T) {
	s, _ := openStore(t, 16)
	defer s.Close()

	pk, ok := testPairs(t)
	require.NoError(t, s.Save(3, pk))
	require.NoError(t, s.Save(3, ok))
	require.NoError(t, s.Save(4, ok))

	_, err := s.Load(3, scheme.OPE)
	require.NoError(t, err)

	require.NoError(t, s.Delete(3))

	_, err = s.Load(3, scheme.OPE)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	_, err = s.Load(3, scheme.Paillier)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	_, err = s.Load(4, scheme.OPE)
	assert.NoError(t, err)
}
