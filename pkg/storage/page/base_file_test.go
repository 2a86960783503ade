package page

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T) (*BaseFile, primitives.Filepath) {
	t.Helper()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "table.dat"))
	bf, err := NewBaseFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bf.Close() })
	return bf, path
}

func TestNewBaseFile_EmptyPath(t *testing.T) {
	_, err := NewBaseFile("")
	assert.Error(t, err)
}

func TestBaseFile_StableID(t *testing.T) {
	bf, path := newTestFile(t)

	again, err := NewBaseFile(path)
	require.NoError(t, err)
	defer again.Close()

	assert.Equal(t, bf.GetID(), again.GetID())
}

func TestBaseFile_AllocateNewPage(t *testing.T) {
	bf, path := newTestFile(t)

	n, err := bf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(0), n)

	for want := range 3 {
		pageNo, err := bf.AllocateNewPage()
		require.NoError(t, err)
		assert.Equal(t, primitives.PageNumber(want), pageNo)
	}

	n, err = bf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(3), n)

	// A second handle on the same file sees the appended pages.
	other, err := NewBaseFile(path)
	require.NoError(t, err)
	defer other.Close()
	n, err = other.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(3), n)

	_, err = other.AllocateNewPage()
	require.NoError(t, err)
	n, err = bf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(4), n, "count must not be cached")
}

func TestBaseFile_ReadWriteRoundTrip(t *testing.T) {
	bf, _ := newTestFile(t)
	_, err := bf.AllocateNewPage()
	require.NoError(t, err)
	_, err = bf.AllocateNewPage()
	require.NoError(t, err)

	data := make([]byte, Size())
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, bf.WritePageData(1, data))

	got, err := bf.ReadPageData(1)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	zero, err := bf.ReadPageData(0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, Size()), zero)
}

func TestBaseFile_OutOfRange(t *testing.T) {
	bf, _ := newTestFile(t)
	_, err := bf.AllocateNewPage()
	require.NoError(t, err)

	tests := []struct {
		name   string
		pageNo primitives.PageNumber
	}{
		{"negative", -1},
		{"at count", 1},
		{"beyond count", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bf.ReadPageData(tt.pageNo)
			assert.True(t, errors.Is(err, dberror.ErrOutOfRange), "read: %v", err)

			err = bf.WritePageData(tt.pageNo, make([]byte, Size()))
			assert.True(t, errors.Is(err, dberror.ErrOutOfRange), "write: %v", err)
		})
	}

	n, err := bf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(1), n, "failed writes must not grow the file")
}

func TestBaseFile_PartialTrailingPage(t *testing.T) {
	bf, path := newTestFile(t)
	require.NoError(t, os.WriteFile(path.String(), []byte{1, 2, 3}, 0o600))

	n, err := bf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(1), n)

	data, err := bf.ReadPageData(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data[:3])
	assert.Len(t, data, Size())
}

func TestBaseFile_Closed(t *testing.T) {
	bf, _ := newTestFile(t)
	require.NoError(t, bf.Close())
	require.NoError(t, bf.Close())

	_, err := bf.NumPages()
	assert.True(t, errors.Is(err, dberror.ErrIllegalState))
}

func TestSetSize(t *testing.T) {
	t.Cleanup(ResetSize)

	SetSize(512)
	assert.Equal(t, 512, Size())
	ResetSize()
	assert.Equal(t, DefaultPageSize, Size())
}
