package primitives

import (
	"hash/fnv"
	"os"
	"path/filepath"
)

// Filepath is the on-disk location of a table file.
type Filepath string

// Hash derives a TableID from the path using FNV-1a.
// The same path always hashes to the same id, so a table keeps its identity
// across process runs. Callers should hash the absolute path (see Abs) so that
// two spellings of the same file agree.
func (f Filepath) Hash() TableID {
	h := fnv.New64a()
	h.Write([]byte(f))
	return TableID(h.Sum64())
}

// Abs returns the absolute, cleaned form of the path.
func (f Filepath) Abs() (Filepath, error) {
	abs, err := filepath.Abs(string(f))
	if err != nil {
		return "", err
	}
	return Filepath(abs), nil
}

// WithSuffix appends a raw suffix to the path, e.g. "users.dat" -> "users.dat_enc".
func (f Filepath) WithSuffix(suffix string) Filepath {
	return Filepath(string(f) + suffix)
}

func (f Filepath) Dir() string {
	return filepath.Dir(string(f))
}

func (f Filepath) Base() string {
	return filepath.Base(string(f))
}

func (f Filepath) String() string {
	return string(f)
}

func (f Filepath) IsEmpty() bool {
	return f == ""
}

func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (f Filepath) Remove() error {
	if !f.Exists() {
		return nil
	}
	return os.Remove(string(f))
}
