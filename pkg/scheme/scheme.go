// Package scheme defines what the storage engine needs from a cryptosystem:
// a key pair that maps integers to ciphertext integers and back. Concrete
// systems live in the paillier and ope sub-packages and register a decoder
// here so persisted key pairs can be restored by name.
package scheme

import (
	"math/big"
	"slices"
	"strings"

	"cipherdb/pkg/dberror"
)

// Name identifies a cryptosystem. It doubles as the column-name prefix of
// the ciphertext columns that system produces.
type Name string

const (
	Paillier Name = "PAILLIER_"
	OPE      Name = "OPE_"
)

// All lists the systems an encrypted table carries, in column order.
var All = []Name{Paillier, OPE}

func (n Name) Prefix() string {
	return string(n)
}

// Column returns the ciphertext column name for an original column.
func (n Name) Column(original string) string {
	return string(n) + original
}

// Strip returns the original column name of a ciphertext column.
func (n Name) Strip(column string) (string, bool) {
	return strings.CutPrefix(column, string(n))
}

func (n Name) Valid() bool {
	return slices.Contains(All, n)
}

// KeyPair is a full (public + private) key of one cryptosystem.
type KeyPair interface {
	Scheme() Name

	// Encrypt fails with ValueOutOfRange for plaintexts the key cannot
	// represent; it never truncates.
	Encrypt(plaintext *big.Int) (*big.Int, error)

	Decrypt(ciphertext *big.Int) (*big.Int, error)

	// MarshalPayload encodes the key pair for Marshal.
	MarshalPayload() ([]byte, error)
}

// KeyPairs maps each cryptosystem to the key pair used with it.
type KeyPairs map[Name]KeyPair

// Get returns the pair for name, or NotFound.
func (k KeyPairs) Get(name Name) (KeyPair, error) {
	kp, ok := k[name]
	if !ok || kp == nil {
		return nil, dberror.NotFound("no key pair for scheme %s", name)
	}
	return kp, nil
}

// Clone returns a shallow copy; key pairs themselves are immutable.
func (k KeyPairs) Clone() KeyPairs {
	out := make(KeyPairs, len(k))
	for name, kp := range k {
		out[name] = kp
	}
	return out
}

// Missing lists the systems in All that have no key pair.
func (k KeyPairs) Missing() []Name {
	var missing []Name
	for _, name := range All {
		if kp, ok := k[name]; !ok || kp == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
