// Package keystore persists the key pairs an encryption run generated, keyed
// by the encrypted table's id and the cryptosystem name, so a later holder
// of the store can decrypt aggregate results.
package keystore

import (
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/scheme"

	// Register the decoders for every key pair type this store may hold.
	_ "cipherdb/pkg/scheme/ope"
	_ "cipherdb/pkg/scheme/paillier"
)

// Store is the durable key-material collaborator of the encryption layer.
type Store interface {
	Save(tableID primitives.TableID, kp scheme.KeyPair) error
	Load(tableID primitives.TableID, name scheme.Name) (scheme.KeyPair, error)
	LoadAll(tableID primitives.TableID) (scheme.KeyPairs, error)
	Delete(tableID primitives.TableID) error
	Close() error
}
