package encryption

import (
	"crypto/rand"
	"math/big"

	"cipherdb/pkg/config"
	"cipherdb/pkg/scheme"
	"cipherdb/pkg/scheme/ope"
	"cipherdb/pkg/scheme/paillier"

	"github.com/cockroachdb/errors"
)

// GenerateDefaultKeyPairs draws one fresh key pair per cryptosystem with the
// configured sizes.
func GenerateDefaultKeyPairs(cfg config.CryptoConfig) (scheme.KeyPairs, error) {
	pairs := make(scheme.KeyPairs, len(scheme.All))
	for _, name := range scheme.All {
		kp, err := generateKeyPair(name, cfg)
		if err != nil {
			return nil, err
		}
		pairs[name] = kp
	}
	return pairs, nil
}

func generateKeyPair(name scheme.Name, cfg config.CryptoConfig) (scheme.KeyPair, error) {
	upper := big.NewInt(cfg.UpperBound)

	switch name {
	case scheme.Paillier:
		kp, err := paillier.GenerateKeyPair(rand.Reader, cfg.PaillierBits, upper)
		if err != nil {
			return nil, errors.Wrap(err, "generate Paillier key pair")
		}
		return kp, nil
	case scheme.OPE:
		strategy, err := ope.StrategyByName(cfg.OPEStrategy)
		if err != nil {
			return nil, err
		}
		kp, err := ope.GenerateKeyPair(rand.Reader, cfg.OPEBits, upper, strategy)
		if err != nil {
			return nil, errors.Wrap(err, "generate OPE key pair")
		}
		return kp, nil
	default:
		return nil, errors.Newf("no generator for scheme %s", name)
	}
}

// completeKeyPairs fills the systems missing from supplied with fresh pairs.
// supplied itself is not modified.
func completeKeyPairs(supplied scheme.KeyPairs, cfg config.CryptoConfig) (scheme.KeyPairs, error) {
	pairs := supplied.Clone()
	for _, name := range pairs.Missing() {
		kp, err := generateKeyPair(name, cfg)
		if err != nil {
			return nil, err
		}
		pairs[name] = kp
	}
	return pairs, nil
}
