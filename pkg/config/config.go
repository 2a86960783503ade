// Package config loads engine settings from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cipherdb/pkg/logging"
	"cipherdb/pkg/types"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

const DefaultConfig = `
# cipherdb configuration.

[storage]
data-dir = "/tmp/cipherdb/data"
page-size = 4096
buffer-pool-pages = 1000

[lock]
timeout = "5s"
max-backoff = "50ms"

[crypto]
paillier-bits = 128
ope-bits = 32
upper-bound = 2147483647
# mult, noisy-mult
ope-strategy = "mult"

[keystore]
path = "/tmp/cipherdb/keys.db"
cache-entries = 1024

[log]
#debug, info, warn, error
level = "info"
#text, json
format = "text"
output = ""
`

const (
	OPEStrategyMult      = "mult"
	OPEStrategyNoisyMult = "noisy-mult"
)

type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Lock     LockConfig     `toml:"lock"`
	Crypto   CryptoConfig   `toml:"crypto"`
	KeyStore KeyStoreConfig `toml:"keystore"`
	Log      LogConfig      `toml:"log"`
}

type StorageConfig struct {
	DataDir         string `toml:"data-dir"`
	PageSize        int    `toml:"page-size"`
	BufferPoolPages int    `toml:"buffer-pool-pages"`
}

type LockConfig struct {
	Timeout    Duration `toml:"timeout"`
	MaxBackoff Duration `toml:"max-backoff"`
}

type CryptoConfig struct {
	PaillierBits int    `toml:"paillier-bits"`
	OPEBits      int    `toml:"ope-bits"`
	UpperBound   int64  `toml:"upper-bound"`
	OPEStrategy  string `toml:"ope-strategy"`
}

type KeyStoreConfig struct {
	Path         string `toml:"path"`
	CacheEntries int64  `toml:"cache-entries"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Duration lets TOML carry durations as strings such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	c := new(Config)
	if _, err := toml.Decode(DefaultConfig, c); err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return c
}

// Load overlays the file at path on top of the defaults. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, errors.Wrapf(err, "decode config file %s", path)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse overlays a TOML document on top of the defaults.
func Parse(doc string) (*Config, error) {
	c := Default()
	if _, err := toml.Decode(doc, c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Storage.PageSize <= 0 {
		return errors.Newf("storage.page-size must be positive, got %d", c.Storage.PageSize)
	}
	if c.Storage.BufferPoolPages <= 0 {
		return errors.Newf("storage.buffer-pool-pages must be positive, got %d", c.Storage.BufferPoolPages)
	}
	if c.Lock.Timeout.Duration <= 0 {
		return errors.New("lock.timeout must be positive")
	}
	if c.Crypto.PaillierBits < 16 {
		return errors.Newf("crypto.paillier-bits must be at least 16, got %d", c.Crypto.PaillierBits)
	}
	// Ciphertexts live in Z*_{N^2} and must fit a BIG_INTEGER column.
	if need := (2*c.Crypto.PaillierBits + 7) / 8; need > types.BigIntMaxBytes {
		return errors.WithHint(
			errors.Newf("crypto.paillier-bits %d yields %d-byte ciphertexts, column limit is %d",
				c.Crypto.PaillierBits, need, types.BigIntMaxBytes),
			"lower paillier-bits")
	}
	if c.Crypto.OPEBits < 2 {
		return errors.Newf("crypto.ope-bits must be at least 2, got %d", c.Crypto.OPEBits)
	}
	// factor * upper-bound (< 2^63) must fit the column magnitude.
	if c.Crypto.OPEBits+63 > 8*types.BigIntMaxBytes {
		return errors.Newf("crypto.ope-bits %d yields ciphertexts wider than %d bytes",
			c.Crypto.OPEBits, types.BigIntMaxBytes)
	}
	if c.Crypto.UpperBound <= 0 {
		return errors.Newf("crypto.upper-bound must be positive, got %d", c.Crypto.UpperBound)
	}
	// N >= 2^(bits-1), and signed plaintexts need |p| < N/2.
	if c.Crypto.PaillierBits-2 < 63 && c.Crypto.UpperBound >= int64(1)<<(c.Crypto.PaillierBits-2) {
		return errors.Newf("crypto.upper-bound %d does not fit a %d-bit modulus",
			c.Crypto.UpperBound, c.Crypto.PaillierBits)
	}
	switch c.Crypto.OPEStrategy {
	case OPEStrategyMult, OPEStrategyNoisyMult:
	default:
		return errors.Newf("unknown crypto.ope-strategy %q", c.Crypto.OPEStrategy)
	}
	return nil
}

// TablePath places a table file under the data directory.
func (c *Config) TablePath(name string) string {
	return filepath.Join(c.Storage.DataDir, name+".dat")
}

// EnsureDirs creates the data directory and the keystore's parent directory.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0o750); err != nil {
		return errors.Wrapf(err, "create data dir %s", c.Storage.DataDir)
	}
	if err := os.MkdirAll(filepath.Dir(c.KeyStore.Path), 0o750); err != nil {
		return errors.Wrapf(err, "create keystore dir for %s", c.KeyStore.Path)
	}
	return nil
}

// LoggingConfig translates the [log] section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      logging.ParseLevel(c.Log.Level),
		Format:     c.Log.Format,
		OutputPath: c.Log.Output,
	}
}
