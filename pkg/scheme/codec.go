package scheme

import (
	"math/big"
	"sync"

	"cipherdb/pkg/dberror"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Decoder rebuilds a key pair from the payload MarshalPayload produced.
type Decoder func(payload []byte) (KeyPair, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[Name]Decoder{}
)

// RegisterDecoder makes Unmarshal able to restore key pairs of name.
// Cryptosystem packages call it from init.
func RegisterDecoder(name Name, d Decoder) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[name] = d
}

type envelope struct {
	Scheme  Name                `json:"scheme"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// Marshal wraps kp's payload in a {scheme, payload} JSON envelope.
func Marshal(kp KeyPair) ([]byte, error) {
	payload, err := kp.MarshalPayload()
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s key pair", kp.Scheme())
	}
	return json.Marshal(envelope{Scheme: kp.Scheme(), Payload: payload})
}

func Unmarshal(data []byte) (KeyPair, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decode key pair envelope")
	}

	decodersMu.RLock()
	decode, ok := decoders[env.Scheme]
	decodersMu.RUnlock()
	if !ok {
		return nil, dberror.NotFound("no decoder registered for scheme %q", env.Scheme)
	}
	return decode(env.Payload)
}

// EncodePayload and DecodePayload give cryptosystem packages the same JSON
// settings the envelope uses.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

func DecodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// IntString renders n in base 10 for payloads; JSON numbers cannot carry
// arbitrary precision portably.
func IntString(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.Text(10)
}

func ParseInt(field, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Newf("key pair field %s: %q is not a base-10 integer", field, s)
	}
	return n, nil
}
