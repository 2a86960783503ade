// Package aggregation computes aggregates over encrypted tables without
// decrypting anything: order-based kinds compare OPE ciphertexts directly
// and HOM_SUM folds Paillier ciphertexts with the homomorphic combine.
// Results are ciphertexts; the caller decrypts them with the matching
// private key.
package aggregation

import (
	"fmt"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/types"
)

// NoGrouping as the group field index aggregates the whole input into one
// result tuple.
const NoGrouping = -1

// Kind selects the aggregate computed.
type Kind int

const (
	OPEMax Kind = iota
	OPEMin
	HomSum
	Count
)

func (k Kind) String() string {
	switch k {
	case OPEMax:
		return "OPE_MAX"
	case OPEMin:
		return "OPE_MIN"
	case HomSum:
		return "HOM_SUM"
	case Count:
		return "COUNT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the names String returns.
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{OPEMax, OPEMin, HomSum, Count} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, dberror.NotFound("unknown aggregate kind %q", name)
}

func (k Kind) resultType() types.Type {
	if k == Count {
		return types.IntType
	}
	return types.BigIntType
}

// needsIntegers reports whether the aggregated column must hold integers.
func (k Kind) needsIntegers() bool {
	return k != Count
}
