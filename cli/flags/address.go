package flags

import (
	"strings"

	"github.com/abelian-network/abelian-go/pkg/encoding/address"
	"github.com/abelian-network/abelian-go/pkg/util"
)

// ParseAddress parses a Uint160 from either a BE hex string (0x-prefixed or
// not) or an address.
func ParseAddress(s string) (util.Uint160, error) {
	const uint160size = 2 * util.Uint160Size
	switch len(s) {
	case uint160size, uint160size + 2:
		return util.Uint160DecodeStringBE(strings.TrimPrefix(s, "0x"))
	default:
		return address.StringToUint160(s)
	}
}
