/*
Package address implements conversion of account identifiers to/from
base58check address strings.
*/
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/crypto/hash"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/mr-tron/base58"
)

const (
	// AbelianPrefix is the first byte of an address.
	AbelianPrefix byte = 0x41
)

// Prefix is the byte used to prepend to addresses when encoding them, it can
// be changed and defaults to 0x41 (AbelianPrefix).
var Prefix = AbelianPrefix

// Errors returned on malformed address strings.
var (
	ErrInvalidLength   = errors.New("invalid address length")
	ErrInvalidPrefix   = errors.New("invalid address prefix")
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

// Uint160ToString returns the address string from the given Uint160.
func Uint160ToString(u util.Uint160) string {
	b := make([]byte, 0, 1+util.Uint160Size+4)
	b = append(b, Prefix)
	b = append(b, u.BytesBE()...)
	b = append(b, hash.Checksum(b)...)
	return base58.Encode(b)
}

// StringToUint160 attempts to decode the given address string into a Uint160.
func StringToUint160(s string) (u util.Uint160, err error) {
	b, err := base58.Decode(s)
	if err != nil {
		return u, fmt.Errorf("invalid base58: %w", err)
	}
	if len(b) != 1+util.Uint160Size+4 {
		return u, ErrInvalidLength
	}
	payload, sum := b[:len(b)-4], b[len(b)-4:]
	if !bytes.Equal(hash.Checksum(payload), sum) {
		return u, ErrInvalidChecksum
	}
	if payload[0] != Prefix {
		return u, ErrInvalidPrefix
	}
	return util.Uint160DecodeBytesBE(payload[1:])
}
