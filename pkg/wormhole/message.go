/*
Package wormhole provides the cross-chain message format used to announce
registry events to other networks and a mock message publisher.

Messages are laid out like Wormhole VAAs, but are never signed: the
signature section is always empty on encoding and skipped on decoding.
*/
package wormhole

import (
	"errors"
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/crypto/hash"
	"github.com/abelian-network/abelian-go/pkg/io"
	"github.com/abelian-network/abelian-go/pkg/util"
)

// ChainID is a Wormhole chain identifier.
type ChainID uint16

// Well-known chain IDs.
const (
	ChainIDUnset    ChainID = 0
	ChainIDSolana   ChainID = 1
	ChainIDEthereum ChainID = 2
)

const (
	// SupportedVersion is the only message version known.
	SupportedVersion = 1
	// MaxPayloadSize is the maximum payload size of a single message.
	MaxPayloadSize = 0xffff

	signatureSize = 66
	// minSize is the size of a message with no signatures and empty payload.
	minSize = 1 + 4 + 1 + 4 + 4 + 2 + 32 + 8 + 1
)

var (
	// ErrInvalidVersion is returned for messages of unknown version.
	ErrInvalidVersion = errors.New("invalid message version")
	// ErrTruncated is returned for messages shorter than their header says.
	ErrTruncated = errors.New("message is truncated")
	// ErrPayloadTooBig is returned on an attempt to publish a payload bigger
	// than MaxPayloadSize.
	ErrPayloadTooBig = errors.New("payload is too big")
)

// Message is an unsigned cross-chain message.
type Message struct {
	Version          uint8
	GuardianSetIndex uint32
	Timestamp        uint32
	Nonce            uint32
	Sequence         uint64
	ConsistencyLevel uint8
	EmitterChain     ChainID
	EmitterAddress   util.Uint256
	Payload          []byte
}

// PadAddress returns a 32-byte emitter address for the given 20-byte one.
func PadAddress(u util.Uint160) util.Uint256 {
	var res util.Uint256
	copy(res[util.Uint256Size-util.Uint160Size:], u.BytesBE())
	return res
}

// CreateDummyMessage returns an encoded empty message from the given
// emitter.
func CreateDummyMessage(chain ChainID, emitter util.Uint160) []byte {
	m := &Message{
		Version:        SupportedVersion,
		EmitterChain:   chain,
		EmitterAddress: PadAddress(emitter),
	}
	return m.Bytes()
}

// ParseMessage decodes the message, signatures are skipped.
func ParseMessage(data []byte) (*Message, error) {
	m := new(Message)
	if err := m.decode(data); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) decode(data []byte) error {
	if len(data) == 0 {
		return ErrTruncated
	}
	if data[0] != SupportedVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, data[0])
	}
	if len(data) < minSize {
		return ErrTruncated
	}
	r := io.NewBinReaderFromBuf(data)
	m.Version = r.ReadB()
	m.GuardianSetIndex = r.ReadU32BE()
	sigs := int(r.ReadB())
	if r.Len() < sigs*signatureSize+minSize-6 {
		return ErrTruncated
	}
	r.ReadBytes(make([]byte, sigs*signatureSize))
	m.decodeBody(r)
	if r.Err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, r.Err)
	}
	return nil
}

func (m *Message) decodeBody(r *io.BinReader) {
	m.Timestamp = r.ReadU32BE()
	m.Nonce = r.ReadU32BE()
	m.EmitterChain = ChainID(r.ReadU16BE())
	m.EmitterAddress.DecodeBinary(r)
	m.Sequence = r.ReadU64BE()
	m.ConsistencyLevel = r.ReadB()
	if r.Err != nil {
		return
	}
	if n := r.Len(); n > 0 {
		m.Payload = make([]byte, n)
		r.ReadBytes(m.Payload)
	}
}

func (m *Message) encodeBody(w *io.BinWriter) {
	w.WriteU32BE(m.Timestamp)
	w.WriteU32BE(m.Nonce)
	w.WriteU16BE(uint16(m.EmitterChain))
	m.EmitterAddress.EncodeBinary(w)
	w.WriteU64BE(m.Sequence)
	w.WriteB(m.ConsistencyLevel)
	w.WriteBytes(m.Payload)
}

// Bytes returns the encoded message.
func (m *Message) Bytes() []byte {
	w := io.NewBufBinWriter()
	w.WriteB(m.Version)
	w.WriteU32BE(m.GuardianSetIndex)
	w.WriteB(0)
	m.encodeBody(w.BinWriter)
	return w.Bytes()
}

// Hash returns the double SHA-256 hash of the message body, the header is
// not covered.
func (m *Message) Hash() util.Uint256 {
	w := io.NewBufBinWriter()
	m.encodeBody(w.BinWriter)
	return hash.DoubleSha256(w.Bytes())
}
