package wormhole

import (
	"sync"
	"time"

	"github.com/abelian-network/abelian-go/pkg/util"
)

// MockVMLog is the record of a message published via Mock.
type MockVMLog struct {
	Emitter          util.Uint160
	Sequence         uint64
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel uint8
	// VM is the encoded message.
	VM []byte
}

// Mock is an in-memory message publisher. It assigns sequence numbers per
// emitter and keeps every published message. It's safe for concurrent use.
type Mock struct {
	chain ChainID
	// Now returns the message timestamp, time.Now is used by default.
	Now func() time.Time

	mtx       sync.Mutex
	sequences map[util.Uint160]uint64
	logs      []MockVMLog
}

// NewMock creates a publisher emitting messages from the given chain.
func NewMock(chain ChainID) *Mock {
	return &Mock{
		chain:     chain,
		Now:       time.Now,
		sequences: make(map[util.Uint160]uint64),
	}
}

// PublishMessage publishes the payload on behalf of emitter and returns the
// message sequence number. Sequences start with 0 for every emitter.
func (m *Mock) PublishMessage(emitter util.Uint160, nonce uint32, payload []byte, consistencyLevel uint8) (uint64, error) {
	if len(payload) > MaxPayloadSize {
		return 0, ErrPayloadTooBig
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()

	seq := m.sequences[emitter]
	m.sequences[emitter] = seq + 1
	msg := &Message{
		Version:          SupportedVersion,
		Timestamp:        uint32(m.Now().Unix()),
		Nonce:            nonce,
		Sequence:         seq,
		ConsistencyLevel: consistencyLevel,
		EmitterChain:     m.chain,
		EmitterAddress:   PadAddress(emitter),
		Payload:          append([]byte(nil), payload...),
	}
	m.logs = append(m.logs, MockVMLog{
		Emitter:          emitter,
		Sequence:         seq,
		Nonce:            nonce,
		Payload:          msg.Payload,
		ConsistencyLevel: consistencyLevel,
		VM:               msg.Bytes(),
	})
	return seq, nil
}

// NextSequence returns the sequence number the next message of the emitter
// will get.
func (m *Mock) NextSequence(emitter util.Uint160) uint64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.sequences[emitter]
}

// SetNextSequence makes the next message of the emitter get seq. It's used to
// continue sequences of a previous session.
func (m *Mock) SetNextSequence(emitter util.Uint160, seq uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.sequences[emitter] = seq
}

// Logs returns a copy of all published message records.
func (m *Mock) Logs() []MockVMLog {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]MockVMLog(nil), m.logs...)
}
