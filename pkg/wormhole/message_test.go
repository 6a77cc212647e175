package wormhole

import (
	"bytes"
	"testing"
	"time"

	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestParseDummyMessage(t *testing.T) {
	data := CreateDummyMessage(ChainIDEthereum, util.Uint160{})
	require.Equal(t, minSize, len(data))

	m, err := ParseMessage(data)
	require.NoError(t, err)
	require.Equal(t, &Message{
		Version:      SupportedVersion,
		EmitterChain: ChainIDEthereum,
	}, m)
}

func TestMessageRoundTrip(t *testing.T) {
	emitter := util.Uint160{1, 2, 3}
	m := &Message{
		Version:          SupportedVersion,
		GuardianSetIndex: 3,
		Timestamp:        1700000000,
		Nonce:            42,
		Sequence:         7,
		ConsistencyLevel: 1,
		EmitterChain:     ChainIDSolana,
		EmitterAddress:   PadAddress(emitter),
		Payload:          []byte("registration"),
	}
	actual, err := ParseMessage(m.Bytes())
	require.NoError(t, err)
	require.Equal(t, m, actual)
	require.Equal(t, m.Hash(), actual.Hash())

	padded := actual.EmitterAddress.BytesBE()
	require.Equal(t, make([]byte, 12), padded[:12])
	require.Equal(t, emitter.BytesBE(), padded[12:])
}

func TestMessageHashIgnoresHeader(t *testing.T) {
	m := &Message{Version: SupportedVersion, Nonce: 1, Payload: []byte{1}}
	h := m.Hash()
	m.GuardianSetIndex = 5
	require.Equal(t, h, m.Hash())
	m.Nonce = 2
	require.NotEqual(t, h, m.Hash())
}

func TestParseMessageErrors(t *testing.T) {
	data := CreateDummyMessage(ChainIDEthereum, util.Uint160{})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseMessage(nil)
		require.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] = 2
		_, err := ParseMessage(bad)
		require.ErrorIs(t, err, ErrInvalidVersion)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := ParseMessage(data[:len(data)-1])
		require.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("missing signatures", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[5] = 1
		_, err := ParseMessage(bad)
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func TestParseMessageSkipsSignatures(t *testing.T) {
	m := &Message{Version: SupportedVersion, Sequence: 9, Payload: []byte{0xde, 0xad}}
	data := m.Bytes()

	signed := append([]byte(nil), data[:5]...)
	signed = append(signed, 2)
	signed = append(signed, make([]byte, 2*signatureSize)...)
	signed = append(signed, data[6:]...)

	actual, err := ParseMessage(signed)
	require.NoError(t, err)
	require.Equal(t, m, actual)
}

func TestMockPublish(t *testing.T) {
	var (
		mock = NewMock(ChainIDEthereum)
		a    = util.Uint160{1}
		b    = util.Uint160{2}
	)
	mock.Now = func() time.Time { return time.Unix(1700000000, 0) }

	for i, em := range []util.Uint160{a, a, b, a} {
		seq, err := mock.PublishMessage(em, uint32(i), []byte{byte(i)}, 1)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 1, 0, 2}[i], seq)
	}
	require.Equal(t, uint64(3), mock.NextSequence(a))
	require.Equal(t, uint64(1), mock.NextSequence(b))
	require.Equal(t, uint64(0), mock.NextSequence(util.Uint160{3}))

	logs := mock.Logs()
	require.Len(t, logs, 4)
	last := logs[3]
	require.Equal(t, a, last.Emitter)
	require.Equal(t, uint64(2), last.Sequence)

	m, err := ParseMessage(last.VM)
	require.NoError(t, err)
	require.Equal(t, &Message{
		Version:          SupportedVersion,
		Timestamp:        1700000000,
		Nonce:            3,
		Sequence:         2,
		ConsistencyLevel: 1,
		EmitterChain:     ChainIDEthereum,
		EmitterAddress:   PadAddress(a),
		Payload:          []byte{3},
	}, m)

	_, err = mock.PublishMessage(a, 0, make([]byte, MaxPayloadSize+1), 1)
	require.ErrorIs(t, err, ErrPayloadTooBig)
	require.Len(t, mock.Logs(), 4)
}

func TestMockSetNextSequence(t *testing.T) {
	mock := NewMock(ChainIDEthereum)
	em := util.Uint160{1}
	mock.SetNextSequence(em, 5)
	require.Equal(t, uint64(5), mock.NextSequence(em))

	seq, err := mock.PublishMessage(em, 0, []byte{1}, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(5), seq)
	require.Equal(t, uint64(0), mock.NextSequence(util.Uint160{2}))
}
