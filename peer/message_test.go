package peer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageSerializeRoundTrip(t *testing.T) {
	m := &Message{ID: MsgRequest, Payload: []byte{0, 0, 0, 1}}
	wire := m.Serialize()

	got, err := ReadMessage(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Payload, got.Payload)
}

func TestReadMessageKeepAlive(t *testing.T) {
	got, err := ReadMessage(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadMessageUnknownTag(t *testing.T) {
	wire := (&Message{ID: MessageID(200)}).Serialize()
	_, err := ReadMessage(bytes.NewReader(wire))
	assert.Error(t, err)
}

func TestFormatRequest(t *testing.T) {
	m := FormatRequest(1, 16384, 16384)
	assert.Equal(t, MsgRequest, m.ID)
	require.Len(t, m.Payload, 12)
}

func TestParsePiece(t *testing.T) {
	buf := make([]byte, 8)
	msg := &Message{ID: MsgPiece, Payload: append([]byte{0, 0, 0, 0, 0, 0, 0, 4}, []byte("data")...)}
	n, err := ParsePiece(0, buf, msg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("data"), buf[4:8])
}

func TestParsePieceWrongIndex(t *testing.T) {
	buf := make([]byte, 8)
	msg := &Message{ID: MsgPiece, Payload: append([]byte{0, 0, 0, 1, 0, 0, 0, 0}, []byte("data")...)}
	_, err := ParsePiece(0, buf, msg)
	assert.Error(t, err)
}

func TestParseHave(t *testing.T) {
	msg := FormatHave(7)
	idx, err := ParseHave(msg)
	require.NoError(t, err)
	assert.Equal(t, 7, idx)
}
