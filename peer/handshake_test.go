package peer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeSerializeRoundTrip(t *testing.T) {
	infoHash := [20]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	peerID := [20]byte{}
	copy(peerID[:], "-GT0001-123456789012")

	h := Handshake{InfoHash: infoHash, PeerID: peerID}
	wire := h.Serialize()
	require.Len(t, wire, 68)
	assert.Equal(t, byte(19), wire[0])
	assert.Equal(t, Protocol, string(wire[1:20]))
	assert.True(t, bytes.Equal(wire[28:48], infoHash[:]))
	assert.True(t, bytes.Equal(wire[48:68], peerID[:]))

	got, err := ReadHandshake(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadHandshakeWrongLength(t *testing.T) {
	wire := []byte{5, 'h', 'e', 'l', 'l', 'o'}
	wire = append(wire, make([]byte, 48)...)
	_, err := ReadHandshake(bytes.NewReader(wire))
	assert.Error(t, err)
}

func TestReadHandshakeWrongProtocolString(t *testing.T) {
	h := Handshake{}
	wire := h.Serialize()
	copy(wire[1:], "WrongProtocolStrng.")
	_, err := ReadHandshake(bytes.NewReader(wire))
	assert.Error(t, err)
}
