package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bittorrent/metainfo"
)

func TestDecodeCompactPeers(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 0x1A, 0xE1, 10, 0, 0, 1, 0x1A, 0xE9}
	peers, err := DecodeCompactPeers(raw)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "1.2.3.4:6881", peers[0].String())
	assert.Equal(t, "10.0.0.1:6889", peers[1].String())
}

func TestDecodeCompactPeersBadLength(t *testing.T) {
	_, err := DecodeCompactPeers([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseResponseMissingPeers(t *testing.T) {
	_, err := ParseResponse([]byte("d8:intervali900ee"))
	assert.Error(t, err)
}

func TestParseResponseFailureReason(t *testing.T) {
	_, err := ParseResponse([]byte("d14:failure reason11:bad requeste"))
	assert.Error(t, err)
}

func TestParseResponseOK(t *testing.T) {
	peers, err := ParseResponse([]byte("d8:intervali900e5:peers6:\x01\x02\x03\x04\x1a\xe1e"))
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "1.2.3.4:6881", peers[0].String())
}

func TestBuildURLPercentEncodesRawInfoHash(t *testing.T) {
	m, err := metainfo.Parse([]byte("d8:announce18:http://tracker/ann4:infod6:lengthi1e4:name1:x12:piece lengthi1e6:pieces20:" +
		"\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0a\x0b\x0c\x0d\x0e\x0f\x10\x11\x12\x13ee"))
	require.NoError(t, err)

	peerID := [20]byte{}
	copy(peerID[:], "-GT0001-123456789012")

	u, err := BuildURL(m, peerID, 6881)
	require.NoError(t, err)

	infoHash := m.InfoHash()
	assert.Contains(t, u, "info_hash="+percentEncodeRaw(infoHash[:]))
}
