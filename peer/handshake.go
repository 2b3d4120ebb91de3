// Package peer implements the peer wire protocol: the 68-byte handshake,
// length-prefixed message framing, and a Client wrapping one net.Conn.
package peer

import (
	"io"

	"bittorrent/bterrors"
)

// Protocol is the fixed protocol string every handshake carries.
const Protocol = "BitTorrent protocol"

// Handshake is the fixed 68-byte frame exchanged immediately after TCP
// connect.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// Serialize renders the handshake to its 68-byte wire form.
func (h Handshake) Serialize() []byte {
	buf := make([]byte, 0, 49+len(Protocol))
	buf = append(buf, byte(len(Protocol)))
	buf = append(buf, Protocol...)
	buf = append(buf, make([]byte, 8)...) // reserved, zero
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	return buf
}

// ReadHandshake reads and validates a 68-byte handshake frame from r.
func ReadHandshake(r io.Reader) (Handshake, error) {
	lenBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Handshake{}, bterrors.Wrap(bterrors.HandshakeProtocol, err, "reading handshake length byte")
	}
	pstrlen := int(lenBuf[0])
	if pstrlen != len(Protocol) {
		return Handshake{}, bterrors.New(bterrors.HandshakeProtocol, "unsupported protocol: wrong length byte")
	}

	rest := make([]byte, pstrlen+48)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Handshake{}, bterrors.Wrap(bterrors.HandshakeProtocol, err, "reading handshake body")
	}

	if string(rest[:pstrlen]) != Protocol {
		return Handshake{}, bterrors.New(bterrors.HandshakeProtocol, "unsupported protocol: protocol string mismatch")
	}

	var h Handshake
	cursor := pstrlen + 8
	copy(h.InfoHash[:], rest[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], rest[cursor:cursor+20])
	return h, nil
}
