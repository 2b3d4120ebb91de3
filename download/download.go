// Package download sequences whole-file downloads over a single peer
// connection: piece 0, 1, ..., piece_count-1, assembled into the output.
// This package only ever drives one peer.Client through one piecedownload
// Session.
package download

import (
	"github.com/sirupsen/logrus"

	"bittorrent/metainfo"
	"bittorrent/peer"
	"bittorrent/piecedownload"
	"bittorrent/tracker"
)

// PeerIDPrefix seeds the client's fixed 20-byte peer ID.
const PeerIDPrefix = "-GT0001-"

// GeneratePeerID builds the compile-time-constant client peer ID.
func GeneratePeerID() [20]byte {
	var id [20]byte
	copy(id[:], PeerIDPrefix+"123456789012")
	return id
}

// Piece downloads and verifies a single piece of m from peer p.
func Piece(m *metainfo.Metainfo, p tracker.Peer, index int) ([]byte, error) {
	peerID := GeneratePeerID()
	infoHash := m.InfoHash()

	client, err := peer.Dial(p, peerID, infoHash)
	if err != nil {
		return nil, err
	}
	defer client.Conn.Close()

	session := piecedownload.NewSession(client)
	if err := session.Start(); err != nil {
		return nil, err
	}

	return session.DownloadPiece(index, m.PieceLen(index), m.Pieces[index])
}

// All downloads every piece of m from peer p, in order, and returns the
// assembled file bytes.
func All(m *metainfo.Metainfo, p tracker.Peer) ([]byte, error) {
	peerID := GeneratePeerID()
	infoHash := m.InfoHash()

	client, err := peer.Dial(p, peerID, infoHash)
	if err != nil {
		return nil, err
	}
	defer client.Conn.Close()

	session := piecedownload.NewSession(client)
	if err := session.Start(); err != nil {
		return nil, err
	}

	out := make([]byte, m.Length)
	count := m.PieceCount()
	offset := int64(0)
	for i := 0; i < count; i++ {
		pieceLen := m.PieceLen(i)
		buf, err := session.DownloadPiece(i, pieceLen, m.Pieces[i])
		if err != nil {
			return nil, err
		}
		copy(out[offset:offset+pieceLen], buf)
		offset += pieceLen

		if err := client.SendHave(i); err != nil {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"piece":   i,
			"percent": float64(i+1) / float64(count) * 100,
		}).Info("piece downloaded")
	}
	return out, nil
}
