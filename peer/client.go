package peer

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"bittorrent/bterrors"
	"bittorrent/tracker"
)

// handshakeTimeout and bitfieldTimeout bound the suspension points during
// connection setup. Once a session starts, piecedownload sets its own
// deadline around Start and around each DownloadPiece call.
const (
	handshakeTimeout = 3 * time.Second
	bitfieldTimeout  = 5 * time.Second
)

// Client is one TCP channel to a single peer. Send and receive are never
// concurrent on the same Client: the download loop in piecedownload
// serializes every read and write on it, one logical task per connection.
type Client struct {
	Conn     net.Conn
	Choked   bool
	Bitfield Bitfield
	PeerID   [20]byte

	peer     tracker.Peer
	infoHash [20]byte
}

// Dial opens a TCP connection to p, performs the handshake, and waits for
// the peer's initial bitfield message (accepted once).
func Dial(p tracker.Peer, peerID, infoHash [20]byte) (*Client, error) {
	conn, err := net.DialTimeout("tcp", p.String(), handshakeTimeout)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.IOFault, err, "dialing peer")
	}

	remotePeerID, err := handshake(conn, peerID, infoHash)
	if err != nil {
		conn.Close()
		return nil, err
	}

	bf, err := receiveBitfield(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	logrus.WithField("peer", p.String()).Debug("handshake complete")
	return &Client{
		Conn:     conn,
		Choked:   true,
		Bitfield: bf,
		PeerID:   remotePeerID,
		peer:     p,
		infoHash: infoHash,
	}, nil
}

func handshake(conn net.Conn, peerID, infoHash [20]byte) ([20]byte, error) {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	req := Handshake{InfoHash: infoHash, PeerID: peerID}
	if _, err := conn.Write(req.Serialize()); err != nil {
		return [20]byte{}, bterrors.Wrap(bterrors.IOFault, err, "sending handshake")
	}

	resp, err := ReadHandshake(conn)
	if err != nil {
		return [20]byte{}, err
	}

	if !bytes.Equal(resp.InfoHash[:], infoHash[:]) {
		return [20]byte{}, bterrors.New(bterrors.HandshakeProtocol, fmt.Sprintf("peer responded with info-hash %x, wanted %x", resp.InfoHash, infoHash))
	}
	return resp.PeerID, nil
}

func receiveBitfield(conn net.Conn) (Bitfield, error) {
	conn.SetDeadline(time.Now().Add(bitfieldTimeout))
	defer conn.SetDeadline(time.Time{})

	msg, err := ReadMessage(conn)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ID != MsgBitfield {
		return nil, bterrors.New(bterrors.FramingProtocol, "expected bitfield as the first post-handshake message")
	}
	return Bitfield(msg.Payload), nil
}

// Read reads the next frame, returning (nil, nil) for a keep-alive.
func (c *Client) Read() (*Message, error) {
	return ReadMessage(c.Conn)
}

func (c *Client) send(msg *Message) error {
	_, err := c.Conn.Write(msg.Serialize())
	if err != nil {
		return bterrors.Wrap(bterrors.IOFault, err, "writing message")
	}
	return nil
}

// SendInterested sends an "interested" message.
func (c *Client) SendInterested() error { return c.send(&Message{ID: MsgInterested}) }

// SendNotInterested sends a "not-interested" message.
func (c *Client) SendNotInterested() error { return c.send(&Message{ID: MsgNotInterested}) }

// SendUnchoke sends an "unchoke" message (used here only to signal
// willingness to upload; this client never seeds, but peers conventionally
// expect it before honoring requests).
func (c *Client) SendUnchoke() error { return c.send(&Message{ID: MsgUnchoke}) }

// SendHave announces that piece index has been fully verified.
func (c *Client) SendHave(index int) error { return c.send(FormatHave(index)) }

// SendRequest requests one block.
func (c *Client) SendRequest(index, begin, length int) error {
	return c.send(FormatRequest(index, begin, length))
}
