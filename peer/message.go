package peer

import (
	"encoding/binary"
	"fmt"
	"io"

	"bittorrent/bterrors"
)

// MessageID identifies the tag byte of a post-handshake message.
type MessageID uint8

const (
	MsgChoke         MessageID = 0
	MsgUnchoke       MessageID = 1
	MsgInterested    MessageID = 2
	MsgNotInterested MessageID = 3
	MsgHave          MessageID = 4
	MsgBitfield      MessageID = 5
	MsgRequest       MessageID = 6
	MsgPiece         MessageID = 7
	MsgCancel        MessageID = 8
)

func (id MessageID) known() bool {
	return id <= MsgCancel
}

func (id MessageID) String() string {
	names := [...]string{"choke", "unchoke", "interested", "not-interested", "have", "bitfield", "request", "piece", "cancel"}
	if int(id) < len(names) {
		return names[id]
	}
	return fmt.Sprintf("unknown(%d)", id)
}

// Message is one length-prefixed peer message: a tag byte plus payload.
type Message struct {
	ID      MessageID
	Payload []byte
}

// Serialize renders m to its length-prefixed wire form. A nil *Message
// serializes to a zero-length keep-alive frame.
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4)
	}
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// ReadMessage reads one frame from r. It returns (nil, nil) for a
// keep-alive (length-0) frame, and rejects unknown message tags as a
// FramingProtocol error.
func ReadMessage(r io.Reader) (*Message, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, bterrors.Wrap(bterrors.IOFault, err, "reading frame length")
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length == 0 {
		return nil, nil // keep-alive
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, bterrors.Wrap(bterrors.IOFault, err, "reading frame body")
	}

	id := MessageID(body[0])
	if !id.known() {
		return nil, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("unknown message tag %d", id))
	}

	return &Message{ID: id, Payload: body[1:]}, nil
}

// FormatRequest builds a "request" message for the given block.
func FormatRequest(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: MsgRequest, Payload: payload}
}

// FormatHave builds a "have" message.
func FormatHave(index int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return &Message{ID: MsgHave, Payload: payload}
}

// ParsePiece validates and copies a "piece" message's block into buf at
// its declared offset. It returns the number of bytes copied.
func ParsePiece(index int, buf []byte, msg *Message) (int, error) {
	if msg.ID != MsgPiece {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("expected piece message, got %s", msg.ID))
	}
	if len(msg.Payload) < 8 {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("piece payload too short: %d bytes", len(msg.Payload)))
	}

	gotIndex := int(binary.BigEndian.Uint32(msg.Payload[0:4]))
	if gotIndex != index {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("piece message for index %d, wanted %d", gotIndex, index))
	}

	begin := int(binary.BigEndian.Uint32(msg.Payload[4:8]))
	if begin >= len(buf) {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("begin offset %d out of range", begin))
	}

	data := msg.Payload[8:]
	if begin+len(data) > len(buf) {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("block of %d bytes at offset %d overruns piece buffer", len(data), begin))
	}

	copy(buf[begin:], data)
	return len(data), nil
}

// ParseHave parses a "have" message's piece index.
func ParseHave(msg *Message) (int, error) {
	if msg.ID != MsgHave {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("expected have message, got %s", msg.ID))
	}
	if len(msg.Payload) != 4 {
		return 0, bterrors.New(bterrors.FramingProtocol, fmt.Sprintf("have payload must be 4 bytes, got %d", len(msg.Payload)))
	}
	return int(binary.BigEndian.Uint32(msg.Payload)), nil
}
