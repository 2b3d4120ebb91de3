package piecedownload

import (
	"bytes"
	"crypto/sha1"
	"time"

	"github.com/sirupsen/logrus"

	"bittorrent/bterrors"
	"bittorrent/peer"
)

// BlockSize is the fixed block unit of a peer "request" message. Only the
// last block of the last piece may be shorter.
const BlockSize = 16384

// Window is the maximum number of outstanding "request" messages on the
// wire at once. It is not configurable.
const Window = 5

const pieceTimeout = 30 * time.Second

// Session drives one Client through ReadyToExpressInterest ->
// WaitingForUnchoke -> ReadyToRequest -> GettingPieces -> ReadyToRequest,
// downloading pieces one at a time. It is the single logical task for its
// connection: every exported method blocks the caller, and none may be
// called concurrently with another.
type Session struct {
	client *peer.Client
	state  State
}

// NewSession wraps an already-handshaken peer.Client. The connection
// starts ReadyToExpressInterest; callers must call Start before
// downloading any piece.
func NewSession(c *peer.Client) *Session {
	return &Session{client: c, state: ReadyToExpressInterest}
}

// Start expresses interest and waits for the peer to unchoke, advancing
// the session to ReadyToRequest.
func (s *Session) Start() error {
	if s.state != ReadyToExpressInterest {
		return bterrors.New(bterrors.FramingProtocol, "Start called outside ReadyToExpressInterest")
	}
	if err := s.client.SendUnchoke(); err != nil {
		return err
	}
	if err := s.client.SendInterested(); err != nil {
		return err
	}
	s.state = WaitingForUnchoke

	s.client.Conn.SetDeadline(time.Now().Add(pieceTimeout))
	defer s.client.Conn.SetDeadline(time.Time{})

	for s.client.Choked {
		msg, err := s.client.Read()
		if err != nil {
			return err
		}
		if msg == nil {
			continue // keep-alive
		}
		if err := s.applyNonPieceMessage(msg); err != nil {
			return err
		}
	}
	s.state = ReadyToRequest
	return nil
}

// block is one 16 KiB (or shorter, for the last block of the last piece)
// slot within the piece currently being downloaded.
type block struct {
	begin  int
	length int
	state  BlockState
}

// DownloadPiece downloads and verifies piece `index`, whose length is
// pieceLen and whose expected SHA-1 is expectedHash. Per-piece accounting
// (block slots, outstanding count) is freshly built on every call, so
// re-entry from ReadyToRequest to ReadyToRequest between pieces never
// leaks state from the previous piece.
func (s *Session) DownloadPiece(index int, pieceLen int64, expectedHash [20]byte) ([]byte, error) {
	if s.state != ReadyToRequest {
		return nil, bterrors.New(bterrors.FramingProtocol, "DownloadPiece called outside ReadyToRequest")
	}
	s.state = GettingPieces
	defer func() { s.state = ReadyToRequest }()

	blocks := buildBlocks(pieceLen)
	buf := make([]byte, pieceLen)

	s.client.Conn.SetDeadline(time.Now().Add(pieceTimeout))
	defer s.client.Conn.SetDeadline(time.Time{})

	outstanding := 0
	for i := range blocks {
		if outstanding >= Window {
			break
		}
		if err := s.requestBlock(index, blocks, i); err != nil {
			return nil, err
		}
		outstanding++
	}

	downloaded := 0
	for downloaded < len(blocks) {
		msg, err := s.client.Read()
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue // keep-alive
		}

		switch msg.ID {
		case peer.MsgChoke:
			return nil, bterrors.New(bterrors.FramingProtocol, "peer choked during GettingPieces")
		case peer.MsgUnchoke:
			s.client.Choked = false
		case peer.MsgHave:
			// Tolerated and ignored during a piece download.
			if _, err := peer.ParseHave(msg); err != nil {
				return nil, err
			}
		case peer.MsgPiece:
			n, err := parsePieceForIndex(index, buf, msg)
			if n == 0 && err == nil {
				continue // a piece message for a different index: logged, discarded
			}
			if err != nil {
				return nil, err
			}
			outstanding--
			downloaded += markDownloaded(blocks, msg)

			nextIdx := firstBlockInState(blocks, BlockNone)
			if nextIdx >= 0 && outstanding < Window {
				if err := s.requestBlock(index, blocks, nextIdx); err != nil {
					return nil, err
				}
				outstanding++
			}
		default:
			// interested/not-interested/bitfield/request/cancel are not
			// expected from a seeding peer during download; ignore rather
			// than fail, matching the tolerant keep-alive/have handling.
		}
	}

	hash := sha1.Sum(buf)
	if !bytes.Equal(hash[:], expectedHash[:]) {
		return nil, bterrors.New(bterrors.IntegrityMismatch, "incorrect piece hash")
	}

	logrus.WithFields(logrus.Fields{"piece": index, "bytes": len(buf)}).Debug("piece verified")
	return buf, nil
}

func (s *Session) requestBlock(index int, blocks []block, i int) error {
	if err := s.client.SendRequest(index, blocks[i].begin, blocks[i].length); err != nil {
		return err
	}
	blocks[i].state = BlockRequested
	return nil
}

func buildBlocks(pieceLen int64) []block {
	count := int((pieceLen + BlockSize - 1) / BlockSize)
	blocks := make([]block, count)
	for i := range blocks {
		begin := i * BlockSize
		length := BlockSize
		if remaining := int(pieceLen) - begin; remaining < length {
			length = remaining
		}
		blocks[i] = block{begin: begin, length: length}
	}
	return blocks
}

func firstBlockInState(blocks []block, want BlockState) int {
	for i, b := range blocks {
		if b.state == want {
			return i
		}
	}
	return -1
}

// parsePieceForIndex returns (0, nil) for a piece message addressed to a
// different piece index (logged and discarded), and otherwise delegates
// to peer.ParsePiece.
func parsePieceForIndex(index int, buf []byte, msg *peer.Message) (int, error) {
	// peer.ParsePiece already rejects a mismatched index as an error; here
	// we want mismatches to be silently dropped instead, so check first.
	if len(msg.Payload) >= 4 {
		gotIndex := int(msg.Payload[0])<<24 | int(msg.Payload[1])<<16 | int(msg.Payload[2])<<8 | int(msg.Payload[3])
		if gotIndex != index {
			logrus.WithFields(logrus.Fields{"got": gotIndex, "want": index}).Debug("discarding piece message for a different piece")
			return 0, nil
		}
	}
	return peer.ParsePiece(index, buf, msg)
}

func markDownloaded(blocks []block, msg *peer.Message) int {
	begin := int(msg.Payload[4])<<24 | int(msg.Payload[5])<<16 | int(msg.Payload[6])<<8 | int(msg.Payload[7])
	for i := range blocks {
		if blocks[i].begin == begin {
			if blocks[i].state == BlockDownloaded {
				return 0
			}
			blocks[i].state = BlockDownloaded
			return 1
		}
	}
	return 0
}

// applyNonPieceMessage handles choke/unchoke/have/bitfield messages seen
// before GettingPieces (used by Start while waiting on the initial
// unchoke).
func (s *Session) applyNonPieceMessage(msg *peer.Message) error {
	switch msg.ID {
	case peer.MsgUnchoke:
		s.client.Choked = false
	case peer.MsgChoke:
		s.client.Choked = true
	case peer.MsgHave:
		idx, err := peer.ParseHave(msg)
		if err != nil {
			return err
		}
		s.client.Bitfield.SetPiece(idx)
	}
	return nil
}
