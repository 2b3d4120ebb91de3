// Package metainfo builds the typed TorrentMetainfo view over a parsed
// .torrent bencode dictionary and computes its info-hash.
package metainfo

import (
	"crypto/sha1"
	"io"

	"github.com/sirupsen/logrus"

	"bittorrent/bencode"
	"bittorrent/bterrors"
)

const pieceHashSize = 20

// Metainfo is the typed projection of a single-file .torrent's relevant
// fields. Multi-file torrents aren't supported; Length is the whole
// payload size.
type Metainfo struct {
	Announce    string
	Length      int64
	Name        string
	PieceLength int64
	Pieces      [][pieceHashSize]byte

	// info holds the canonical bencode.Value for the info sub-dictionary,
	// rebuilt from the typed fields above, so InfoHash never depends on a
	// caller re-deriving it from source bytes that might not be canonical.
	info bencode.Value
}

// Parse reads a whole .torrent's bytes and projects it into a Metainfo.
func Parse(raw []byte) (*Metainfo, error) {
	v, rest, err := bencode.Decode(raw)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.ParseFormat, err, "decoding torrent file")
	}
	if len(rest) != 0 {
		logrus.WithField("trailing_bytes", len(rest)).Debug("torrent file has trailing bytes after the bencode value")
	}
	return FromValue(v)
}

// ParseReader is a convenience wrapper for callers holding an io.Reader;
// it just drains it and parses the result.
func ParseReader(r io.Reader) (*Metainfo, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.IOFault, err, "reading torrent file")
	}
	return Parse(raw)
}

// FromValue builds a Metainfo from an already-decoded bencode.Value.
func FromValue(v bencode.Value) (*Metainfo, error) {
	announceV, ok := v.Get("announce")
	if !ok || announceV.Kind != bencode.KindString {
		return nil, bterrors.New(bterrors.MetainfoShape, "missing/invalid announce")
	}

	infoV, ok := v.Get("info")
	if !ok || infoV.Kind != bencode.KindDictionary {
		return nil, bterrors.New(bterrors.MetainfoShape, "missing/invalid info")
	}

	lengthV, ok := infoV.Get("length")
	if !ok || lengthV.Kind != bencode.KindInteger || lengthV.Int < 0 {
		return nil, bterrors.New(bterrors.MetainfoShape, "missing/invalid length")
	}

	nameV, ok := infoV.Get("name")
	if !ok || nameV.Kind != bencode.KindString {
		return nil, bterrors.New(bterrors.MetainfoShape, "missing/invalid name")
	}

	pieceLengthV, ok := infoV.Get("piece length")
	if !ok || pieceLengthV.Kind != bencode.KindInteger || pieceLengthV.Int <= 0 {
		return nil, bterrors.New(bterrors.MetainfoShape, "missing/invalid piece length")
	}

	piecesV, ok := infoV.Get("pieces")
	if !ok || piecesV.Kind != bencode.KindString {
		return nil, bterrors.New(bterrors.MetainfoShape, "missing/invalid pieces")
	}
	if len(piecesV.Str)%pieceHashSize != 0 {
		return nil, bterrors.New(bterrors.MetainfoShape, "invalid pieces length")
	}

	pieces := make([][pieceHashSize]byte, len(piecesV.Str)/pieceHashSize)
	for i := range pieces {
		copy(pieces[i][:], piecesV.Str[i*pieceHashSize:(i+1)*pieceHashSize])
	}

	m := &Metainfo{
		Announce:    string(announceV.Str),
		Length:      lengthV.Int,
		Name:        string(nameV.Str),
		PieceLength: pieceLengthV.Int,
		Pieces:      pieces,
	}
	m.info = bencode.Dict([]bencode.DictEntry{
		{Key: []byte("length"), Value: bencode.Integer(m.Length)},
		{Key: []byte("name"), Value: bencode.String([]byte(m.Name))},
		{Key: []byte("piece length"), Value: bencode.Integer(m.PieceLength)},
		{Key: []byte("pieces"), Value: bencode.String(piecesV.Str)},
	})
	return m, nil
}

// InfoHash is the SHA-1 of the canonical bencode re-emit of the info
// sub-dictionary.
func (m *Metainfo) InfoHash() [20]byte {
	return sha1.Sum(bencode.Encode(m.info))
}

// PieceCount is ceil(Length / PieceLength).
func (m *Metainfo) PieceCount() int {
	if m.PieceLength == 0 {
		return 0
	}
	n := m.Length / m.PieceLength
	if m.Length%m.PieceLength != 0 {
		n++
	}
	return int(n)
}

// PieceLen returns the byte length of piece i: PieceLength for every piece
// but the last, whose length is whatever remains.
func (m *Metainfo) PieceLen(i int) int64 {
	count := m.PieceCount()
	if i < count-1 {
		return m.PieceLength
	}
	remainder := m.Length - m.PieceLength*int64(count-1)
	if remainder == 0 {
		return m.PieceLength
	}
	return remainder
}
