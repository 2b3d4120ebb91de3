// Package tracker builds the tracker announce URL and decodes the compact
// peer list from a tracker's bencoded HTTP response.
package tracker

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"bittorrent/bencode"
	"bittorrent/bterrors"
	"bittorrent/metainfo"
)

// DefaultPort is the client's compile-time listening port.
const DefaultPort = 6881

// Peer is one compact peer entry: an IPv4 address and a port.
type Peer struct {
	IP   net.IP
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// BuildURL builds the tracker GET URL for m, percent-encoding the raw
// 20-byte info-hash and peer ID rather than their hex forms.
func BuildURL(m *metainfo.Metainfo, peerID [20]byte, port uint16) (string, error) {
	base, err := url.Parse(m.Announce)
	if err != nil {
		return "", bterrors.Wrap(bterrors.TrackerTransport, err, "parsing announce URL")
	}

	infoHash := m.InfoHash()
	q := url.Values{
		"port":       {strconv.Itoa(int(port))},
		"uploaded":   {"0"},
		"downloaded": {"0"},
		"left":       {strconv.FormatInt(m.Length, 10)},
		"compact":    {"1"},
	}
	base.RawQuery = q.Encode() +
		"&info_hash=" + percentEncodeRaw(infoHash[:]) +
		"&peer_id=" + percentEncodeRaw(peerID[:])
	return base.String(), nil
}

// percentEncodeRaw percent-encodes every byte of b as %XX. url.Values
// would instead percent-encode the bytes as if they were printable text,
// which mangles non-printable hash bytes; tracker query params for
// info_hash/peer_id must be built manually because of this.
func percentEncodeRaw(b []byte) string {
	out := make([]byte, 0, len(b)*3)
	for _, c := range b {
		out = append(out, '%')
		out = append(out, "0123456789ABCDEF"[c>>4], "0123456789ABCDEF"[c&0xf])
	}
	return string(out)
}

// RequestPeers performs the tracker GET for m and decodes the compact
// peer list from the response body. The supplied client is the opaque
// HTTP transport; callers typically pass http.DefaultClient.
func RequestPeers(client *http.Client, m *metainfo.Metainfo, peerID [20]byte, port uint16) ([]Peer, error) {
	announceURL, err := BuildURL(m, peerID, port)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(m.Announce)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.TrackerTransport, err, "parsing announce URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, bterrors.New(bterrors.TrackerTransport, fmt.Sprintf("unsupported tracker scheme %q: only http/https trackers are supported", u.Scheme))
	}

	logrus.WithField("url", announceURL).Debug("announcing to tracker")
	resp, err := client.Get(announceURL)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.TrackerTransport, err, "tracker GET")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, bterrors.New(bterrors.TrackerTransport, fmt.Sprintf("tracker returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.IOFault, err, "reading tracker response")
	}

	return ParseResponse(body)
}

// ParseResponse decodes a tracker's bencoded response body into a peer
// list.
func ParseResponse(body []byte) ([]Peer, error) {
	v, _, err := bencode.Decode(body)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.TrackerFormat, err, "decoding tracker response")
	}

	if reasonV, ok := v.Get("failure reason"); ok && reasonV.Kind == bencode.KindString {
		return nil, bterrors.New(bterrors.TrackerFormat, fmt.Sprintf("tracker failure: %s", reasonV.Str))
	}

	peersV, ok := v.Get("peers")
	if !ok || peersV.Kind != bencode.KindString {
		return nil, bterrors.New(bterrors.TrackerFormat, "missing peers field")
	}

	return DecodeCompactPeers(peersV.Str)
}

// DecodeCompactPeers decodes the compact peer list format: consecutive
// 6-byte groups, each (IPv4 big-endian, port big-endian u16).
func DecodeCompactPeers(b []byte) ([]Peer, error) {
	const groupSize = 6
	if len(b)%groupSize != 0 {
		return nil, bterrors.New(bterrors.TrackerFormat, fmt.Sprintf("peers length %d is not a multiple of %d", len(b), groupSize))
	}

	peers := make([]Peer, len(b)/groupSize)
	for i := range peers {
		off := i * groupSize
		ip := make(net.IP, 4)
		copy(ip, b[off:off+4])
		peers[i] = Peer{
			IP:   ip,
			Port: uint16(b[off+4])<<8 | uint16(b[off+5]),
		}
	}
	return peers, nil
}
