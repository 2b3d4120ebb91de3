// Command mybittorrent is the CLI front-end over this module's core
// packages: decode/info/peers/handshake/download_piece/download. File
// reads, hex/JSON rendering, and argument parsing stay here and never
// leak into the core packages.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"bittorrent/bencode"
	"bittorrent/bterrors"
	"bittorrent/download"
	"bittorrent/metainfo"
	"bittorrent/peer"
	"bittorrent/tracker"
)

func trackerPeerFromAddr(addr string) tracker.Peer {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return tracker.Peer{}
	}
	port, _ := strconv.Atoi(portStr)
	return tracker.Peer{IP: net.ParseIP(host), Port: uint16(port)}
}

func main() {
	logrus.SetLevel(logrus.WarnLevel)
	if os.Getenv("MYBITTORRENT_DEBUG") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if len(os.Args) < 2 {
		fatal(fmt.Errorf("usage: mybittorrent <decode|info|peers|handshake|download_piece|download> ..."))
	}

	var err error
	switch os.Args[1] {
	case "decode":
		err = runDecode(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "peers":
		err = runPeers(os.Args[2:])
	case "handshake":
		err = runHandshake(os.Args[2:])
	case "download_piece":
		err = runDownloadPiece(os.Args[2:])
	case "download":
		err = runDownload(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	if kind, ok := bterrors.KindOf(err); ok {
		fmt.Fprintf(os.Stderr, "%s: %v\n", kind, err)
	} else {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	os.Exit(1)
}

func runDecode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mybittorrent decode <bencoded string>")
	}
	v, _, err := bencode.Decode([]byte(args[0]))
	if err != nil {
		return bterrors.Wrap(bterrors.ParseFormat, err, "decoding argument")
	}

	rendered, err := json.Marshal(toJSON(v))
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))
	return nil
}

// toJSON renders a bencode.Value as JSON: a ByteString becomes a JSON
// string when it is valid UTF-8, and a JSON array of raw byte values
// otherwise.
func toJSON(v bencode.Value) any {
	switch v.Kind {
	case bencode.KindString:
		if utf8.Valid(v.Str) {
			return string(v.Str)
		}
		out := make([]int, len(v.Str))
		for i, b := range v.Str {
			out[i] = int(b)
		}
		return out
	case bencode.KindInteger:
		return v.Int
	case bencode.KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = toJSON(item)
		}
		return out
	case bencode.KindDictionary:
		out := make(map[string]any, len(v.Dict))
		for _, e := range v.Dict {
			out[string(e.Key)] = toJSON(e.Value)
		}
		return out
	default:
		return nil
	}
}

func openMetainfo(path string) (*metainfo.Metainfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.IOFault, err, "opening torrent file")
	}
	defer f.Close()
	return metainfo.ParseReader(f)
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mybittorrent info <path.torrent>")
	}
	m, err := openMetainfo(args[0])
	if err != nil {
		return err
	}

	infoHash := m.InfoHash()
	fmt.Printf("Tracker URL: %s\n", m.Announce)
	fmt.Printf("Length: %d\n", m.Length)
	fmt.Printf("Info Hash: %s\n", hex.EncodeToString(infoHash[:]))
	fmt.Printf("Piece Length: %d\n", m.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, h := range m.Pieces {
		fmt.Println(hex.EncodeToString(h[:]))
	}
	return nil
}

func runPeers(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mybittorrent peers <path.torrent>")
	}
	m, err := openMetainfo(args[0])
	if err != nil {
		return err
	}

	peerID := download.GeneratePeerID()
	peers, err := tracker.RequestPeers(http.DefaultClient, m, peerID, tracker.DefaultPort)
	if err != nil {
		return err
	}
	for _, p := range peers {
		fmt.Println(p.String())
	}
	return nil
}

func runHandshake(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mybittorrent handshake <path.torrent> <ip:port>")
	}
	m, err := openMetainfo(args[0])
	if err != nil {
		return err
	}

	peerID := download.GeneratePeerID()
	infoHash := m.InfoHash()
	c, err := peer.Dial(trackerPeerFromAddr(args[1]), peerID, infoHash)
	if err != nil {
		return err
	}
	defer c.Conn.Close()

	fmt.Printf("Peer ID: %s\n", hex.EncodeToString(c.PeerID[:]))
	return nil
}

func runDownloadPiece(args []string) error {
	fs := flag.NewFlagSet("download_piece", flag.ExitOnError)
	out := fs.String("o", "", "output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if *out == "" || len(rest) != 2 {
		return fmt.Errorf("usage: mybittorrent download_piece -o <out> <path.torrent> <piece index>")
	}

	m, err := openMetainfo(rest[0])
	if err != nil {
		return err
	}
	index, err := parsePieceIndex(rest[1], m.PieceCount())
	if err != nil {
		return err
	}

	p, err := firstPeer(m)
	if err != nil {
		return err
	}

	buf, err := download.Piece(m, p, index)
	if err != nil {
		return err
	}
	return writeFile(*out, buf)
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	out := fs.String("o", "", "output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if *out == "" || len(rest) != 1 {
		return fmt.Errorf("usage: mybittorrent download -o <out> <path.torrent>")
	}

	m, err := openMetainfo(rest[0])
	if err != nil {
		return err
	}

	p, err := firstPeer(m)
	if err != nil {
		return err
	}

	buf, err := download.All(m, p)
	if err != nil {
		return err
	}
	return writeFile(*out, buf)
}

func firstPeer(m *metainfo.Metainfo) (tracker.Peer, error) {
	peerID := download.GeneratePeerID()
	peers, err := tracker.RequestPeers(http.DefaultClient, m, peerID, tracker.DefaultPort)
	if err != nil {
		return tracker.Peer{}, err
	}
	if len(peers) == 0 {
		return tracker.Peer{}, bterrors.New(bterrors.TrackerFormat, "tracker returned no peers")
	}
	return peers[0], nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return bterrors.Wrap(bterrors.IOFault, err, "writing output file")
	}
	return nil
}

func parsePieceIndex(s string, count int) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid piece index %q", s)
	}
	if index < 0 || index >= count {
		return 0, fmt.Errorf("piece index %d out of range [0, %d)", index, count)
	}
	return index, nil
}
