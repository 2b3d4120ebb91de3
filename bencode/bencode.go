// Package bencode implements the bencode serialization format used by
// .torrent files and tracker responses: byte strings, integers, lists and
// dictionaries, nothing else.
package bencode

import (
	"sort"

	"github.com/pkg/errors"
)

// Kind identifies which of the four bencode shapes a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindList
	KindDictionary
)

// DictEntry is one key/value pair of a Dictionary. Keys are raw bytes, not
// necessarily UTF-8, so they cannot be modeled as a Go map key without
// losing the ability to hold arbitrary byte sequences alongside a defined
// iteration order.
type DictEntry struct {
	Key   []byte
	Value Value
}

// Value is a tagged union over the four bencode kinds. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind Kind

	Str  []byte
	Int  int64
	List []Value
	Dict []DictEntry
}

// String builds a ByteString value.
func String(b []byte) Value { return Value{Kind: KindString, Str: b} }

// Integer builds an Integer value.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// List builds a List value.
func List(items []Value) Value { return Value{Kind: KindList, List: items} }

// Dict builds a Dictionary value from entries, sorting them into canonical
// ascending raw-byte key order.
func Dict(entries []DictEntry) Value {
	sorted := make([]DictEntry, len(entries))
	copy(sorted, entries)
	sortEntries(sorted)
	return Value{Kind: KindDictionary, Dict: sorted}
}

func sortEntries(entries []DictEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return compareBytes(entries[i].Key, entries[j].Key) < 0
	})
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Get looks up a key in a Dictionary value. It returns false if v is not a
// Dictionary or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDictionary {
		return Value{}, false
	}
	k := []byte(key)
	for _, e := range v.Dict {
		if compareBytes(e.Key, k) == 0 {
			return e.Value, true
		}
	}
	return Value{}, false
}

// These sentinel errors name the distinct ways a byte slice can fail to
// parse as bencode. Callers wrap them via bittorrent/bterrors; this
// package only needs stable sentinel identities.
var (
	ErrEmptyInput       = errors.New("bencode: empty input")
	ErrUnknownPrefix    = errors.New("bencode: unrecognized leading byte")
	ErrMissingColon     = errors.New("bencode: missing ':' terminator for byte string length")
	ErrMissingEnd       = errors.New("bencode: missing 'e' terminator")
	ErrTruncatedString  = errors.New("bencode: declared byte string length exceeds remaining input")
	ErrBadInteger       = errors.New("bencode: integer is not valid ASCII decimal or overflows 64 bits")
	ErrNonStringDictKey = errors.New("bencode: dictionary key is not a byte string")
)
