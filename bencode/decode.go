package bencode

import "github.com/pkg/errors"

// Decode consumes a single bencode value from the front of b and returns
// it along with the unread remainder. It never requires b to be UTF-8 and
// never copies byte string payloads out of b: the returned Value borrows
// slices of the input.
func Decode(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, ErrEmptyInput
	}

	switch {
	case b[0] == 'i':
		return decodeInteger(b)
	case b[0] == 'l':
		return decodeList(b)
	case b[0] == 'd':
		return decodeDictionary(b)
	case b[0] >= '0' && b[0] <= '9':
		return decodeString(b)
	default:
		return Value{}, nil, errors.Wrapf(ErrUnknownPrefix, "byte %q", b[0])
	}
}

// decodeString parses "<n>:<bytes>".
func decodeString(b []byte) (Value, []byte, error) {
	colon := -1
	for i, c := range b {
		if c == ':' {
			colon = i
			break
		}
		if c < '0' || c > '9' {
			return Value{}, nil, ErrMissingColon
		}
	}
	if colon < 0 {
		return Value{}, nil, ErrMissingColon
	}

	n, err := parseLenientInt(b[:colon])
	if err != nil || n < 0 {
		return Value{}, nil, errors.Wrap(ErrBadInteger, "byte string length")
	}

	rest := b[colon+1:]
	if int64(len(rest)) < n {
		return Value{}, nil, ErrTruncatedString
	}
	return String(rest[:n]), rest[n:], nil
}

// decodeInteger parses "i<decimal>e". Leading zeros and "-0" are accepted
// on decode (a known permissiveness carried forward deliberately; Encode
// never re-emits either form).
func decodeInteger(b []byte) (Value, []byte, error) {
	end := indexByte(b[1:], 'e')
	if end < 0 {
		return Value{}, nil, ErrMissingEnd
	}
	end++ // account for the leading 'i' we sliced off above

	n, err := parseLenientInt(b[1:end])
	if err != nil {
		return Value{}, nil, err
	}
	return Integer(n), b[end+1:], nil
}

func decodeList(b []byte) (Value, []byte, error) {
	rest := b[1:]
	var items []Value
	for {
		if len(rest) == 0 {
			return Value{}, nil, ErrMissingEnd
		}
		if rest[0] == 'e' {
			return Value{Kind: KindList, List: items}, rest[1:], nil
		}
		var item Value
		var err error
		item, rest, err = Decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		items = append(items, item)
	}
}

func decodeDictionary(b []byte) (Value, []byte, error) {
	rest := b[1:]
	var entries []DictEntry
	for {
		if len(rest) == 0 {
			return Value{}, nil, ErrMissingEnd
		}
		if rest[0] == 'e' {
			sortEntries(entries)
			return Value{Kind: KindDictionary, Dict: entries}, rest[1:], nil
		}

		var key Value
		var err error
		key, rest, err = Decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if key.Kind != KindString {
			return Value{}, nil, ErrNonStringDictKey
		}

		var val Value
		val, rest, err = Decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		entries = append(entries, DictEntry{Key: key.Str, Value: val})
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseLenientInt scans an ASCII decimal integer with an optional leading
// '-', accepting leading zeros and "-0". It rejects anything that isn't
// pure ASCII digits (plus the optional sign) and overflow of a signed
// 64-bit integer.
func parseLenientInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, ErrBadInteger
	}
	neg := false
	i := 0
	if b[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(b) {
		return 0, ErrBadInteger
	}

	var n uint64
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, ErrBadInteger
		}
		digit := uint64(c - '0')
		if n > (1<<63-1-digit)/10 {
			return 0, errors.Wrap(ErrBadInteger, "overflow")
		}
		n = n*10 + digit
	}
	if neg {
		return -int64(n), nil
	}
	return int64(n), nil
}
