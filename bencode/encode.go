package bencode

import (
	"strconv"
)

// Encode renders v as its canonical bencode byte representation. Integers
// are emitted in minimal decimal form (no leading zeros, no "-0", even
// though Decode accepts both on the way in). Dictionary keys are always
// emitted in ascending raw-byte order — Value built via Dict is already
// sorted, and Decode sorts whatever order it found on the wire, so by the
// time Encode runs the order is already canonical.
func Encode(v Value) []byte {
	var buf []byte
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindString:
		buf = strconv.AppendInt(buf, int64(len(v.Str)), 10)
		buf = append(buf, ':')
		buf = append(buf, v.Str...)
		return buf
	case KindInteger:
		buf = append(buf, 'i')
		buf = strconv.AppendInt(buf, v.Int, 10)
		buf = append(buf, 'e')
		return buf
	case KindList:
		buf = append(buf, 'l')
		for _, item := range v.List {
			buf = appendValue(buf, item)
		}
		buf = append(buf, 'e')
		return buf
	case KindDictionary:
		buf = append(buf, 'd')
		for _, e := range v.Dict {
			buf = appendValue(buf, String(e.Key))
			buf = appendValue(buf, e.Value)
		}
		buf = append(buf, 'e')
		return buf
	default:
		return buf
	}
}
