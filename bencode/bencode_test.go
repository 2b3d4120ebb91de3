package bencode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInteger(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"i0e", 0},
		{"i-1e", -1},
		{"i42e", 42},
		{"i-0e", 0},  // known permissiveness: accepted on decode
		{"i007e", 7}, // known permissiveness: leading zeros accepted on decode
	}
	for _, c := range cases {
		v, rest, err := Decode([]byte(c.in))
		require.NoError(t, err, c.in)
		assert.Equal(t, KindInteger, v.Kind)
		assert.Equal(t, c.want, v.Int)
		assert.Empty(t, rest)
	}
}

func TestDecodeIntegerMissingTerminator(t *testing.T) {
	_, _, err := Decode([]byte("i42"))
	assert.ErrorIs(t, err, ErrMissingEnd)
}

func TestDecodeString(t *testing.T) {
	v, rest, err := Decode([]byte("5:hello"))
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, []byte("hello"), v.Str)
	assert.Empty(t, rest)
}

func TestDecodeStringTruncated(t *testing.T) {
	_, _, err := Decode([]byte("5:foo"))
	assert.ErrorIs(t, err, ErrTruncatedString)

	_, _, err = Decode([]byte("5"))
	assert.ErrorIs(t, err, ErrMissingColon)
}

func TestDecodeStringNonUTF8(t *testing.T) {
	v, rest, err := Decode([]byte("1:\xEF"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF}, v.Str)
	assert.Empty(t, rest)
}

func TestDecodeList(t *testing.T) {
	v, rest, err := Decode([]byte("l4:spami42ee"))
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind)
	require.Len(t, v.List, 2)
	assert.Equal(t, []byte("spam"), v.List[0].Str)
	assert.Equal(t, int64(42), v.List[1].Int)
	assert.Empty(t, rest)
}

func TestDecodeListNested(t *testing.T) {
	v, _, err := Decode([]byte("ll1:aeli1eee"))
	require.NoError(t, err)
	require.Len(t, v.List, 2)
	assert.Equal(t, []byte("a"), v.List[0].List[0].Str)
	assert.Equal(t, int64(1), v.List[1].List[0].Int)
}

func TestDecodeListMissingTerminator(t *testing.T) {
	_, _, err := Decode([]byte("l4:spam"))
	assert.ErrorIs(t, err, ErrMissingEnd)
}

func TestDecodeDictionary(t *testing.T) {
	v, rest, err := Decode([]byte("d3:bar4:spam3:fooi42ee"))
	require.NoError(t, err)
	require.Equal(t, KindDictionary, v.Kind)
	require.Len(t, v.Dict, 2)
	assert.Equal(t, "bar", string(v.Dict[0].Key))
	assert.Equal(t, []byte("spam"), v.Dict[0].Value.Str)
	assert.Equal(t, "foo", string(v.Dict[1].Key))
	assert.Equal(t, int64(42), v.Dict[1].Value.Int)
	assert.Empty(t, rest)
}

func TestDecodeDictionaryNonStringKey(t *testing.T) {
	_, _, err := Decode([]byte("di42e3:fooe"))
	assert.ErrorIs(t, err, ErrNonStringDictKey)
}

func TestDecodeEmptyInput(t *testing.T) {
	_, _, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDecodeUnknownPrefix(t *testing.T) {
	_, _, err := Decode([]byte("x"))
	assert.ErrorIs(t, err, ErrUnknownPrefix)
}

func TestEncodeString(t *testing.T) {
	assert.Equal(t, []byte("4:spam"), Encode(String([]byte("spam"))))
}

func TestEncodeInteger(t *testing.T) {
	assert.Equal(t, []byte("i0e"), Encode(Integer(0)))
	assert.Equal(t, []byte("i-1e"), Encode(Integer(-1)))
	assert.Equal(t, []byte("i42e"), Encode(Integer(42)))
}

func TestEncodeList(t *testing.T) {
	v := List([]Value{String([]byte("spam")), Integer(42)})
	assert.Equal(t, []byte("l4:spami42ee"), Encode(v))
}

func TestEncodeDictionarySortsKeys(t *testing.T) {
	v := Dict([]DictEntry{
		{Key: []byte("spam"), Value: String([]byte("eggs"))},
		{Key: []byte("cow"), Value: String([]byte("moo"))},
	})
	assert.Equal(t, []byte("d3:cow3:moo4:spam4:eggse"), Encode(v))
}

func TestEncodeDictionaryPreservesAlreadySortedOrder(t *testing.T) {
	v := Dict([]DictEntry{
		{Key: []byte("a"), Value: String([]byte("first"))},
		{Key: []byte("m"), Value: String([]byte("middle"))},
		{Key: []byte("z"), Value: String([]byte("last"))},
	})
	assert.Equal(t, []byte("d1:a5:first1:m6:middle1:z4:laste"), Encode(v))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"i0e", "i-1e", "i42e",
		"5:hello",
		"l4:spami42ee",
		"d3:bar4:spam3:fooi42ee",
		"d4:infod6:lengthi12e4:name3:foo12:piece lengthi4e6:pieces0:ee",
	}
	for _, in := range inputs {
		v, rest, err := Decode([]byte(in))
		require.NoError(t, err, in)
		require.Empty(t, rest, in)

		v2, rest2, err := Decode(Encode(v))
		require.NoError(t, err, in)
		assert.Empty(t, rest2, in)
		assert.Equal(t, v, v2, in)
	}
}

func TestValueGet(t *testing.T) {
	v, _, err := Decode([]byte("d3:bar4:spam3:fooi42ee"))
	require.NoError(t, err)

	got, ok := v.Get("foo")
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Int)

	_, ok = v.Get("missing")
	assert.False(t, ok)
}
