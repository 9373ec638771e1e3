package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core"
	"golang.org/x/xerrors"
)

func TestText_RoundTrip(t *testing.T) {
	texts := []string{
		"",
		"PortAgency",
		"IMO 9321483",
		"Ünïcödé ⚓",
		strings.Repeat("a", MaxTextLen),
		strings.Repeat("é", 15) + "a",
	}

	for _, text := range texts {
		f, err := EncodeText(text)
		require.NoError(t, err, text)

		res, err := DecodeText(f)
		require.NoError(t, err)
		require.Equal(t, text, res)
	}
}

func TestEncodeText_Overflow(t *testing.T) {
	_, err := EncodeText(strings.Repeat("a", MaxTextLen+1))
	require.True(t, xerrors.Is(err, core.ErrInvalidInput))
	require.EqualError(t, err, "text of 32 bytes exceeds 31: invalid input")

	// 16 runes but 32 bytes.
	_, err = EncodeText(strings.Repeat("é", 16))
	require.True(t, xerrors.Is(err, core.ErrInvalidInput))

	_, err = EncodeText(string([]byte{0xff}))
	require.EqualError(t, err, "text is not utf-8: invalid input")

	_, err = EncodeText("a\x00b")
	require.EqualError(t, err, "text contains a zero byte: invalid input")
}

func TestDecodeText(t *testing.T) {
	res, err := DecodeText(Field{})
	require.NoError(t, err)
	require.Equal(t, Unset, res)

	var f Field
	for i := range f {
		f[i] = 'a'
	}

	_, err = DecodeText(f)
	require.EqualError(t, err, "field is not terminated: invalid input")

	f = Field{0xff}
	_, err = DecodeText(f)
	require.EqualError(t, err, "field is not utf-8: invalid input")
}

func TestNumber_RoundTrip(t *testing.T) {
	for _, n := range []uint64{1, 800, 1000, 18446744073709551615} {
		f, err := EncodeNumber(n)
		require.NoError(t, err)

		res, err := DecodeNumber(f)
		require.NoError(t, err)
		require.Equal(t, n, res)
	}

	res, err := DecodeNumber(Field{})
	require.NoError(t, err)
	require.Equal(t, uint64(0), res)
}

func TestDecodeNumber_Invalid(t *testing.T) {
	f, err := EncodeText("abc")
	require.NoError(t, err)

	_, err = DecodeNumber(f)
	require.EqualError(t, err, "'abc' is not a number: invalid input")

	f, err = EncodeText("18446744073709551616")
	require.NoError(t, err)

	_, err = DecodeNumber(f)
	require.True(t, xerrors.Is(err, core.ErrInvalidInput))
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber(" 1000 ")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), n)

	_, err = ParseNumber("-5")
	require.True(t, xerrors.Is(err, core.ErrInvalidInput))

	_, err = ParseNumber("12.5")
	require.True(t, xerrors.Is(err, core.ErrInvalidInput))
}

func TestField_Text(t *testing.T) {
	f, err := EncodeText("abc")
	require.NoError(t, err)
	require.False(t, f.IsUnset())

	data, err := f.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "0x616263"+strings.Repeat("00", 29), string(data))

	var other Field
	require.NoError(t, other.UnmarshalText(data))
	require.Equal(t, f, other)

	err = other.UnmarshalText([]byte("0xzz"))
	require.Error(t, err)

	err = other.UnmarshalText([]byte("0x00"))
	require.EqualError(t, err, "field has 1 bytes instead of 32")
}
