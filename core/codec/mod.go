// Package codec converts the short text and numeric values of the client to
// and from the fixed-width fields stored by the ledger.
//
// A field is 32 bytes long. A text is stored as its UTF-8 bytes followed by at
// least one zero byte, so at most 31 bytes fit. A number is stored as the text
// of its decimal representation. The all-zero field is the unset value.
package codec

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.dedis.ch/shipagency/core"
	"golang.org/x/xerrors"
)

// Width is the size in bytes of a field.
const Width = 32

// MaxTextLen is the maximum length in bytes of an encoded text.
const MaxTextLen = Width - 1

// Unset is the value a text field decodes to when nothing was stored.
const Unset = ""

// Field is a fixed-width value of the ledger.
type Field [Width]byte

// IsUnset returns true if the field is the all-zero sentinel.
func (f Field) IsUnset() bool {
	return f == Field{}
}

// String implements fmt.Stringer. It returns the hexadecimal representation.
func (f Field) String() string {
	return "0x" + hex.EncodeToString(f[:])
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It expects the format
// produced by MarshalText.
func (f *Field) UnmarshalText(data []byte) error {
	text := strings.TrimPrefix(string(data), "0x")

	buffer, err := hex.DecodeString(text)
	if err != nil {
		return xerrors.Errorf("malformed field: %v", err)
	}

	if len(buffer) != Width {
		return xerrors.Errorf("field has %d bytes instead of %d", len(buffer), Width)
	}

	copy(f[:], buffer)

	return nil
}

// EncodeText returns the field of the text. It fails with ErrInvalidInput if
// the text is longer than MaxTextLen bytes or is not valid UTF-8. The text is
// never truncated.
func EncodeText(text string) (Field, error) {
	if len(text) > MaxTextLen {
		return Field{}, xerrors.Errorf("text of %d bytes exceeds %d: %w",
			len(text), MaxTextLen, core.ErrInvalidInput)
	}

	if !utf8.ValidString(text) {
		return Field{}, xerrors.Errorf("text is not utf-8: %w", core.ErrInvalidInput)
	}

	if strings.IndexByte(text, 0) >= 0 {
		return Field{}, xerrors.Errorf("text contains a zero byte: %w", core.ErrInvalidInput)
	}

	var f Field
	copy(f[:], text)

	return f, nil
}

// DecodeText returns the text of the field, or Unset for the all-zero field.
func DecodeText(f Field) (string, error) {
	end := -1
	for i, b := range f {
		if b == 0 {
			end = i
			break
		}
	}

	if end < 0 {
		return Unset, xerrors.Errorf("field is not terminated: %w", core.ErrInvalidInput)
	}

	text := string(f[:end])
	if !utf8.ValidString(text) {
		return Unset, xerrors.Errorf("field is not utf-8: %w", core.ErrInvalidInput)
	}

	return text, nil
}

// EncodeNumber returns the field of the number.
func EncodeNumber(n uint64) (Field, error) {
	return EncodeText(strconv.FormatUint(n, 10))
}

// DecodeNumber returns the number of the field, or zero for the all-zero
// field. It fails with ErrInvalidInput if the field is not a decimal number or
// if the number overflows.
func DecodeNumber(f Field) (uint64, error) {
	if f.IsUnset() {
		return 0, nil
	}

	text, err := DecodeText(f)
	if err != nil {
		return 0, xerrors.Errorf("failed to decode: %w", err)
	}

	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("'%s' is not a number: %w", text, core.ErrInvalidInput)
	}

	return n, nil
}

// ParseNumber reads a number typed by a user and makes sure it can be stored.
func ParseNumber(text string) (uint64, error) {
	text = strings.TrimSpace(text)

	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("'%s' is not a positive number: %w", text, core.ErrInvalidInput)
	}

	_, err = EncodeNumber(n)
	if err != nil {
		return 0, xerrors.Errorf("failed to encode: %w", err)
	}

	return n, nil
}
