// Package payload turns script text into the bytes put on the wire.
//
// The wire format is one byte per character.  By default a character
// outside 0-127 is an error rather than being silently altered; an
// Encoder can opt into a fixed substitute byte instead.
package payload

import (
	"unicode/utf8"

	ncerr "ursend/internal/errors"
)

// Encoder converts script text to ASCII bytes.
type Encoder struct {
	// Replacement, when non-zero, is written in place of every rune
	// above 127.  Zero means strict: such runes fail the encode.
	Replacement byte

	// AppendNewline adds a trailing '\n' if the text does not already
	// end in one.  Empty text stays empty.
	AppendNewline bool
}

// Encode converts text using the strict default policy.
func Encode(text string) ([]byte, error) {
	return Encoder{}.Encode(text)
}

// Encode converts text to bytes.  The result is never nil, so an empty
// script is still a zero-length payload and not a missing one.
func (e Encoder) Encode(text string) ([]byte, error) {
	out := make([]byte, 0, len(text)+1)
	line, col := 1, 1

	for off := 0; off < len(text); {
		r, size := utf8.DecodeRuneInString(text[off:])
		switch {
		case r < utf8.RuneSelf && size == 1:
			out = append(out, byte(r))
		case e.Replacement != 0:
			out = append(out, e.Replacement)
		default:
			return nil, &ncerr.EncodingError{Rune: r, Offset: off, Line: line, Column: col}
		}

		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		off += size
	}

	if e.AppendNewline && len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}
