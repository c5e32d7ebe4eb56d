package payload

import (
	"bytes"
	"testing"
	"unicode/utf8"

	ncerr "ursend/internal/errors"
)

func TestEncode_ASCII(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"simple", "hello"},
		{"multi-line", "def main():\n  popup(\"hi\")\nend\n"},
		{"control chars", "a\tb\r\nc\x00d\x7f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(got, []byte(tt.in)) {
				t.Errorf("got %q, want %q", got, tt.in)
			}
		})
	}
}

func TestEncode_Empty(t *testing.T) {
	got, err := Encode("")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got == nil {
		t.Fatal("empty script must encode to an empty, non-nil payload")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestEncode_RejectsNonASCII(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantRune   rune
		wantOffset int
		wantLine   int
		wantCol    int
	}{
		{"first char", "é", 'é', 0, 1, 1},
		{"second line", "movej(p)\n  # café", 'é', 16, 2, 8},
		{"emoji", "ok🤖", '🤖', 2, 1, 3},
		{"invalid utf8", "ab\xff", utf8.RuneError, 2, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.in)
			var ee *ncerr.EncodingError
			if !ncerr.As(err, &ee) {
				t.Fatalf("error = %v, want EncodingError", err)
			}
			if ee.Rune != tt.wantRune || ee.Offset != tt.wantOffset || ee.Line != tt.wantLine || ee.Column != tt.wantCol {
				t.Errorf("got {%q off=%d %d:%d}, want {%q off=%d %d:%d}",
					ee.Rune, ee.Offset, ee.Line, ee.Column,
					tt.wantRune, tt.wantOffset, tt.wantLine, tt.wantCol)
			}
		})
	}
}

func TestEncoder_Replacement(t *testing.T) {
	e := Encoder{Replacement: '?'}
	got, err := e.Encode("café → ok")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := "caf? ? ok"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncoder_AppendNewline(t *testing.T) {
	e := Encoder{AppendNewline: true}
	tests := []struct {
		in, want string
	}{
		{"pause", "pause\n"},
		{"pause\n", "pause\n"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := e.Encode(tt.in)
		if err != nil {
			t.Fatalf("Encode(%q): %v", tt.in, err)
		}
		if string(got) != tt.want {
			t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncode_OneBytePerCharacter(t *testing.T) {
	in := "textmsg(\"x\")\n"
	got, _ := Encode(in)
	if len(got) != len([]rune(in)) {
		t.Errorf("len = %d, want %d", len(got), len([]rune(in)))
	}
}
