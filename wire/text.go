package wire

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// lenientText decodes b as UTF-8 per spec.md §4.2: invalid byte
// sequences are replaced with U+FFFD rather than failing the frame.
// runes.ReplaceIllFormed is the library-native transform for this;
// golang.org/x/text is already the teacher's indirect dependency for
// terminal width handling, and this module promotes it to direct use.
func lenientText(b []byte) (string, bool) {
	out, _, err := transform.Bytes(runes.ReplaceIllFormed(), b)
	if err != nil {
		// ReplaceIllFormed never actually returns an error on Bytes;
		// kept defensive since transform.Transformer is a general interface.
		return string(b), false
	}
	return string(out), !utf8.Valid(b)
}

// trimNulControl trims NUL bytes and any trailing run of control
// characters, as required of name fields in the contact/channel
// records (spec.md §4.2).
func trimNulControl(s string) string {
	s = strings.TrimRight(s, "\x00")
	return strings.TrimRightFunc(s, unicode.IsControl)
}

// decodeFieldText decodes a fixed-width name-like field: lenient UTF-8
// followed by NUL/control trimming.
func decodeFieldText(b []byte) string {
	s, _ := lenientText(b)
	return trimNulControl(s)
}
