// Package tokenize splits source text into lowercase identifier-shaped
// tokens with line numbers. It is shared by content-index build,
// incremental update, and query preprocessing.
package tokenize

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Token is a single lowercased identifier-shaped token and the 1-based
// line on which it occurred.
type Token struct {
	Text string
	Line int
}

// isTokenByte reports whether b is part of a maximal identifier run:
// ASCII letters, digits, or underscore.
func isTokenByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

// Decode converts raw file bytes to UTF-8 text, detecting a byte-order
// mark to decode UTF-16 LE/BE, and otherwise decoding UTF-8 lossily.
func Decode(raw []byte) string {
	switch {
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE:
		return decodeUTF16(raw, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))
	case len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF:
		return decodeUTF16(raw, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM))
	case len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF:
		raw = raw[3:]
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings_ToValidUTF8Lossy(raw)
}

func decodeUTF16(raw []byte, enc *unicode.Decoder) string {
	out, err := enc.Bytes(raw)
	if err != nil || out == nil {
		return strings_ToValidUTF8Lossy(raw)
	}
	return string(out)
}

// strings_ToValidUTF8Lossy replaces invalid byte sequences with the
// replacement rune, matching "decoded lossily" in spec.md §4.1.
func strings_ToValidUTF8Lossy(raw []byte) string {
	var b bytes.Buffer
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		b.WriteRune(r)
		raw = raw[size:]
	}
	return b.String()
}

// Tokenize splits decoded text into (lowercase_token, line_number) pairs.
// Lines are 1-based. Empty tokens are discarded.
func Tokenize(text string) []Token {
	var out []Token
	line := 1
	start := -1
	data := []byte(text)
	flush := func(end int) {
		if start < 0 {
			return
		}
		if end > start {
			out = append(out, Token{Text: toLowerASCII(data[start:end]), Line: line})
		}
		start = -1
	}
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == '\n' {
			flush(i)
			line++
			continue
		}
		if isTokenByte(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return out
}

// Lines splits decoded text into its raw lines (no trailing newline),
// 1-based when combined with a line number from Tokenize.
func Lines(text string) []string {
	return splitLines(text)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	raw := []byte(text)
	var lines []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			end := i
			if end > start && raw[end-1] == '\r' {
				end--
			}
			lines = append(lines, string(raw[start:end]))
			start = i + 1
		}
	}
	if start < len(raw) {
		lines = append(lines, string(raw[start:]))
	}
	return lines
}

func toLowerASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
