package tokenizer

import "unicode"

// IsCJK reports whether r belongs to the Chinese-family ranges that are split
// into single-character tokens.
func IsCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF)
}

// ContainsCJK reports whether s has at least one CJK code point.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if IsCJK(r) {
			return true
		}
	}

	return false
}

// isDelimiter also treats the ASCII information separators U+001C..U+001F
// as whitespace.
func isDelimiter(r rune) bool {
	if unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f) {
		return true
	}

	switch r {
	case '.', ',', '!', '?', ';', ':':
		return true
	}

	return false
}

// Segment splits text into coarse tokens. Every CJK code point becomes its own
// token; other runs are split on whitespace and . , ! ? ; : and the
// delimiters are dropped. Output order matches input order.
func Segment(text string) []string {
	if text == "" {
		return []string{}
	}

	out := make([]string, 0, len(text)/4+1)
	buf := make([]rune, 0, 16)

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range text {
		switch {
		case IsCJK(r):
			flush()
			out = append(out, string(r))
		case isDelimiter(r):
			flush()
		default:
			buf = append(buf, r)
		}
	}

	flush()

	return out
}
