package jsonrepair

import (
	"strconv"
	"strings"
)

// stripFences removes markdown code fences around model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, f := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, f, "")
	}
	return strings.TrimSpace(s)
}

// extractObject returns the span starting at the first '{'. When the object
// closes, everything after the matching brace is dropped; when it never
// closes (truncated output) the remainder is returned as is.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	sc := &Scanner{lastStringStart: -1}
	for i := start; i < len(s); i++ {
		sc.Feed(s[i])
		if sc.State() == Normal && sc.Depth() == 0 {
			return s[start : i+1]
		}
	}
	return s[start:]
}

// normalizeStrings escapes raw newlines and tabs inside string literals and
// drops other control characters everywhere.
func normalizeStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	sc := &Scanner{lastStringStart: -1}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 {
			if sc.State() == Escaped {
				// a dangling backslash before a control character escapes itself
				b.WriteByte('\\')
				sc.Feed('\\')
			}
			inString := sc.State() != Normal
			switch {
			case inString && c == '\n':
				b.WriteString(`\n`)
			case inString && c == '\r':
				b.WriteString(`\r`)
			case inString && c == '\t':
				b.WriteString(`\t`)
			case !inString && isSpace(c):
				b.WriteByte(c)
			}
			continue
		}
		if c == 0x7f {
			continue
		}
		b.WriteByte(c)
		sc.Feed(c)
	}
	return b.String()
}

// removeTrailingCommas drops commas directly followed by a closing bracket.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sc := &Scanner{lastStringStart: -1}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ',' && sc.State() == Normal {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
		sc.Feed(c)
	}
	return b.String()
}

// closeString terminates a string literal left open at the end of s.
func closeString(s string) string {
	sc := Scan(s)
	switch sc.State() {
	case Escaped:
		return s[:len(s)-1] + `"`
	case InString:
		return s + `"`
	}
	return s
}

// trimDangling removes incomplete trailing members: a comma, a key without
// a value, a key without a colon, or a partial literal.
func trimDangling(s string) string {
	for i := 0; i < 64; i++ {
		t := strings.TrimRight(s, " \n\r\t")
		if t == "" {
			return t
		}
		sc := Scan(t)
		if sc.State() != Normal {
			return t
		}
		last := t[len(t)-1]
		switch {
		case last == ',':
			s = t[:len(t)-1]
		case last == ':':
			s = dropTrailingKey(strings.TrimRight(t[:len(t)-1], " \n\r\t"))
		case last == '"':
			if sc.lastStringCtx == '{' && (sc.lastStringPrev == '{' || sc.lastStringPrev == ',') && sc.lastStringStart >= 0 {
				s = t[:sc.lastStringStart]
				continue
			}
			return t
		case isBareByte(last):
			start := len(t)
			for start > 0 && isBareByte(t[start-1]) {
				start--
			}
			if completeLiteral(t[start:]) {
				return t
			}
			s = t[:start]
		default:
			return t
		}
	}
	return s
}

func dropTrailingKey(t string) string {
	if !strings.HasSuffix(t, `"`) {
		return t
	}
	sc := Scan(t)
	if sc.lastStringStart < 0 {
		return t
	}
	return t[:sc.lastStringStart]
}

func isBareByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+'
}

func completeLiteral(tok string) bool {
	switch tok {
	case "true", "false", "null":
		return true
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil && !strings.HasSuffix(tok, ".")
}

// closeBrackets appends the closers for every open container, LIFO.
func closeBrackets(s string) string {
	return s + Scan(s).Closers()
}

// closeAll is the shared "re-close" step of every tier.
func closeAll(s string) string {
	return closeBrackets(trimDangling(removeTrailingCommas(closeString(s))))
}
