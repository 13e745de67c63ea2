// Package jsonrepair coerces near-valid JSON, typically language model output
// cut off by a token limit, into a parseable object.
//
// Parse first tries the text as is. On failure it runs increasingly
// aggressive repair tiers and returns the first result that parses and
// passes the caller's validation. If every tier fails the original parse
// error is returned.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"strings"
)

// Tier identifies how much repair an object needed.
type Tier int

const (
	TierNone Tier = iota
	// TierBasic: escape newlines, drop trailing commas, close strings and
	// brackets, splice missing commas, escape quotes in keys.
	TierBasic
	// TierAggressive: truncate to the last complete top-level member and re-close.
	TierAggressive
	// TierLastResort: truncate at the reported error offset and re-close.
	TierLastResort
)

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierAggressive:
		return "aggressive"
	case TierLastResort:
		return "last_resort"
	default:
		return "none"
	}
}

var ErrNoObject = errors.New("jsonrepair: no JSON object in input")

type Options struct {
	// Validate reports whether a repaired object is usable. Nil accepts any object.
	Validate func(map[string]any) bool
	// MaxFixes bounds comma/quote splicing per attempt. Defaults to 32.
	MaxFixes int
}

func (o Options) valid(m map[string]any) bool {
	return m != nil && (o.Validate == nil || o.Validate(m))
}

func (o Options) maxFixes() int {
	if o.MaxFixes <= 0 {
		return 32
	}
	return o.MaxFixes
}

// Parse decodes raw into an object, repairing it when necessary.
func Parse(raw string, opts Options) (map[string]any, Tier, error) {
	text := extractObject(stripFences(raw))
	if !strings.Contains(text, "{") {
		return nil, TierNone, ErrNoObject
	}

	var out map[string]any
	origErr := json.Unmarshal([]byte(text), &out)
	if origErr == nil {
		return out, TierNone, nil
	}

	cleaned := removeTrailingCommas(normalizeStrings(text))

	obj, fixed, lastErr := parseWithFixes(closeAll(cleaned), opts.maxFixes())
	if opts.valid(obj) {
		return obj, TierBasic, nil
	}

	if obj := truncateToMember(fixed, opts); obj != nil {
		return obj, TierAggressive, nil
	}

	var se *json.SyntaxError
	if errors.As(lastErr, &se) {
		if cut := int(se.Offset) - 1; cut > 0 && cut <= len(fixed) {
			obj, _, _ := parseWithFixes(closeAll(fixed[:cut]), opts.maxFixes())
			if opts.valid(obj) {
				return obj, TierLastResort, nil
			}
		}
	}
	return nil, TierNone, origErr
}

// parseWithFixes decodes s, splicing local fixes at reported syntax error
// offsets until it parses or no fix applies. It returns the last text tried
// and the last error seen.
func parseWithFixes(s string, maxFixes int) (map[string]any, string, error) {
	var lastErr error
	for i := 0; i <= maxFixes; i++ {
		var out map[string]any
		err := json.Unmarshal([]byte(s), &out)
		if err == nil {
			return out, s, nil
		}
		lastErr = err
		var se *json.SyntaxError
		if !errors.As(err, &se) {
			return nil, s, err
		}
		next, ok := fixAt(s, se)
		if !ok || next == s {
			return nil, s, err
		}
		s = next
	}
	return nil, s, lastErr
}

// truncateToMember walks back over the top-level member boundaries and
// returns the first prefix that re-closes into a valid object.
func truncateToMember(s string, opts Options) map[string]any {
	commas := Scan(s).TopLevelCommas()
	for i := len(commas) - 1; i >= 0; i-- {
		obj, _, _ := parseWithFixes(closeAll(s[:commas[i]]), opts.maxFixes())
		if opts.valid(obj) {
			return obj
		}
	}
	return nil
}

// fixAt applies one local repair for the syntax error se.
func fixAt(s string, se *json.SyntaxError) (string, bool) {
	idx := int(se.Offset) - 1
	if idx < 0 || idx >= len(s) {
		return s, false
	}
	msg := se.Error()
	c := s[idx]

	switch {
	case strings.Contains(msg, "after object key:value pair"), strings.Contains(msg, "after array element"):
		// A new member starts without a separator: "a": 1 "b": 2
		if startsValueAt(s, idx) && prevSignificant(s, idx) != ',' {
			if c == '"' || strings.Contains(msg, "array element") {
				return s[:idx] + "," + s[idx:], true
			}
		}
		if c == '}' || c == ']' {
			return s, false
		}
		// Otherwise the previous string ended early on an unescaped quote.
		return escapeQuoteBefore(s, idx)

	case strings.Contains(msg, "after object key"):
		return escapeQuoteBefore(s, idx)

	case strings.Contains(msg, "looking for beginning of object key string"):
		switch {
		case isIdentByte(c):
			end := idx
			for end < len(s) && isIdentByte(s[end]) {
				end++
			}
			return s[:idx] + `"` + s[idx:end] + `"` + s[end:], true
		case c == ',':
			return s[:idx] + s[idx+1:], true
		case c == '\'':
			if end := strings.IndexByte(s[idx+1:], '\''); end >= 0 {
				end += idx + 1
				return s[:idx] + `"` + s[idx+1:end] + `"` + s[end+1:], true
			}
		}
		return s, false

	case strings.Contains(msg, "looking for beginning of value"):
		switch c {
		case '}', ']':
			if p := prevSignificantIndex(s, idx); p >= 0 && s[p] == ',' {
				return s[:p] + s[p+1:], true
			}
			return s[:idx] + "null" + s[idx:], true
		case ',':
			return s[:idx] + "null" + s[idx:], true
		case '\'':
			if end := strings.IndexByte(s[idx+1:], '\''); end >= 0 {
				end += idx + 1
				inner := strings.ReplaceAll(s[idx+1:end], `"`, `\"`)
				return s[:idx] + `"` + inner + `"` + s[end+1:], true
			}
		}
		return s, false

	case strings.Contains(msg, "in string literal"):
		return s[:idx] + s[idx+1:], true

	case strings.Contains(msg, "in string escape code"):
		// \x -> \\x
		return s[:idx] + `\` + s[idx:], true

	case strings.Contains(msg, "in \\u hexadecimal character escape"):
		if bs := strings.LastIndex(s[:idx], `\u`); bs >= 0 {
			return s[:bs] + s[idx:], true
		}
		return s, false

	case strings.Contains(msg, "after top-level value"):
		return s[:idx], true
	}
	return s, false
}

// escapeQuoteBefore escapes the last unescaped quote before idx.
func escapeQuoteBefore(s string, idx int) (string, bool) {
	for q := idx - 1; q >= 0; q-- {
		if s[q] != '"' {
			continue
		}
		if q > 0 && s[q-1] == '\\' {
			continue
		}
		return s[:q] + `\"` + s[q+1:], true
	}
	return s, false
}

func startsValueAt(s string, idx int) bool {
	c := s[idx]
	if c == '"' || c == '{' || c == '[' || c == '-' || c >= '0' && c <= '9' {
		return true
	}
	rest := s[idx:]
	return strings.HasPrefix(rest, "true") || strings.HasPrefix(rest, "false") || strings.HasPrefix(rest, "null")
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func prevSignificantIndex(s string, idx int) int {
	for i := idx - 1; i >= 0; i-- {
		if !isSpace(s[i]) {
			return i
		}
	}
	return -1
}

func prevSignificant(s string, idx int) byte {
	if i := prevSignificantIndex(s, idx); i >= 0 {
		return s[i]
	}
	return 0
}
