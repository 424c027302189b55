// Package recovery turns unreliable free-form model output into a valid JSON
// record via a sequence of targeted repairs. Recovery is all-or-nothing: it
// returns a fully parsed record or an error, never partial fields.
package recovery

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoStructure means the text contains no JSON object to recover.
var ErrNoStructure = eris.New("recovery: no structured output found")

// Recover extracts a single JSON object from raw model output.
//
// Repair ladder, applied in order: strip a markdown code fence, slice from the
// first "{" to the last "}", escape raw control characters inside string
// literals, then parse. If the strict parse fails, close truncated
// brackets/braces and strip dangling fragments, drop remaining control bytes,
// and parse once more. If that also fails the original parse error is
// returned, since it carries the most useful diagnostic.
func Recover(raw string) (map[string]any, error) {
	text := raw
	if inner, ok := fencedInterior(text); ok {
		text = inner
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return nil, ErrNoStructure
	}
	if end := strings.LastIndex(text, "}"); end > start {
		// Trailing prose after the object is common; cut it. When no "}"
		// survived truncation we keep the tail for the repair pass.
		text = text[start : end+1]
	} else {
		text = text[start:]
	}

	text = escapeControlInStrings(text)

	var rec map[string]any
	origErr := json.Unmarshal([]byte(text), &rec)
	if origErr == nil {
		return rec, nil
	}

	repaired := stripControl(repairTruncation(text))
	rec = nil
	if err := json.Unmarshal([]byte(repaired), &rec); err != nil {
		return nil, eris.Wrap(origErr, "recovery: parse structured output")
	}
	return rec, nil
}

// fencedInterior returns the interior of the first triple-backtick block,
// tolerating a language tag after the opening fence and a missing closing
// fence (truncated output).
func fencedInterior(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]

	// Skip an optional tag like "json" up to the end of the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}

	if closing := strings.Index(rest, "```"); closing >= 0 {
		rest = rest[:closing]
	}
	return rest, true
}

// escapeControlInStrings replaces literal newline, carriage-return, and tab
// bytes inside JSON string literals with their two-character escapes. Content
// outside strings is untouched.
func escapeControlInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
				b.WriteByte(c)
			case c == '\\':
				esc = true
				b.WriteByte(c)
			case c == '"':
				inStr = false
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inStr = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// repairTruncation closes unbalanced brackets/braces in output that was cut
// off mid-record. A dangling fragment (unterminated string, trailing comma, or
// a key with no value) is stripped first so only fully written members
// survive; the missing closers are then appended innermost-first, so arrays
// close before the objects containing them.
func repairTruncation(s string) string {
	var stack []byte
	inStr, esc := false, false
	strStart := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
				strStart = -1
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
			strStart = i
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !inStr && len(stack) == 0 {
		return s
	}

	// Drop an unterminated trailing string.
	if inStr && strStart >= 0 {
		s = s[:strStart]
	}

	// Strip dangling separators, half-written keys, and partial literals.
	for {
		s = strings.TrimRight(s, " \t\r\n")
		if strings.HasSuffix(s, ",") {
			s = s[:len(s)-1]
			continue
		}
		if strings.HasSuffix(s, ":") {
			s = strings.TrimRight(s[:len(s)-1], " \t\r\n")
			if strings.HasSuffix(s, `"`) {
				s = cutTrailingString(s)
			}
			continue
		}
		if t, ok := cutPartialLiteral(s); ok {
			s = t
			continue
		}
		break
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			s += "]"
		} else {
			s += "}"
		}
	}
	return s
}

// cutTrailingString removes a complete trailing string literal, honoring
// escaped quotes.
func cutTrailingString(s string) string {
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] != '"' {
			continue
		}
		// Count the backslash run before the quote.
		n := 0
		for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
			n++
		}
		if n%2 == 0 {
			return s[:i]
		}
	}
	return s
}

// cutPartialLiteral strips an incomplete trailing "true"/"false"/"null" token.
func cutPartialLiteral(s string) (string, bool) {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c >= 'a' && c <= 'z' {
			i--
			continue
		}
		break
	}
	tok := s[i:]
	if tok == "" || tok == "true" || tok == "false" || tok == "null" {
		return s, false
	}
	for _, lit := range []string{"true", "false", "null"} {
		if strings.HasPrefix(lit, tok) {
			return s[:i], true
		}
	}
	return s, false
}

// stripControl removes raw control bytes. Plain spaces survive; structural
// newlines and tabs are JSON whitespace anyway and safe to drop.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}
