package tokenizer

import "strings"

// Step is one total string-to-string normalization stage.
type Step func(string) string

// Steps is the normalization pipeline, applied in order. The order matters:
// quote stripping only recognises lowercase letters, so it must follow
// Lowercase.
var Steps = []Step{
	Lowercase,
	StripQuotes,
	StripEntities,
	DropPixelSize,
	DropFormAttr,
	DropHeading,
}

// Normalize runs token through every step of the pipeline.
func Normalize(token string) string {
	for _, step := range Steps {
		token = step(token)
	}
	return token
}

// Lowercase folds ASCII letters only; other bytes pass through unchanged.
func Lowercase(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

// StripQuotes reduces a token made of an alphanumeric core wrapped in
// optional single quotes to the core. Any other token becomes empty.
func StripQuotes(s string) string {
	core := strings.Trim(s, "'")
	for i := 0; i < len(core); i++ {
		if !isLowerAlnum(core[i]) {
			return ""
		}
	}
	return core
}

// StripEntities removes "&lt" and "&gt" remnants of HTML entities.
func StripEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && i+2 < len(s) && (s[i+1] == 'l' || s[i+1] == 'g') && s[i+2] == 't' {
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// DropPixelSize empties image dimension tokens such as "400px".
func DropPixelSize(s string) string {
	digits, ok := strings.CutSuffix(s, "px")
	if !ok || digits == "" {
		return s
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return s
		}
	}
	return ""
}

// DropFormAttr empties any token starting with "form".
func DropFormAttr(s string) string {
	if strings.HasPrefix(s, "form") {
		return ""
	}
	return s
}

// DropHeading empties heading tag names "h0" through "h9".
func DropHeading(s string) string {
	if len(s) == 2 && s[0] == 'h' && s[1] >= '0' && s[1] <= '9' {
		return ""
	}
	return s
}

func isLowerAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
