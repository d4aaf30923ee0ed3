package syntra

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extractor turns an input and the provider's free-form response into a
// structured value. Implementations must always return an in-range result,
// falling back to documented defaults when nothing matches.
type Extractor[T any] interface {
	Extract(input, response string) T
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc[T any] func(input, response string) T

// Extract implements Extractor.
func (f ExtractorFunc[T]) Extract(input, response string) T {
	return f(input, response)
}

// keywordRule maps a value to the keyword fragments that select it.
// Fragments are lowercase and match at the start of a word (see hasKeyword).
type keywordRule[T any] struct {
	value    T
	keywords []string
}

// firstMatch returns the value of the first rule with a keyword present in
// any of the texts, checking texts in order.
func firstMatch[T any](rules []keywordRule[T], texts ...string) (T, bool) {
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, r := range rules {
			if containsAny(lower, r.keywords...) {
				return r.value, true
			}
		}
	}
	var zero T
	return zero, false
}

// allMatches returns every rule value with a keyword present in text,
// in rule order.
func allMatches[T any](rules []keywordRule[T], text string) []T {
	lower := strings.ToLower(text)
	var out []T
	for _, r := range rules {
		if containsAny(lower, r.keywords...) {
			out = append(out, r.value)
		}
	}
	return out
}

func containsAny(lower string, fragments ...string) bool {
	for _, f := range fragments {
		if hasKeyword(lower, f) {
			return true
		}
	}
	return false
}

// countAny counts distinct fragments present in lower.
func countAny(lower string, fragments ...string) int {
	n := 0
	for _, f := range fragments {
		if hasKeyword(lower, f) {
			n++
		}
	}
	return n
}

// hasKeyword reports whether fragment occurs in lower starting a word, so
// "anger" does not match "danger". Fragments work as stems ("sympath"
// matches "sympathy"), except that a "-less" word negates its stem:
// "hopeless" is not hope. Fragments that open with punctuation or a space
// match anywhere.
func hasKeyword(lower, fragment string) bool {
	if fragment == "" {
		return false
	}
	lead, leadSize := utf8.DecodeRuneInString(fragment)
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], fragment)
		if i < 0 {
			return false
		}
		i += from
		from = i + leadSize

		if isWordRune(lead) && i > 0 {
			if prev, _ := utf8.DecodeLastRuneInString(lower[:i]); isWordRune(prev) {
				continue
			}
		}
		end := i + len(fragment)
		for end < len(lower) {
			r, n := utf8.DecodeRuneInString(lower[end:])
			if !isWordRune(r) {
				break
			}
			end += n
		}
		if end > i+len(fragment) && negatedStem(lower[i:end]) {
			continue
		}
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func negatedStem(word string) bool {
	return strings.HasSuffix(word, "less") || strings.HasSuffix(word, "lessly") || strings.HasSuffix(word, "lessness")
}

// sentences splits text on terminal punctuation and newlines, trimming
// list markers. Empty fragments are dropped.
func sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		s = strings.TrimLeft(s, "-*•0123456789.) ")
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '\n':
			flush()
		case r == '.' || r == '!' || r == '?':
			b.WriteRune(r)
			// Keep decimals like 0.7 together.
			if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// sentencesWith returns up to limit sentences containing any fragment.
func sentencesWith(text string, limit int, fragments ...string) []string {
	var out []string
	for _, s := range sentences(text) {
		if len(out) >= limit {
			break
		}
		if containsAny(strings.ToLower(s), fragments...) {
			out = append(out, s)
		}
	}
	return out
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
