package nlp

import (
	"regexp"
	"strings"
)

// orderKeywords are the order-intent words that make the pre-filter accept a
// message without needing a catalog match. Includes localized equivalents.
var orderKeywords = []string{
	"want", "need", "order", "send", "get", "give",
	"quero", "preciso", "pedir", "enviar", "mandar",
	"please", "can i", "could i", "i'd like", "i would like",
	"deliver", "delivery", "buy", "purchase",
}

// menuTokenRe matches single-character menu-navigation inputs.
var menuTokenRe = regexp.MustCompile(`^[0-9*#]$`)

// quantityRe matches a digit or number word immediately followed by a word,
// e.g. "2 apples" or "two milks".
var quantityRe = regexp.MustCompile(`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten|\d+)\s+\w+`)

// ShouldAttempt reports whether a message looks enough like a natural-language
// order to justify an external classification call. catalogKeywords comes from
// catalog.Keywords.
//
// The filter is recall-biased: a false positive costs one classifier call,
// while a false negative silently falls through to the stage machine, which
// is the safe default.
func ShouldAttempt(message string, catalogKeywords []string) bool {
	message = strings.TrimSpace(message)

	// Single menu-navigation tokens belong to the stage machine.
	if menuTokenRe.MatchString(message) {
		return false
	}
	if len(message) < 5 {
		return false
	}

	lower := strings.ToLower(message)
	for _, kw := range orderKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range catalogKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	return quantityRe.MatchString(message)
}
