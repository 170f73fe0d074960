package classifier

import (
	"strings"

	"ragalert/internal/adapter/analyzer"
)

// KeywordClassifier flags text containing any of its keywords. Matching is
// case-insensitive and ignores accents, so "Protocolo" and "protocoló" both
// hit "protocolo". Keywords match as substrings: "alerta" also matches
// "alertas".
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	c := &KeywordClassifier{}
	for _, k := range keywords {
		k = normalize(strings.TrimSpace(k))
		if k != "" {
			c.keywords = append(c.keywords, k)
		}
	}
	return c
}

// Classify reports whether text mentions an incident keyword.
func (c *KeywordClassifier) Classify(text string) bool {
	if text == "" {
		return false
	}
	folded := normalize(text)
	for _, k := range c.keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}

// Keywords returns the normalized keyword list.
func (c *KeywordClassifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

func normalize(s string) string {
	return strings.ToLower(analyzer.FoldAccents(s))
}
