package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits text into lower-cased, accent-folded tokens with stopword removal.
type Tokenizer struct {
	stopwords map[string]struct{}
	fold      bool
}

// NewTokenizer creates a new Tokenizer. With foldAccents set, "acción" and
// "accion" produce the same token.
func NewTokenizer(foldAccents bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		fold:      foldAccents,
	}
}

// Tokenize splits text into tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ToLower(text)
	if t.fold {
		text = FoldAccents(text)
	}
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// FoldAccents strips combining marks: "emergéncia" becomes "emergencia".
func FoldAccents(s string) string {
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return out
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns common Spanish and English stopwords, accent-folded.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		// Spanish
		"de", "la", "que", "el", "en", "los", "del", "se", "las", "por",
		"un", "para", "con", "una", "su", "al", "lo", "como", "mas",
		"pero", "sus", "le", "ya", "este", "si", "porque", "esta",
		"entre", "cuando", "muy", "sin", "sobre", "tambien", "me",
		"hay", "donde", "quien", "desde", "todo", "nos", "durante",
		"uno", "les", "ni", "contra", "otros", "ese", "eso", "ante",
		"ellos", "esto", "mi", "antes", "algunos", "unos",
		"yo", "otro", "otras", "otra", "tanto", "esa", "estos",
		"mucho", "es", "son", "fue", "ser", "debe", "hacer",
		// English
		"an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
