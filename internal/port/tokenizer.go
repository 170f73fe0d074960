package port

// Tokenizer splits text into normalized terms for the hashing embedder.
type Tokenizer interface {
	Tokenize(text string) []string
}
