package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"ragalert/internal/port"
)

// HashingEmbedder is a deterministic, offline embedder. Tokens and token
// bigrams are hashed into a fixed number of signed buckets and the result
// is L2-normalised, so cosine similarity tracks lexical overlap.
type HashingEmbedder struct {
	dimension int
	tokenizer port.Tokenizer
}

func NewHashingEmbedder(dimension int, tokenizer port.Tokenizer) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashingEmbedder{dimension: dimension, tokenizer: tokenizer}
}

func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *HashingEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := e.tokenizer.Tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashingEmbedder) ModelName() string {
	return fmt.Sprintf("hash-%d", e.dimension)
}
