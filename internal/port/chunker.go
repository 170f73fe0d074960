package port

import "ragalert/internal/domain"

type Chunker interface {
	// Chunk splits every page independently and numbers segments across the document.
	Chunk(source string, pages []domain.Page) []domain.Segment

	// ChunkText splits a single block of text attributed to page 1.
	ChunkText(source, text string) []domain.Segment
}
