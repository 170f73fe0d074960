package port

import (
	"context"

	"ragalert/internal/domain"
)

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// DocumentLoader extracts per-page text from a source file.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]domain.Page, error)
}
