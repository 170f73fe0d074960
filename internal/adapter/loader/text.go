package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// formFeed separates pages in plain-text exports.
const formFeed = "\f"

// TextLoader reads .txt and .md files; form feeds split pages.
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	parts := strings.Split(normalize(string(data)), formFeed)
	pages := make([]domain.Page, len(parts))
	for i, part := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: part}
	}
	return pages, nil
}

// MultiLoader dispatches on file extension.
type MultiLoader struct {
	byExt map[string]port.DocumentLoader
}

// NewMultiLoader returns a loader for PDF, plain text and markdown files.
func NewMultiLoader() *MultiLoader {
	text := NewTextLoader()
	return &MultiLoader{byExt: map[string]port.DocumentLoader{
		".pdf": NewPDFLoader(),
		".txt": text,
		".md":  text,
	}}
}

func (m *MultiLoader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := m.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported document type %q: %s", ext, path)
	}
	return l.Load(ctx, path)
}
