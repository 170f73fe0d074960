package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"ragalert/internal/domain"
)

// PDFLoader extracts the plain text of every page of a PDF.
type PDFLoader struct{}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Load returns one Page per PDF page, numbered from 1. Pages without a
// content stream come back with empty text so numbering stays aligned.
func (l *PDFLoader) Load(ctx context.Context, path string) (pages []domain.Page, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]domain.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := domain.Page{Number: i}
		p := r.Page(i)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("page %d of %s: %w", i, path, err)
			}
			page.Text = normalize(text)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// normalize unifies line endings and drops NUL bytes left by some encoders.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\x00", "")
}
