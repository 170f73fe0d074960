package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ragalert/internal/domain"
)

// Generator turns transcripts into PDF reports.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate builds and renders a report. It does not call the language model.
func (g *Generator) Generate(ctx context.Context, t domain.Transcript) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}
	now := g.now()
	doc, err := Build(t, now)
	if err != nil {
		return domain.Report{}, err
	}
	data, err := Render(doc)
	if err != nil {
		return domain.Report{}, err
	}
	return domain.Report{
		ID:       uuid.NewString(),
		Filename: Filename(now),
		Data:     data,
	}, nil
}
