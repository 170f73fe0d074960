package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// excerptLen is the number of characters of a source shown to the user.
const excerptLen = 200

// QueryUseCase answers questions over the ingested documents.
type QueryUseCase struct {
	retriever port.Retriever
	generator *AnswerGenerator
	alerts    *AlertUseCase
	topK      int
	logger    *slog.Logger
}

func NewQueryUseCase(retriever port.Retriever, generator *AnswerGenerator, alerts *AlertUseCase, topK int, logger *slog.Logger) *QueryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 3
	}
	return &QueryUseCase{
		retriever: retriever,
		generator: generator,
		alerts:    alerts,
		topK:      topK,
		logger:    logger,
	}
}

// Query retrieves context, generates an answer and raises an alert when
// the answer describes an incident. Only invalid input and unknown
// document scopes are returned as errors; model, retrieval and
// notification failures degrade the result instead.
func (u *QueryUseCase) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, domain.NewValidationError("text", "field cannot be empty")
	}
	if t := q.Temperature; t != nil && (*t < 0 || *t > 2) {
		return nil, domain.NewValidationError("temperature", "must be between 0 and 2, got %g", *t)
	}

	hits, err := u.retriever.Retrieve(ctx, text, q.DocumentName, u.topK)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		u.logger.Warn("retrieval failed, answering without context", "scope", q.DocumentName, "error", err)
		hits = nil
	}

	segments := make([]domain.Segment, len(hits))
	for i, h := range hits {
		segments[i] = h.Segment
	}

	answer := u.generator.Generate(ctx, text, segments, q.Temperature)
	contextURL := u.alerts.ContextURL(answer.Text)
	incident, notified := u.alerts.Process(ctx, text, answer.Text, contextURL)

	return &domain.QueryResult{
		Answer:     answer.Text,
		Sources:    FormatSources(answer.Sources),
		ContextURL: contextURL,
		Incident:   incident,
		Notified:   notified,
	}, nil
}

// FormatSources numbers segments from 1 and cuts excerpts to 200
// characters.
func FormatSources(segments []domain.Segment) []domain.Source {
	sources := make([]domain.Source, len(segments))
	for i, s := range segments {
		sources[i] = domain.Source{
			Rank:         i + 1,
			DocumentName: s.Source,
			Page:         s.Page,
			Excerpt:      truncateRunes(s.Text, excerptLen),
		}
	}
	return sources
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
