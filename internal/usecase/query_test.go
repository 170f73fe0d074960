package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragalert/config"
	"ragalert/internal/adapter/classifier"
	"ragalert/internal/domain"
)

const publicURL = "http://localhost:5173"

type queryFixture struct {
	*pipeline
	llm      *fakeLLM
	notifier *fakeNotifier
	ledger   *fakeLedger
	query    *QueryUseCase
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	p := newPipeline(t)
	f := &queryFixture{
		pipeline: p,
		llm:      &fakeLLM{},
		notifier: &fakeNotifier{},
		ledger:   &fakeLedger{},
	}
	logger := discardLogger()
	gen := NewAnswerGenerator(f.llm, GeneratorConfig{
		Persona:     config.DefaultPersona,
		Language:    "español",
		MaxWords:    150,
		Temperature: 0.1,
		MaxTokens:   1000,
		Fallback:    config.DefaultFallback,
	}, logger)
	alerts := NewAlertUseCase(
		classifier.NewKeywordClassifier([]string{"alerta", "protocolo", "emergencia"}),
		f.notifier,
		f.ledger,
		AlertConfig{PublicURL: publicURL + "/", Subject: "Alerta de incidente - BASF Assistant", Recipients: []string{"jefe@example.com"}},
		logger,
	)
	f.query = NewQueryUseCase(p.retrieve, gen, alerts, 3, logger)
	return f
}

func TestQuery_AlertTriggersOneNotification(t *testing.T) {
	f := newQueryFixture(t)
	_, err := f.index.Index(context.Background(), seedTwoDocuments(t), "local")
	require.NoError(t, err)

	answer := "Active la alerta: evacúe el área & use EPP (100% obligatorio)."
	f.llm.reply = answer

	res, err := f.query.Query(context.Background(), domain.Query{Text: "¿Qué debo hacer si hay una fuga de MMA?"})
	require.NoError(t, err)

	assert.Equal(t, answer, res.Answer)
	assert.True(t, res.Incident)
	assert.True(t, res.Notified)
	assert.Equal(t, publicURL+"/?response="+url.QueryEscape(answer), res.ContextURL)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, res.ContextURL, sent[0].Link)
	assert.Equal(t, []string{"jefe@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].HTML, "¿Qué debo hacer si hay una fuga de MMA?")

	require.Len(t, f.ledger.incidents, 1)
	assert.True(t, f.ledger.incidents[0].Notified)
	assert.Equal(t, answer, f.ledger.incidents[0].Answer)

	parsed, err := url.Parse(res.ContextURL)
	require.NoError(t, err)
	assert.Equal(t, answer, parsed.Query().Get("response"))
}

func TestQuery_NoKeywordNoNotification(t *testing.T) {
	f := newQueryFixture(t)
	_, err := f.index.Index(context.Background(), seedTwoDocuments(t), "local")
	require.NoError(t, err)
	f.llm.reply = "El pH óptimo es 7"

	res, err := f.query.Query(context.Background(), domain.Query{Text: "¿Cuál es el pH óptimo?"})
	require.NoError(t, err)
	assert.False(t, res.Incident)
	assert.False(t, res.Notified)
	assert.Empty(t, f.notifier.sent())
	assert.Empty(t, f.ledger.incidents)
}

func TestQuery_NotificationFailureStillAnswers(t *testing.T) {
	f := newQueryFixture(t)
	f.llm.reply = "Protocolo de emergencia activado"
	f.notifier.err = errors.New("smtp down")

	res, err := f.query.Query(context.Background(), domain.Query{Text: "fuga en tanque"})
	require.NoError(t, err)
	assert.Equal(t, "Protocolo de emergencia activado", res.Answer)
	assert.True(t, res.Incident)
	assert.False(t, res.Notified)
	assert.Len(t, f.notifier.sent(), 1)
	require.Len(t, f.ledger.incidents, 1)
	assert.False(t, f.ledger.incidents[0].Notified)
}

func TestQuery_NoDocumentsFallsBack(t *testing.T) {
	f := newQueryFixture(t)
	f.llm.err = errors.New("connection refused")

	res, err := f.query.Query(context.Background(), domain.Query{Text: "¿Qué debo hacer si hay una fuga de MMA?"})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFallback, res.Answer)
	assert.Empty(t, res.Sources)
	assert.False(t, res.Incident)
	assert.Contains(t, f.llm.last().User, "(no hay documentos disponibles)")
}

func TestQuery_SourcesAndPrompt(t *testing.T) {
	f := newQueryFixture(t)
	_, err := f.index.Index(context.Background(), seedTwoDocuments(t), "local")
	require.NoError(t, err)
	f.llm.reply = "Use casco y guantes."

	temp := 0.5
	res, err := f.query.Query(context.Background(), domain.Query{Text: "equipo de protección en el trasvase", DocumentName: "A", Temperature: &temp})
	require.NoError(t, err)

	require.NotEmpty(t, res.Sources)
	assert.LessOrEqual(t, len(res.Sources), 3)
	for i, s := range res.Sources {
		assert.Equal(t, i+1, s.Rank)
		assert.Equal(t, "A", s.DocumentName)
		assert.Positive(t, s.Page)
	}

	req := f.llm.last()
	assert.Equal(t, 0.5, req.Temperature)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, config.DefaultPersona, req.System)
	assert.Contains(t, req.User, "Pregunta: equipo de protección en el trasvase")
	assert.Contains(t, req.User, "Responde en español, en un máximo de 150 palabras.")
	assert.Contains(t, req.User, "[1] A, página")
}

func TestQuery_DefaultTemperature(t *testing.T) {
	f := newQueryFixture(t)
	f.llm.reply = "ok"
	_, err := f.query.Query(context.Background(), domain.Query{Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, f.llm.last().Temperature)
}

func TestQuery_Validation(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.query.Query(context.Background(), domain.Query{Text: "   "})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	hot := 3.0
	_, err = f.query.Query(context.Background(), domain.Query{Text: "hola", Temperature: &hot})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.llm.requests)
}

func TestQuery_UnknownDocument(t *testing.T) {
	f := newQueryFixture(t)
	_, err := f.index.Index(context.Background(), seedTwoDocuments(t), "local")
	require.NoError(t, err)

	_, err = f.query.Query(context.Background(), domain.Query{Text: "hola", DocumentName: "C"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.llm.requests)
}

func TestQuery_EmptyCompletionFallsBack(t *testing.T) {
	f := newQueryFixture(t)
	f.llm.reply = "   "
	res, err := f.query.Query(context.Background(), domain.Query{Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFallback, res.Answer)
}

func TestFormatSources(t *testing.T) {
	long := strings.Repeat("á", 250)
	sources := FormatSources([]domain.Segment{
		{Source: "A", Page: 2, Text: long},
		{Source: "B", Page: 1, Text: "corto"},
	})
	require.Len(t, sources, 2)
	assert.Equal(t, domain.Source{Rank: 1, DocumentName: "A", Page: 2, Excerpt: strings.Repeat("á", 200)}, sources[0])
	assert.Equal(t, domain.Source{Rank: 2, DocumentName: "B", Page: 1, Excerpt: "corto"}, sources[1])
}
