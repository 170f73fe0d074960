package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragalert/internal/adapter/notify"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// AlertConfig holds recipients and link settings for incident alerts.
type AlertConfig struct {
	PublicURL  string
	Subject    string
	Recipients []string
}

// AlertUseCase classifies answers and dispatches incident alerts.
// Notification is best effort: failures are logged and reported as false.
type AlertUseCase struct {
	classifier port.IncidentClassifier
	notifier   port.Notifier
	ledger     port.IncidentLedger
	cfg        AlertConfig
	logger     *slog.Logger
}

// NewAlertUseCase creates an alert use case. ledger may be nil.
func NewAlertUseCase(
	classifier port.IncidentClassifier,
	notifier port.Notifier,
	ledger port.IncidentLedger,
	cfg AlertConfig,
	logger *slog.Logger,
) *AlertUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &AlertUseCase{
		classifier: classifier,
		notifier:   notifier,
		ledger:     ledger,
		cfg:        cfg,
		logger:     logger,
	}
}

// ContextURL links to a viewer showing the full answer.
func (u *AlertUseCase) ContextURL(answer string) string {
	return u.cfg.PublicURL + "/?response=" + url.QueryEscape(answer)
}

// Process classifies answer. For an incident it sends exactly one alert
// carrying the original query and contextURL, and records it in the
// ledger. It never returns an error.
func (u *AlertUseCase) Process(ctx context.Context, query, answer, contextURL string) (incident, notified bool) {
	if !u.classifier.Classify(answer) {
		return false, false
	}
	u.logger.Info("incident detected", "query_len", len(query), "answer_len", len(answer))

	notified = u.sendAlert(ctx, query, contextURL)

	if u.ledger != nil {
		err := u.ledger.Record(context.WithoutCancel(ctx), domain.Incident{
			ID:         uuid.NewString(),
			Query:      query,
			Answer:     answer,
			ContextURL: contextURL,
			Notified:   notified,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			u.logger.Error("failed to record incident", "error", err)
		}
	}
	return true, notified
}

func (u *AlertUseCase) sendAlert(ctx context.Context, query, contextURL string) bool {
	alert, err := notify.ComposeAlert(u.cfg.Subject, query, contextURL, u.cfg.Recipients)
	if err != nil {
		u.logger.Error("failed to compose alert", "error", err)
		return false
	}
	if err := u.notifier.Send(ctx, alert); err != nil {
		u.logger.Warn("alert not sent", "error", err)
		return false
	}
	u.logger.Info("alert sent", "recipients", len(alert.To))
	return true
}

// MessageRequest is a direct notification request.
type MessageRequest struct {
	To      string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send dispatches a free-form message to a configured recipient, or to
// all of them when To is empty. Invalid requests return a validation
// error; delivery failures return false with a nil error.
func (u *AlertUseCase) Send(ctx context.Context, req MessageRequest) (bool, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return false, domain.NewValidationError("subject", "field is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return false, domain.NewValidationError("body", "field is required")
	}

	to := u.cfg.Recipients
	if req.To != "" {
		if !slices.ContainsFunc(u.cfg.Recipients, func(r string) bool { return strings.EqualFold(r, req.To) }) {
			return false, domain.NewValidationError("to_email", "%q is not a configured recipient", req.To)
		}
		to = []string{req.To}
	}

	msg, err := notify.ComposeMessage(req.Subject, req.Body, to)
	if err != nil {
		u.logger.Error("failed to compose message", "error", err)
		return false, nil
	}
	if err := u.notifier.Send(ctx, msg); err != nil {
		u.logger.Warn("message not sent", "error", err)
		return false, nil
	}
	return true, nil
}

// Incidents lists recorded incidents, newest first.
func (u *AlertUseCase) Incidents(ctx context.Context, limit int) ([]domain.Incident, error) {
	if u.ledger == nil {
		return []domain.Incident{}, nil
	}
	return u.ledger.List(ctx, limit)
}
