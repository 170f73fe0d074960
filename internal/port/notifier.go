package port

import (
	"context"

	"ragalert/internal/domain"
)

// Notifier dispatches an alert over a configured transport.
type Notifier interface {
	Send(ctx context.Context, alert domain.Alert) error
}

// IncidentLedger keeps a record of classified incidents.
type IncidentLedger interface {
	Record(ctx context.Context, incident domain.Incident) error
	List(ctx context.Context, limit int) ([]domain.Incident, error)
}
