package port

import (
	"context"

	"ragalert/internal/domain"
)

// ReportGenerator renders an incident report from a conversation transcript.
type ReportGenerator interface {
	Generate(ctx context.Context, t domain.Transcript) (domain.Report, error)
}
