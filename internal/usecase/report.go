package usecase

import (
	"context"
	"log/slog"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// ReportUseCase produces incident reports from chat transcripts.
type ReportUseCase struct {
	generator port.ReportGenerator
	logger    *slog.Logger
}

func NewReportUseCase(generator port.ReportGenerator, logger *slog.Logger) *ReportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportUseCase{generator: generator, logger: logger}
}

// Generate renders a report. Malformed transcripts fail with
// domain.ErrReportBuild.
func (u *ReportUseCase) Generate(ctx context.Context, t domain.Transcript) (*domain.Report, error) {
	rep, err := u.generator.Generate(ctx, t)
	if err != nil {
		u.logger.Warn("report generation failed", "messages", len(t.Messages), "error", err)
		return nil, err
	}
	u.logger.Info("report generated", "id", rep.ID, "filename", rep.Filename, "bytes", len(rep.Data))
	return &rep, nil
}
