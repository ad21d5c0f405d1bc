package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type counterAuditor interface {
	CounterDrift(ctx context.Context) ([]models.CounterDrift, error)
	RepairCounters(ctx context.Context, sectionID string) error
}

// ReconciliationReport summarizes one reconciliation pass.
type ReconciliationReport struct {
	Checked  bool                  `json:"checked"`
	Drifted  []models.CounterDrift `json:"drifted"`
	Repaired int                   `json:"repaired"`
}

// ReconciliationService audits the denormalized section counters against
// the enrollment rows. The counters are a read optimization; when they
// disagree the rows win.
type ReconciliationService struct {
	sections counterAuditor
	logger   *zap.Logger
}

// NewReconciliationService constructs ReconciliationService.
func NewReconciliationService(sections counterAuditor, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{sections: sections, logger: logger}
}

// Audit reports sections whose counters drifted without touching them.
func (s *ReconciliationService) Audit(ctx context.Context) (*ReconciliationReport, error) {
	drifted, err := s.sections.CounterDrift(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to audit section counters")
	}
	return &ReconciliationReport{Checked: true, Drifted: drifted}, nil
}

// Repair audits and rewrites every drifted section's counters from the
// enrollment rows.
func (s *ReconciliationService) Repair(ctx context.Context) (*ReconciliationReport, error) {
	report, err := s.Audit(ctx)
	if err != nil {
		return nil, err
	}
	for _, drift := range report.Drifted {
		if err := s.sections.RepairCounters(ctx, drift.SectionID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair section counters")
		}
		s.logger.Warn("section counters repaired",
			zap.String("section_id", drift.SectionID),
			zap.Int("stored_enrolled", drift.CurrentEnrollment),
			zap.Int("actual_enrolled", drift.ActualEnrolled),
			zap.Int("stored_waitlisted", drift.WaitlistCount),
			zap.Int("actual_waitlisted", drift.ActualWaitlisted))
		report.Repaired++
	}
	return report, nil
}
