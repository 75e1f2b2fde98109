package service

import (
	"context"
	"time"

	perr "lumen/internal/platform/errors"
	"lumen/internal/services/describe/domain"
)

// Batch describes the first min(capN, len(paths)) items strictly in order.
// Per-item failures are embedded in the summary; the only errors returned
// are input validation and the zero-success escalation
func (s *Svc) Batch(ctx context.Context, paths []string, capN int) (domain.BatchSummary, error) {
	if len(paths) == 0 {
		return domain.BatchSummary{}, perr.Validationf("batch contains no images")
	}
	if capN <= 0 {
		return domain.BatchSummary{}, perr.InvalidArgf("image cap must be positive, got %d", capN)
	}

	attempt := capN
	if len(paths) < attempt {
		attempt = len(paths)
	}

	summary := domain.BatchSummary{
		TotalFound: len(paths),
		Attempted:  attempt,
		Results:    make([]domain.ItemResult, 0, attempt),
	}

	start := time.Now()
	for _, path := range paths[:attempt] {
		res := s.Item(ctx, path)
		if res.Status == domain.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}

	s.log.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")

	if summary.Succeeded == 0 {
		return summary, perr.BatchFailedf("all %d attempted images failed", summary.Attempted)
	}
	return summary, nil
}
