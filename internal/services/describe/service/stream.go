package service

import (
	"context"

	perr "lumen/internal/platform/errors"
	"lumen/internal/services/describe/domain"
)

func intp(v int) *int { return &v }

// StreamItem emits the single-item lifecycle for one path:
// start, processing, then result or error, then complete.
// Sink failures stop the producer immediately
func (s *Svc) StreamItem(ctx context.Context, path string, sink domain.Sink) error {
	if err := sink.Emit(domain.Event{Type: domain.EventStart, Path: path}); err != nil {
		return err
	}
	if err := sink.Emit(domain.Event{Type: domain.EventProcessing, Path: path}); err != nil {
		return err
	}

	res := s.Item(ctx, path)
	var ev domain.Event
	if res.Status == domain.StatusSuccess {
		ev = domain.Event{
			Type:        domain.EventResult,
			Path:        res.Path,
			Status:      res.Status,
			Description: res.Description,
		}
	} else {
		ev = domain.Event{Type: domain.EventError, Path: res.Path, Error: res.Error}
	}
	if err := sink.Emit(ev); err != nil {
		return err
	}

	done := 0
	if res.Status == domain.StatusSuccess {
		done = 1
	}
	return sink.Emit(domain.Event{
		Type:       domain.EventComplete,
		TotalFound: intp(1),
		Attempted:  intp(1),
		Succeeded:  intp(done),
		Failed:     intp(1 - done),
	})
}

// StreamBatch emits the batch lifecycle: one metadata event with the
// totals known up front, then start and result per item, then complete
// with final tallies. Per-item failures ride inside result events and
// never end the stream; anything failing outside an item emits a single
// error event and terminates
func (s *Svc) StreamBatch(ctx context.Context, paths []string, capN int, sink domain.Sink) error {
	if err := s.validateBatch(paths, capN); err != nil {
		_ = sink.Emit(domain.Event{Type: domain.EventError, Error: err.Error()})
		return err
	}

	attempt := capN
	if len(paths) < attempt {
		attempt = len(paths)
	}

	if err := sink.Emit(domain.Event{
		Type:       domain.EventMetadata,
		TotalFound: intp(len(paths)),
		Attempted:  intp(attempt),
		Succeeded:  intp(0),
		Failed:     intp(0),
	}); err != nil {
		return err
	}

	succeeded, failed := 0, 0
	for _, path := range paths[:attempt] {
		if err := sink.Emit(domain.Event{Type: domain.EventStart, Path: path}); err != nil {
			return err
		}

		res := s.Item(ctx, path)
		if res.Status == domain.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
		if err := sink.Emit(domain.Event{
			Type:        domain.EventResult,
			Path:        res.Path,
			Status:      res.Status,
			Description: res.Description,
			Error:       res.Error,
		}); err != nil {
			return err
		}
	}

	return sink.Emit(domain.Event{
		Type:       domain.EventComplete,
		TotalFound: intp(len(paths)),
		Attempted:  intp(attempt),
		Succeeded:  intp(succeeded),
		Failed:     intp(failed),
	})
}

func (s *Svc) validateBatch(paths []string, capN int) error {
	if len(paths) == 0 {
		return perr.Validationf("batch contains no images")
	}
	if capN <= 0 {
		return perr.InvalidArgf("image cap must be positive, got %d", capN)
	}
	return nil
}
