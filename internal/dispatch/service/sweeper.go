package service

import (
	"context"
	"errors"
	"time"

	dispatcherrors "medilink/internal/dispatch/errors"
	"medilink/pkg/model"
)

// ExpireStale moves requests that stayed pending longer than the configured
// timeout to timed_out. A request claimed in the meantime is left alone.
func (s *dispatchService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	timeout := s.cfg.DispatchPendingTimeout
	if timeout <= 0 {
		return 0, nil
	}

	stale, err := s.repo.FindPendingBefore(ctx, now.Add(-timeout))
	if err != nil {
		s.cfg.Log.Error("Failed to find stale requests", "error", err)
		return 0, err
	}

	expired := 0
	for _, req := range stale {
		updated, err := s.repo.Transition(ctx, req.RequestID, model.EmergencyPending, model.EmergencyTimedOut, "", nil, now)
		if err != nil {
			if !errors.Is(err, dispatcherrors.ErrStateChanged) {
				s.cfg.Log.Error("Failed to expire request", "request_id", req.RequestID, "error", err)
			}
			continue
		}
		expired++
		s.cfg.Log.Info("Emergency request timed out", "request_id", req.RequestID, "created_at", req.CreatedAt)
		s.broadcastStatus(ctx, updated)
	}

	return expired, nil
}

// RunSweeper calls ExpireStale on every sweep interval until ctx is done.
func (s *dispatchService) RunSweeper(ctx context.Context) {
	if s.cfg.DispatchPendingTimeout <= 0 {
		s.cfg.Log.Info("Pending request sweep disabled")
		return
	}

	ticker := time.NewTicker(s.cfg.DispatchSweepInterval)
	defer ticker.Stop()

	s.cfg.Log.Info("Pending request sweep started",
		"timeout", s.cfg.DispatchPendingTimeout,
		"interval", s.cfg.DispatchSweepInterval,
	)
	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Pending request sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.ExpireStale(ctx, s.clock()); err != nil {
				s.cfg.Log.Warn("Pending request sweep failed", "error", err)
			}
		}
	}
}
