package service

import (
	"context"
	"errors"

	dispatcherrors "medilink/internal/dispatch/errors"
	"medilink/internal/dispatch/events"
	userserrors "medilink/internal/users/errors"
	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
)

// maxTransitionAttempts bounds how often a transition re-reads after losing
// a conditional update before giving up.
const maxTransitionAttempts = 3

// AcceptRequest claims a pending request for the calling driver. Exactly one
// driver wins; the others get AlreadyClaimed.
func (s *dispatchService) AcceptRequest(ctx context.Context, actor auth.Identity, requestID string, info *model.DriverInfo) (*model.EmergencyRequest, error) {
	if !actor.Is(model.RoleDriver) {
		return nil, apperrors.Forbidden("Only drivers can accept emergency requests")
	}
	if requestID == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}
	if err := s.validator.ValidateDriverInfo(info); err != nil {
		return nil, validationError(err)
	}
	if info == nil {
		info = s.driverProfile(ctx, actor.UserID)
	}

	claimed, err := s.repo.Claim(ctx, requestID, actor.UserID, info, s.clock())
	if err != nil {
		if !errors.Is(err, dispatcherrors.ErrStateChanged) {
			s.cfg.Log.Error("Failed to claim emergency request", "request_id", requestID, "error", err)
			return nil, apperrors.Internal("Failed to accept emergency request", err)
		}

		current, loadErr := s.load(ctx, requestID)
		if loadErr != nil {
			return nil, loadErr
		}
		switch {
		case current.DriverID == actor.UserID:
			return current, nil
		case current.DriverID != "":
			s.cfg.Log.Info("Emergency request already claimed",
				"request_id", requestID,
				"driver_id", actor.UserID,
				"winner", current.DriverID,
			)
			return nil, apperrors.AlreadyClaimed(requestID)
		default:
			return nil, apperrors.InvalidTransition(current.Status, model.EmergencyAccepted)
		}
	}

	s.cfg.Log.Info("Emergency request accepted", "request_id", requestID, "driver_id", actor.UserID)

	s.notifier.ToUser(ctx, actor.UserID, events.RequestAccepted, claimed)
	s.broadcastStatus(ctx, claimed)
	return claimed, nil
}

// driverProfile fills driver details from the directory when the client
// sent none. A lookup failure leaves them empty.
func (s *dispatchService) driverProfile(ctx context.Context, driverID string) *model.DriverInfo {
	user, err := s.users.FindByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, userserrors.ErrCorrupt) {
			s.cfg.Log.Error("Corrupt driver record", "driver_id", driverID, "error", err)
			return nil
		}
		s.cfg.Log.Warn("Driver profile lookup failed", "driver_id", driverID, "error", err)
		return nil
	}
	info := &model.DriverInfo{Name: user.Name, Phone: user.Phone}
	if user.Driver != nil {
		info.VehicleNumber = user.Driver.VehicleNumber
	}
	return info
}

// UpdateStatus advances an accepted request along the progression.
func (s *dispatchService) UpdateStatus(ctx context.Context, actor auth.Identity, requestID, status string, info *model.DriverInfo) (*model.EmergencyRequest, error) {
	if requestID == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}
	if err := s.validator.ValidateStatus(status); err != nil {
		return nil, validationError(err)
	}
	if err := s.validator.ValidateDriverInfo(info); err != nil {
		return nil, validationError(err)
	}
	if status == model.EmergencyCancelled {
		return s.CancelRequest(ctx, actor, requestID)
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := s.load(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if current.Status == model.EmergencyPending && status == model.EmergencyAccepted {
			return s.AcceptRequest(ctx, actor, requestID, info)
		}

		if err := checkAdvance(current, actor, status); err != nil {
			return nil, err
		}
		if current.Status == status {
			return current, nil
		}

		updated, err := s.repo.Transition(ctx, requestID, current.Status, status, actor.UserID, info, s.clock())
		if err != nil {
			if errors.Is(err, dispatcherrors.ErrStateChanged) {
				continue
			}
			s.cfg.Log.Error("Failed to update emergency request", "request_id", requestID, "error", err)
			return nil, apperrors.Internal("Failed to update emergency request", err)
		}

		s.cfg.Log.Info("Emergency request status changed",
			"request_id", requestID,
			"from", current.Status,
			"to", status,
			"driver_id", actor.UserID,
		)
		s.broadcastStatus(ctx, updated)
		return updated, nil
	}

	return nil, apperrors.Conflict("Emergency request changed concurrently, please retry")
}

// checkAdvance decides whether actor may move req to the target status.
// Only the assigned driver advances a request, forward only; repeating the
// current status is allowed and becomes a no-op.
func checkAdvance(req *model.EmergencyRequest, actor auth.Identity, to string) error {
	if to == model.EmergencyPending || to == model.EmergencyTimedOut {
		return apperrors.InvalidTransition(req.Status, to)
	}
	if req.Status == model.EmergencyPending {
		return apperrors.InvalidTransition(req.Status, to)
	}
	if req.DriverID == "" || req.DriverID != actor.UserID {
		return apperrors.Forbidden("Only the assigned driver can update this request")
	}
	if req.Status == to {
		return nil
	}
	if model.IsTerminalEmergencyStatus(req.Status) {
		return apperrors.InvalidTransition(req.Status, to)
	}
	if model.EmergencyStatusRank(to) < model.EmergencyStatusRank(req.Status) {
		return apperrors.InvalidTransition(req.Status, to)
	}
	return nil
}

// CancelRequest is open to the patient who raised the request and to its
// assigned driver, from any non-terminal state.
func (s *dispatchService) CancelRequest(ctx context.Context, actor auth.Identity, requestID string) (*model.EmergencyRequest, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := s.load(ctx, requestID)
		if err != nil {
			return nil, err
		}

		owner := current.PatientID == actor.UserID
		assigned := current.DriverID != "" && current.DriverID == actor.UserID
		if !owner && !assigned {
			return nil, apperrors.NotFoundWithID("Emergency request", requestID)
		}
		if current.Status == model.EmergencyCancelled {
			return current, nil
		}
		if model.IsTerminalEmergencyStatus(current.Status) {
			return nil, apperrors.InvalidTransition(current.Status, model.EmergencyCancelled)
		}

		updated, err := s.repo.Transition(ctx, requestID, current.Status, model.EmergencyCancelled, "", nil, s.clock())
		if err != nil {
			if errors.Is(err, dispatcherrors.ErrStateChanged) {
				continue
			}
			s.cfg.Log.Error("Failed to cancel emergency request", "request_id", requestID, "error", err)
			return nil, apperrors.Internal("Failed to cancel emergency request", err)
		}

		s.cfg.Log.Info("Emergency request cancelled",
			"request_id", requestID,
			"from", current.Status,
			"actor", actor.UserID,
		)
		s.broadcastStatus(ctx, updated)
		return updated, nil
	}

	return nil, apperrors.Conflict("Emergency request changed concurrently, please retry")
}

// broadcastStatus tells every driver and the owning patient about a change.
func (s *dispatchService) broadcastStatus(ctx context.Context, req *model.EmergencyRequest) {
	s.notifier.ToDrivers(ctx, events.RequestStatusUpdate, req)
	s.notifier.ToUser(ctx, req.PatientID, events.RequestStatusUpdate, req)
}
