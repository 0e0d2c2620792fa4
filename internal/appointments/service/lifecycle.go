package service

import (
	"context"
	"errors"

	appointmentserrors "medilink/internal/appointments/errors"
	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
)

// UpdateStatus moves an appointment out of scheduled. The doctor closes it as
// completed or no-show; cancelling goes through CancelAppointment so the
// owner and date rules apply.
func (s *appointmentService) UpdateStatus(ctx context.Context, actor auth.Identity, id string, change *model.StatusChange) (*model.Appointment, error) {
	if change == nil {
		return nil, apperrors.InvalidInput("Status is required")
	}
	if err := s.validator.ValidateStatusChange(change); err != nil {
		return nil, validationError(err)
	}

	appointment, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	target := change.Status

	if appointment.Status == target {
		return appointment, nil
	}
	if !model.AppointmentTransitionAllowed(appointment.Status, target) {
		return nil, apperrors.InvalidTransition(appointment.Status, target)
	}

	if target == model.AppointmentCancelled {
		if actor.UserID != appointment.PatientID {
			return nil, apperrors.Forbidden("Only the patient can cancel an appointment")
		}
		return s.CancelAppointment(ctx, actor, id)
	}
	if actor.UserID != appointment.DoctorID {
		return nil, apperrors.Forbidden("Only the doctor can close an appointment")
	}

	updated, err := s.repo.TransitionStatus(ctx, id, appointment.Status, target, s.clock())
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrStateChanged) {
			return s.settleStatusRace(ctx, actor, id, target)
		}
		s.cfg.Log.Error("Failed to update appointment status", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update appointment", err)
	}

	s.cfg.Log.Info("Appointment status changed",
		"id", id,
		"from", appointment.Status,
		"to", target,
		"actor", actor.UserID,
	)
	return updated, nil
}

// settleStatusRace re-reads after a lost conditional update. Landing on the
// requested status counts as success; anything else is a refused transition.
func (s *appointmentService) settleStatusRace(ctx context.Context, actor auth.Identity, id, target string) (*model.Appointment, error) {
	current, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if current.Status == target {
		return current, nil
	}
	return nil, apperrors.InvalidTransition(current.Status, target)
}

// UpdateVideoCall advances the tele-consult call state. Either participant
// may drive it while the appointment is scheduled; the final completed stamp
// is also accepted after the appointment itself was completed.
func (s *appointmentService) UpdateVideoCall(ctx context.Context, actor auth.Identity, id string, change *model.VideoCallChange) (*model.Appointment, error) {
	if change == nil {
		return nil, apperrors.InvalidInput("Video call status is required")
	}
	if err := s.validator.ValidateVideoCallChange(change); err != nil {
		return nil, validationError(err)
	}

	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appointment.IsParticipant(actor.UserID) {
		return nil, apperrors.NotFoundWithID("Appointment", id)
	}
	if appointment.Type != model.AppointmentTeleConsult {
		return nil, apperrors.InvalidInput("Video calls are only available for tele-consult appointments")
	}

	target := change.VideoCallStatus
	if appointment.VideoCallStatus == target {
		return appointment, nil
	}
	if !model.VideoCallTransitionAllowed(appointment.VideoCallStatus, target) {
		return nil, apperrors.InvalidTransition(appointment.VideoCallStatus, target)
	}

	statuses := []string{model.AppointmentScheduled}
	if target == model.VideoCallCompleted {
		statuses = append(statuses, model.AppointmentCompleted)
	}
	allowed := false
	for _, st := range statuses {
		if appointment.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return nil, apperrors.InvalidTransition(appointment.Status, "video "+target)
	}

	updated, err := s.repo.TransitionVideoCall(ctx, id, appointment.VideoCallStatus, target, statuses, s.clock())
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrStateChanged) {
			current, loadErr := s.load(ctx, id)
			if loadErr != nil {
				return nil, loadErr
			}
			if current.VideoCallStatus == target {
				return current, nil
			}
			return nil, apperrors.InvalidTransition(current.VideoCallStatus, target)
		}
		s.cfg.Log.Error("Failed to update video call", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update video call", err)
	}

	s.cfg.Log.Info("Video call status changed",
		"id", id,
		"from", appointment.VideoCallStatus,
		"to", target,
		"actor", actor.UserID,
	)
	return updated, nil
}
