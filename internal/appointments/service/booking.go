package service

import (
	"context"
	"errors"
	"time"

	appointmentserrors "medilink/internal/appointments/errors"
	availabilityerrors "medilink/internal/availability/errors"
	userserrors "medilink/internal/users/errors"
	"medilink/pkg/auth"
	"medilink/pkg/calendar"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
)

// IsSlotAvailable is advisory. Any storage error reports the slot as taken;
// the unique slot index is what actually prevents double booking.
func (s *appointmentService) IsSlotAvailable(ctx context.Context, doctorID string, date time.Time, startTime, endTime string) bool {
	date = calendar.NormalizeDate(date)
	day := calendar.DayOf(date)

	booked, err := s.repo.ExistsActiveSlot(ctx, doctorID, date, startTime)
	if err != nil {
		s.cfg.Log.Warn("Slot check failed", "doctor_id", doctorID, "date", date.Format(calendar.DateLayout), "error", err)
		return false
	}
	if booked {
		return false
	}

	entry, err := s.availability.FindDay(ctx, doctorID, day)
	if err != nil {
		if !errors.Is(err, availabilityerrors.ErrNotFound) {
			s.cfg.Log.Warn("Availability lookup failed", "doctor_id", doctorID, "day", day, "error", err)
		}
		return false
	}
	if !entry.IsWorkingDay {
		return false
	}

	slot, ok := entry.FindSlot(startTime, endTime)
	return ok && slot.IsAvailable
}

func (s *appointmentService) BookAppointment(ctx context.Context, actor auth.Identity, req *model.BookingRequest) (*model.Appointment, error) {
	if !actor.Is(model.RolePatient) {
		return nil, apperrors.Forbidden("Only patients can book appointments")
	}
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request is required")
	}
	if err := s.validator.ValidateBooking(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "patient_id", actor.UserID, "error", err)
		return nil, validationError(err)
	}

	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	start, err := calendar.SlotStart(date, req.StartTime)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	now := s.clock()
	if !start.After(now) {
		return nil, apperrors.InvalidInput("Cannot book a time slot in the past")
	}

	if !s.IsSlotAvailable(ctx, req.DoctorID, date, req.StartTime, req.EndTime) {
		return nil, apperrors.SlotConflict()
	}

	fee, err := s.users.GetConsultationFee(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrNotDoctor) {
			return nil, apperrors.NotFoundWithID("Doctor", req.DoctorID)
		}
		if errors.Is(err, userserrors.ErrCorrupt) {
			s.cfg.Log.Error("Corrupt doctor record", "doctor_id", req.DoctorID, "error", err)
			return nil, apperrors.Internal("Failed to book appointment", err)
		}
		s.cfg.Log.Error("Failed to read consultation fee", "doctor_id", req.DoctorID, "error", err)
		return nil, apperrors.Internal("Failed to book appointment", err)
	}

	appointment := &model.Appointment{
		DoctorID:        req.DoctorID,
		PatientID:       actor.UserID,
		AppointmentDate: date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Type:            req.Type,
		Status:          model.AppointmentScheduled,
		ConsultationFee: fee,
		VideoCallStatus: model.VideoCallNotStarted,
		SlotActive:      true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		if errors.Is(err, appointmentserrors.ErrSlotTaken) {
			s.cfg.Log.Info("Booking lost slot race",
				"doctor_id", req.DoctorID,
				"date", req.Date,
				"start_time", req.StartTime,
				"patient_id", actor.UserID,
			)
			return nil, apperrors.SlotConflict()
		}
		s.cfg.Log.Error("Failed to create appointment", "doctor_id", req.DoctorID, "error", err)
		return nil, apperrors.Internal("Failed to book appointment", err)
	}

	s.cfg.Log.Info("Appointment booked",
		"id", appointment.ID,
		"doctor_id", appointment.DoctorID,
		"patient_id", appointment.PatientID,
		"date", req.Date,
		"start_time", appointment.StartTime,
		"type", appointment.Type,
	)
	return appointment, nil
}

// CancelAppointment soft-cancels. Every refusal is reported as not found so
// callers cannot discover other patients' appointments.
func (s *appointmentService) CancelAppointment(ctx context.Context, actor auth.Identity, appointmentID string) (*model.Appointment, error) {
	if appointmentID == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appointment, err := s.repo.Cancel(ctx, appointmentID, actor.UserID, s.clock())
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrNotFound) || errors.Is(err, appointmentserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Appointment", appointmentID)
		}
		s.cfg.Log.Error("Failed to cancel appointment", "id", appointmentID, "error", err)
		return nil, apperrors.Internal("Failed to cancel appointment", err)
	}

	s.cfg.Log.Info("Appointment cancelled",
		"id", appointment.ID,
		"doctor_id", appointment.DoctorID,
		"patient_id", appointment.PatientID,
		"start_time", appointment.StartTime,
	)
	return appointment, nil
}

// GetAvailableSlotsForDate lists the slots still open on a date: marked
// available on a working day and not held by an active appointment.
func (s *appointmentService) GetAvailableSlotsForDate(ctx context.Context, doctorID, date string) (*model.DateAvailability, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	dayOfWeek := calendar.DayOf(day)

	result := &model.DateAvailability{
		Doctor:         doctorID,
		Date:           day.Format(calendar.DateLayout),
		DayOfWeek:      dayOfWeek,
		AvailableSlots: []model.SlotWindow{},
	}

	entry, err := s.availability.FindDay(ctx, doctorID, dayOfWeek)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotFound) {
			return result, nil
		}
		s.cfg.Log.Error("Failed to read availability", "doctor_id", doctorID, "day", dayOfWeek, "error", err)
		return nil, apperrors.Internal("Failed to retrieve available slots", err)
	}
	if !entry.IsWorkingDay {
		return result, nil
	}

	booked, err := s.repo.FindActiveByDoctorAndDate(ctx, doctorID, day)
	if err != nil {
		s.cfg.Log.Error("Failed to read appointments", "doctor_id", doctorID, "date", result.Date, "error", err)
		return nil, apperrors.Internal("Failed to retrieve available slots", err)
	}
	taken := make(map[string]bool, len(booked))
	for _, a := range booked {
		taken[a.StartTime] = true
	}

	for _, slot := range entry.TimeSlots {
		if slot.IsAvailable && !taken[slot.StartTime] {
			result.AvailableSlots = append(result.AvailableSlots, model.SlotWindow{
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
			})
		}
	}
	return result, nil
}
