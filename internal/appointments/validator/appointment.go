package validator

import (
	"medilink/pkg/calendar"
	"medilink/pkg/logger"
	"medilink/pkg/model"
	"medilink/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type AppointmentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAppointmentValidator(log *logger.Logger) *AppointmentValidator {
	v := validation.New(log)
	log.Info("Appointment validator initialized successfully")

	return &AppointmentValidator{
		validate: v,
		logger:   log,
	}
}

func (v *AppointmentValidator) ValidateBooking(req *model.BookingRequest) error {
	if err := validation.Struct(v.validate, req); err != nil {
		return err
	}
	if !calendar.ClockBefore(req.StartTime, req.EndTime) {
		return validation.Single("EndTime", "endTime must be after startTime")
	}
	return nil
}

func (v *AppointmentValidator) ValidateStatusChange(change *model.StatusChange) error {
	return validation.Struct(v.validate, change)
}

func (v *AppointmentValidator) ValidateVideoCallChange(change *model.VideoCallChange) error {
	return validation.Struct(v.validate, change)
}
