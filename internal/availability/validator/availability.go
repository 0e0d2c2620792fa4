package validator

import (
	"fmt"

	"medilink/pkg/calendar"
	"medilink/pkg/logger"
	"medilink/pkg/model"
	"medilink/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	v := validation.New(log)
	log.Info("Availability validator initialized successfully")

	return &AvailabilityValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateUpdate checks slot formats, then that every slot ends after it
// starts and that no two slots share a start time.
func (v *AvailabilityValidator) ValidateUpdate(update *model.AvailabilityUpdate) error {
	if err := validation.Struct(v.validate, update); err != nil {
		return err
	}
	if update.TimeSlots == nil {
		return nil
	}

	var errs validation.ValidationErrors
	seen := make(map[string]bool, len(*update.TimeSlots))
	for i, slot := range *update.TimeSlots {
		if !calendar.ClockBefore(slot.StartTime, slot.EndTime) {
			errs = append(errs, validation.ValidationError{
				Field:   fmt.Sprintf("TimeSlots[%d]", i),
				Message: fmt.Sprintf("endTime %s must be after startTime %s", slot.EndTime, slot.StartTime),
			})
		}
		if seen[slot.StartTime] {
			errs = append(errs, validation.ValidationError{
				Field:   fmt.Sprintf("TimeSlots[%d]", i),
				Message: fmt.Sprintf("duplicate slot starting at %s", slot.StartTime),
			})
		}
		seen[slot.StartTime] = true
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
