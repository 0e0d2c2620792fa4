package validator

import (
	"medilink/pkg/logger"
	"medilink/pkg/model"
	"medilink/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type EmergencyValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewEmergencyValidator(log *logger.Logger) *EmergencyValidator {
	v := validation.New(log)
	log.Info("Emergency validator initialized successfully")

	return &EmergencyValidator{
		validate: v,
		logger:   log,
	}
}

func (v *EmergencyValidator) ValidateCreate(input *model.EmergencyRequestInput) error {
	return validation.Struct(v.validate, input)
}

// ValidateDriverInfo accepts nil; drivers may omit their details.
func (v *EmergencyValidator) ValidateDriverInfo(info *model.DriverInfo) error {
	if info == nil {
		return nil
	}
	return validation.Struct(v.validate, info)
}

func (v *EmergencyValidator) ValidateStatus(status string) error {
	if status == "" {
		return validation.Single("status", "status is required")
	}
	if !model.IsKnownEmergencyStatus(status) {
		return validation.Single("status", "status is not a known emergency status")
	}
	return nil
}
