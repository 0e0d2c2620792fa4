package service

import (
	"context"
	"errors"
	"sync"
	"time"

	appointmentserrors "medilink/internal/appointments/errors"
	"medilink/internal/appointments/repository"
	"medilink/internal/appointments/validator"
	availabilityrepo "medilink/internal/availability/repository"
	usersrepo "medilink/internal/users/repository"
	"medilink/pkg/auth"
	"medilink/pkg/config"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
	"medilink/pkg/validation"
)

type AppointmentService interface {
	IsSlotAvailable(ctx context.Context, doctorID string, date time.Time, startTime, endTime string) bool
	BookAppointment(ctx context.Context, actor auth.Identity, req *model.BookingRequest) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, actor auth.Identity, appointmentID string) (*model.Appointment, error)
	GetAvailableSlotsForDate(ctx context.Context, doctorID, date string) (*model.DateAvailability, error)
	GetByID(ctx context.Context, actor auth.Identity, id string) (*model.Appointment, error)
	List(ctx context.Context, actor auth.Identity, limit int, offset int64) ([]*model.Appointment, int64, error)
	UpdateStatus(ctx context.Context, actor auth.Identity, id string, change *model.StatusChange) (*model.Appointment, error)
	UpdateVideoCall(ctx context.Context, actor auth.Identity, id string, change *model.VideoCallChange) (*model.Appointment, error)
}

type appointmentService struct {
	repo         repository.AppointmentRepository
	availability availabilityrepo.AvailabilityRepository
	users        usersrepo.UserRepository
	validator    *validator.AppointmentValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	availability availabilityrepo.AvailabilityRepository,
	users usersrepo.UserRepository,
	validator *validator.AppointmentValidator,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:         repo,
		availability: availability,
		users:        users,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *appointmentService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// GetByID hides appointments the caller does not take part in.
func (s *appointmentService) GetByID(ctx context.Context, actor auth.Identity, id string) (*model.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appointment.IsParticipant(actor.UserID) && !actor.Is(model.RoleAdmin) {
		return nil, apperrors.NotFoundWithID("Appointment", id)
	}
	return appointment, nil
}

func (s *appointmentService) List(ctx context.Context, actor auth.Identity, limit int, offset int64) ([]*model.Appointment, int64, error) {
	var count int64
	var appointments []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByParticipant(ctx, actor.UserID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count appointments", "user_id", actor.UserID, "error", errCount)
			errCount = apperrors.Internal("Failed to count appointments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		appointments, errFind = s.repo.FindByParticipant(ctx, actor.UserID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list appointments", "user_id", actor.UserID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve appointments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}

	return appointments, count, nil
}

func (s *appointmentService) load(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrNotFound) || errors.Is(err, appointmentserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		s.cfg.Log.Error("Failed to load appointment", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve appointment", err)
	}
	return appointment, nil
}

func validationError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Invalid appointment input", verrs.Details())
	}
	return apperrors.Validation("Invalid appointment input", map[string]any{"error": err.Error()})
}
