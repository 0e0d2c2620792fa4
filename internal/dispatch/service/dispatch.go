package service

import (
	"context"
	"errors"
	"time"

	dispatcherrors "medilink/internal/dispatch/errors"
	"medilink/internal/dispatch/events"
	"medilink/internal/dispatch/registry"
	"medilink/internal/dispatch/repository"
	"medilink/internal/dispatch/validator"
	userserrors "medilink/internal/users/errors"
	usersrepo "medilink/internal/users/repository"
	"medilink/pkg/auth"
	"medilink/pkg/config"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
	"medilink/pkg/sanitizer"
	"medilink/pkg/validation"

	"github.com/google/uuid"
)

// Notifier delivers committed changes to connected users. Delivery is best
// effort; implementations log failures instead of returning them.
type Notifier interface {
	ToDrivers(ctx context.Context, event string, payload any)
	ToUser(ctx context.Context, userID, event string, payload any)
}

type DispatchService interface {
	CreateRequest(ctx context.Context, actor auth.Identity, input *model.EmergencyRequestInput) (*model.EmergencyRequest, error)
	AcceptRequest(ctx context.Context, actor auth.Identity, requestID string, info *model.DriverInfo) (*model.EmergencyRequest, error)
	UpdateStatus(ctx context.Context, actor auth.Identity, requestID, status string, info *model.DriverInfo) (*model.EmergencyRequest, error)
	CancelRequest(ctx context.Context, actor auth.Identity, requestID string) (*model.EmergencyRequest, error)
	ExpireStale(ctx context.Context, now time.Time) (int, error)
	RunSweeper(ctx context.Context)
	GetPending(ctx context.Context, actor auth.Identity) ([]*model.EmergencyRequest, error)
	GetDetails(ctx context.Context, actor auth.Identity, requestID string) (*model.EmergencyRequest, error)
	DriverOnline(ctx context.Context, driverID string) ([]*model.EmergencyRequest, error)
	DriverOffline(ctx context.Context, driverID string)
	Heartbeat(ctx context.Context, driverID string)
	OnlineDrivers(ctx context.Context, actor auth.Identity) ([]string, error)
}

type dispatchService struct {
	repo      repository.EmergencyRepository
	users     usersrepo.UserRepository
	presence  registry.PresenceStore
	notifier  Notifier
	validator *validator.EmergencyValidator
	phones    *sanitizer.PhoneNormalizer
	cfg       *config.Config
	now       func() time.Time
}

func NewDispatchService(
	repo repository.EmergencyRepository,
	users usersrepo.UserRepository,
	presence registry.PresenceStore,
	notifier Notifier,
	validator *validator.EmergencyValidator,
	cfg *config.Config,
) DispatchService {
	if presence == nil {
		presence = registry.NewLocalPresence()
	}
	return &dispatchService{
		repo:      repo,
		users:     users,
		presence:  presence,
		notifier:  notifier,
		validator: validator,
		phones:    sanitizer.NewPhoneNormalizer(cfg.PhoneRegions),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *dispatchService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// CreateRequest stores a new pending request keyed by the caller's request
// id. Replaying the same id returns the stored request and does not alert
// drivers a second time.
func (s *dispatchService) CreateRequest(ctx context.Context, actor auth.Identity, input *model.EmergencyRequestInput) (*model.EmergencyRequest, error) {
	if !actor.Is(model.RolePatient) {
		return nil, apperrors.Forbidden("Only patients can create emergency requests")
	}
	if input == nil {
		return nil, apperrors.InvalidInput("Emergency request is required")
	}

	s.sanitize(input)
	if err := s.validator.ValidateCreate(input); err != nil {
		s.cfg.Log.Warn("Emergency request validation failed", "patient_id", actor.UserID, "error", err)
		return nil, validationError(err)
	}

	requestID := input.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	now := s.clock()
	req := &model.EmergencyRequest{
		RequestID:     requestID,
		PatientID:     actor.UserID,
		PatientInfo:   input.PatientInfo,
		Location:      input.Location,
		EmergencyType: input.EmergencyType,
		Description:   input.Description,
		Status:        model.EmergencyPending,
		StatusHistory: map[string]time.Time{model.EmergencyPending: now},
		Payment:       model.Payment{Status: model.PaymentPending},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	stored, created, err := s.repo.Create(ctx, req)
	if err != nil {
		s.cfg.Log.Error("Failed to create emergency request", "request_id", requestID, "error", err)
		return nil, apperrors.Internal("Failed to create emergency request", err)
	}
	if stored.PatientID != actor.UserID {
		s.cfg.Log.Warn("Request id reused by another patient", "request_id", requestID, "patient_id", actor.UserID)
		return nil, apperrors.Conflict("Request id is already in use")
	}

	s.notifier.ToUser(ctx, stored.PatientID, events.RequestCreated, stored)
	if created {
		s.notifier.ToDrivers(ctx, events.NewRequest, stored)
		s.cfg.Log.Info("Emergency request created",
			"request_id", stored.RequestID,
			"patient_id", stored.PatientID,
			"emergency_type", stored.EmergencyType,
		)
	} else {
		s.cfg.Log.Info("Emergency request replayed", "request_id", stored.RequestID, "status", stored.Status)
	}

	return stored, nil
}

func (s *dispatchService) sanitize(input *model.EmergencyRequestInput) {
	input.ID = sanitizer.CleanID(input.ID)
	input.PatientInfo.Name = sanitizer.CleanText(input.PatientInfo.Name)
	if phone, ok := s.phones.Normalize(input.PatientInfo.Contact); ok {
		input.PatientInfo.Contact = phone
	} else {
		input.PatientInfo.Contact = sanitizer.CleanText(input.PatientInfo.Contact)
	}
	input.Location.Pickup = sanitizer.CleanText(input.Location.Pickup)
	input.Location.Destination = sanitizer.CleanText(input.Location.Destination)
	if input.Location.Destination == "" {
		input.Location.Destination = sanitizer.CleanText(input.Destination)
	}
	input.Destination = ""
	input.EmergencyType = sanitizer.CleanKeyword(input.EmergencyType)
	input.Description = sanitizer.CleanParagraph(input.Description)
}

func (s *dispatchService) GetPending(ctx context.Context, actor auth.Identity) ([]*model.EmergencyRequest, error) {
	if !actor.Is(model.RoleDriver) && !actor.Is(model.RoleAdmin) {
		return nil, apperrors.Forbidden("Only drivers can list pending requests")
	}
	return s.pending(ctx)
}

func (s *dispatchService) pending(ctx context.Context) ([]*model.EmergencyRequest, error) {
	requests, err := s.repo.FindPending(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list pending requests", "error", err)
		return nil, apperrors.Internal("Failed to retrieve pending requests", err)
	}
	if requests == nil {
		requests = []*model.EmergencyRequest{}
	}
	return requests, nil
}

// GetDetails shows a request to its patient, its assigned driver, any driver
// while it is still pending, and admins.
func (s *dispatchService) GetDetails(ctx context.Context, actor auth.Identity, requestID string) (*model.EmergencyRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}

	visible := actor.Is(model.RoleAdmin) ||
		req.PatientID == actor.UserID ||
		(req.DriverID != "" && req.DriverID == actor.UserID) ||
		(actor.Is(model.RoleDriver) && req.Status == model.EmergencyPending)
	if !visible {
		return nil, apperrors.NotFoundWithID("Emergency request", requestID)
	}
	return req, nil
}

// DriverOnline records presence and returns the requests the driver should
// be shown right now, read fresh from storage.
func (s *dispatchService) DriverOnline(ctx context.Context, driverID string) ([]*model.EmergencyRequest, error) {
	if err := s.users.SetDriverOnline(ctx, driverID, true, s.clock()); err != nil {
		s.logPresenceError("Failed to mark driver online", driverID, err)
	}
	if err := s.presence.MarkOnline(ctx, driverID); err != nil {
		s.cfg.Log.Warn("Failed to publish driver presence", "driver_id", driverID, "error", err)
	}

	s.cfg.Log.Info("Driver online", "driver_id", driverID)
	return s.pending(ctx)
}

func (s *dispatchService) DriverOffline(ctx context.Context, driverID string) {
	if err := s.users.SetDriverOnline(ctx, driverID, false, s.clock()); err != nil {
		s.logPresenceError("Failed to mark driver offline", driverID, err)
	}
	if err := s.presence.MarkOffline(ctx, driverID); err != nil {
		s.cfg.Log.Warn("Failed to clear driver presence", "driver_id", driverID, "error", err)
	}
	s.cfg.Log.Info("Driver offline", "driver_id", driverID)
}

func (s *dispatchService) Heartbeat(ctx context.Context, driverID string) {
	if err := s.presence.Refresh(ctx, driverID); err != nil {
		s.cfg.Log.Debug("Failed to refresh driver presence", "driver_id", driverID, "error", err)
	}
}

func (s *dispatchService) OnlineDrivers(ctx context.Context, actor auth.Identity) ([]string, error) {
	if !actor.Is(model.RoleDriver) && !actor.Is(model.RoleAdmin) {
		return nil, apperrors.Forbidden("Only drivers and admins can list online drivers")
	}
	ids, err := s.presence.OnlineDrivers(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to read driver presence", "error", err)
		return nil, apperrors.Unavailable("Driver presence")
	}
	return ids, nil
}

func (s *dispatchService) logPresenceError(msg, driverID string, err error) {
	if errors.Is(err, userserrors.ErrNotDriver) || errors.Is(err, userserrors.ErrNotFound) {
		s.cfg.Log.Warn(msg, "driver_id", driverID, "error", err)
		return
	}
	s.cfg.Log.Error(msg, "driver_id", driverID, "error", err)
}

func (s *dispatchService) load(ctx context.Context, requestID string) (*model.EmergencyRequest, error) {
	if requestID == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}

	req, err := s.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, dispatcherrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Emergency request", requestID)
		}
		s.cfg.Log.Error("Failed to load emergency request", "request_id", requestID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve emergency request", err)
	}
	return req, nil
}

func validationError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Invalid emergency request", verrs.Details())
	}
	return apperrors.Validation("Invalid emergency request", map[string]any{"error": err.Error()})
}
