package service

import (
	"context"
	"errors"
	"sort"
	"time"

	availabilityerrors "medilink/internal/availability/errors"
	"medilink/internal/availability/repository"
	"medilink/internal/availability/validator"
	"medilink/pkg/auth"
	"medilink/pkg/calendar"
	"medilink/pkg/config"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
	"medilink/pkg/validation"

	"go.mongodb.org/mongo-driver/mongo"
)

type AvailabilityService interface {
	GetSchedule(ctx context.Context, doctorID string) ([]*model.WeeklyAvailability, error)
	GetDay(ctx context.Context, doctorID, day string) (*model.WeeklyAvailability, error)
	UpdateDay(ctx context.Context, actor auth.Identity, doctorID, day string, update *model.AvailabilityUpdate) (*model.WeeklyAvailability, error)
	ResetSchedule(ctx context.Context, actor auth.Identity, doctorID string) ([]*model.WeeklyAvailability, error)
}

type availabilityService struct {
	repo      repository.AvailabilityRepository
	validator *validator.AvailabilityValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	validator *validator.AvailabilityValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GetSchedule returns all seven days, monday first, creating any missing day
// with the default grid.
func (s *availabilityService) GetSchedule(ctx context.Context, doctorID string) ([]*model.WeeklyAvailability, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	entries, err := s.ensureInitialized(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *availabilityService) GetDay(ctx context.Context, doctorID, day string) (*model.WeeklyAvailability, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	canonical, ok := calendar.ParseDay(day)
	if !ok {
		return nil, apperrors.NotFoundWithID("Availability", day)
	}

	entry, err := s.repo.FindDay(ctx, doctorID, canonical)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, availabilityerrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to read availability day", "doctor_id", doctorID, "day", canonical, "error", err)
		return nil, apperrors.Internal("Failed to retrieve availability", err)
	}

	entries, err := s.ensureInitialized(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return entries[calendar.DayIndex(canonical)], nil
}

// UpdateDay replaces one day wholesale. Omitted fields fall back to the day
// defaults, not to the stored values.
func (s *availabilityService) UpdateDay(ctx context.Context, actor auth.Identity, doctorID, day string, update *model.AvailabilityUpdate) (*model.WeeklyAvailability, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	if !actor.Is(model.RoleAdmin) && !(actor.Is(model.RoleDoctor) && actor.UserID == doctorID) {
		return nil, apperrors.Forbidden("Only the doctor or an administrator can change this schedule")
	}
	canonical, ok := calendar.ParseDay(day)
	if !ok {
		return nil, apperrors.NotFoundWithID("Availability", day)
	}
	if update == nil {
		update = &model.AvailabilityUpdate{}
	}
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Availability update validation failed", "doctor_id", doctorID, "day", canonical, "error", err)
		return nil, validationError(err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	entry := &model.WeeklyAvailability{
		DoctorID:     doctorID,
		DayOfWeek:    canonical,
		TimeSlots:    calendar.DefaultTimeSlots(),
		IsWorkingDay: calendar.DefaultWorkingDay(canonical),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if update.TimeSlots != nil {
		entry.TimeSlots = append([]model.TimeSlot{}, (*update.TimeSlots)...)
		sort.SliceStable(entry.TimeSlots, func(i, j int) bool {
			return calendar.ClockBefore(entry.TimeSlots[i].StartTime, entry.TimeSlots[j].StartTime)
		})
	}
	if update.IsWorkingDay != nil {
		entry.IsWorkingDay = *update.IsWorkingDay
	}

	existing, err := s.repo.FindDay(ctx, doctorID, canonical)
	switch {
	case err == nil:
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	case !errors.Is(err, availabilityerrors.ErrNotFound):
		s.cfg.Log.Error("Failed to read availability day", "doctor_id", doctorID, "day", canonical, "error", err)
		return nil, apperrors.Internal("Failed to update availability", err)
	}

	err = s.repo.Replace(ctx, entry)
	if errors.Is(err, availabilityerrors.ErrDuplicate) {
		// A concurrent upsert created the day first; the retry matches it.
		err = s.repo.Replace(ctx, entry)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to update availability", "doctor_id", doctorID, "day", canonical, "error", err)
		return nil, apperrors.Internal("Failed to update availability", err)
	}

	s.cfg.Log.Info("Availability updated",
		"doctor_id", doctorID,
		"day", canonical,
		"actor", actor.UserID,
		"is_working_day", entry.IsWorkingDay,
		"slots", len(entry.TimeSlots),
	)
	return entry, nil
}

// ResetSchedule drops every stored day and re-seeds the defaults in one
// transaction.
func (s *availabilityService) ResetSchedule(ctx context.Context, actor auth.Identity, doctorID string) ([]*model.WeeklyAvailability, error) {
	if !actor.Is(model.RoleAdmin) {
		return nil, apperrors.Forbidden("Only administrators can reset a schedule")
	}
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	var deleted int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		n, err := s.repo.DeleteByDoctor(sessCtx, doctorID)
		if err != nil {
			return err
		}
		deleted = n
		return s.repo.InsertMany(sessCtx, s.defaultWeek(doctorID, calendar.Days))
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reset availability", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to reset availability", err)
	}

	s.cfg.Log.Info("Availability reset", "doctor_id", doctorID, "actor", actor.UserID, "deleted", deleted)
	return s.ensureInitialized(ctx, doctorID)
}

// ensureInitialized reads the doctor's week and inserts whatever days are
// missing. A duplicate key means another caller initialized concurrently, so
// the week is simply read again.
func (s *availabilityService) ensureInitialized(ctx context.Context, doctorID string) ([]*model.WeeklyAvailability, error) {
	entries, err := s.repo.FindByDoctor(ctx, doctorID)
	if err != nil {
		s.cfg.Log.Error("Failed to read availability", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve availability", err)
	}

	missing := missingDays(entries)
	if len(missing) == 0 {
		return sortWeek(entries), nil
	}

	err = s.repo.InsertMany(ctx, s.defaultWeek(doctorID, missing))
	if err != nil && !errors.Is(err, availabilityerrors.ErrDuplicate) {
		s.cfg.Log.Error("Failed to initialize availability", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to initialize availability", err)
	}
	if err == nil {
		s.cfg.Log.Info("Availability initialized", "doctor_id", doctorID, "days", missing)
	}

	entries, err = s.repo.FindByDoctor(ctx, doctorID)
	if err != nil {
		s.cfg.Log.Error("Failed to read availability", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve availability", err)
	}
	if len(missingDays(entries)) > 0 {
		return nil, apperrors.Internal("Failed to initialize availability", errors.New("week still incomplete after initialization"))
	}
	return sortWeek(entries), nil
}

func (s *availabilityService) defaultWeek(doctorID string, days []string) []*model.WeeklyAvailability {
	now := s.now().UTC().Truncate(time.Millisecond)
	entries := make([]*model.WeeklyAvailability, 0, len(days))
	for _, day := range days {
		entries = append(entries, &model.WeeklyAvailability{
			DoctorID:     doctorID,
			DayOfWeek:    day,
			TimeSlots:    calendar.DefaultTimeSlots(),
			IsWorkingDay: calendar.DefaultWorkingDay(day),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return entries
}

func missingDays(entries []*model.WeeklyAvailability) []string {
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.DayOfWeek] = true
	}
	var missing []string
	for _, day := range calendar.Days {
		if !present[day] {
			missing = append(missing, day)
		}
	}
	return missing
}

func sortWeek(entries []*model.WeeklyAvailability) []*model.WeeklyAvailability {
	sort.Slice(entries, func(i, j int) bool {
		return calendar.DayIndex(entries[i].DayOfWeek) < calendar.DayIndex(entries[j].DayOfWeek)
	})
	return entries
}

func validationError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Invalid availability input", verrs.Details())
	}
	return apperrors.Validation("Invalid availability input", map[string]any{"error": err.Error()})
}
