package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	availabilityerrors "medilink/internal/availability/errors"
	"medilink/internal/availability/validator"
	"medilink/pkg/auth"
	"medilink/pkg/calendar"
	"medilink/pkg/config"
	mongotx "medilink/pkg/db/mongo"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/logger"
	"medilink/pkg/model"
)

// memoryRepo models the unique (doctor_id, day_of_week) index.
type memoryRepo struct {
	mu      sync.Mutex
	entries map[string]*model.WeeklyAvailability
	inserts int
	seq     int
	failOn  string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]*model.WeeklyAvailability)}
}

func key(doctorID, day string) string { return doctorID + "|" + day }

func (r *memoryRepo) FindByDoctor(_ context.Context, doctorID string) ([]*model.WeeklyAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "find" {
		return nil, errors.New("connection reset")
	}
	var out []*model.WeeklyAvailability
	for _, e := range r.entries {
		if e.DoctorID == doctorID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindDay(_ context.Context, doctorID, day string) (*model.WeeklyAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key(doctorID, day)]
	if !ok {
		return nil, availabilityerrors.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *memoryRepo) InsertMany(_ context.Context, entries []*model.WeeklyAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dup := false
	for _, e := range entries {
		k := key(e.DoctorID, e.DayOfWeek)
		if _, exists := r.entries[k]; exists {
			dup = true
			continue
		}
		copied := *e
		copied.ID = k
		r.entries[k] = &copied
		r.inserts++
	}
	if dup {
		return availabilityerrors.ErrDuplicate
	}
	return nil
}

func (r *memoryRepo) Replace(_ context.Context, entry *model.WeeklyAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	k := key(entry.DoctorID, entry.DayOfWeek)
	if existing, ok := r.entries[k]; ok {
		copied.ID = existing.ID
	} else {
		r.seq++
		copied.ID = fmt.Sprintf("avail_%d", r.seq)
		entry.ID = copied.ID
	}
	r.entries[k] = &copied
	return nil
}

func (r *memoryRepo) DeleteByDoctor(_ context.Context, doctorID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, e := range r.entries {
		if e.DoctorID == doctorID {
			delete(r.entries, k)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func newTestService(repo *memoryRepo) *availabilityService {
	log := logger.Discard()
	cfg := &config.Config{Log: log}
	svc := NewAvailabilityService(repo, validator.NewAvailabilityValidator(log), cfg).(*availabilityService)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestGetSchedule_InitializesWeek(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	week, err := svc.GetSchedule(context.Background(), "doc_1")
	if err != nil {
		t.Fatalf("GetSchedule() error = %v", err)
	}
	if len(week) != 7 {
		t.Fatalf("got %d days, want 7", len(week))
	}
	for i, entry := range week {
		if entry.DayOfWeek != calendar.Days[i] {
			t.Errorf("day %d = %s, want %s", i, entry.DayOfWeek, calendar.Days[i])
		}
		if len(entry.TimeSlots) != calendar.SlotsPerDay {
			t.Errorf("%s has %d slots", entry.DayOfWeek, len(entry.TimeSlots))
		}
		wantWorking := entry.DayOfWeek != calendar.Saturday && entry.DayOfWeek != calendar.Sunday
		if entry.IsWorkingDay != wantWorking {
			t.Errorf("%s working = %v", entry.DayOfWeek, entry.IsWorkingDay)
		}
	}

	if _, err := svc.GetSchedule(context.Background(), "doc_1"); err != nil {
		t.Fatal(err)
	}
	if repo.inserts != 7 {
		t.Errorf("second read inserted again: %d inserts", repo.inserts)
	}
}

func TestGetSchedule_ConcurrentColdReads(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			week, err := svc.GetSchedule(context.Background(), "doc_1")
			if err == nil && len(week) != 7 {
				err = errors.New("partial week returned")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("GetSchedule() error = %v", err)
		}
	}
	if got := len(repo.entries); got != 7 {
		t.Errorf("stored %d entries, want 7", got)
	}
}

func TestGetSchedule_FillsMissingDays(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	_ = repo.Replace(context.Background(), &model.WeeklyAvailability{
		DoctorID:     "doc_1",
		DayOfWeek:    calendar.Wednesday,
		TimeSlots:    []model.TimeSlot{{StartTime: "10:00", EndTime: "10:50", IsAvailable: true}},
		IsWorkingDay: true,
	})

	week, err := svc.GetSchedule(context.Background(), "doc_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(week) != 7 {
		t.Fatalf("got %d days", len(week))
	}
	if len(week[2].TimeSlots) != 1 {
		t.Errorf("existing wednesday was overwritten: %+v", week[2])
	}
}

func TestGetDay(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	entry, err := svc.GetDay(context.Background(), "doc_1", "Monday")
	if err != nil {
		t.Fatalf("GetDay() error = %v", err)
	}
	if entry.DayOfWeek != calendar.Monday {
		t.Errorf("day = %s", entry.DayOfWeek)
	}

	_, err = svc.GetDay(context.Background(), "doc_1", "funday")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found for bad day, got %v", err)
	}
}

func TestUpdateDay(t *testing.T) {
	doctor := auth.Identity{UserID: "doc_1", Role: model.RoleDoctor}
	slots := []model.TimeSlot{
		{StartTime: "10:00", EndTime: "10:50", IsAvailable: true},
		{StartTime: "09:00", EndTime: "09:50", IsAvailable: true},
	}
	working := false

	tests := []struct {
		name     string
		actor    auth.Identity
		day      string
		update   *model.AvailabilityUpdate
		wantCode string
		check    func(t *testing.T, got *model.WeeklyAvailability)
	}{
		{
			name:   "doctor sets slots",
			actor:  doctor,
			day:    "monday",
			update: &model.AvailabilityUpdate{TimeSlots: &slots},
			check: func(t *testing.T, got *model.WeeklyAvailability) {
				if len(got.TimeSlots) != 2 || got.TimeSlots[0].StartTime != "09:00" {
					t.Errorf("slots not stored in order: %+v", got.TimeSlots)
				}
				if !got.IsWorkingDay {
					t.Error("monday should default to working")
				}
				if got.ID == "" {
					t.Error("created day returned without an id")
				}
			},
		},
		{
			name:   "omitted slots regenerate defaults",
			actor:  auth.Identity{UserID: "admin_1", Role: model.RoleAdmin},
			day:    "SUNDAY",
			update: &model.AvailabilityUpdate{IsWorkingDay: &working},
			check: func(t *testing.T, got *model.WeeklyAvailability) {
				if len(got.TimeSlots) != calendar.SlotsPerDay {
					t.Errorf("got %d slots", len(got.TimeSlots))
				}
				for _, s := range got.TimeSlots {
					if s.IsAvailable {
						t.Errorf("default slot %s should be unavailable", s.StartTime)
					}
				}
			},
		},
		{
			name:     "other doctor",
			actor:    auth.Identity{UserID: "doc_2", Role: model.RoleDoctor},
			day:      "monday",
			update:   &model.AvailabilityUpdate{},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "unknown day",
			actor:    doctor,
			day:      "someday",
			update:   &model.AvailabilityUpdate{},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:  "end before start",
			actor: doctor,
			day:   "tuesday",
			update: &model.AvailabilityUpdate{TimeSlots: &[]model.TimeSlot{
				{StartTime: "11:00", EndTime: "10:00"},
			}},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:  "malformed clock",
			actor: doctor,
			day:   "tuesday",
			update: &model.AvailabilityUpdate{TimeSlots: &[]model.TimeSlot{
				{StartTime: "9:00", EndTime: "09:50"},
			}},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newMemoryRepo())
			got, err := svc.UpdateDay(context.Background(), tt.actor, "doc_1", tt.day, tt.update)
			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Fatalf("error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateDay() error = %v", err)
			}
			tt.check(t, got)

			stored, err := svc.GetDay(context.Background(), "doc_1", tt.day)
			if err != nil {
				t.Fatal(err)
			}
			if len(stored.TimeSlots) != len(got.TimeSlots) || stored.IsWorkingDay != got.IsWorkingDay {
				t.Errorf("stored entry differs from returned entry")
			}
			if stored.ID != got.ID {
				t.Errorf("returned id = %q, stored id = %q", got.ID, stored.ID)
			}
		})
	}
}

func TestUpdateDay_KeepsIDOfExistingDay(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doctor := auth.Identity{UserID: "doc_1", Role: model.RoleDoctor}
	working := true

	first, err := svc.UpdateDay(context.Background(), doctor, "doc_1", "friday", &model.AvailabilityUpdate{IsWorkingDay: &working})
	if err != nil {
		t.Fatal(err)
	}
	working = false
	second, err := svc.UpdateDay(context.Background(), doctor, "doc_1", "friday", &model.AvailabilityUpdate{IsWorkingDay: &working})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || second.ID != first.ID {
		t.Errorf("ids = %q then %q, want the same non-empty id", first.ID, second.ID)
	}
}

func TestResetSchedule(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doctor := auth.Identity{UserID: "doc_1", Role: model.RoleDoctor}
	admin := auth.Identity{UserID: "admin_1", Role: model.RoleAdmin}

	slots := []model.TimeSlot{{StartTime: "09:00", EndTime: "09:50", IsAvailable: true}}
	if _, err := svc.UpdateDay(context.Background(), doctor, "doc_1", "monday", &model.AvailabilityUpdate{TimeSlots: &slots}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ResetSchedule(context.Background(), doctor, "doc_1"); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("doctor reset error = %v, want forbidden", err)
	}

	week, err := svc.ResetSchedule(context.Background(), admin, "doc_1")
	if err != nil {
		t.Fatalf("ResetSchedule() error = %v", err)
	}
	if len(week) != 7 || len(week[0].TimeSlots) != calendar.SlotsPerDay {
		t.Errorf("schedule not reset to defaults: %d days, monday %d slots", len(week), len(week[0].TimeSlots))
	}
}

func TestGetSchedule_StorageError(t *testing.T) {
	repo := newMemoryRepo()
	repo.failOn = "find"
	svc := newTestService(repo)

	_, err := svc.GetSchedule(context.Background(), "doc_1")
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Errorf("error = %v, want internal", err)
	}
}
