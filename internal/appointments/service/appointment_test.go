package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"medilink/internal/appointments/validator"
	"medilink/pkg/auth"
	"medilink/pkg/calendar"
	"medilink/pkg/config"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/logger"
	"medilink/pkg/model"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc          *appointmentService
	appointments *memoryAppointments
	clock        *time.Time
}

func newFixture() *fixture {
	log := logger.Discard()
	cfg := &config.Config{Log: log}

	monday := calendar.DefaultTimeSlots()
	monday[1].IsAvailable = true // 09:00-09:50
	monday[2].IsAvailable = true // 10:00-10:50
	saturday := calendar.DefaultTimeSlots()
	saturday[1].IsAvailable = true

	availability := &memoryAvailability{entries: map[string]*model.WeeklyAvailability{
		"doc_1|monday":   {DoctorID: "doc_1", DayOfWeek: calendar.Monday, TimeSlots: monday, IsWorkingDay: true},
		"doc_1|saturday": {DoctorID: "doc_1", DayOfWeek: calendar.Saturday, TimeSlots: saturday, IsWorkingDay: false},
	}}
	users := &memoryUsers{fees: map[string]float64{"doc_1": 500}}
	appointments := newMemoryAppointments()

	now := fixedNow
	svc := NewAppointmentService(appointments, availability, users, validator.NewAppointmentValidator(log), cfg).(*appointmentService)
	f := &fixture{svc: svc, appointments: appointments, clock: &now}
	svc.now = func() time.Time { return *f.clock }
	return f
}

func patient(id string) auth.Identity { return auth.Identity{UserID: id, Role: model.RolePatient} }

var doctor = auth.Identity{UserID: "doc_1", Role: model.RoleDoctor}

func mondayBooking(start, end, kind string) *model.BookingRequest {
	return &model.BookingRequest{DoctorID: "doc_1", Date: "2024-06-10", StartTime: start, EndTime: end, Type: kind}
}

func slotStarts(a *model.DateAvailability) []string {
	var starts []string
	for _, s := range a.AvailableSlots {
		starts = append(starts, s.StartTime)
	}
	return starts
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestBookingScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	before, err := f.svc.GetAvailableSlotsForDate(ctx, "doc_1", "2024-06-10")
	if err != nil {
		t.Fatalf("GetAvailableSlotsForDate() error = %v", err)
	}
	if before.DayOfWeek != calendar.Monday || !contains(slotStarts(before), "09:00") {
		t.Fatalf("unexpected availability %+v", before)
	}

	booked, err := f.svc.BookAppointment(ctx, patient("pat_1"), mondayBooking("09:00", "09:50", model.AppointmentInPerson))
	if err != nil {
		t.Fatalf("BookAppointment() error = %v", err)
	}
	if booked.Status != model.AppointmentScheduled || booked.ConsultationFee != 500 || booked.VideoCallStatus != model.VideoCallNotStarted {
		t.Errorf("unexpected appointment %+v", booked)
	}
	if !booked.AppointmentDate.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date not normalized: %v", booked.AppointmentDate)
	}

	after, _ := f.svc.GetAvailableSlotsForDate(ctx, "doc_1", "2024-06-10")
	if contains(slotStarts(after), "09:00") {
		t.Error("booked slot still listed as available")
	}
	if !contains(slotStarts(after), "10:00") {
		t.Error("unrelated slot disappeared")
	}

	_, err = f.svc.BookAppointment(ctx, patient("pat_2"), mondayBooking("09:00", "09:50", model.AppointmentInPerson))
	if !apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		t.Fatalf("second booking error = %v, want slot conflict", err)
	}
	if appErr := apperrors.AsAppError(err); appErr.Message != "Selected time slot is not available" || appErr.StatusCode() != 400 {
		t.Errorf("unexpected conflict error %+v", appErr)
	}

	cancelled, err := f.svc.CancelAppointment(ctx, patient("pat_1"), booked.ID)
	if err != nil {
		t.Fatalf("CancelAppointment() error = %v", err)
	}
	if cancelled.Status != model.AppointmentCancelled || cancelled.CancelledAt == nil {
		t.Errorf("unexpected cancelled appointment %+v", cancelled)
	}

	reopened, _ := f.svc.GetAvailableSlotsForDate(ctx, "doc_1", "2024-06-10")
	if !contains(slotStarts(reopened), "09:00") {
		t.Error("cancelled slot not released")
	}
	if _, err := f.svc.BookAppointment(ctx, patient("pat_2"), mondayBooking("09:00", "09:50", model.AppointmentInPerson)); err != nil {
		t.Fatalf("rebooking released slot failed: %v", err)
	}

	stored, err := f.svc.GetByID(ctx, patient("pat_1"), booked.ID)
	if err != nil || stored.Status != model.AppointmentCancelled {
		t.Errorf("cancelled record should remain readable: %+v, %v", stored, err)
	}
}

func TestBookAppointment_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture()

	const patients = 25
	var wg sync.WaitGroup
	results := make(chan error, patients)
	for i := 0; i < patients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.BookAppointment(context.Background(), patient(fmt.Sprintf("pat_%d", i)), mondayBooking("09:00", "09:50", model.AppointmentTeleConsult))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.CodeSlotConflict):
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("got %d successful bookings, want 1", wins)
	}
}

func TestBookAppointment_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		actor    auth.Identity
		req      *model.BookingRequest
		wantCode string
	}{
		{"doctor cannot book", doctor, mondayBooking("09:00", "09:50", model.AppointmentInPerson), apperrors.CodeForbidden},
		{"bad clock", patient("p"), mondayBooking("9:00", "09:50", model.AppointmentInPerson), apperrors.CodeValidation},
		{"end before start", patient("p"), mondayBooking("09:50", "09:00", model.AppointmentInPerson), apperrors.CodeValidation},
		{"unknown type", patient("p"), mondayBooking("09:00", "09:50", "house-call"), apperrors.CodeValidation},
		{"slot not offered", patient("p"), mondayBooking("11:00", "11:50", model.AppointmentInPerson), apperrors.CodeSlotConflict},
		{"slot window mismatch", patient("p"), mondayBooking("09:00", "10:00", model.AppointmentInPerson), apperrors.CodeSlotConflict},
		{"non working day", patient("p"), &model.BookingRequest{DoctorID: "doc_1", Date: "2024-06-15", StartTime: "09:00", EndTime: "09:50", Type: model.AppointmentInPerson}, apperrors.CodeSlotConflict},
		{"past slot", patient("p"), &model.BookingRequest{DoctorID: "doc_1", Date: "2024-05-27", StartTime: "09:00", EndTime: "09:50", Type: model.AppointmentInPerson}, apperrors.CodeInvalidInput},
		{"unknown doctor", patient("p"), &model.BookingRequest{DoctorID: "doc_9", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:50", Type: model.AppointmentInPerson}, apperrors.CodeSlotConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.BookAppointment(context.Background(), tt.actor, tt.req)
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestBookAppointment_UnknownDoctorWithSchedule(t *testing.T) {
	f := newFixture()
	f.svc.availability.(*memoryAvailability).entries["doc_9|monday"] = &model.WeeklyAvailability{
		DoctorID: "doc_9", DayOfWeek: calendar.Monday, IsWorkingDay: true,
		TimeSlots: []model.TimeSlot{{StartTime: "09:00", EndTime: "09:50", IsAvailable: true}},
	}

	_, err := f.svc.BookAppointment(context.Background(), patient("p"), &model.BookingRequest{
		DoctorID: "doc_9", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:50", Type: model.AppointmentInPerson,
	})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestBookAppointment_CorruptDoctorRecord(t *testing.T) {
	f := newFixture()
	f.svc.users.(*memoryUsers).corrupt = map[string]bool{"doc_1": true}

	_, err := f.svc.BookAppointment(context.Background(), patient("p"), mondayBooking("09:00", "09:50", model.AppointmentInPerson))
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Errorf("error = %v, want internal", err)
	}
}

func TestCancelAppointment_Refusals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	booked, err := f.svc.BookAppointment(ctx, patient("pat_1"), mondayBooking("09:00", "09:50", model.AppointmentInPerson))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.CancelAppointment(ctx, patient("pat_2"), booked.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("other patient cancel error = %v, want not found", err)
	}
	if _, err := f.svc.CancelAppointment(ctx, doctor, booked.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("doctor cancel error = %v, want not found", err)
	}
	if _, err := f.svc.CancelAppointment(ctx, patient("pat_1"), "missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("missing appointment error = %v, want not found", err)
	}

	*f.clock = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	if _, err := f.svc.CancelAppointment(ctx, patient("pat_1"), booked.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("same-day cancel error = %v, want not found", err)
	}

	*f.clock = fixedNow
	if _, err := f.svc.CancelAppointment(ctx, patient("pat_1"), booked.ID); err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	if _, err := f.svc.CancelAppointment(ctx, patient("pat_1"), booked.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("second cancel error = %v, want not found", err)
	}
}

func TestList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, start := range []string{"09:00", "10:00"} {
		end := start[:2] + ":50"
		if _, err := f.svc.BookAppointment(ctx, patient("pat_1"), mondayBooking(start, end, model.AppointmentInPerson)); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := f.svc.List(ctx, patient("pat_1"), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 1 {
		t.Errorf("got %d items of %d", len(items), total)
	}

	items, total, _ = f.svc.List(ctx, doctor, 10, 0)
	if total != 2 || len(items) != 2 {
		t.Errorf("doctor sees %d items of %d", len(items), total)
	}

	items, total, _ = f.svc.List(ctx, patient("stranger"), 10, 0)
	if total != 0 || items == nil || len(items) != 0 {
		t.Errorf("stranger should get an empty list, got %v (%d)", items, total)
	}
}
