package service

import (
	"context"
	"sync"
	"testing"

	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/model"
)

func bookOne(t *testing.T, f *fixture, kind string) *model.Appointment {
	t.Helper()
	a, err := f.svc.BookAppointment(context.Background(), patient("pat_1"), mondayBooking("09:00", "09:50", kind))
	if err != nil {
		t.Fatalf("BookAppointment() error = %v", err)
	}
	return a
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		actor      auth.Identity
		steps      []string
		wantStatus string
		wantCode   string
	}{
		{"doctor completes", doctor, []string{model.AppointmentCompleted}, model.AppointmentCompleted, ""},
		{"doctor marks no-show", doctor, []string{model.AppointmentNoShow}, model.AppointmentNoShow, ""},
		{"same status is a no-op", doctor, []string{model.AppointmentCompleted, model.AppointmentCompleted}, model.AppointmentCompleted, ""},
		{"scheduled to scheduled", doctor, []string{model.AppointmentScheduled}, model.AppointmentScheduled, ""},
		{"terminal is final", doctor, []string{model.AppointmentCompleted, model.AppointmentNoShow}, "", apperrors.CodeInvalidTransition},
		{"no way back", doctor, []string{model.AppointmentNoShow, model.AppointmentScheduled}, "", apperrors.CodeInvalidTransition},
		{"patient cannot complete", patient("pat_1"), []string{model.AppointmentCompleted}, "", apperrors.CodeForbidden},
		{"patient cancels", patient("pat_1"), []string{model.AppointmentCancelled}, model.AppointmentCancelled, ""},
		{"doctor cannot cancel", doctor, []string{model.AppointmentCancelled}, "", apperrors.CodeForbidden},
		{"stranger sees nothing", patient("pat_9"), []string{model.AppointmentCompleted}, "", apperrors.CodeNotFound},
		{"unknown status", doctor, []string{"archived"}, "", apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			a := bookOne(t, f, model.AppointmentInPerson)

			var got *model.Appointment
			var err error
			for _, step := range tt.steps {
				got, err = f.svc.UpdateStatus(context.Background(), tt.actor, a.ID, &model.StatusChange{Status: step})
				if err != nil {
					break
				}
			}

			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Fatalf("error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestUpdateStatus_ConcurrentTerminalMoves(t *testing.T) {
	f := newFixture()
	a := bookOne(t, f, model.AppointmentInPerson)

	targets := []string{model.AppointmentCompleted, model.AppointmentNoShow}
	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.UpdateStatus(context.Background(), doctor, a.ID, &model.StatusChange{Status: targets[i%2]})
		}(i)
	}
	wg.Wait()

	final, err := f.svc.GetByID(context.Background(), doctor, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i, err := range results {
		target := targets[i%2]
		if err == nil && target != final.Status {
			t.Errorf("call %d reported success for %s but final status is %s", i, target, final.Status)
		}
		if err != nil && !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
			t.Errorf("call %d unexpected error %v", i, err)
		}
	}
}

func TestUpdateVideoCall(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := bookOne(t, f, model.AppointmentTeleConsult)

	started, err := f.svc.UpdateVideoCall(ctx, patient("pat_1"), a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallInProgress})
	if err != nil {
		t.Fatalf("start call error = %v", err)
	}
	if started.VideoCallStartTime == nil || started.VideoCallEndTime != nil {
		t.Errorf("unexpected stamps %+v", started)
	}

	if _, err := f.svc.UpdateVideoCall(ctx, doctor, a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallNotStarted}); !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Errorf("backward move error = %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, doctor, a.ID, &model.StatusChange{Status: model.AppointmentCompleted}); err != nil {
		t.Fatal(err)
	}
	ended, err := f.svc.UpdateVideoCall(ctx, doctor, a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallCompleted})
	if err != nil {
		t.Fatalf("end call after completion error = %v", err)
	}
	if ended.VideoCallEndTime == nil {
		t.Error("end time not stamped")
	}

	again, err := f.svc.UpdateVideoCall(ctx, doctor, a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallCompleted})
	if err != nil || again.VideoCallStatus != model.VideoCallCompleted {
		t.Errorf("repeat should be a no-op: %v", err)
	}
}

func TestUpdateVideoCall_Rules(t *testing.T) {
	t.Run("skip stamps both", func(t *testing.T) {
		f := newFixture()
		a := bookOne(t, f, model.AppointmentTeleConsult)
		got, err := f.svc.UpdateVideoCall(context.Background(), doctor, a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallCompleted})
		if err != nil {
			t.Fatal(err)
		}
		if got.VideoCallStartTime == nil || got.VideoCallEndTime == nil {
			t.Errorf("expected both stamps, got %+v", got)
		}
	})

	t.Run("in-person has no call", func(t *testing.T) {
		f := newFixture()
		a := bookOne(t, f, model.AppointmentInPerson)
		_, err := f.svc.UpdateVideoCall(context.Background(), doctor, a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallInProgress})
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("cancelled appointment", func(t *testing.T) {
		f := newFixture()
		a := bookOne(t, f, model.AppointmentTeleConsult)
		if _, err := f.svc.CancelAppointment(context.Background(), patient("pat_1"), a.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.svc.UpdateVideoCall(context.Background(), doctor, a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallInProgress})
		if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("stranger", func(t *testing.T) {
		f := newFixture()
		a := bookOne(t, f, model.AppointmentTeleConsult)
		_, err := f.svc.UpdateVideoCall(context.Background(), patient("pat_9"), a.ID, &model.VideoCallChange{VideoCallStatus: model.VideoCallInProgress})
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			t.Errorf("error = %v", err)
		}
	})
}
