package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appointmentserrors "medilink/internal/appointments/errors"
	availabilityerrors "medilink/internal/availability/errors"
	userserrors "medilink/internal/users/errors"
	mongotx "medilink/pkg/db/mongo"
	"medilink/pkg/model"
)

// memoryAppointments models the partial unique index on active slots and the
// conditional updates of the Mongo repository.
type memoryAppointments struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]*model.Appointment
	active map[string]string
}

func newMemoryAppointments() *memoryAppointments {
	return &memoryAppointments{
		byID:   make(map[string]*model.Appointment),
		active: make(map[string]string),
	}
}

func slotKey(doctorID string, date time.Time, start string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date.Format("2006-01-02"), start)
}

func (r *memoryAppointments) Create(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := slotKey(a.DoctorID, a.AppointmentDate, a.StartTime)
	if a.SlotActive {
		if _, taken := r.active[k]; taken {
			return appointmentserrors.ErrSlotTaken
		}
	}
	r.seq++
	a.ID = fmt.Sprintf("%024x", r.seq)
	copied := *a
	r.byID[a.ID] = &copied
	if a.SlotActive {
		r.active[k] = a.ID
	}
	return nil
}

func (r *memoryAppointments) FindByID(_ context.Context, id string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, appointmentserrors.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memoryAppointments) ExistsActiveSlot(_ context.Context, doctorID string, date time.Time, start string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.active[slotKey(doctorID, date, start)]
	return taken, nil
}

func (r *memoryAppointments) FindActiveByDoctorAndDate(_ context.Context, doctorID string, date time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.byID {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) && a.SlotActive {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryAppointments) FindByParticipant(_ context.Context, userID string, limit int, offset int64) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.byID {
		if a.IsParticipant(userID) {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryAppointments) CountByParticipant(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.byID {
		if a.IsParticipant(userID) {
			n++
		}
	}
	return n, nil
}

func (r *memoryAppointments) Cancel(_ context.Context, id, patientID string, now time.Time) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.PatientID != patientID || a.Status != model.AppointmentScheduled || !a.AppointmentDate.After(now) {
		return nil, appointmentserrors.ErrNotFound
	}
	a.Status = model.AppointmentCancelled
	a.CancelledAt = &now
	a.SlotActive = false
	a.UpdatedAt = now
	delete(r.active, slotKey(a.DoctorID, a.AppointmentDate, a.StartTime))
	copied := *a
	return &copied, nil
}

func (r *memoryAppointments) TransitionStatus(_ context.Context, id, from, to string, now time.Time) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return nil, appointmentserrors.ErrStateChanged
	}
	a.Status = to
	a.UpdatedAt = now
	copied := *a
	return &copied, nil
}

func (r *memoryAppointments) TransitionVideoCall(_ context.Context, id, from, to string, statuses []string, now time.Time) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.VideoCallStatus != from || a.Type != model.AppointmentTeleConsult {
		return nil, appointmentserrors.ErrStateChanged
	}
	statusOK := false
	for _, s := range statuses {
		if a.Status == s {
			statusOK = true
		}
	}
	if !statusOK {
		return nil, appointmentserrors.ErrStateChanged
	}
	a.VideoCallStatus = to
	if to == model.VideoCallInProgress || (to == model.VideoCallCompleted && from == model.VideoCallNotStarted) {
		a.VideoCallStartTime = &now
	}
	if to == model.VideoCallCompleted {
		a.VideoCallEndTime = &now
	}
	copied := *a
	return &copied, nil
}

type memoryAvailability struct {
	entries map[string]*model.WeeklyAvailability
}

func (r *memoryAvailability) FindByDoctor(context.Context, string) ([]*model.WeeklyAvailability, error) {
	return nil, nil
}

func (r *memoryAvailability) FindDay(_ context.Context, doctorID, day string) (*model.WeeklyAvailability, error) {
	e, ok := r.entries[doctorID+"|"+day]
	if !ok {
		return nil, availabilityerrors.ErrNotFound
	}
	return e, nil
}

func (r *memoryAvailability) InsertMany(context.Context, []*model.WeeklyAvailability) error { return nil }

func (r *memoryAvailability) Replace(context.Context, *model.WeeklyAvailability) error { return nil }

func (r *memoryAvailability) DeleteByDoctor(context.Context, string) (int64, error) { return 0, nil }

func (r *memoryAvailability) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type memoryUsers struct {
	fees    map[string]float64
	corrupt map[string]bool
}

func (u *memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	fee, ok := u.fees[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	return &model.User{ID: id, Role: model.RoleDoctor, Doctor: &model.DoctorProfile{ConsultationFee: fee}}, nil
}

func (u *memoryUsers) GetConsultationFee(_ context.Context, doctorID string) (float64, error) {
	if u.corrupt[doctorID] {
		return 0, userserrors.ErrCorrupt
	}
	fee, ok := u.fees[doctorID]
	if !ok {
		return 0, userserrors.ErrNotFound
	}
	return fee, nil
}

func (u *memoryUsers) SetDriverOnline(context.Context, string, bool, time.Time) error { return nil }

