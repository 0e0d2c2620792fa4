package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/logger"
	"medilink/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockService struct {
	bookFunc   func(ctx context.Context, actor auth.Identity, req *model.BookingRequest) (*model.Appointment, error)
	cancelFunc func(ctx context.Context, actor auth.Identity, id string) (*model.Appointment, error)
	slotsFunc  func(ctx context.Context, doctorID, date string) (*model.DateAvailability, error)
	listFunc   func(ctx context.Context, actor auth.Identity, limit int, offset int64) ([]*model.Appointment, int64, error)
}

func (m *mockService) IsSlotAvailable(context.Context, string, time.Time, string, string) bool {
	return true
}

func (m *mockService) BookAppointment(ctx context.Context, actor auth.Identity, req *model.BookingRequest) (*model.Appointment, error) {
	return m.bookFunc(ctx, actor, req)
}

func (m *mockService) CancelAppointment(ctx context.Context, actor auth.Identity, id string) (*model.Appointment, error) {
	return m.cancelFunc(ctx, actor, id)
}

func (m *mockService) GetAvailableSlotsForDate(ctx context.Context, doctorID, date string) (*model.DateAvailability, error) {
	return m.slotsFunc(ctx, doctorID, date)
}

func (m *mockService) GetByID(context.Context, auth.Identity, string) (*model.Appointment, error) {
	return nil, apperrors.NotFound("Appointment")
}

func (m *mockService) List(ctx context.Context, actor auth.Identity, limit int, offset int64) ([]*model.Appointment, int64, error) {
	return m.listFunc(ctx, actor, limit, offset)
}

func (m *mockService) UpdateStatus(context.Context, auth.Identity, string, *model.StatusChange) (*model.Appointment, error) {
	return nil, apperrors.InvalidTransition(model.AppointmentCompleted, model.AppointmentScheduled)
}

func (m *mockService) UpdateVideoCall(context.Context, auth.Identity, string, *model.VideoCallChange) (*model.Appointment, error) {
	return nil, apperrors.NotFound("Appointment")
}

func serve(svc *mockService, req *http.Request, actor *auth.Identity) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewAppointmentHandler(svc, logger.Discard()).RegisterRoutes(router)
	if actor != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBook(t *testing.T) {
	patient := auth.Identity{UserID: "pat_1", Role: model.RolePatient}

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantError  string
	}{
		{"created", `{"doctorId":"doc_1","date":"2024-06-10","startTime":"09:00","endTime":"09:50","type":"in-person"}`, nil, http.StatusCreated, ""},
		{"slot taken", `{"doctorId":"doc_1","date":"2024-06-10","startTime":"09:00","endTime":"09:50","type":"in-person"}`, apperrors.SlotConflict(), http.StatusBadRequest, "Selected time slot is not available"},
		{"bad json", `{"doctorId":`, nil, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				bookFunc: func(_ context.Context, actor auth.Identity, req *model.BookingRequest) (*model.Appointment, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Appointment{ID: "a1", DoctorID: req.DoctorID, PatientID: actor.UserID, Status: model.AppointmentScheduled}, nil
				},
			}

			rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(tt.body)), &patient)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				var body map[string]any
				_ = json.Unmarshal(rec.Body.Bytes(), &body)
				if body["error"] != tt.wantError {
					t.Errorf("error body = %v", body)
				}
			}
		})
	}
}

func TestBook_RequiresIdentity(t *testing.T) {
	rec := serve(&mockService{}, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`)), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCancel_NotFound(t *testing.T) {
	actor := auth.Identity{UserID: "pat_2", Role: model.RolePatient}
	svc := &mockService{
		cancelFunc: func(_ context.Context, _ auth.Identity, id string) (*model.Appointment, error) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		},
	}

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/abc/cancel", nil), &actor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAvailableSlots(t *testing.T) {
	svc := &mockService{
		slotsFunc: func(_ context.Context, doctorID, date string) (*model.DateAvailability, error) {
			return &model.DateAvailability{Doctor: doctorID, Date: date, DayOfWeek: "monday", AvailableSlots: []model.SlotWindow{{StartTime: "10:00", EndTime: "10:50"}}}, nil
		},
	}
	actor := auth.Identity{UserID: "pat_1", Role: model.RolePatient}

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/doc_1/available-slots?date=2024-06-10", nil), &actor)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data model.DateAvailability `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Doctor != "doc_1" || len(body.Data.AvailableSlots) != 1 {
		t.Errorf("unexpected body %+v", body.Data)
	}

	rec = serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/doc_1/available-slots", nil), &actor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing date status = %d", rec.Code)
	}
}

func TestList_Pagination(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	svc := &mockService{
		listFunc: func(_ context.Context, _ auth.Identity, limit int, offset int64) ([]*model.Appointment, int64, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.Appointment{}, 0, nil
		},
	}
	actor := auth.Identity{UserID: "pat_1", Role: model.RolePatient}

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/appointments?limit=5&offset=10", nil), &actor)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotLimit != 5 || gotOffset != 10 {
		t.Errorf("limit/offset = %d/%d", gotLimit, gotOffset)
	}

	rec = serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/appointments?limit=abc", nil), &actor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	actor := auth.Identity{UserID: "doc_1", Role: model.RoleDoctor}
	rec := serve(&mockService{}, httptest.NewRequest(http.MethodPatch, "/api/v1/appointments/a1/status", strings.NewReader(`{"status":"scheduled"}`)), &actor)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d", rec.Code)
	}
}
