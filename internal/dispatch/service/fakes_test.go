package service

import (
	"context"
	"sort"
	"sync"
	"time"

	dispatcherrors "medilink/internal/dispatch/errors"
	userserrors "medilink/internal/users/errors"
	"medilink/pkg/model"
)

// memoryEmergencies mirrors the unique request_id index and the conditional
// updates of the Mongo repository.
type memoryEmergencies struct {
	mu       sync.Mutex
	requests map[string]*model.EmergencyRequest
	failFind error
}

func newMemoryEmergencies() *memoryEmergencies {
	return &memoryEmergencies{requests: make(map[string]*model.EmergencyRequest)}
}

func clone(req *model.EmergencyRequest) *model.EmergencyRequest {
	c := *req
	c.StatusHistory = make(map[string]time.Time, len(req.StatusHistory))
	for k, v := range req.StatusHistory {
		c.StatusHistory[k] = v
	}
	if req.DriverInfo != nil {
		info := *req.DriverInfo
		c.DriverInfo = &info
	}
	return &c
}

func (m *memoryEmergencies) Create(_ context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.requests[req.RequestID]; ok {
		return clone(existing), false, nil
	}
	m.requests[req.RequestID] = clone(req)
	return clone(req), true, nil
}

func (m *memoryEmergencies) FindByRequestID(_ context.Context, requestID string) (*model.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, dispatcherrors.ErrNotFound
	}
	return clone(req), nil
}

func (m *memoryEmergencies) FindPending(ctx context.Context) ([]*model.EmergencyRequest, error) {
	return m.FindPendingBefore(ctx, time.Time{})
}

func (m *memoryEmergencies) FindPendingBefore(_ context.Context, cutoff time.Time) ([]*model.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind != nil {
		return nil, m.failFind
	}
	var out []*model.EmergencyRequest
	for _, req := range m.requests {
		if req.Status != model.EmergencyPending {
			continue
		}
		if !cutoff.IsZero() && !req.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, clone(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryEmergencies) Claim(ctx context.Context, requestID, driverID string, info *model.DriverInfo, now time.Time) (*model.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.Status != model.EmergencyPending {
		return nil, dispatcherrors.ErrStateChanged
	}
	req.DriverID = driverID
	m.apply(req, model.EmergencyAccepted, info, now)
	return clone(req), nil
}

func (m *memoryEmergencies) Transition(_ context.Context, requestID, from, to, driverID string, info *model.DriverInfo, now time.Time) (*model.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.Status != from || (driverID != "" && req.DriverID != driverID) {
		return nil, dispatcherrors.ErrStateChanged
	}
	m.apply(req, to, info, now)
	return clone(req), nil
}

func (m *memoryEmergencies) apply(req *model.EmergencyRequest, to string, info *model.DriverInfo, now time.Time) {
	req.Status = to
	req.UpdatedAt = now
	if info != nil {
		c := *info
		req.DriverInfo = &c
	}
	if req.StatusHistory == nil {
		req.StatusHistory = map[string]time.Time{}
	}
	if prev, ok := req.StatusHistory[to]; !ok || now.Before(prev) {
		req.StatusHistory[to] = now
	}
}

type memoryUsers struct {
	mu     sync.Mutex
	users  map[string]*model.User
	online map[string]bool
}

func newMemoryUsers(users ...*model.User) *memoryUsers {
	m := &memoryUsers{users: map[string]*model.User{}, online: map[string]bool{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetConsultationFee(context.Context, string) (float64, error) {
	return 0, userserrors.ErrNotDoctor
}

func (m *memoryUsers) SetDriverOnline(_ context.Context, driverID string, online bool, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[driverID]
	if !ok || u.Driver == nil {
		return userserrors.ErrNotDriver
	}
	m.online[driverID] = online
	return nil
}

type notification struct {
	Drivers bool
	UserID  string
	Event   string
	Request string
	Status  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) record(drivers bool, userID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	note := notification{Drivers: drivers, UserID: userID, Event: event}
	if req, ok := payload.(*model.EmergencyRequest); ok {
		note.Request = req.RequestID
		note.Status = req.Status
	}
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) ToDrivers(_ context.Context, event string, payload any) {
	n.record(true, "", event, payload)
}

func (n *recordingNotifier) ToUser(_ context.Context, userID, event string, payload any) {
	n.record(false, userID, event, payload)
}

func (n *recordingNotifier) count(drivers bool, userID, event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Drivers == drivers && s.UserID == userID && s.Event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}
