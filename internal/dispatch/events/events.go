// Package events defines the websocket envelope shared by the dispatch
// socket, registry and cross-instance bus.
package events

import (
	"encoding/json"
	"fmt"

	"medilink/pkg/model"
)

// Inbound events.
const (
	Authenticate        = "authenticate"
	NewRequest          = "new_request"
	AcceptRequest       = "accept_request"
	RequestStatusUpdate = "request_status_update"
	CancelRequest       = "cancel_request"
)

// Outbound events. new_request and request_status_update are reused for
// server pushes.
const (
	Authenticated   = "authenticated"
	RequestCreated  = "request_created"
	RequestAccepted = "request_accepted"
	Error           = "error"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatePayload struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
	Token    string `json:"token"`
}

type AuthenticatedPayload struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

type AcceptPayload struct {
	RequestID string            `json:"requestId"`
	Driver    *model.DriverInfo `json:"driver,omitempty"`
}

type StatusUpdatePayload struct {
	RequestID string            `json:"requestId"`
	Status    string            `json:"status"`
	Driver    *model.DriverInfo `json:"driver,omitempty"`
}

type CancelPayload struct {
	RequestID string `json:"requestId"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode renders one outbound frame.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event name")
	}
	return env, nil
}
