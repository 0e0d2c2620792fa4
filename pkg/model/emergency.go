package model

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	EmergencyPending           = "pending"
	EmergencyAccepted          = "accepted"
	EmergencyStartedJourney    = "started_journey"
	EmergencyOnTheWay          = "on_the_way"
	EmergencyAlmostThere       = "almost_there"
	EmergencyLookingForPatient = "looking_for_patient"
	EmergencyReceivedPatient   = "received_patient"
	EmergencyDroppingOff       = "dropping_off"
	EmergencyCompleted         = "completed"
	EmergencyCancelled         = "cancelled"
	EmergencyTimedOut          = "timed_out"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// EmergencyProgression is the driver-reported status order.
var EmergencyProgression = []string{
	EmergencyPending,
	EmergencyAccepted,
	EmergencyStartedJourney,
	EmergencyOnTheWay,
	EmergencyAlmostThere,
	EmergencyLookingForPatient,
	EmergencyReceivedPatient,
	EmergencyDroppingOff,
	EmergencyCompleted,
}

type PatientInfo struct {
	Name    string `json:"name" bson:"name" validate:"required,min=1,max=120"`
	Contact string `json:"contact" bson:"contact" validate:"required,min=5,max=32"`
}

type DriverInfo struct {
	Name          string `json:"name,omitempty" bson:"name,omitempty" validate:"omitempty,max=120"`
	Phone         string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,max=32"`
	VehicleNumber string `json:"vehicleNumber,omitempty" bson:"vehicle_number,omitempty" validate:"omitempty,max=32"`
}

type Location struct {
	Pickup      string `json:"pickup" bson:"pickup" validate:"required,min=1,max=300"`
	Destination string `json:"destination" bson:"destination" validate:"required,min=1,max=300"`
}

// UnmarshalJSON accepts either the object form or a bare address string,
// which older clients send as the pickup location.
func (l *Location) UnmarshalJSON(data []byte) error {
	var address string
	if err := json.Unmarshal(data, &address); err == nil {
		l.Pickup = strings.TrimSpace(address)
		return nil
	}
	type plain Location
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Location(p)
	return nil
}

type Payment struct {
	Status string     `json:"status" bson:"status"`
	Method string     `json:"method,omitempty" bson:"method,omitempty"`
	Amount float64    `json:"amount" bson:"amount"`
	PaidAt *time.Time `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
}

type EmergencyRequest struct {
	RequestID     string               `json:"requestId" bson:"request_id"`
	PatientID     string               `json:"patientId" bson:"patient_id"`
	DriverID      string               `json:"driverId,omitempty" bson:"driver_id"`
	PatientInfo   PatientInfo          `json:"patientInfo" bson:"patient_info"`
	DriverInfo    *DriverInfo          `json:"driverInfo,omitempty" bson:"driver_info,omitempty"`
	Location      Location             `json:"location" bson:"location"`
	EmergencyType string               `json:"emergencyType" bson:"emergency_type"`
	Description   string               `json:"description,omitempty" bson:"description"`
	Status        string               `json:"status" bson:"status"`
	StatusHistory map[string]time.Time `json:"statusHistory" bson:"status_history"`
	Payment       Payment              `json:"payment" bson:"payment"`
	CreatedAt     time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updated_at"`
}

// EmergencyRequestInput is the body of a new_request event. ID is the
// caller's idempotency key. Destination fills location.destination for
// clients that send the location as a bare pickup address.
type EmergencyRequestInput struct {
	ID            string      `json:"id" validate:"omitempty,max=128"`
	PatientInfo   PatientInfo `json:"patientInfo" validate:"required"`
	Location      Location    `json:"location" validate:"required"`
	Destination   string      `json:"destination,omitempty" validate:"omitempty,max=300"`
	EmergencyType string      `json:"emergencyType" validate:"required,min=1,max=64"`
	Description   string      `json:"description" validate:"omitempty,max=2000"`
}

// EmergencyStatusRank returns the position of a status in the progression,
// or -1 for statuses outside it.
func EmergencyStatusRank(status string) int {
	for i, s := range EmergencyProgression {
		if s == status {
			return i
		}
	}
	return -1
}

func IsTerminalEmergencyStatus(status string) bool {
	return status == EmergencyCompleted || status == EmergencyCancelled || status == EmergencyTimedOut
}

func IsKnownEmergencyStatus(status string) bool {
	return EmergencyStatusRank(status) >= 0 || status == EmergencyCancelled || status == EmergencyTimedOut
}
