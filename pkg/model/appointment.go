package model

import "time"

const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no-show"

	AppointmentInPerson    = "in-person"
	AppointmentTeleConsult = "tele-consult"

	VideoCallNotStarted = "not-started"
	VideoCallInProgress = "in-progress"
	VideoCallCompleted  = "completed"
)

type Appointment struct {
	ID                 string     `json:"id,omitempty" bson:"_id,omitempty"`
	DoctorID           string     `json:"doctorId" bson:"doctor_id"`
	PatientID          string     `json:"patientId" bson:"patient_id"`
	AppointmentDate    time.Time  `json:"appointmentDate" bson:"appointment_date"`
	StartTime          string     `json:"startTime" bson:"start_time"`
	EndTime            string     `json:"endTime" bson:"end_time"`
	Type               string     `json:"type" bson:"type"`
	Status             string     `json:"status" bson:"status"`
	ConsultationFee    float64    `json:"consultationFee" bson:"consultation_fee"`
	VideoCallStatus    string     `json:"videoCallStatus" bson:"video_call_status"`
	VideoCallStartTime *time.Time `json:"videoCallStartTime,omitempty" bson:"video_call_start_time,omitempty"`
	VideoCallEndTime   *time.Time `json:"videoCallEndTime,omitempty" bson:"video_call_end_time,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	// SlotActive backs the partial unique index on the slot. It is true for
	// every appointment that still holds its slot.
	SlotActive bool      `json:"-" bson:"slot_active"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (a.DoctorID == userID || a.PatientID == userID)
}

type BookingRequest struct {
	DoctorID  string `json:"doctorId" validate:"required,max=64"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
	Type      string `json:"type" validate:"required,oneof=in-person tele-consult"`
}

type StatusChange struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled no-show"`
}

type VideoCallChange struct {
	VideoCallStatus string `json:"videoCallStatus" validate:"required,oneof=not-started in-progress completed"`
}

var appointmentTransitions = map[string][]string{
	AppointmentScheduled: {AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
}

// AppointmentTransitionAllowed reports whether status may move from one value
// to another. Staying in place is not a transition and is reported false.
func AppointmentTransitionAllowed(from, to string) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminalAppointmentStatus(status string) bool {
	return status == AppointmentCompleted || status == AppointmentCancelled || status == AppointmentNoShow
}

var videoCallOrder = map[string]int{
	VideoCallNotStarted: 0,
	VideoCallInProgress: 1,
	VideoCallCompleted:  2,
}

// VideoCallTransitionAllowed permits forward moves only, including the skip
// from not-started straight to completed.
func VideoCallTransitionAllowed(from, to string) bool {
	f, okFrom := videoCallOrder[from]
	t, okTo := videoCallOrder[to]
	return okFrom && okTo && t > f
}
