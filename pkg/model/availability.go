package model

import (
	"encoding/json"
	"time"
)

type TimeSlot struct {
	StartTime   string `json:"startTime" bson:"start_time" validate:"required,clock"`
	EndTime     string `json:"endTime" bson:"end_time" validate:"required,clock"`
	IsAvailable bool   `json:"isAvailable" bson:"is_available"`
}

// WeeklyAvailability is one day of a doctor's recurring schedule. There is
// exactly one document per (doctor, day).
type WeeklyAvailability struct {
	ID           string     `json:"id,omitempty" bson:"_id,omitempty"`
	DoctorID     string     `json:"doctorId" bson:"doctor_id"`
	DayOfWeek    string     `json:"dayOfWeek" bson:"day_of_week"`
	TimeSlots    []TimeSlot `json:"timeSlots" bson:"time_slots"`
	IsWorkingDay bool       `json:"isWorkingDay" bson:"is_working_day"`
	CreatedAt    time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updated_at"`
}

// MarshalJSON adds the legacy userId field, always equal to doctorId.
func (a WeeklyAvailability) MarshalJSON() ([]byte, error) {
	type plain WeeklyAvailability
	return json.Marshal(struct {
		plain
		UserID string `json:"userId"`
	}{plain(a), a.DoctorID})
}

// FindSlot returns the slot matching start and end exactly.
func (a *WeeklyAvailability) FindSlot(start, end string) (TimeSlot, bool) {
	for _, s := range a.TimeSlots {
		if s.StartTime == start && s.EndTime == end {
			return s, true
		}
	}
	return TimeSlot{}, false
}

type AvailabilityUpdate struct {
	TimeSlots    *[]TimeSlot `json:"timeSlots,omitempty" validate:"omitempty,max=96,dive"`
	IsWorkingDay *bool       `json:"isWorkingDay,omitempty"`
}

type SlotWindow struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DateAvailability is the bookable view of one doctor on one calendar date.
type DateAvailability struct {
	Doctor         string       `json:"doctor"`
	Date           string       `json:"date"`
	DayOfWeek      string       `json:"dayOfWeek"`
	AvailableSlots []SlotWindow `json:"availableSlots"`
}
