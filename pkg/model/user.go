package model

import (
	"fmt"
	"time"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleDriver  = "driver"
	RoleAdmin   = "admin"
)

type PatientProfile struct {
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty" bson:"date_of_birth,omitempty"`
}

type DoctorProfile struct {
	Specialty       string  `json:"specialty" bson:"specialty"`
	ConsultationFee float64 `json:"consultationFee" bson:"consultation_fee"`
}

type DriverProfile struct {
	VehicleNumber string     `json:"vehicleNumber" bson:"vehicle_number"`
	IsOnline      bool       `json:"isOnline" bson:"is_online"`
	LastSeenAt    *time.Time `json:"lastSeenAt,omitempty" bson:"last_seen_at,omitempty"`
}

type AdminProfile struct{}

// User is a directory entry. Role selects which profile block is present;
// every other block stays nil.
type User struct {
	ID        string          `json:"id" bson:"_id"`
	Name      string          `json:"name" bson:"name"`
	Email     string          `json:"email,omitempty" bson:"email,omitempty"`
	Phone     string          `json:"phone,omitempty" bson:"phone,omitempty"`
	Role      string          `json:"role" bson:"role"`
	Patient   *PatientProfile `json:"patient,omitempty" bson:"patient,omitempty"`
	Doctor    *DoctorProfile  `json:"doctor,omitempty" bson:"doctor,omitempty"`
	Driver    *DriverProfile  `json:"driver,omitempty" bson:"driver,omitempty"`
	Admin     *AdminProfile   `json:"admin,omitempty" bson:"admin,omitempty"`
	CreatedAt time.Time       `json:"createdAt" bson:"created_at"`
}

func IsKnownRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// CheckVariant verifies that exactly the profile block matching Role is set.
func (u *User) CheckVariant() error {
	present := map[string]bool{
		RolePatient: u.Patient != nil,
		RoleDoctor:  u.Doctor != nil,
		RoleDriver:  u.Driver != nil,
		RoleAdmin:   u.Admin != nil,
	}
	if !IsKnownRole(u.Role) {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	for role, set := range present {
		if role == u.Role && !set {
			return fmt.Errorf("role %s requires a %s profile", u.Role, role)
		}
		if role != u.Role && set {
			return fmt.Errorf("role %s must not carry a %s profile", u.Role, role)
		}
	}
	return nil
}
