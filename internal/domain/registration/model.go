package registration

import "encoding/json"

// Attendance statuses of a registration.
const (
	StatusRegistered          = "registered"
	StatusPass                = "pass"
	StatusAbsent              = "absent"
	StatusReferredOptometrist = "referred_optometrist"
	StatusReferredSpecialist  = "referred_specialist"
)

var validStatuses = map[string]bool{
	StatusRegistered: true, StatusPass: true, StatusAbsent: true,
	StatusReferredOptometrist: true, StatusReferredSpecialist: true,
}

// ValidStatus reports whether s is a known attendance status.
func ValidStatus(s string) bool { return validStatuses[s] }

// Event is a screening session held at one location.
type Event struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

type Patient struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	DateOfBirth    string `json:"date_of_birth"`
	Gender         string `json:"gender"`
	Phone          string `json:"phone,omitempty"`
}

// Registration enrolls a patient in an event; every assessment hangs off it.
type Registration struct {
	ID               int64           `json:"id"`
	PatientID        int64           `json:"patient_id"`
	EventID          int64           `json:"event_id"`
	ReferenceNumber  string          `json:"reference_number"`
	AttendanceStatus string          `json:"attendance_status"`
	Description      json.RawMessage `json:"description,omitempty"`
	Patient          *Patient        `json:"patient,omitempty"`
	Event            *Event          `json:"event,omitempty"`
}
