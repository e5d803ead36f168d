package models

// AppointmentType is the kind of work scheduled for a slot.
type AppointmentType string

const (
	AppointmentConsultation AppointmentType = "Consultation"
	AppointmentSurgery      AppointmentType = "Surgery"
	AppointmentCleaning     AppointmentType = "Cleaning"
	AppointmentDesign       AppointmentType = "Design"
	AppointmentMaintenance  AppointmentType = "Maintenance"
)

// Valid reports whether the type is in the fixed vocabulary.
func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentConsultation, AppointmentSurgery, AppointmentCleaning,
		AppointmentDesign, AppointmentMaintenance:
		return true
	}
	return false
}

// AppointmentStatus is the lifecycle state of a scheduled slot.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentConfirmed AppointmentStatus = "Confirmed"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
)

// Appointment is a scheduled time slot. PatientName is a snapshot of the
// patient's name at creation time; PatientID is a soft foreign key (no
// cascade on patient deletion). No two appointments in an organization may
// share an exact DateTime instant.
type Appointment struct {
	ID          string            `json:"id"`
	PatientID   string            `json:"patientId"`
	PatientName string            `json:"patientName"`
	DateTime    string            `json:"dateTime"` // ISO timestamp
	Duration    int               `json:"duration"` // minutes, positive
	Type        AppointmentType   `json:"type"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes,omitempty"`
}
