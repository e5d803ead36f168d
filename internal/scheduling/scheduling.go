// Package scheduling validates and persists appointments. The conflict rule
// is exact-instant equality on a single shared calendar: two bookings at the
// same millisecond collide, overlapping durations at distinct instants do not.
package scheduling

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/store"
)

// Violation messages, in the order they are collected.
const (
	MsgPatientRequired  = "select a patient"
	MsgDateTimeRequired = "select date and time"
	MsgSlotConflict     = "time slot already booked"
)

// ErrPatientUnknown is returned when a draft references a patient that does
// not exist in the organization.
var ErrPatientUnknown = errors.New("unknown patient")

// ValidationError carries the full ordered list of violations; validation is
// not fail-fast. Conflict marks the instant-collision case so callers can
// surface it separately.
type ValidationError struct {
	Violations []string
	Conflict   bool
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "appointment validation failed"
	}
	return "appointment validation failed: " + e.Violations[0]
}

// Draft is an appointment request before validation.
type Draft struct {
	PatientID string                 `json:"patientId"`
	DateTime  string                 `json:"dateTime"`
	Duration  int                    `json:"duration"`
	Type      models.AppointmentType `json:"type"`
	Notes     string                 `json:"notes,omitempty"`
}

// Service validates and persists appointments through the store.
type Service struct {
	store  *store.Store
	logger *zap.Logger

	Now   func() time.Time
	NewID func() string
}

// NewService creates a scheduling service.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		logger: logger,
		Now:    time.Now,
		NewID:  func() string { return "apt_" + uuid.New().String()[:8] },
	}
}

// Validate collects every violation of a draft against the existing calendar:
// missing patient, missing date-time, exact-instant collision.
func Validate(draft Draft, existing []models.Appointment) *ValidationError {
	var v ValidationError
	if draft.PatientID == "" {
		v.Violations = append(v.Violations, MsgPatientRequired)
	}
	if draft.DateTime == "" {
		v.Violations = append(v.Violations, MsgDateTimeRequired)
	} else if when, err := ParseInstant(draft.DateTime); err == nil {
		for _, a := range existing {
			at, err := ParseInstant(a.DateTime)
			if err != nil {
				continue
			}
			if at.UnixMilli() == when.UnixMilli() {
				v.Violations = append(v.Violations, MsgSlotConflict)
				v.Conflict = true
				break
			}
		}
	}
	if len(v.Violations) == 0 {
		return nil
	}
	return &v
}

// Schedule validates a draft and appends the resulting appointment, status
// Scheduled, with the patient's current name denormalized onto it.
func (s *Service) Schedule(ctx context.Context, draft Draft) (*models.Appointment, error) {
	org, err := s.store.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	if verr := Validate(draft, org.Appointments); verr != nil {
		return nil, verr
	}
	patient := org.FindPatient(draft.PatientID)
	if patient == nil {
		return nil, ErrPatientUnknown
	}

	duration := draft.Duration
	if duration <= 0 {
		duration = 60
	}
	apptType := draft.Type
	if !apptType.Valid() {
		apptType = models.AppointmentConsultation
	}
	appt := models.Appointment{
		ID:          s.NewID(),
		PatientID:   draft.PatientID,
		PatientName: patient.Name,
		DateTime:    draft.DateTime,
		Duration:    duration,
		Type:        apptType,
		Status:      models.AppointmentScheduled,
		Notes:       draft.Notes,
	}
	if err := s.store.AddAppointment(ctx, appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// Cancel deletes an appointment by ID, unconditionally. Edits are modeled as
// delete plus re-add; there is no in-place update.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.store.DeleteAppointment(ctx, id)
}

// List returns all appointments sorted by date-time ascending.
func (s *Service) List(ctx context.Context) ([]models.Appointment, error) {
	org, err := s.store.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	appts := org.Appointments
	sort.SliceStable(appts, func(i, j int) bool {
		ti, erri := ParseInstant(appts[i].DateTime)
		tj, errj := ParseInstant(appts[j].DateTime)
		if erri != nil || errj != nil {
			return appts[i].DateTime < appts[j].DateTime
		}
		return ti.Before(tj)
	})
	return appts, nil
}

// ParseInstant parses the timestamp formats the dashboard produces: full
// RFC3339 or the shorter datetime-local forms without zone or seconds.
func ParseInstant(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date-time: " + s)
}
