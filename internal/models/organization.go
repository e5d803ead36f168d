package models

// BusinessMode selects which side of the practice a record belongs to and
// which pipeline stage vocabulary applies to it.
type BusinessMode string

const (
	ModeClinic     BusinessMode = "Clinic"
	ModeLaboratory BusinessMode = "Laboratory"
)

// Valid reports whether the mode is one of the two supported values.
func (m BusinessMode) Valid() bool {
	return m == ModeClinic || m == ModeLaboratory
}

// Organization is the root aggregate. Exactly one organization is loaded per
// session; it exclusively owns all child collections and is persisted as a
// single JSON document with whole-object replace semantics.
//
// Version is a monotonically increasing write stamp. Every successful mutation
// bumps it, and the store rejects writes carrying a stale version so that two
// interleaved read-modify-write cycles cannot silently clobber each other.
type Organization struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Mode         BusinessMode  `json:"mode"`
	Patients     []Patient     `json:"patients"`
	SubUsers     []SubUser     `json:"subUsers"`
	Appointments []Appointment `json:"appointments"`
	Version      int64         `json:"version"`
}

// Clone returns a deep copy so callers can hand snapshots out without
// aliasing the store's in-memory state.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Patients = make([]Patient, len(o.Patients))
	for i, p := range o.Patients {
		cp.Patients[i] = p.clone()
	}
	cp.SubUsers = append([]SubUser(nil), o.SubUsers...)
	cp.Appointments = append([]Appointment(nil), o.Appointments...)
	return &cp
}

// FindPatient returns a pointer into the organization's patient slice, or nil.
func (o *Organization) FindPatient(id string) *Patient {
	for i := range o.Patients {
		if o.Patients[i].ID == id {
			return &o.Patients[i]
		}
	}
	return nil
}
