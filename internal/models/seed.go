package models

import "time"

// SeedOrgID is the identifier of the organization materialized on first
// access when no document has been persisted yet.
const SeedOrgID = "org_enterprise_001"

// SeedOrganization builds the default demo organization: one Lead-stage
// patient and one Admin sub-user, Clinic mode, no appointments.
func SeedOrganization(now time.Time) *Organization {
	return &Organization{
		ID:   SeedOrgID,
		Name: "Active Corporate Workspace",
		Mode: ModeClinic,
		Patients: []Patient{
			{
				ID:              "p1",
				Name:            "Alice Johnson",
				Email:           "alice@example.com",
				Phone:           "5511999999",
				Stage:           StageLead,
				LastInteraction: now.UTC().Format(time.RFC3339),
				AIInsights:      []string{"WhatsApp Lead"},
				TotalValue:      0,
				Mode:            ModeClinic,
				Proposals:       []Proposal{},
			},
		},
		SubUsers: []SubUser{
			{
				ID:         "u1",
				Name:       "Clinical Director",
				Email:      "admin@client.com",
				Role:       RoleAdmin,
				LastActive: now.UTC().Format(time.RFC3339),
			},
		},
		Appointments: []Appointment{},
		Version:      0,
	}
}
