package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/models"
)

func newTestStore(t *testing.T) (*Store, *MemoryDocuments) {
	t.Helper()
	docs := NewMemoryDocuments()
	st := New(docs, audit.NopRecorder{}, zap.NewNop(), Config{
		DocumentKey:  "test:org",
		SaveRetries:  3,
		RetryBackoff: time.Millisecond,
	})
	return st, docs
}

func TestFetchStateSeedsWorkspace(t *testing.T) {
	st, docs := newTestStore(t)
	ctx := context.Background()

	org, err := st.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if org.ID != models.SeedOrgID {
		t.Errorf("org ID = %q, want %q", org.ID, models.SeedOrgID)
	}
	if org.Mode != models.ModeClinic {
		t.Errorf("mode = %q, want Clinic", org.Mode)
	}
	if len(org.Patients) != 1 || org.Patients[0].Name != "Alice Johnson" {
		t.Fatalf("seed patients = %+v", org.Patients)
	}
	if org.Patients[0].Stage != models.StageLead {
		t.Errorf("seed patient stage = %q, want Lead", org.Patients[0].Stage)
	}
	if len(org.SubUsers) != 1 || org.SubUsers[0].Role != models.RoleAdmin {
		t.Fatalf("seed sub-users = %+v", org.SubUsers)
	}
	if org.Version != 0 {
		t.Errorf("seed version = %d, want 0", org.Version)
	}

	// the seed must be durably written, not just held in memory
	if _, err := docs.Load(ctx, "test:org"); err != nil {
		t.Errorf("seed document not persisted: %v", err)
	}
}

func TestSaveStateRoundTripIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	before, err := st.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if err := st.SaveState(ctx, before); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	after, err := st.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if after.Version != before.Version {
		t.Errorf("version changed on round trip: %d -> %d", before.Version, after.Version)
	}
	if len(after.Patients) != len(before.Patients) {
		t.Errorf("patients changed on round trip")
	}
}

func TestSaveStateRejectsStale(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	stale, err := st.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if err := st.AddPatient(ctx, models.Patient{ID: "p2", Name: "Bob Martin", Mode: models.ModeClinic}); err != nil {
		t.Fatalf("AddPatient: %v", err)
	}
	if err := st.SaveState(ctx, stale); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("SaveState(stale) = %v, want ErrStaleWrite", err)
	}

	// the newer write must survive
	cur, err := st.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if cur.FindPatient("p2") == nil {
		t.Error("patient added before the stale write was lost")
	}
}

func TestAddPatientPrependsAndBumpsVersion(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if err := st.AddPatient(ctx, models.Patient{ID: "p2", Name: "Bob Martin"}); err != nil {
		t.Fatalf("AddPatient: %v", err)
	}
	org, _ := st.FetchState(ctx)
	if org.Patients[0].ID != "p2" {
		t.Errorf("new patient not prepended, first = %q", org.Patients[0].ID)
	}
	if org.Version != 1 {
		t.Errorf("version = %d, want 1", org.Version)
	}
}

func TestUpdatePatientModeImmutable(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	edited := models.Patient{ID: "p1", Name: "Alice Johnson", Phone: "5511999999", Mode: models.ModeLaboratory}
	if err := st.UpdatePatient(ctx, edited); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	org, _ := st.FetchState(ctx)
	if got := org.FindPatient("p1").Mode; got != models.ModeClinic {
		t.Errorf("mode changed to %q, want Clinic (immutable)", got)
	}
}

func TestUpdatePatientUnknown(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	err := st.UpdatePatient(ctx, models.Patient{ID: "ghost"})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("UpdatePatient(ghost) = %v, want ErrPatientNotFound", err)
	}
}

func TestAddSubUserDuplicateEmail(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	dup := models.SubUser{ID: "u2", Name: "Second Admin", Email: "admin@client.com", Role: models.RoleAssistant}
	if err := st.AddSubUser(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("AddSubUser(dup) = %v, want ErrDuplicateEmail", err)
	}

	// uppercase variant is a different address; exact match only
	dup.Email = "ADMIN@client.com"
	if err := st.AddSubUser(ctx, dup); err != nil {
		t.Fatalf("AddSubUser(case variant) = %v, want nil", err)
	}

	org, _ := st.FetchState(ctx)
	if len(org.SubUsers) != 2 {
		t.Errorf("sub-users = %d, want 2", len(org.SubUsers))
	}
}

func TestRemoveSubUserIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if err := st.RemoveSubUser(ctx, "u1"); err != nil {
		t.Fatalf("RemoveSubUser: %v", err)
	}
	if err := st.RemoveSubUser(ctx, "u1"); err != nil {
		t.Fatalf("RemoveSubUser again: %v", err)
	}
	org, _ := st.FetchState(ctx)
	if len(org.SubUsers) != 0 {
		t.Errorf("sub-users = %d, want 0", len(org.SubUsers))
	}
}

func TestSaveRetriesTransientFailure(t *testing.T) {
	st, docs := newTestStore(t)
	ctx := context.Background()

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	docs.FailNextSaves = 2
	if err := st.AddPatient(ctx, models.Patient{ID: "p2", Name: "Bob Martin"}); err != nil {
		t.Fatalf("AddPatient with 2 transient failures: %v", err)
	}
}

func TestSaveFailureKeepsLastKnownGood(t *testing.T) {
	st, docs := newTestStore(t)
	ctx := context.Background()

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	docs.FailNextSaves = 3 // exhausts every retry
	err := st.AddPatient(ctx, models.Patient{ID: "p2", Name: "Bob Martin"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("AddPatient = %v, want ErrPersistence", err)
	}

	org, ferr := st.FetchState(ctx)
	if ferr != nil {
		t.Fatalf("FetchState: %v", ferr)
	}
	if org.FindPatient("p2") != nil {
		t.Error("failed write leaked into the snapshot")
	}
	if org.Version != 0 {
		t.Errorf("version = %d after failed write, want 0", org.Version)
	}
}

func TestOnChangeNotifiesAfterMutation(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	var got *models.Organization
	st.SetOnChange(func(org *models.Organization) { got = org })

	if _, err := st.FetchState(ctx); err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if err := st.AddAppointment(ctx, models.Appointment{ID: "apt_1", PatientID: "p1"}); err != nil {
		t.Fatalf("AddAppointment: %v", err)
	}
	if got == nil {
		t.Fatal("onChange not invoked")
	}
	if got.Version != 1 || len(got.Appointments) != 1 {
		t.Errorf("onChange snapshot = version %d, %d appointments", got.Version, len(got.Appointments))
	}
}

func TestFetchStateReturnsCopy(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	a, err := st.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	a.Patients[0].Name = "Mallory"
	b, _ := st.FetchState(ctx)
	if b.Patients[0].Name != "Alice Johnson" {
		t.Error("snapshot mutation leaked into the store")
	}
}
