package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/store"
)

func newTestEngine(t *testing.T, policy ProposalPolicy) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(store.NewMemoryDocuments(), audit.NopRecorder{}, zap.NewNop(), store.Config{
		DocumentKey:  "test:org",
		RetryBackoff: time.Millisecond,
	})
	return NewEngine(st, policy, zap.NewNop()), st
}

func TestStageVocabularies(t *testing.T) {
	clinic := StagesFor(models.ModeClinic)
	wantClinic := []models.PipelineStage{"Lead", "Evaluation", "Proposal", "Treatment", "Completed"}
	if len(clinic) != len(wantClinic) {
		t.Fatalf("clinic stages = %v", clinic)
	}
	for i, s := range wantClinic {
		if clinic[i] != s {
			t.Errorf("clinic[%d] = %q, want %q", i, clinic[i], s)
		}
	}

	lab := StagesFor(models.ModeLaboratory)
	wantLab := []models.PipelineStage{"Lead", "Digital Design", "In Production", "QC & Sterilization", "Out for Delivery"}
	if len(lab) != len(wantLab) {
		t.Fatalf("lab stages = %v", lab)
	}
	for i, s := range wantLab {
		if lab[i] != s {
			t.Errorf("lab[%d] = %q, want %q", i, lab[i], s)
		}
	}

	if ValidStage(models.ModeClinic, models.StageProduction) {
		t.Error("In Production accepted for clinic mode")
	}
	if !ValidStage(models.ModeLaboratory, models.StageLead) {
		t.Error("Lead rejected for lab mode")
	}
	if FirstStage(models.ModeLaboratory) != models.StageLead {
		t.Errorf("lab entry stage = %q", FirstStage(models.ModeLaboratory))
	}
}

func TestMoveToStageSynthesizesProposalOnce(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	if err := eng.MoveToStage(ctx, "p1", models.StageProposal); err != nil {
		t.Fatalf("MoveToStage: %v", err)
	}
	org, _ := st.FetchState(ctx)
	p := org.FindPatient("p1")
	if len(p.Proposals) != 1 {
		t.Fatalf("proposals = %d, want 1", len(p.Proposals))
	}
	prop := p.Proposals[0]
	if prop.Title != "Dental Treatment Plan" {
		t.Errorf("title = %q", prop.Title)
	}
	if prop.Total != 12950 {
		t.Errorf("total = %v, want 12950", prop.Total)
	}
	if p.TotalValue != prop.Total {
		t.Errorf("totalValue = %v, want proposal total", p.TotalValue)
	}
	if prop.Status != models.ProposalDraft {
		t.Errorf("status = %q, want Draft", prop.Status)
	}
	found := false
	for _, tag := range p.AIInsights {
		if tag == "AI: Proposal Suggested" {
			found = true
		}
	}
	if !found {
		t.Errorf("insight tag missing, insights = %v", p.AIInsights)
	}

	// leaving and re-entering the stage must not generate a second proposal
	if err := eng.MoveToStage(ctx, "p1", models.StageTreatment); err != nil {
		t.Fatalf("MoveToStage: %v", err)
	}
	if err := eng.MoveToStage(ctx, "p1", models.StageProposal); err != nil {
		t.Fatalf("MoveToStage: %v", err)
	}
	org, _ = st.FetchState(ctx)
	if got := len(org.FindPatient("p1").Proposals); got != 1 {
		t.Errorf("proposals after re-entry = %d, want 1", got)
	}
}

func TestMoveToStageRejectsWrongVocabulary(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	if err := eng.MoveToStage(ctx, "p1", models.StageProduction); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("MoveToStage(lab stage on clinic record) = %v, want ErrInvalidStage", err)
	}
	org, _ := st.FetchState(ctx)
	if org.FindPatient("p1").Stage != models.StageLead {
		t.Error("rejected move still changed the record")
	}
}

func TestMoveToStageUnknownPatient(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	if err := eng.MoveToStage(context.Background(), "ghost", models.StageEvaluation); !errors.Is(err, store.ErrPatientNotFound) {
		t.Fatalf("MoveToStage(ghost) = %v, want ErrPatientNotFound", err)
	}
}

func TestValidateDraft(t *testing.T) {
	tests := []struct {
		name    string
		patient models.Patient
		wantErr []string
	}{
		{
			name:    "valid",
			patient: models.Patient{Name: "Ana Souza", Phone: "11 98877-6655", TotalValue: 100},
		},
		{
			name:    "short name",
			patient: models.Patient{Name: "  Al ", Phone: "12345678"},
			wantErr: []string{"name"},
		},
		{
			name:    "phone too few digits",
			patient: models.Patient{Name: "Ana Souza", Phone: "(11) 9887"},
			wantErr: []string{"phone"},
		},
		{
			name:    "negative value",
			patient: models.Patient{Name: "Ana Souza", Phone: "12345678", TotalValue: -1},
			wantErr: []string{"totalValue"},
		},
		{
			name:    "everything wrong",
			patient: models.Patient{Name: "", Phone: "abc", TotalValue: -5},
			wantErr: []string{"name", "phone", "totalValue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDraft(tt.patient)
			if len(tt.wantErr) == 0 {
				if errs != nil {
					t.Fatalf("ValidateDraft = %v, want nil", errs)
				}
				return
			}
			if len(errs) != len(tt.wantErr) {
				t.Fatalf("ValidateDraft = %v, want keys %v", errs, tt.wantErr)
			}
			for _, k := range tt.wantErr {
				if _, ok := errs[k]; !ok {
					t.Errorf("missing violation key %q in %v", k, errs)
				}
			}
		})
	}
}

func TestSaveDraftRejectsInvalidWithoutWriting(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	bad := models.Patient{ID: "p9", Name: "X", Phone: "123"}
	_, violations, err := eng.SaveDraft(ctx, bad)
	if !errors.Is(err, ErrDraftInvalid) {
		t.Fatalf("SaveDraft = %v, want ErrDraftInvalid", err)
	}
	if violations["name"] == "" || violations["phone"] == "" {
		t.Errorf("violations = %v", violations)
	}
	org, _ := st.FetchState(ctx)
	if org.FindPatient("p9") != nil {
		t.Error("invalid draft was persisted")
	}
}

func TestSaveDraftCreatesAndUpdates(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	p := models.Patient{ID: "p2", Name: "Bruno Lima", Phone: "11988776655", Mode: models.ModeClinic, Stage: models.StageLead}
	if _, _, err := eng.SaveDraft(ctx, p); err != nil {
		t.Fatalf("SaveDraft(create): %v", err)
	}
	org, _ := st.FetchState(ctx)
	if org.FindPatient("p2") == nil {
		t.Fatal("created record missing")
	}

	p.Email = "bruno@example.com"
	if _, _, err := eng.SaveDraft(ctx, p); err != nil {
		t.Fatalf("SaveDraft(update): %v", err)
	}
	org, _ = st.FetchState(ctx)
	if got := org.FindPatient("p2").Email; got != "bruno@example.com" {
		t.Errorf("email = %q after update", got)
	}
	// update replaced, not duplicated
	count := 0
	for _, rec := range org.Patients {
		if rec.ID == "p2" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("record count = %d, want 1", count)
	}
}

func TestSaveDraftAssignsIDAndNeverOverwrites(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	first, _, err := eng.SaveDraft(ctx, models.Patient{Name: "Bruno Lima", Phone: "11988776655", Mode: models.ModeClinic, Stage: models.StageLead})
	if err != nil {
		t.Fatalf("SaveDraft(first): %v", err)
	}
	second, _, err := eng.SaveDraft(ctx, models.Patient{Name: "Carla Dias", Phone: "11977665544", Mode: models.ModeClinic, Stage: models.StageLead})
	if err != nil {
		t.Fatalf("SaveDraft(second): %v", err)
	}
	if first.ID == "" || second.ID == "" {
		t.Fatalf("assigned ids = %q, %q; want non-empty", first.ID, second.ID)
	}
	if first.ID == second.ID {
		t.Fatalf("both creates got id %q", first.ID)
	}

	org, _ := st.FetchState(ctx)
	if org.FindPatient(first.ID) == nil {
		t.Errorf("first create %q missing after second create", first.ID)
	}
	if org.FindPatient(second.ID) == nil {
		t.Errorf("second create %q missing", second.ID)
	}
}

func TestSaveDraftIntoProposalStageGeneratesProposal(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	p := models.Patient{ID: "p3", Name: "Carla Dias", Phone: "11988776655", Mode: models.ModeLaboratory, Stage: models.StageProposal}
	if _, _, err := eng.SaveDraft(ctx, p); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	org, _ := st.FetchState(ctx)
	saved := org.FindPatient("p3")
	if len(saved.Proposals) != 1 {
		t.Fatalf("proposals = %d, want 1", len(saved.Proposals))
	}
	if saved.Proposals[0].Title != "Prosthetic Work Order" {
		t.Errorf("title = %q", saved.Proposals[0].Title)
	}
	if saved.Proposals[0].Total != 2050 {
		t.Errorf("total = %v, want 2050", saved.Proposals[0].Total)
	}
	found := false
	for _, tag := range saved.AIInsights {
		if tag == "AI: Proposal Generated" {
			found = true
		}
	}
	if !found {
		t.Errorf("insight tag missing, insights = %v", saved.AIInsights)
	}
}

func TestAssistantPolicyFallsBack(t *testing.T) {
	calls := 0
	policy := &AssistantPolicy{
		Suggest: func(context.Context, models.Patient) (models.Proposal, error) {
			calls++
			return models.Proposal{}, errors.New("provider down")
		},
		Fallback: NewTemplatePolicy(),
	}
	prop, err := policy.Generate(context.Background(), models.Patient{Mode: models.ModeClinic})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls != 1 {
		t.Errorf("suggest calls = %d, want 1", calls)
	}
	if prop.Total != 12950 {
		t.Errorf("fallback total = %v, want 12950", prop.Total)
	}
}

func TestNewDraft(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	d := eng.NewDraft(models.ModeLaboratory)
	if d.Stage != models.StageLead {
		t.Errorf("stage = %q, want Lead", d.Stage)
	}
	if d.Mode != models.ModeLaboratory {
		t.Errorf("mode = %q", d.Mode)
	}
	if len(d.AIInsights) != 1 || d.AIInsights[0] != "New Record" {
		t.Errorf("insights = %v", d.AIInsights)
	}
	if d.ID == "" {
		t.Error("draft has no ID")
	}
}
