package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/pipeline"
	"github.com/odontosync/backend/internal/scheduling"
	"github.com/odontosync/backend/internal/store"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawAction
		wantErr bool
	}{
		{
			name: "navigate valid tab",
			raw:  RawAction{Name: "navigateTo", Args: json.RawMessage(`{"tab":"crm"}`)},
		},
		{
			name:    "navigate unknown tab",
			raw:     RawAction{Name: "navigateTo", Args: json.RawMessage(`{"tab":"billing"}`)},
			wantErr: true,
		},
		{
			name: "set mode",
			raw:  RawAction{Name: "setBusinessMode", Args: json.RawMessage(`{"mode":"Laboratory"}`)},
		},
		{
			name:    "set mode out of vocabulary",
			raw:     RawAction{Name: "setBusinessMode", Args: json.RawMessage(`{"mode":"Hospital"}`)},
			wantErr: true,
		},
		{
			name: "create appointment",
			raw:  RawAction{Name: "createAppointment", Args: json.RawMessage(`{"patientName":"Alice","dateTime":"2026-09-15T09:00","type":"Consultation"}`)},
		},
		{
			name:    "create appointment missing dateTime",
			raw:     RawAction{Name: "createAppointment", Args: json.RawMessage(`{"patientName":"Alice"}`)},
			wantErr: true,
		},
		{
			name: "update stage",
			raw:  RawAction{Name: "updateCRMStage", Args: json.RawMessage(`{"patientId":"p1","newStage":"Evaluation"}`)},
		},
		{
			name:    "update stage missing patient",
			raw:     RawAction{Name: "updateCRMStage", Args: json.RawMessage(`{"newStage":"Evaluation"}`)},
			wantErr: true,
		},
		{
			name:    "unknown action name",
			raw:     RawAction{Name: "deleteEverything", Args: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "missing args",
			raw:     RawAction{Name: "navigateTo"},
			wantErr: true,
		},
		{
			name:    "malformed args",
			raw:     RawAction{Name: "navigateTo", Args: json.RawMessage(`"crm"`)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := Decode(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode = %+v, want error", act)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if string(act.Name) != tt.raw.Name {
				t.Errorf("name = %q", act.Name)
			}
		})
	}
}

// fakeProvider scripts provider behavior for bridge tests.
type fakeProvider struct {
	actions  []Action
	insights Insights
	err      error
}

func (f *fakeProvider) Interpret(context.Context, string) ([]Action, error) {
	return f.actions, f.err
}

func (f *fakeProvider) Analyze(context.Context, json.RawMessage) (Insights, error) {
	return f.insights, f.err
}

func TestBridgeFailsOpen(t *testing.T) {
	b := NewBridge(&fakeProvider{err: errors.New("quota exceeded")}, zap.NewNop())

	if actions := b.Interpret(context.Background(), "schedule alice tomorrow"); len(actions) != 0 {
		t.Errorf("Interpret on provider error = %v, want empty", actions)
	}
	insights := b.Analyze(context.Background(), json.RawMessage(`{}`))
	if insights.Summary != DegradedSummary {
		t.Errorf("summary = %q, want degraded", insights.Summary)
	}
	if len(insights.Opportunities) != 0 || insights.RevenueForecast != "" {
		t.Errorf("degraded insights carry extra fields: %+v", insights)
	}
}

func TestBridgePassesThrough(t *testing.T) {
	want := Insights{Summary: "steady quarter", Opportunities: []string{"recall lapsed patients"}, RevenueForecast: "R$ 40k"}
	b := NewBridge(&fakeProvider{insights: want}, zap.NewNop())
	got := b.Analyze(context.Background(), json.RawMessage(`{}`))
	if got.Summary != want.Summary || got.RevenueForecast != want.RevenueForecast {
		t.Errorf("insights = %+v", got)
	}
}

// recordingNavigator captures navigation overwrites.
type recordingNavigator struct {
	tab  string
	mode models.BusinessMode
}

func (n *recordingNavigator) NavigateTo(tab string)                  { n.tab = tab }
func (n *recordingNavigator) SetBusinessMode(m models.BusinessMode)  { n.mode = m }

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store) {
	t.Helper()
	st := store.New(store.NewMemoryDocuments(), audit.NopRecorder{}, zap.NewNop(), store.Config{
		DocumentKey:  "test:org",
		RetryBackoff: time.Millisecond,
	})
	engine := pipeline.NewEngine(st, nil, zap.NewNop())
	scheduler := scheduling.NewService(st, zap.NewNop())
	return NewDispatcher(engine, scheduler, st, zap.NewNop()), st
}

func TestDispatcherNavigation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	nav := &recordingNavigator{}

	res := d.Execute(context.Background(), Action{Name: ActionNavigateTo, Navigate: &NavigateArgs{Tab: "schedule"}}, nav)
	if !res.OK {
		t.Fatalf("navigate failed: %+v", res)
	}
	if nav.tab != "schedule" {
		t.Errorf("tab = %q", nav.tab)
	}

	res = d.Execute(context.Background(), Action{Name: ActionSetBusinessMode, SetMode: &SetModeArgs{Mode: models.ModeLaboratory}}, nav)
	if !res.OK {
		t.Fatalf("set mode failed: %+v", res)
	}
	if nav.mode != models.ModeLaboratory {
		t.Errorf("mode = %q", nav.mode)
	}
}

func TestDispatcherCreateAppointmentByName(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()

	// spoken first name resolves via substring match
	res := d.Execute(ctx, Action{
		ID:   "call-1",
		Name: ActionCreateAppointment,
		CreateAppointment: &CreateAppointmentArgs{
			PatientName: "alice",
			DateTime:    "2026-09-15T09:00",
			Type:        "Cleaning",
		},
	}, nil)
	if !res.OK {
		t.Fatalf("create appointment failed: %+v", res)
	}
	if res.ActionID != "call-1" {
		t.Errorf("ack ID = %q", res.ActionID)
	}

	org, _ := st.FetchState(ctx)
	if len(org.Appointments) != 1 {
		t.Fatalf("appointments = %d", len(org.Appointments))
	}
	if org.Appointments[0].PatientID != "p1" {
		t.Errorf("resolved patient = %q", org.Appointments[0].PatientID)
	}
}

func TestDispatcherReportsFailureInResult(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res := d.Execute(context.Background(), Action{
		Name: ActionCreateAppointment,
		CreateAppointment: &CreateAppointmentArgs{
			PatientName: "nobody by this name",
			DateTime:    "2026-09-15T09:00",
		},
	}, nil)
	if res.OK {
		t.Fatal("unknown patient reported OK")
	}
	if res.Message == "" {
		t.Error("failure carries no message")
	}
}

func TestDispatcherUpdateStage(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()

	res := d.Execute(ctx, Action{
		Name:        ActionUpdateCRMStage,
		UpdateStage: &UpdateStageArgs{PatientID: "p1", NewStage: "Evaluation"},
	}, nil)
	if !res.OK {
		t.Fatalf("update stage failed: %+v", res)
	}
	org, _ := st.FetchState(ctx)
	if got := org.FindPatient("p1").Stage; got != models.StageEvaluation {
		t.Errorf("stage = %q", got)
	}

	// out-of-vocabulary stage fails the action, not the batch
	results := d.ExecuteAll(ctx, []Action{
		{Name: ActionUpdateCRMStage, UpdateStage: &UpdateStageArgs{PatientID: "p1", NewStage: "In Production"}},
		{Name: ActionNavigateTo, Navigate: &NavigateArgs{Tab: "crm"}},
	}, &recordingNavigator{})
	if results[0].OK {
		t.Error("invalid stage reported OK")
	}
	if !results[1].OK {
		t.Error("later action did not run after a failure")
	}
}
