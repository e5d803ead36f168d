package assistant

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/pipeline"
	"github.com/odontosync/backend/internal/scheduling"
	"github.com/odontosync/backend/internal/store"
)

// Navigator receives the pure-overwrite navigation actions. The voice session
// backs this with its per-connection tab scalar; last write wins, voice and
// manual navigation need no conflict detection.
type Navigator interface {
	NavigateTo(tab string)
	SetBusinessMode(mode models.BusinessMode)
}

// NopNavigator ignores navigation (HTTP command endpoint, tests).
type NopNavigator struct{}

func (NopNavigator) NavigateTo(string)                   {}
func (NopNavigator) SetBusinessMode(models.BusinessMode) {}

// Result reports the outcome of one executed action, keyed by the provider's
// action ID for acknowledgement pairing.
type Result struct {
	ActionID string `json:"actionId,omitempty"`
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
}

// Dispatcher executes validated actions against the pipeline engine,
// scheduling service and navigation state.
type Dispatcher struct {
	engine    *pipeline.Engine
	scheduler *scheduling.Service
	store     *store.Store
	logger    *zap.Logger
}

// NewDispatcher creates an action dispatcher.
func NewDispatcher(engine *pipeline.Engine, scheduler *scheduling.Service, st *store.Store, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: engine, scheduler: scheduler, store: st, logger: logger}
}

// Execute runs one action and returns its acknowledgement. Execution errors
// are reported in the result, never returned: the assistant is automation
// assist, a failed action must not break the session.
func (d *Dispatcher) Execute(ctx context.Context, act Action, nav Navigator) Result {
	if nav == nil {
		nav = NopNavigator{}
	}
	res := Result{ActionID: act.ID, Name: string(act.Name), OK: true}
	switch act.Name {
	case ActionNavigateTo:
		nav.NavigateTo(act.Navigate.Tab)
		res.Message = "navigation complete"
	case ActionSetBusinessMode:
		nav.SetBusinessMode(act.SetMode.Mode)
		res.Message = "mode changed"
	case ActionCreateAppointment:
		appt, err := d.createAppointment(ctx, act.CreateAppointment)
		if err != nil {
			res.OK = false
			res.Message = err.Error()
			break
		}
		res.Message = "appointment " + appt.ID + " scheduled"
	case ActionUpdateCRMStage:
		err := d.engine.MoveToStage(ctx, act.UpdateStage.PatientID, models.PipelineStage(act.UpdateStage.NewStage))
		if err != nil {
			res.OK = false
			res.Message = err.Error()
			break
		}
		res.Message = "stage updated"
	default:
		res.OK = false
		res.Message = "unsupported action"
	}
	if !res.OK {
		d.logger.Warn("action failed", zap.String("action", res.Name), zap.String("message", res.Message))
	}
	return res
}

// ExecuteAll runs a batch in order, one result per action.
func (d *Dispatcher) ExecuteAll(ctx context.Context, actions []Action, nav Navigator) []Result {
	results := make([]Result, 0, len(actions))
	for _, act := range actions {
		results = append(results, d.Execute(ctx, act, nav))
	}
	return results
}

func (d *Dispatcher) createAppointment(ctx context.Context, args *CreateAppointmentArgs) (*models.Appointment, error) {
	org, err := d.store.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	var patientID string
	want := strings.ToLower(strings.TrimSpace(args.PatientName))
	for _, p := range org.Patients {
		if strings.ToLower(p.Name) == want {
			patientID = p.ID
			break
		}
	}
	if patientID == "" {
		// fall back to substring match on the spoken name
		for _, p := range org.Patients {
			if strings.Contains(strings.ToLower(p.Name), want) {
				patientID = p.ID
				break
			}
		}
	}
	if patientID == "" {
		return nil, scheduling.ErrPatientUnknown
	}
	return d.scheduler.Schedule(ctx, scheduling.Draft{
		PatientID: patientID,
		DateTime:  args.DateTime,
		Type:      models.AppointmentType(args.Type),
	})
}
