// Package assistant bridges free-text or voice input to a constrained set of
// system actions, and business snapshots to structured insights. The
// provider is advisory only: it never gates core CRUD, and every failure
// path fails open.
package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/odontosync/backend/internal/models"
)

// ActionName is the fixed vocabulary the provider may call. Anything outside
// it is rejected at the decode boundary.
type ActionName string

const (
	ActionNavigateTo        ActionName = "navigateTo"
	ActionSetBusinessMode   ActionName = "setBusinessMode"
	ActionCreateAppointment ActionName = "createAppointment"
	ActionUpdateCRMStage    ActionName = "updateCRMStage"
)

// Tabs the dashboard can navigate to.
var validTabs = map[string]bool{
	"dashboard":    true,
	"crm":          true,
	"schedule":     true,
	"integrations": true,
	"settings":     true,
}

// NavigateArgs selects a dashboard tab.
type NavigateArgs struct {
	Tab string `json:"tab"`
}

// SetModeArgs switches the active business mode.
type SetModeArgs struct {
	Mode models.BusinessMode `json:"mode"`
}

// CreateAppointmentArgs books a slot by patient name.
type CreateAppointmentArgs struct {
	PatientName string `json:"patientName"`
	DateTime    string `json:"dateTime"`
	Type        string `json:"type"`
}

// UpdateStageArgs moves a record through the pipeline.
type UpdateStageArgs struct {
	PatientID string `json:"patientId"`
	NewStage  string `json:"newStage"`
}

// RawAction is the wire shape of a provider tool call before validation.
type RawAction struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Action is a validated, strongly typed system action. Exactly one of the
// argument fields is set, matching Name.
type Action struct {
	ID                string                 `json:"id,omitempty"`
	Name              ActionName             `json:"name"`
	Navigate          *NavigateArgs          `json:"navigate,omitempty"`
	SetMode           *SetModeArgs           `json:"setMode,omitempty"`
	CreateAppointment *CreateAppointmentArgs `json:"createAppointment,omitempty"`
	UpdateStage       *UpdateStageArgs       `json:"updateStage,omitempty"`
}

// Decode validates a raw tool call at the boundary where provider-structured
// data enters the system. Unknown names and malformed or out-of-vocabulary
// arguments are errors.
func Decode(raw RawAction) (Action, error) {
	act := Action{ID: raw.ID, Name: ActionName(raw.Name)}
	switch act.Name {
	case ActionNavigateTo:
		var args NavigateArgs
		if err := strictUnmarshal(raw.Args, &args); err != nil {
			return Action{}, err
		}
		if !validTabs[args.Tab] {
			return Action{}, fmt.Errorf("navigateTo: unknown tab %q", args.Tab)
		}
		act.Navigate = &args
	case ActionSetBusinessMode:
		var args SetModeArgs
		if err := strictUnmarshal(raw.Args, &args); err != nil {
			return Action{}, err
		}
		if !args.Mode.Valid() {
			return Action{}, fmt.Errorf("setBusinessMode: unknown mode %q", args.Mode)
		}
		act.SetMode = &args
	case ActionCreateAppointment:
		var args CreateAppointmentArgs
		if err := strictUnmarshal(raw.Args, &args); err != nil {
			return Action{}, err
		}
		if args.PatientName == "" || args.DateTime == "" {
			return Action{}, fmt.Errorf("createAppointment: patientName and dateTime required")
		}
		act.CreateAppointment = &args
	case ActionUpdateCRMStage:
		var args UpdateStageArgs
		if err := strictUnmarshal(raw.Args, &args); err != nil {
			return Action{}, err
		}
		if args.PatientID == "" || args.NewStage == "" {
			return Action{}, fmt.Errorf("updateCRMStage: patientId and newStage required")
		}
		act.UpdateStage = &args
	default:
		return Action{}, fmt.Errorf("unknown action %q", raw.Name)
	}
	return act, nil
}

func strictUnmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing action args")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode action args: %w", err)
	}
	return nil
}
