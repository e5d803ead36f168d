package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/store"
)

var (
	// ErrInvalidStage rejects a transition to a stage outside the record's
	// mode vocabulary.
	ErrInvalidStage = errors.New("stage not valid for business mode")

	// ErrDraftInvalid signals that save was aborted by field validation; the
	// field-keyed messages travel alongside.
	ErrDraftInvalid = errors.New("draft validation failed")
)

// Engine applies stage transitions and draft saves against the store.
type Engine struct {
	store  *store.Store
	policy ProposalPolicy
	logger *zap.Logger

	Now   func() time.Time
	NewID func() string
}

// NewEngine creates a pipeline engine. A nil policy gets the deterministic
// template default.
func NewEngine(st *store.Store, policy ProposalPolicy, logger *zap.Logger) *Engine {
	if policy == nil {
		policy = NewTemplatePolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  st,
		policy: policy,
		logger: logger,
		Now:    time.Now,
		NewID:  func() string { return "p_" + uuid.New().String()[:8] },
	}
}

// MoveToStage moves a record to a new stage, stamping lastInteraction. When
// the target is the Proposal stage and the record carries no proposal yet,
// exactly one is synthesized: totalValue becomes the proposal total and an
// insight tag is appended. A record that already has a proposal is never
// regenerated.
func (e *Engine) MoveToStage(ctx context.Context, patientID string, newStage models.PipelineStage) error {
	return e.store.MutatePatient(ctx, patientID, "MOVE_STAGE", func(p *models.Patient) error {
		if !ValidStage(p.Mode, newStage) {
			return ErrInvalidStage
		}
		p.Stage = newStage
		p.LastInteraction = e.Now().UTC().Format(time.RFC3339)
		if newStage == models.StageProposal && !p.HasProposal() {
			prop, err := e.policy.Generate(ctx, *p)
			if err != nil {
				return err
			}
			p.Proposals = append(p.Proposals, prop)
			p.TotalValue = prop.Total
			p.AIInsights = append(p.AIInsights, "AI: Proposal Suggested")
		}
		return nil
	})
}

// ValidateDraft checks a record before a manual save: name at least 3 trimmed
// characters, phone at least 8 digits after stripping non-digits, totalValue
// non-negative. Returns a field-keyed error map; empty means valid.
func ValidateDraft(p models.Patient) map[string]string {
	errs := make(map[string]string)
	if len(strings.TrimSpace(p.Name)) < 3 {
		errs["name"] = "minimum 3 characters"
	}
	if digitCount(p.Phone) < 8 {
		errs["phone"] = "invalid phone"
	}
	if p.TotalValue < 0 {
		errs["totalValue"] = "invalid value"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// SaveDraft validates and persists an edited or freshly added record,
// returning it as saved. A record without an ID gets a fresh one and is
// always treated as a create. No partial save: validation failure returns the
// field map with ErrDraftInvalid and nothing is written. A draft saved
// directly into the Proposal stage gets the same one-time proposal synthesis
// as a drag transition.
func (e *Engine) SaveDraft(ctx context.Context, p models.Patient) (models.Patient, map[string]string, error) {
	if fieldErrs := ValidateDraft(p); fieldErrs != nil {
		return p, fieldErrs, ErrDraftInvalid
	}
	p.LastInteraction = e.Now().UTC().Format(time.RFC3339)

	if p.Stage == models.StageProposal && !p.HasProposal() {
		prop, err := e.policy.Generate(ctx, p)
		if err != nil {
			return p, nil, err
		}
		p.Proposals = append(p.Proposals, prop)
		p.TotalValue = prop.Total
		p.AIInsights = append(p.AIInsights, "AI: Proposal Generated")
	}

	if p.ID == "" {
		p.ID = e.NewID()
		return p, nil, e.store.AddPatient(ctx, p)
	}
	org, err := e.store.FetchState(ctx)
	if err != nil {
		return p, nil, err
	}
	if org.FindPatient(p.ID) != nil {
		return p, nil, e.store.UpdatePatient(ctx, p)
	}
	return p, nil, e.store.AddPatient(ctx, p)
}

// NewDraft builds an empty record in the mode's entry stage, ready for the
// edit form.
func (e *Engine) NewDraft(mode models.BusinessMode) models.Patient {
	return models.Patient{
		ID:              e.NewID(),
		Stage:           FirstStage(mode),
		LastInteraction: e.Now().UTC().Format(time.RFC3339),
		AIInsights:      []string{"New Record"},
		Mode:            mode,
		Proposals:       []models.Proposal{},
		Address:         &models.Address{},
	}
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
