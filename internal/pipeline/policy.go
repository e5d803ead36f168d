package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/models"
)

// ProposalPolicy synthesizes a priced proposal for a record entering the
// Proposal stage. The engine guarantees the policy fires at most once per
// record: never when a proposal already exists.
type ProposalPolicy interface {
	Generate(ctx context.Context, p models.Patient) (models.Proposal, error)
}

// TemplatePolicy is the deterministic default: a fixed two-line item
// template keyed by business mode, total equal to the exact sum of lines.
type TemplatePolicy struct {
	Now   func() time.Time
	NewID func() string
}

// NewTemplatePolicy creates the default deterministic proposal policy.
func NewTemplatePolicy() *TemplatePolicy {
	return &TemplatePolicy{
		Now:   time.Now,
		NewID: func() string { return "prop_" + uuid.New().String()[:8] },
	}
}

// Generate builds the templated proposal for the record's mode.
func (t *TemplatePolicy) Generate(_ context.Context, p models.Patient) (models.Proposal, error) {
	var title string
	var items []models.ProposalItem
	if p.Mode == models.ModeLaboratory {
		title = "Prosthetic Work Order"
		items = []models.ProposalItem{
			{Description: "CAD Scan & Design", Price: 250},
			{Description: "Multilayer Zirconia Milling", Price: 1800},
		}
	} else {
		title = "Dental Treatment Plan"
		items = []models.ProposalItem{
			{Description: "Digital Aesthetic Evaluation", Price: 450},
			{Description: "Veneers Rehabilitation Treatment", Price: 12500},
		}
	}
	var total float64
	for _, it := range items {
		total += it.Price
	}
	return models.Proposal{
		ID:        t.NewID(),
		Title:     title,
		Items:     items,
		Total:     total,
		Status:    models.ProposalDraft,
		CreatedAt: t.Now().UTC().Format(time.RFC3339),
	}, nil
}

// AssistantPolicy asks the AI bridge for a proposal outline and falls back
// to the deterministic template on any provider failure. AI is advisory
// only: a provider error never blocks the stage transition.
type AssistantPolicy struct {
	Suggest  func(ctx context.Context, p models.Patient) (models.Proposal, error)
	Fallback ProposalPolicy
	Logger   *zap.Logger
}

// Generate tries the assistant first, then the fallback.
func (a *AssistantPolicy) Generate(ctx context.Context, p models.Patient) (models.Proposal, error) {
	if a.Suggest != nil {
		prop, err := a.Suggest(ctx, p)
		if err == nil && len(prop.Items) > 0 {
			return prop, nil
		}
		if err != nil && a.Logger != nil {
			a.Logger.Warn("assistant proposal unavailable, using template", zap.Error(err))
		}
	}
	return a.Fallback.Generate(ctx, p)
}
