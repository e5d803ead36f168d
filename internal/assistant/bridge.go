package assistant

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// DegradedSummary is the only field populated when analytics fails open.
const DegradedSummary = "Strategic analysis unavailable right now."

// Bridge wraps a Provider with the fail-open policy: command interpretation
// errors become an empty action list, analytics errors become a degraded
// summary-only object. Provider failures never propagate to callers.
type Bridge struct {
	provider Provider
	logger   *zap.Logger
}

// NewBridge creates the fail-open wrapper.
func NewBridge(provider Provider, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{provider: provider, logger: logger}
}

// Interpret returns zero or more validated actions for the utterance. Any
// provider error (auth, rate limit, network) yields an empty list.
func (b *Bridge) Interpret(ctx context.Context, utterance string) []Action {
	if b.provider == nil {
		return nil
	}
	actions, err := b.provider.Interpret(ctx, utterance)
	if err != nil {
		b.logger.Warn("command interpretation failed open", zap.Error(err))
		return nil
	}
	return actions
}

// Analyze returns insights for the snapshot, degrading to a summary-only
// object on any provider error.
func (b *Bridge) Analyze(ctx context.Context, snapshot json.RawMessage) Insights {
	if b.provider == nil {
		return Insights{Summary: DegradedSummary}
	}
	insights, err := b.provider.Analyze(ctx, snapshot)
	if err != nil {
		b.logger.Warn("analytics failed open", zap.Error(err))
		return Insights{Summary: DegradedSummary}
	}
	return insights
}
