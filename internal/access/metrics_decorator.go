package access

import (
	"context"
	"time"

	"github.com/allisson/tierguard/internal/metrics"
)

type evaluatorWithMetrics struct {
	next    Evaluator
	metrics metrics.BusinessMetrics
}

// NewEvaluatorWithMetrics wraps an Evaluator with metrics recording.
// Rate-limited decisions are recorded with status "rate_limited" and every
// decision is counted against its effective tier.
func NewEvaluatorWithMetrics(next Evaluator, m metrics.BusinessMetrics) Evaluator {
	return &evaluatorWithMetrics{next: next, metrics: m}
}

func (e *evaluatorWithMetrics) Evaluate(ctx context.Context, cred Credential) (*Decision, error) {
	start := time.Now()
	decision, err := e.next.Evaluate(ctx, cred)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case decision.RateLimited:
		status = "rate_limited"
	}

	e.metrics.RecordOperation(ctx, "access", "access_evaluate", status)
	e.metrics.RecordDuration(ctx, "access", "access_evaluate", time.Since(start), status)

	if err == nil {
		outcome := metrics.OutcomeAllowed
		if decision.RateLimited {
			outcome = metrics.OutcomeRateLimited
		}
		e.metrics.RecordTierDecision(ctx, string(decision.EffectiveTier), outcome)
	}

	return decision, err
}
