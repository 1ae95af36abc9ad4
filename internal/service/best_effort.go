package service

import (
	"context"
	"errors"

	"payment-processor/internal/util"

	"go.uber.org/zap"
)

// StepStatus is the uniform outcome of a best-effort step
type StepStatus string

const (
	StepPerformed StepStatus = "performed"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// Best-effort step names
const (
	StepRefreshAvailability = "refresh_availability"
	StepPayerLookup         = "payer_lookup"
	StepMarkProcessed       = "mark_processed"
	StepPublishReconciled   = "publish_reconciled"
)

// errStepSkipped lets a best-effort step report that it had nothing to do
var errStepSkipped = errors.New("step skipped")

// StepResult records what happened to a best-effort step. A failed step
// never fails the reconciliation.
type StepResult struct {
	Step   string
	Status StepStatus
	Err    error
}

func runBestEffort(ctx context.Context, logger *zap.Logger, step string, fn func(context.Context) error) StepResult {
	err := fn(ctx)
	switch {
	case err == nil:
		return StepResult{Step: step, Status: StepPerformed}
	case errors.Is(err, errStepSkipped):
		return StepResult{Step: step, Status: StepSkipped}
	default:
		util.BestEffortFailuresTotal.WithLabelValues(step).Inc()
		logger.Warn("Best-effort step failed",
			zap.String("step", step),
			zap.Error(err))
		return StepResult{Step: step, Status: StepFailed, Err: err}
	}
}
