package workflow

import (
	"context"
	"errors"

	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/models"
)

// HandleExecutionRequested is the event bus handler for execution.requested.
// Requests that can never succeed are dropped; persistence failures are
// returned so the bus redelivers the request.
func (c *Coordinator) HandleExecutionRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.ExecutionRequested)
	if !ok {
		c.logger.ErrorContext(ctx, "invalid event type for execution request")

		return nil
	}

	logger := c.logger.With(
		"workflow_id", request.WorkflowID,
		"execution_id", request.ExecutionID,
		"event_id", request.ID,
	)

	execCtx := models.ExecutionContext(request.Context).WithoutResume()

	_, err := c.Run(ctx, request.WorkflowID, execCtx,
		WithExecutionID(request.ExecutionID),
		WithTriggerType(request.TriggerType),
	)

	switch {
	case err == nil:
		return nil
	case IsDefinitionError(err), errors.Is(err, ErrExecutionExists):
		logger.WarnContext(ctx, "dropping execution request", "error", err)

		return nil
	default:
		logger.ErrorContext(ctx, "execution request failed", "error", err)

		return err
	}
}
