package workflow

import (
	"context"

	"github.com/dukex/autoflow/pkg/models"
)

// TestReport is the user-facing summary of a manual test run.
type TestReport struct {
	Success         bool                      `json:"success"`
	ActionsExecuted int                       `json:"actions_executed"`
	Execution       *models.WorkflowExecution `json:"execution"`
}

// Test runs the workflow with is_test set, so every delay resolves inline.
func (c *Coordinator) Test(ctx context.Context, workflowID string, testCtx models.ExecutionContext) (*TestReport, error) {
	execCtx := testCtx.WithoutResume().Merge(map[string]any{models.ContextKeyIsTest: true})

	execution, err := c.Run(ctx, workflowID, execCtx, WithTriggerType(models.TriggerTypeManual))
	if err != nil {
		return nil, err
	}

	return &TestReport{
		Success:         execution.Status == models.ExecutionStatusCompleted,
		ActionsExecuted: execution.CountCompleted(models.StepTypeAction),
		Execution:       execution,
	}, nil
}
