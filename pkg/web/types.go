// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import "github.com/dukex/autoflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string                `json:"name"        validate:"required,min=3"`
	Description string                `json:"description"`
	Status      models.WorkflowStatus `json:"status"      validate:"omitempty,oneof=active inactive"`
	Owner       string                `json:"owner"`
	Steps       []*models.Step        `json:"steps"       validate:"dive,required"`
}

// UpdateWorkflowRequest replaces the definition of a workflow. An empty status keeps the current one.
type UpdateWorkflowRequest struct {
	Name        string                `json:"name"        validate:"required,min=3"`
	Description string                `json:"description"`
	Status      models.WorkflowStatus `json:"status"      validate:"omitempty,oneof=active inactive"`
	Owner       string                `json:"owner"`
	Steps       []*models.Step        `json:"steps"       validate:"dive,required"`
}

// RunWorkflowRequest carries the execution context of a manual or test run.
type RunWorkflowRequest struct {
	Context map[string]any `json:"context"`
}

// JobStatusChangeRequest is a job status change reported by the host application.
type JobStatusChangeRequest struct {
	Job        map[string]any `json:"job"         validate:"required"`
	FromStatus string         `json:"from_status"`
	ToStatus   string         `json:"to_status"   validate:"required"`
	Client     map[string]any `json:"client"`
	UserID     string         `json:"user_id"`
}

func (r CreateWorkflowRequest) toWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Owner:       r.Owner,
		Steps:       r.Steps,
	}
}

func (r UpdateWorkflowRequest) toWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Owner:       r.Owner,
		Steps:       r.Steps,
	}
}
