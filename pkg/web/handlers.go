package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/triggers"
	"github.com/dukex/autoflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// APIHandlers holds the HTTP handlers of the workflow API.
type APIHandlers struct {
	repository  *workflow.Repository
	coordinator *workflow.Coordinator
	router      *triggers.Router
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewAPIHandlers creates the handlers.
func NewAPIHandlers(
	repository *workflow.Repository,
	coordinator *workflow.Coordinator,
	router *triggers.Router,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		repository:  repository,
		coordinator: coordinator,
		router:      router,
		validator:   validator,
		logger:      logger.With("module", "api_handlers"),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.repository.Create(c.Context(), req.toWorkflow())
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.repository.Update(c.Context(), id, req.toWorkflow())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.repository.Delete(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RunWorkflow executes the workflow synchronously. Long delays still pause
// the execution; the response then shows it as paused.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	req, err := h.parseRunRequest(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	execCtx := models.ExecutionContext(req.Context).WithoutResume()

	execution, err := h.coordinator.Run(c.Context(), c.Params("id"), execCtx,
		workflow.WithTriggerType(models.TriggerTypeManual),
	)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) TestWorkflow(c fiber.Ctx) error {
	req, err := h.parseRunRequest(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	report, err := h.coordinator.Test(c.Context(), c.Params("id"), models.ExecutionContext(req.Context))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) parseRunRequest(c fiber.Ctx) (*RunWorkflowRequest, error) {
	req := &RunWorkflowRequest{}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(req); err != nil {
			return nil, err
		}
	}

	if req.Context == nil {
		req.Context = map[string]any{}
	}

	return req, nil
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	executions, err := h.repository.Executions(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.repository.Execution(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) JobStatusChanged(c fiber.Ctx) error {
	var req JobStatusChangeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	requests, err := h.router.OnJobStatusChanged(c.Context(), triggers.JobStatusChange{
		Job:        req.Job,
		FromStatus: req.FromStatus,
		ToStatus:   req.ToStatus,
		Client:     req.Client,
		UserID:     req.UserID,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"requests": requests})
}

// TriggerEvent accepts any supported business event, e.g. POST /events/invoice_overdue.
func (h *APIHandlers) TriggerEvent(c fiber.Ctx) error {
	var data map[string]any
	if err := c.Bind().JSON(&data); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	requests, err := h.router.OnEvent(c.Context(), c.Params("triggerType"), data)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"requests": requests})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Autoflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Autoflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Register mounts every handler on app.
func (h *APIHandlers) Register(app *fiber.App) {
	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/run", h.RunWorkflow)
	w.Post("/:id/test", h.TestWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)

	app.Get("/executions/:id", h.GetExecution)

	e := app.Group("/events")
	e.Post("/job-status", h.JobStatusChanged)
	e.Post("/:triggerType", h.TriggerEvent)

	app.Get("/health", h.HealthCheck)
}
