package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sicko7947/agentflow"
)

// ExecuteRequest is the body of POST /workflows/execute.
type ExecuteRequest struct {
	Definition           json.RawMessage   `json:"definition"           validate:"required"`
	Input                map[string]any    `json:"input"`
	Async                bool              `json:"async"`
	RunTimeoutMs         int64             `json:"runTimeoutMs"         validate:"gte=0"`
	DefaultStepTimeoutMs int64             `json:"defaultStepTimeoutMs" validate:"gte=0"`
	Tags                 map[string]string `json:"tags"`
}

func (h *ExecuteRequest) options() []agentflow.ExecuteOption {
	var opts []agentflow.ExecuteOption
	if h.RunTimeoutMs > 0 {
		opts = append(opts, agentflow.WithRunTimeout(time.Duration(h.RunTimeoutMs)*time.Millisecond))
	}
	if h.DefaultStepTimeoutMs > 0 {
		opts = append(opts, agentflow.WithDefaultStepTimeout(time.Duration(h.DefaultStepTimeoutMs)*time.Millisecond))
	}
	if len(h.Tags) > 0 {
		opts = append(opts, agentflow.WithTags(h.Tags))
	}
	return opts
}

func (a *API) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := a.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := agentflow.ParseDefinition(req.Definition)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if req.Async {
		runID, err := a.engine.StartWorkflow(c.Context(), def, req.Input, req.options()...)
		if err != nil {
			return badRequest(c, err.Error())
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"run_id": runID,
			"status": agentflow.RunStatusRunning,
		})
	}

	result, err := a.engine.ExecuteWorkflow(c.Context(), def, req.Input, req.options()...)
	if result == nil {
		// Definition rejected before the run started
		return badRequest(c, err.Error())
	}

	// Aborted and failed runs still return the structured result; the
	// status and error map carry the failure detail.
	return c.JSON(result)
}

func (a *API) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := a.monitor.GetRun(c.Context(), id)
	if err != nil {
		return notFound(c, "Run not found")
	}

	return c.JSON(run)
}

func (a *API) ListRuns(c fiber.Ctx) error {
	filter := agentflow.RunFilter{
		WorkflowName: c.Query("workflow"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := agentflow.RunStatus(statusStr)
		filter.Status = &status
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}
		filter.Limit = limit
	}

	runs, err := a.monitor.ListRuns(c.Context(), filter)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

func (a *API) ListRunSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	if _, err := a.monitor.GetRun(c.Context(), id); err != nil {
		return notFound(c, "Run not found")
	}

	steps, err := a.monitor.ListStepExecutions(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"run_id": id,
		"steps":  steps,
	})
}

func (a *API) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	if err := a.engine.Cancel(id); err != nil {
		return notFound(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"run_id":    id,
		"cancelled": true,
	})
}
