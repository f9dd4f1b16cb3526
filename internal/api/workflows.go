// Package api contains the HTTP handlers for the workflow engine
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"fundops/backend/internal/logging"
	"fundops/backend/internal/services"
)

// Server holds the dependencies for the API server.
type Server struct {
	Templates services.TemplateManager
	Workflows services.WorkflowEngine
	validate  *validator.Validate
	logger    *logging.Logger
}

// NewServer creates a new Server.
func NewServer(templates services.TemplateManager, workflows services.WorkflowEngine, logger *logging.Logger) *Server {
	return &Server{
		Templates: templates,
		Workflows: workflows,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// RegisterHandlers mounts the workflow routes on g (normally /api/v1).
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.POST("/workflows", s.CreateWorkflow)
	g.GET("/workflows/:id", s.GetWorkflow)
	g.DELETE("/workflows/:id", s.DeleteWorkflow)
	g.POST("/workflows/:id/instantiate", s.InstantiateWorkflow)

	g.GET("/workflow-instances", s.ListInstances)
	g.POST("/workflow-instances/release", s.ReleaseEntity)
	g.GET("/workflow-instances/:id", s.GetInstance)
	g.PUT("/workflow-instances/:id", s.UpdateInstance)
	g.DELETE("/workflow-instances/:id", s.DeleteInstance)
	g.PATCH("/workflow-instances/:id/cancel", s.CancelInstance)
	g.PATCH("/workflow-instances/:id/steps/:stepId/complete", s.CompleteStep)
	g.PUT("/workflow-instances/:id/steps/:stepId/undo", s.UndoStep)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, c.Param(name))
	}
	return id, nil
}

func queryID(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return &id, nil
}

// bind decodes the body into v and validates it.
func (s *Server) bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return errors.New(validationDetail(err))
	}
	return nil
}

// ListWorkflows returns every workflow template
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	tpls, err := s.Templates.ListTemplates(c.Request().Context())
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tpls)
}

// CreateWorkflow creates a workflow template
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	var req CreateTemplateRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	tpl, err := s.Templates.CreateTemplate(c.Request().Context(), req.toModel())
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

// GetWorkflow returns one template with its steps
// (GET /api/v1/workflows/{id})
func (s *Server) GetWorkflow(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	tpl, err := s.Templates.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tpl)
}

// DeleteWorkflow deletes a template without instances
// (DELETE /api/v1/workflows/{id})
func (s *Server) DeleteWorkflow(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.Templates.DeleteTemplate(c.Request().Context(), id); err != nil {
		return s.handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// InstantiateWorkflow creates an instance from a template
// (POST /api/v1/workflows/{id}/instantiate)
func (s *Server) InstantiateWorkflow(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req InstantiateRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	inst, err := s.Workflows.Instantiate(c.Request().Context(), req.toService(id))
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, newInstanceResponse(inst))
}

// ListInstances returns reconciled instances
// (GET /api/v1/workflow-instances)
func (s *Server) ListInstances(c echo.Context) error {
	q := ListInstancesQuery{Status: c.QueryParam("status")}
	var err error
	if q.WorkflowID, err = queryID(c, "workflow_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if q.InvestmentID, err = queryID(c, "investment_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if q.CompanyID, err = queryID(c, "company_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if q.FundID, err = queryID(c, "fund_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if q.GPEntityID, err = queryID(c, "gp_entity_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.validate.Struct(q); err != nil {
		return badRequest(c, validationDetail(err))
	}

	list, err := s.Workflows.ListInstances(c.Request().Context(), services.ListInstancesRequest{
		Status:     q.Status,
		Links:      q.links(),
		WorkflowID: q.WorkflowID,
	})
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, newInstanceList(list))
}

// GetInstance returns one reconciled instance
// (GET /api/v1/workflow-instances/{id})
func (s *Server) GetInstance(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	inst, err := s.Workflows.GetInstance(c.Request().Context(), id)
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, newInstanceResponse(inst))
}

// UpdateInstance renames or retargets an active instance
// (PUT /api/v1/workflow-instances/{id})
func (s *Server) UpdateInstance(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req UpdateInstanceRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	inst, err := s.Workflows.UpdateInstance(c.Request().Context(), id, req.toService())
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, newInstanceResponse(inst))
}

// CompleteStep completes a step instance
// (PATCH /api/v1/workflow-instances/{id}/steps/{stepId}/complete)
func (s *Server) CompleteStep(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	stepID, err := pathID(c, "stepId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req CompleteStepRequest
	if c.Request().ContentLength != 0 {
		if err := s.bind(c, &req); err != nil {
			return badRequest(c, err.Error())
		}
	}
	inst, err := s.Workflows.CompleteStep(c.Request().Context(), id, stepID, services.CompleteStepRequest{
		ActualTime: req.ActualTime,
		Notes:      req.Notes,
	})
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, newInstanceResponse(inst))
}

// UndoStep reverts a completed step instance
// (PUT /api/v1/workflow-instances/{id}/steps/{stepId}/undo)
func (s *Server) UndoStep(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	stepID, err := pathID(c, "stepId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	inst, err := s.Workflows.UndoStep(c.Request().Context(), id, stepID)
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, newInstanceResponse(inst))
}

// CancelInstance cancels an instance
// (PATCH /api/v1/workflow-instances/{id}/cancel)
func (s *Server) CancelInstance(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	inst, err := s.Workflows.CancelInstance(c.Request().Context(), id)
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, newInstanceResponse(inst))
}

// DeleteInstance deletes an active instance
// (DELETE /api/v1/workflow-instances/{id})
func (s *Server) DeleteInstance(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.Workflows.DeleteInstance(c.Request().Context(), id); err != nil {
		return s.handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReleaseEntity deletes or detaches the instances linked to an entity that
// is about to be deleted
// (POST /api/v1/workflow-instances/release)
func (s *Server) ReleaseEntity(c echo.Context) error {
	var req ReleaseEntityRequest
	if err := s.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := s.Workflows.ReleaseEntity(c.Request().Context(), services.EntityKind(req.Kind), req.ID)
	if err != nil {
		return s.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
