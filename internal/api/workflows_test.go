package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundops/backend/internal/logging"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/services"
	"fundops/backend/pkg/models"
)

type testAPI struct {
	e     *echo.Echo
	store *repository.MemoryStore
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC))
	logger := logging.NewWithWriter(&bytes.Buffer{}, "error")

	srv := NewServer(
		services.NewTemplateService(store, logger, clk),
		services.NewWorkflowService(store, logger, services.WithClock(clk)),
		logger,
	)
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(e)
	RegisterHandlers(e.Group("/api/v1"), srv)
	e.GET("/health", echo.WrapHandler(http.HandlerFunc(NewHandler(store, clk, "test").HandleHealth)))
	e.GET("/openapi.yaml", echo.WrapHandler(SpecHandler("")))
	return &testAPI{e: e, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type problem struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createTemplate(t *testing.T) models.WorkflowTemplate {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/workflows", CreateTemplateRequest{
		Name:     "투자심의 절차",
		Category: "투자",
		Steps: []CreateStepRequest{
			{Order: 1, Name: "사전 검토", Timing: "D-7", TimingOffsetDays: -7},
			{Order: 2, Name: "투자심의위원회", Timing: "D-day"},
			{Order: 3, Name: "결과 통보", Timing: "D+2", TimingOffsetDays: 2},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.WorkflowTemplate](t, rec)
}

func (a *testAPI) instantiate(t *testing.T, workflowID int64) InstanceResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/workflows/%d/instantiate", workflowID),
		map[string]any{"name": "A사 투자", "trigger_date": "2025-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[InstanceResponse](t, rec)
}

func TestInstantiateEndpoint(t *testing.T) {
	a := setupTestAPI(t)
	tpl := a.createTemplate(t)
	inst := a.instantiate(t, tpl.ID)

	assert.Equal(t, "0/3", inst.Progress)
	assert.Equal(t, models.InstanceStatusActive, inst.Status)
	require.Len(t, inst.Steps, 3)
	assert.Equal(t, "2025-03-03", inst.Steps[0].CalculatedDate.String())
	assert.Equal(t, "2025-03-10", inst.Steps[1].CalculatedDate.String())
	assert.Equal(t, "2025-03-12", inst.Steps[2].CalculatedDate.String())
	assert.Equal(t, models.StepStatusInProgress, inst.Steps[0].Status)
	assert.Equal(t, "사전 검토", inst.Steps[0].StepName)
}

func TestInstantiateEndpointValidation(t *testing.T) {
	a := setupTestAPI(t)
	tpl := a.createTemplate(t)
	path := fmt.Sprintf("/api/v1/workflows/%d/instantiate", tpl.ID)

	tests := []struct {
		name     string
		path     string
		body     any
		status   int
		wantType string
	}{
		{"missing name", path, map[string]any{"trigger_date": "2025-03-10"}, http.StatusBadRequest, "validation_error"},
		{"missing trigger date", path, map[string]any{"name": "x"}, http.StatusBadRequest, "validation_error"},
		{"bad date", path, map[string]any{"name": "x", "trigger_date": "10/03/2025"}, http.StatusBadRequest, "validation_error"},
		{"gp with fund", path, map[string]any{"name": "x", "trigger_date": "2025-03-10", "gp_entity_id": 1, "fund_id": 2}, http.StatusBadRequest, "validation_error"},
		{"unknown template", "/api/v1/workflows/9999/instantiate", map[string]any{"name": "x", "trigger_date": "2025-03-10"}, http.StatusNotFound, "not_found"},
		{"bad id", "/api/v1/workflows/abc/instantiate", map[string]any{"name": "x", "trigger_date": "2025-03-10"}, http.StatusBadRequest, "validation_error"},
		{"notice override out of range", path, map[string]any{"name": "x", "trigger_date": "2025-03-10",
			"notice_overrides": []map[string]any{{"notice_type": "assembly", "business_days": 366}}}, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
			p := decode[problem](t, rec)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.status, p.Status)
		})
	}
}

func TestStepLifecycleEndpoints(t *testing.T) {
	a := setupTestAPI(t)
	tpl := a.createTemplate(t)
	inst := a.instantiate(t, tpl.ID)
	base := fmt.Sprintf("/api/v1/workflow-instances/%d", inst.ID)
	s1, s3 := inst.Steps[0].ID, inst.Steps[2].ID

	rec := a.do(t, http.MethodPatch, fmt.Sprintf("%s/steps/%d/complete", base, s3), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decode[problem](t, rec).Type)

	rec = a.do(t, http.MethodPatch, fmt.Sprintf("%s/steps/%d/complete", base, s1), CompleteStepRequest{ActualTime: "1h", Notes: "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[InstanceResponse](t, rec)
	assert.Equal(t, "1/3", got.Progress)
	assert.Equal(t, "1h", got.Steps[0].ActualTime)
	assert.Equal(t, models.StepStatusInProgress, got.Steps[1].Status)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("%s/steps/%d/undo", base, s1), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[InstanceResponse](t, rec)
	assert.Equal(t, "0/3", got.Progress)
	assert.Equal(t, models.StepStatusPending, got.Steps[0].Status)

	rec = a.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, inst.ID, decode[InstanceResponse](t, rec).ID)

	rec = a.do(t, http.MethodPatch, base+"/steps/999999/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCancelDeleteEndpoints(t *testing.T) {
	a := setupTestAPI(t)
	tpl := a.createTemplate(t)
	inst := a.instantiate(t, tpl.ID)
	base := fmt.Sprintf("/api/v1/workflow-instances/%d", inst.ID)

	rec := a.do(t, http.MethodPut, base, map[string]any{"name": "B사 투자", "trigger_date": "2025-03-17"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[InstanceResponse](t, rec)
	assert.Equal(t, "B사 투자", got.Name)
	assert.Equal(t, "2025-03-17", got.TriggerDate.String())
	assert.Equal(t, "2025-03-10", got.Steps[0].CalculatedDate.String())

	rec = a.do(t, http.MethodPatch, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.InstanceStatusCancelled, decode[InstanceResponse](t, rec).Status)

	rec = a.do(t, http.MethodGet, "/api/v1/workflow-instances?status=cancelled", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]InstanceResponse](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/v1/workflow-instances?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]InstanceResponse](t, rec))

	rec = a.do(t, http.MethodGet, "/api/v1/workflow-instances?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/workflow-instances?fund_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Cancelled instances are history and cannot be deleted directly.
	rec = a.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decode[problem](t, rec).Type)

	rec = a.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	active := a.instantiate(t, tpl.ID)
	activePath := fmt.Sprintf("/api/v1/workflow-instances/%d", active.ID)
	rec = a.do(t, http.MethodDelete, activePath, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, activePath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/workflows/%d", tpl.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseEndpoint(t *testing.T) {
	a := setupTestAPI(t)
	fund := &models.Fund{Name: "1호 조합", Status: models.FundStatusActive}
	require.NoError(t, a.store.CreateFund(context.Background(), fund))
	tpl := a.createTemplate(t)

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/workflows/%d/instantiate", tpl.ID),
		map[string]any{"name": "조합 업무", "trigger_date": "2025-03-10", "fund_id": fund.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inst := decode[InstanceResponse](t, rec)

	rec = a.do(t, http.MethodPost, "/api/v1/workflow-instances/release", map[string]any{"kind": "lp", "id": fund.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/workflow-instances/release", map[string]any{"kind": "fund", "id": fund.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[services.ReleaseResult](t, rec)
	assert.Equal(t, []int64{inst.ID}, res.Deleted)
	assert.Empty(t, res.Detached)
}

func TestTemplateEndpoints(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"name": "빈 절차", "steps": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tpl := a.createTemplate(t)
	a.instantiate(t, tpl.ID)

	rec = a.do(t, http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.WorkflowTemplate](t, rec), 1)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/workflows/%d", tpl.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.WorkflowTemplate](t, rec).Steps, 3)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/workflows/%d", tpl.ID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decode[problem](t, rec).Type)
}

func TestHealthAndOpenAPI(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[models.HealthStatus](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Checks["database"])

	rec = a.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http://example.com/api/v1"))

	rec = a.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
}
