package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/handlers"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/testutil"
)

func setupPipelineTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewPipelineHandler(tc.DB)

	r := chi.NewRouter()
	r.Route("/api/pipelines", func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/default", handler.Default)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
		r.Get("/{id}/stages", handler.Stages)
		r.Post("/{id}/stages", handler.AddStage)
		r.Put("/{id}/stages/{stageID}", handler.UpdateStage)
		r.Delete("/{id}/stages/{stageID}", handler.DeleteStage)
	})

	return r, tc
}

func TestPipelineHandler_Create(t *testing.T) {
	router, tc := setupPipelineTestRouter(t)
	defer tc.Cleanup()

	t.Run("seeds the standard stages", func(t *testing.T) {
		body := map[string]interface{}{"name": "Vendas 2026", "is_default": true}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/pipelines", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var pipeline models.Pipeline
		testutil.ParseJSONResponse(t, rr, &pipeline)
		require.Len(t, pipeline.Stages, 6)
		assert.Equal(t, "Prospect", pipeline.Stages[0].Name)
		assert.Equal(t, "Closed Lost", pipeline.Stages[5].Name)
		assert.True(t, pipeline.Stages[0].IsSystem)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		body := map[string]interface{}{"name": "Vendas 2026"}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/pipelines", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("new default unsets the previous one", func(t *testing.T) {
		body := map[string]interface{}{"name": "Parcerias", "is_default": true}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/pipelines", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		var count int64
		tc.DB.Model(&models.Pipeline{}).Where("is_default = ?", true).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestPipelineHandler_Default(t *testing.T) {
	t.Run("no pipelines returns 404", func(t *testing.T) {
		router, tc := setupPipelineTestRouter(t)
		defer tc.Cleanup()

		req := testutil.AuthenticatedRequest(t, "GET", "/api/pipelines/default", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("returns the flagged default", func(t *testing.T) {
		router, tc := setupPipelineTestRouter(t)
		defer tc.Cleanup()

		testutil.CreateTestPipeline(t, tc.DB, "Secondary", false)
		def := testutil.CreateTestPipeline(t, tc.DB, "Primary", true)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/pipelines/default", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var pipeline models.Pipeline
		testutil.ParseJSONResponse(t, rr, &pipeline)
		assert.Equal(t, def.ID, pipeline.ID)
	})

	t.Run("falls back to the oldest pipeline", func(t *testing.T) {
		router, tc := setupPipelineTestRouter(t)
		defer tc.Cleanup()

		first := testutil.CreateTestPipeline(t, tc.DB, "First", false)
		testutil.CreateTestPipeline(t, tc.DB, "Second", false)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/pipelines/default", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var pipeline models.Pipeline
		testutil.ParseJSONResponse(t, rr, &pipeline)
		assert.Equal(t, first.ID, pipeline.ID)
	})
}

func TestPipelineHandler_Delete(t *testing.T) {
	router, tc := setupPipelineTestRouter(t)
	defer tc.Cleanup()

	t.Run("deletes an empty pipeline with its stages", func(t *testing.T) {
		pipeline := testutil.CreateTestPipeline(t, tc.DB, "Disposable", false)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/pipelines/"+pipeline.ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var stageCount int64
		tc.DB.Model(&models.PipelineStage{}).Where("pipeline_id = ?", pipeline.ID).Count(&stageCount)
		assert.Equal(t, int64(0), stageCount)
	})

	t.Run("pipeline with deals conflicts", func(t *testing.T) {
		pipeline := testutil.CreateTestPipeline(t, tc.DB, "Busy", false)
		customer := testutil.CreateTestCustomer(t, tc.DB, tc.User.ID)
		testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/pipelines/"+pipeline.ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestPipelineHandler_Stages(t *testing.T) {
	router, tc := setupPipelineTestRouter(t)
	defer tc.Cleanup()

	pipeline := testutil.CreateTestPipeline(t, tc.DB, "Staged", false)

	t.Run("appends a stage after the existing ones", func(t *testing.T) {
		body := map[string]interface{}{"name": "Follow-up", "color": "#00BCD4"}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/pipelines/"+pipeline.ID.String()+"/stages", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var stage models.PipelineStage
		testutil.ParseJSONResponse(t, rr, &stage)
		assert.Equal(t, 7, stage.Order)
		assert.False(t, stage.IsSystem)
	})

	t.Run("lists stages in order", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/pipelines/"+pipeline.ID.String()+"/stages", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var stages []models.PipelineStage
		testutil.ParseJSONResponse(t, rr, &stages)
		require.Len(t, stages, 7)
		assert.Equal(t, "Prospect", stages[0].Name)
		assert.Equal(t, "Follow-up", stages[6].Name)
	})

	t.Run("stages of unknown pipeline return 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/pipelines/00000000-0000-0000-0000-000000000001/stages", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("system stage cannot be deleted", func(t *testing.T) {
		stageID := pipeline.Stages[0].ID

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/pipelines/"+pipeline.ID.String()+"/stages/"+stageID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("stage with deals cannot be deleted", func(t *testing.T) {
		var custom models.PipelineStage
		require.NoError(t, tc.DB.First(&custom, "pipeline_id = ? AND is_system = ?", pipeline.ID, false).Error)

		customer := testutil.CreateTestCustomer(t, tc.DB, tc.User.ID)
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		require.NoError(t, tc.DB.Model(deal).Update("pipeline_stage_id", custom.ID).Error)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/pipelines/"+pipeline.ID.String()+"/stages/"+custom.ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("updates a stage", func(t *testing.T) {
		stageID := pipeline.Stages[1].ID
		body := map[string]interface{}{"name": "Triage", "color": "#607D8B"}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/pipelines/"+pipeline.ID.String()+"/stages/"+stageID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var stage models.PipelineStage
		testutil.ParseJSONResponse(t, rr, &stage)
		assert.Equal(t, "Triage", stage.Name)
		assert.Equal(t, "#607D8B", stage.Color)
	})

	t.Run("stage from another pipeline returns 404", func(t *testing.T) {
		other := testutil.CreateTestPipeline(t, tc.DB, "Other", false)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/pipelines/"+pipeline.ID.String()+"/stages/"+other.Stages[0].ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
