package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/handlers"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/testutil"
)

func setupTaskTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewTaskHandler(tc.DB, nil)

	r := chi.NewRouter()
	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
		r.Post("/{id}/complete", handler.Complete)
		r.Post("/{id}/reopen", handler.Reopen)
		r.Post("/{id}/cancel", handler.Cancel)
	})

	return r, tc
}

func TestTaskHandler_Create(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	t.Run("creates a pending task", func(t *testing.T) {
		body := map[string]interface{}{
			"title":    "Call the customer",
			"priority": models.TaskPriorityHigh,
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var task models.Task
		testutil.ParseJSONResponse(t, rr, &task)
		assert.Equal(t, models.TaskStatusPending, task.Status)
		assert.Equal(t, models.TaskPriorityHigh, task.Priority)
		assert.Equal(t, tc.User.ID, task.CreatedBy)
	})

	t.Run("links the task to a lead", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, tc.DB, tc.User.ID)
		body := map[string]interface{}{
			"title":       "Follow up",
			"entity_type": string(models.EntityTypeLead),
			"entity_id":   lead.ID.String(),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var task models.Task
		testutil.ParseJSONResponse(t, rr, &task)
		assert.Equal(t, models.EntityTypeLead, task.EntityType)
		assert.Equal(t, lead.ID, task.EntityID)
	})

	t.Run("dangling entity reference rejected", func(t *testing.T) {
		body := map[string]interface{}{
			"title":       "Ghost entity",
			"entity_type": string(models.EntityTypeLead),
			"entity_id":   "00000000-0000-0000-0000-000000000001",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("entity type without id rejected", func(t *testing.T) {
		body := map[string]interface{}{
			"title":       "Half reference",
			"entity_type": string(models.EntityTypeDeal),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown assignee rejected", func(t *testing.T) {
		body := map[string]interface{}{
			"title":       "Orphan assignment",
			"assigned_to": "00000000-0000-0000-0000-000000000001",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTaskHandler_Transitions(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	t.Run("complete sets the completion timestamp", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.User.ID)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var done models.Task
		testutil.ParseJSONResponse(t, rr, &done)
		assert.Equal(t, models.TaskStatusCompleted, done.Status)
		assert.NotNil(t, done.CompletedAt)
	})

	t.Run("completing twice rejected", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.User.ID)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		req = testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("reopen a completed task", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.User.ID)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		req = testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/reopen", nil, tc.UserToken)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var reopened models.Task
		testutil.ParseJSONResponse(t, rr, &reopened)
		assert.Equal(t, models.TaskStatusInProgress, reopened.Status)
		assert.Nil(t, reopened.CompletedAt)
	})

	t.Run("reopening a pending task rejected", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.User.ID)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/reopen", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("canceling a completed task rejected", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.User.ID)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		req = testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/cancel", nil, tc.UserToken)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("assignee can transition without being the creator", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.Admin.ID)
		require.NoError(t, tc.DB.Model(task).Update("assigned_to", tc.User.ID).Error)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unrelated user gets 403", func(t *testing.T) {
		task := testutil.CreateTestTask(t, tc.DB, tc.Admin.ID)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/tasks/"+task.ID.String()+"/complete", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestTaskHandler_List(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	testutil.CreateTestTask(t, tc.DB, tc.User.ID)

	overdue := testutil.CreateTestTask(t, tc.DB, tc.User.ID)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, tc.DB.Model(overdue).Update("due_date", past).Error)

	done := testutil.CreateTestTask(t, tc.DB, tc.User.ID)
	require.NoError(t, tc.DB.Model(done).Update("status", models.TaskStatusCompleted).Error)

	call := testutil.CreateTestTask(t, tc.DB, tc.User.ID)
	require.NoError(t, tc.DB.Model(call).Update("task_type", "call").Error)

	t.Run("filters by status", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/tasks?status="+models.TaskStatusCompleted, nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("filters by task type", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/tasks?task_type=call", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("filters overdue tasks", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/tasks?overdue=true", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})
}
