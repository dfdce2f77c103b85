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

func setupDealTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewDealHandler(tc.DB, nil)

	r := chi.NewRouter()
	r.Route("/api/deals", func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
		r.Post("/{id}/move", handler.Move)
		r.Put("/{id}/move", handler.Move)
		r.Put("/{id}/stage", handler.Move)
	})

	return r, tc
}

func TestDealHandler_Create(t *testing.T) {
	router, tc := setupDealTestRouter(t)
	defer tc.Cleanup()

	pipeline := testutil.CreateTestPipeline(t, tc.DB, "Default Pipeline", true)
	customer := testutil.CreateTestCustomer(t, tc.DB, tc.User.ID)

	t.Run("title and stage are enough", func(t *testing.T) {
		body := map[string]interface{}{
			"title":             "Big Contract",
			"value":             50000,
			"pipeline_stage_id": pipeline.Stages[0].ID.String(),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var deal models.Deal
		testutil.ParseJSONResponse(t, rr, &deal)
		assert.Equal(t, models.DealStatusOpen, deal.Status)
		assert.Equal(t, pipeline.ID, deal.PipelineID)
		assert.Equal(t, pipeline.Stages[0].ID, deal.PipelineStageID)
		assert.Nil(t, deal.CustomerID)
		require.NotNil(t, deal.AssignedTo)
		assert.Equal(t, tc.User.ID, *deal.AssignedTo)
	})

	t.Run("links an optional customer and lead", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, tc.DB, tc.User.ID)
		body := map[string]interface{}{
			"title":             "Converted",
			"pipeline_stage_id": pipeline.Stages[0].ID.String(),
			"customer_id":       customer.ID.String(),
			"lead_id":           lead.ID.String(),
			"probability":       60,
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var deal models.Deal
		testutil.ParseJSONResponse(t, rr, &deal)
		require.NotNil(t, deal.CustomerID)
		assert.Equal(t, customer.ID, *deal.CustomerID)
		require.NotNil(t, deal.LeadID)
		assert.Equal(t, lead.ID, *deal.LeadID)
		assert.Equal(t, 60, deal.Probability)
	})

	t.Run("missing stage rejected", func(t *testing.T) {
		body := map[string]interface{}{
			"title": "No Stage",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var count int64
		tc.DB.Model(&models.Deal{}).Where("title = ?", "No Stage").Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("unknown stage rejected without a row", func(t *testing.T) {
		body := map[string]interface{}{
			"title":             "Ghost Stage",
			"pipeline_stage_id": "00000000-0000-0000-0000-000000000001",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var count int64
		tc.DB.Model(&models.Deal{}).Where("title = ?", "Ghost Stage").Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("unknown customer rejected", func(t *testing.T) {
		body := map[string]interface{}{
			"title":             "No Customer",
			"pipeline_stage_id": pipeline.Stages[0].ID.String(),
			"customer_id":       "00000000-0000-0000-0000-000000000001",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("negative value rejected", func(t *testing.T) {
		body := map[string]interface{}{
			"title":             "Negative",
			"value":             -100,
			"pipeline_stage_id": pipeline.Stages[0].ID.String(),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDealHandler_Update(t *testing.T) {
	router, tc := setupDealTestRouter(t)
	defer tc.Cleanup()

	pipeline := testutil.CreateTestPipeline(t, tc.DB, "Update Pipeline", true)
	customer := testutil.CreateTestCustomer(t, tc.DB, tc.User.ID)

	t.Run("marking won sets the close timestamp", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		body := map[string]interface{}{"status": models.DealStatusWon}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var updated models.Deal
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, models.DealStatusWon, updated.Status)
		assert.NotNil(t, updated.ClosedAt)
	})

	t.Run("reopening clears the close timestamp", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		body := map[string]interface{}{"status": models.DealStatusLost}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		body = map[string]interface{}{"status": models.DealStatusOpen}
		req = testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var updated models.Deal
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Nil(t, updated.ClosedAt)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		body := map[string]interface{}{"status": "paused"}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("stage change is re-validated", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		body := map[string]interface{}{"pipeline_stage_id": "00000000-0000-0000-0000-000000000001"}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		body = map[string]interface{}{"pipeline_stage_id": pipeline.Stages[2].ID.String()}
		req = testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var updated models.Deal
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, pipeline.Stages[2].ID, updated.PipelineStageID)
	})

	t.Run("non-assignee gets 403", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.Admin.ID)
		body := map[string]interface{}{"title": "Hijacked"}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestDealHandler_Move(t *testing.T) {
	router, tc := setupDealTestRouter(t)
	defer tc.Cleanup()

	pipeline := testutil.CreateTestPipeline(t, tc.DB, "Move Pipeline", true)
	customer := testutil.CreateTestCustomer(t, tc.DB, tc.User.ID)

	t.Run("board endpoint moves with stageId", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		target := pipeline.Stages[2]
		body := map[string]string{"stageId": target.ID.String()}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals/"+deal.ID.String()+"/move", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var moved models.Deal
		testutil.ParseJSONResponse(t, rr, &moved)
		assert.Equal(t, target.ID, moved.PipelineStageID)
	})

	t.Run("rest endpoint moves with pipeline_stage_id", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		target := pipeline.Stages[3]
		body := map[string]string{"pipeline_stage_id": target.ID.String()}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String()+"/stage", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var moved models.Deal
		testutil.ParseJSONResponse(t, rr, &moved)
		assert.Equal(t, target.ID, moved.PipelineStageID)
	})

	t.Run("put variant moves with stage_id", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		target := pipeline.Stages[1]
		body := map[string]string{"stage_id": target.ID.String()}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/deals/"+deal.ID.String()+"/move", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var moved models.Deal
		testutil.ParseJSONResponse(t, rr, &moved)
		assert.Equal(t, target.ID, moved.PipelineStageID)
	})

	t.Run("stage outside the deal's pipeline rejected", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		other := testutil.CreateTestPipeline(t, tc.DB, "Foreign Pipeline", false)
		body := map[string]string{"stageId": other.Stages[0].ID.String()}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals/"+deal.ID.String()+"/move", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing stage id rejected", func(t *testing.T) {
		deal := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		body := map[string]string{}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/deals/"+deal.ID.String()+"/move", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDealHandler_List(t *testing.T) {
	router, tc := setupDealTestRouter(t)
	defer tc.Cleanup()

	pipeline := testutil.CreateTestPipeline(t, tc.DB, "List Pipeline", true)
	customer := testutil.CreateTestCustomer(t, tc.DB, tc.User.ID)
	testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
	won := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
	require.NoError(t, tc.DB.Model(won).Update("status", models.DealStatusWon).Error)

	t.Run("filters by status", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/deals?status="+models.DealStatusWon, nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("filters by pipeline", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/deals?pipeline_id="+pipeline.ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(2), resp.Total)
	})

	t.Run("filters by title substring", func(t *testing.T) {
		named := testutil.CreateTestDeal(t, tc.DB, customer, pipeline, tc.User.ID)
		require.NoError(t, tc.DB.Model(named).Update("title", "Enterprise renewal").Error)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/deals?title=renewal", nil, tc.UserToken)
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
