package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/handlers"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/testutil"
)

func setupUserTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	handler := handlers.NewUserHandler(tc.DB)

	r := chi.NewRouter()
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.With(middleware.RequireRole(models.RoleAdmin)).Get("/", handler.List)
		r.With(middleware.RequireRole(models.RoleAdmin)).Post("/", handler.Create)
		r.Get("/me", handler.Me)
		r.Put("/me", handler.UpdateMe)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/{id}", handler.Delete)
		r.Put("/{id}/password", handler.ChangePassword)
	})

	return r, tc
}

func TestUserHandler_List(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("admin can list users", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/users", nil, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("regular user gets 403", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/users", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestUserHandler_Create(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("admin creates user with default role", func(t *testing.T) {
		body := map[string]string{
			"name":     "New Seller",
			"username": "newseller",
			"email":    "newseller@example.com",
			"password": "securepassword123",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/users", body, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var user models.User
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, models.RoleVendedor, user.Role)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		body := map[string]string{
			"name":     "Duplicate",
			"username": tc.User.Username,
			"email":    "otheremail@example.com",
			"password": "securepassword123",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/users", body, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		body := map[string]string{
			"name":     "Bad Role",
			"username": "badroleuser",
			"email":    "badroleuser@example.com",
			"password": "securepassword123",
			"role":     "root",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/users", body, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUserHandler_Get(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("user can get own profile", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/users/"+tc.User.ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("user cannot get another profile", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/users/"+tc.Admin.ID.String(), nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin can get any profile", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/users/"+tc.User.ID.String(), nil, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestUserHandler_Me(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("returns the caller's own profile", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/users/me", nil, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var user models.User
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, tc.User.ID, user.ID)
	})

	t.Run("updates the caller's own profile", func(t *testing.T) {
		body := map[string]string{"name": "Self Service"}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/me", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var user models.User
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "Self Service", user.Name)
		assert.Equal(t, tc.User.ID, user.ID)
	})
}

func TestUserHandler_Update(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("user updates own name", func(t *testing.T) {
		body := map[string]string{"name": "Renamed"}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.User.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var user models.User
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "Renamed", user.Name)
	})

	t.Run("non-admin cannot change own role", func(t *testing.T) {
		body := map[string]string{"role": models.RoleAdmin}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.User.ID.String(), body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin changes another user's role", func(t *testing.T) {
		body := map[string]string{"role": models.RoleSuporte}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.User.ID.String(), body, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var user models.User
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, models.RoleSuporte, user.Role)
	})
}

func TestUserHandler_Delete(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("admin cannot delete own account", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/users/"+tc.Admin.ID.String(), nil, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("admin deletes another user", func(t *testing.T) {
		victim := testutil.CreateTestUser(t, tc.DB, models.RoleVendedor)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/users/"+victim.ID.String(), nil, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var count int64
		tc.DB.Model(&models.User{}).Where("id = ?", victim.ID).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("unknown user returns 404", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/users/00000000-0000-0000-0000-000000000001", nil, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestUserHandler_ChangePassword(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	defer tc.Cleanup()

	t.Run("requires correct current password", func(t *testing.T) {
		body := map[string]string{
			"current_password": "wrongpassword",
			"new_password":     "brandnewpassword",
		}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.User.ID.String()+"/password", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("user changes own password", func(t *testing.T) {
		body := map[string]string{
			"current_password": "testpassword123",
			"new_password":     "brandnewpassword",
		}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.User.ID.String()+"/password", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("admin resets without current password", func(t *testing.T) {
		target := testutil.CreateTestUser(t, tc.DB, models.RoleVendedor)
		body := map[string]string{
			"new_password": "resetbyadmin123",
		}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+target.ID.String()+"/password", body, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("admin changing own password still needs current", func(t *testing.T) {
		body := map[string]string{
			"current_password": "wrongpassword",
			"new_password":     "adminnewpassword",
		}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.Admin.ID.String()+"/password", body, tc.AdminToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("short new password rejected", func(t *testing.T) {
		body := map[string]string{
			"current_password": "testpassword123",
			"new_password":     "short",
		}

		req := testutil.AuthenticatedRequest(t, "PUT", "/api/users/"+tc.User.ID.String()+"/password", body, tc.UserToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
