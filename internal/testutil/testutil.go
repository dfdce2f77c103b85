package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/douglas-germano/advantage-crm-backend/internal/auth"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Customer{},
		&models.CustomField{},
		&models.CustomFieldValue{},
		&models.Pipeline{},
		&models.PipelineStage{},
		&models.Deal{},
		&models.Task{},
		&models.Communication{},
		&models.Document{},
		&models.Workflow{},
		&models.WorkflowAction{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestUser creates a user with the given role
func CreateTestUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	suffix := uuid.New().String()[:8]
	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:         "Test User",
		Username:     "testuser-" + suffix,
		Email:        "test-" + suffix + "@example.com",
		PasswordHash: hash,
		Role:         role,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// CreateTestLead creates a lead owned by the given user
func CreateTestLead(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		Base: models.Base{
			ID: uuid.New(),
		},
		Nome:      "Maria Silva",
		Email:     "maria-" + uuid.New().String()[:8] + "@example.com",
		Empresa:   "Acme Ltda",
		Origem:    "site",
		Status:    models.LeadStatusNovo,
		UsuarioID: ownerID,
	}

	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("failed to create test lead: %v", err)
	}

	return lead
}

// CreateTestCustomer creates a customer assigned to the given user
func CreateTestCustomer(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:       "Cliente Teste",
		Email:      "cliente-" + uuid.New().String()[:8] + "@example.com",
		Status:     models.CustomerStatusLead,
		AssignedTo: ownerID,
	}

	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("failed to create test customer: %v", err)
	}

	return customer
}

// CreateTestPipeline creates a pipeline with the standard stage set
func CreateTestPipeline(t *testing.T, db *gorm.DB, name string, isDefault bool) *models.Pipeline {
	t.Helper()

	pipeline := &models.Pipeline{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:      name,
		IsDefault: isDefault,
		Active:    true,
	}

	if err := db.Create(pipeline).Error; err != nil {
		t.Fatalf("failed to create test pipeline: %v", err)
	}

	stages := models.DefaultStages(pipeline.ID)
	if err := db.Create(&stages).Error; err != nil {
		t.Fatalf("failed to create test stages: %v", err)
	}
	pipeline.Stages = stages

	return pipeline
}

// CreateTestDeal creates an open deal on the pipeline's first stage
func CreateTestDeal(t *testing.T, db *gorm.DB, customer *models.Customer, pipeline *models.Pipeline, ownerID uuid.UUID) *models.Deal {
	t.Helper()

	if len(pipeline.Stages) == 0 {
		t.Fatalf("pipeline %s has no stages", pipeline.Name)
	}

	deal := &models.Deal{
		Base: models.Base{
			ID: uuid.New(),
		},
		Title:           "Test Deal",
		Value:           1000,
		Status:          models.DealStatusOpen,
		CustomerID:      &customer.ID,
		PipelineID:      pipeline.ID,
		PipelineStageID: pipeline.Stages[0].ID,
		AssignedTo:      &ownerID,
	}

	if err := db.Create(deal).Error; err != nil {
		t.Fatalf("failed to create test deal: %v", err)
	}

	return deal
}

// CreateTestTask creates a pending task created by the given user
func CreateTestTask(t *testing.T, db *gorm.DB, creatorID uuid.UUID) *models.Task {
	t.Helper()

	task := &models.Task{
		Base: models.Base{
			ID: uuid.New(),
		},
		Title:     "Test Task",
		Status:    models.TaskStatusPending,
		Priority:  models.TaskPriorityMedium,
		CreatedBy: creatorID,
	}

	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}

	return task
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Admin      *models.User
	User       *models.User
	AdminToken string
	UserToken  string
}

// NewTestContext creates a complete test setup with DB, users and tokens
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	admin := CreateTestUser(t, db, models.RoleAdmin)
	user := CreateTestUser(t, db, models.RoleVendedor)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Admin:      admin,
		User:       user,
		AdminToken: GenerateTestToken(t, jwtService, admin),
		UserToken:  GenerateTestToken(t, jwtService, user),
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
