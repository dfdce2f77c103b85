//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/douglas-germano/advantage-crm-backend/internal/auth"
	"github.com/douglas-germano/advantage-crm-backend/internal/database"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/pkg/config"
	"github.com/douglas-germano/advantage-crm-backend/pkg/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	username := os.Getenv("ADMIN_USERNAME")
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if username == "" {
		username = "admin"
	}
	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	resp, err := authService.Register(context.Background(), auth.RegisterInput{
		Name:     name,
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err == auth.ErrUserExists {
		fmt.Println("admin user already exists, skipping")
	} else if err != nil {
		log.Fatalf("failed to create admin user: %v", err)
	} else {
		fmt.Printf("created admin user %s (%s)\n", resp.User.Username, resp.User.Email)
	}

	// Seed a default pipeline with the standard stages
	var pipeline models.Pipeline
	err = db.Where("is_default = ?", true).First(&pipeline).Error
	if err != nil {
		pipeline = models.Pipeline{
			Name:      "Sales Pipeline",
			IsDefault: true,
			Active:    true,
		}
		if err := db.Create(&pipeline).Error; err != nil {
			log.Fatalf("failed to create default pipeline: %v", err)
		}
		stages := models.DefaultStages(pipeline.ID)
		if err := db.Create(&stages).Error; err != nil {
			log.Fatalf("failed to create default stages: %v", err)
		}
		fmt.Printf("created default pipeline %q with %d stages\n", pipeline.Name, len(stages))
	} else {
		fmt.Println("default pipeline already exists, skipping")
	}
}
