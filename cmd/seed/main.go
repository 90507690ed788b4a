// Seeding tool for local development: creates a pending student record and
// a few catalog entries.
//
// Usage (env overrides):
//
//	SEED_STUDENT_ID=123456 SEED_STUDENT_USERNAME=testuser go run ./cmd/seed
package main

import (
	"context"
	"os"
	"strconv"

	"lecturegate/internal/domain"
	"lecturegate/internal/repository/postgres"
	"lecturegate/pkg/config"
	"lecturegate/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("lecturegate-seed")
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required", nil)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	ctx := context.Background()
	studentRepo := postgres.NewStudentRepository(db)
	contentRepo := postgres.NewContentRepository(db)

	studentID := getInt64("SEED_STUDENT_ID", 100001)
	username := getenv("SEED_STUDENT_USERNAME", "testuser")
	if err := studentRepo.EnsureExists(ctx, studentID, username); err != nil {
		log.Fatal("Failed to seed student", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Seeded student", map[string]interface{}{
		"id":       studentID,
		"username": username,
	})

	items := []domain.ContentItem{
		{Key: "1", Title: "Lecture 1 — Introduction", URLs: []string{"https://videos.example.com/lecture-1"}},
		{Key: "2", Title: "Lecture 2 — Foundations", URLs: []string{"https://videos.example.com/lecture-2"}},
		{Key: "unit-algebra", Title: "Algebra Unit", URLs: []string{
			"https://videos.example.com/algebra-1",
			"https://videos.example.com/algebra-2",
		}},
	}
	for i := range items {
		if err := contentRepo.Upsert(ctx, &items[i]); err != nil {
			log.Fatal("Failed to seed content", map[string]interface{}{
				"key":   items[i].Key,
				"error": err.Error(),
			})
		}
	}
	log.Info("Seeded catalog", map[string]interface{}{"items": len(items)})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
