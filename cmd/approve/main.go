// Operator CLI: approve a student directly against the store, bypassing the
// bot transport. The acting admin id must still be on the allow-list.
//
//	ADMIN_IDS=123 go run ./cmd/approve -admin 123 -target @someuser
package main

import (
	"context"
	"flag"

	"lecturegate/internal/approval"
	"lecturegate/internal/notification"
	"lecturegate/internal/repository/postgres"
	"lecturegate/pkg/config"
	"lecturegate/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	adminID := flag.Int64("admin", 0, "acting admin Telegram id")
	target := flag.String("target", "", "student id or @username")
	flag.Parse()

	log := logger.New("lecturegate-approve")
	cfg := config.Load()

	if *adminID == 0 || *target == "" {
		log.Fatal("Both -admin and -target are required", nil)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required", nil)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	studentRepo := postgres.NewStudentRepository(db)
	auditRepo := postgres.NewAuditRepository(db, log)
	notifier := notification.NewService(cfg.Telegram, log)

	svc := approval.NewService(studentRepo, notifier, auditRepo, cfg.Admin.AllowedIDs, log)

	result, err := svc.Approve(context.Background(), *adminID, *target)
	if err != nil {
		log.Fatal("Approval failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Student approved", map[string]interface{}{
		"target_id":        result.TargetID,
		"username":         result.Username,
		"already_approved": result.AlreadyApproved,
	})
}
