package postgres

import (
	"context"
	"encoding/json"
	"time"

	"lecturegate/internal/domain"
	"lecturegate/pkg/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditRepository appends audit events. Record is best-effort: failures are
// logged and swallowed so an audit outage never blocks an approval or an
// authorization.
type AuditRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewAuditRepository(db *sqlx.DB, log logger.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: log}
}

func (r *AuditRepository) Record(ctx context.Context, event *domain.AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	detail, err := json.Marshal(event.Detail)
	if err != nil {
		r.logger.Warn("Failed to encode audit detail", map[string]interface{}{
			"action": event.Action,
			"error":  err.Error(),
		})
		detail = []byte("{}")
	}

	query := `
		INSERT INTO audit_events (id, actor_id, action, target_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		event.ID, event.ActorID, event.Action, event.TargetID, detail, event.CreatedAt,
	); err != nil {
		r.logger.Warn("Failed to record audit event", map[string]interface{}{
			"action": event.Action,
			"error":  err.Error(),
		})
	}
}
