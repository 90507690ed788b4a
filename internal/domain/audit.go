package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the core services.
const (
	AuditActionApproved         = "student_approved"
	AuditActionDeviceRegistered = "device_registered"
	AuditActionContentAccessed  = "content_accessed"
)

// AuditEvent is an append-only trail entry. Writes are best-effort and never
// fail the operation that produced them.
type AuditEvent struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	ActorID   int64                  `json:"actor_id" db:"actor_id"`
	Action    string                 `json:"action" db:"action"`
	TargetID  int64                  `json:"target_id" db:"target_id"`
	Detail    map[string]interface{} `json:"detail,omitempty" db:"-"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
