// Package access composes approval state, device verification, and the
// catalog into the final authorization decision.
package access

import (
	"context"
	"errors"

	"lecturegate/internal/domain"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"
)

// Repository defines the record-store operations the gate needs.
// RecordAccess must bump last_active and access_count in a single atomic
// write; it runs only after every check has passed.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
	RecordAccess(ctx context.Context, id int64) error
}

// DeviceVerifier is the registry's verification contract.
type DeviceVerifier interface {
	Verify(ctx context.Context, userID int64, hash string) (bool, error)
}

// CatalogResolver resolves a content key to its payload.
type CatalogResolver interface {
	Resolve(ctx context.Context, key string) (*domain.ContentItem, error)
}

// AuditRecorder appends audit events, best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

type Service struct {
	repo     Repository
	verifier DeviceVerifier
	catalog  CatalogResolver
	audit    AuditRecorder
	logger   logger.Logger
}

func NewService(repo Repository, verifier DeviceVerifier, catalog CatalogResolver, audit AuditRecorder, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		verifier: verifier,
		catalog:  catalog,
		audit:    audit,
		logger:   log,
	}
}

// Authorize decides whether the user/device pair may retrieve contentKey.
// Checks run in order: approval, device verification, catalog resolution.
// Only a fully successful authorization touches last_active and
// access_count; denials leave the record untouched.
func (s *Service) Authorize(ctx context.Context, userID int64, fingerprintHash, contentKey string) (*domain.ContentItem, error) {
	student, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, lgerrors.ErrStudentNotFound) {
			return nil, lgerrors.ErrNotApproved
		}
		return nil, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}
	if !student.Approved {
		return nil, lgerrors.ErrNotApproved
	}

	ok, err := s.verifier.Verify(ctx, userID, fingerprintHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lgerrors.ErrDeviceNotRegistered
	}

	item, err := s.catalog.Resolve(ctx, contentKey)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RecordAccess(ctx, userID); err != nil {
		return nil, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}

	s.logger.Info("Content access granted", map[string]interface{}{
		"user_id":     userID,
		"content_key": item.Key,
	})
	if s.audit != nil {
		s.audit.Record(ctx, &domain.AuditEvent{
			ActorID:  userID,
			Action:   domain.AuditActionContentAccessed,
			TargetID: userID,
			Detail:   map[string]interface{}{"content_key": item.Key},
		})
	}

	return item, nil
}
