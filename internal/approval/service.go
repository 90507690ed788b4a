// Package approval implements the admin-gated approval workflow. It is the
// only mutator of a student's approved flag, and the flag only ever moves
// from false to true.
package approval

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"lecturegate/internal/domain"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"
)

// Repository defines the record-store operations the workflow needs.
// FindByUsername resolves through the username index, not a full scan.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
	FindByUsername(ctx context.Context, username string) (*domain.Student, error)
	Approve(ctx context.Context, id, adminID int64, at time.Time) error
}

// Notifier delivers a text message to a chat, fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string)
}

// AuditRecorder appends audit events, best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

// ApprovalResult identifies the approved student.
type ApprovalResult struct {
	TargetID        int64  `json:"target_id"`
	Username        string `json:"username,omitempty"`
	AlreadyApproved bool   `json:"already_approved"`
}

type Service struct {
	repo       Repository
	notifier   Notifier
	audit      AuditRecorder
	allowedIDs map[int64]struct{}
	logger     logger.Logger
}

func NewService(repo Repository, notifier Notifier, audit AuditRecorder, adminIDs []int64, log logger.Logger) *Service {
	allowed := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = struct{}{}
	}
	return &Service{
		repo:       repo,
		notifier:   notifier,
		audit:      audit,
		allowedIDs: allowed,
		logger:     log,
	}
}

// Approve marks the student selected by selector as approved by adminID.
// The selector is a raw user id or a username (leading @ tolerated).
// Re-approving is idempotent: the fields are rewritten without error.
// Notification of the target is best-effort and never rolls the approval
// back.
func (s *Service) Approve(ctx context.Context, adminID int64, selector string) (*ApprovalResult, error) {
	if _, ok := s.allowedIDs[adminID]; !ok {
		s.logger.Warn("Approval attempt by non-admin", map[string]interface{}{
			"caller_id": adminID,
			"selector":  selector,
		})
		return nil, lgerrors.ErrNotAuthorized
	}

	student, err := s.resolveTarget(ctx, selector)
	if err != nil {
		return nil, err
	}

	alreadyApproved := student.Approved
	if err := s.repo.Approve(ctx, student.ID, adminID, time.Now().UTC()); err != nil {
		return nil, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}

	s.logger.Info("Student approved", map[string]interface{}{
		"admin_id":         adminID,
		"target_id":        student.ID,
		"already_approved": alreadyApproved,
	})
	if s.audit != nil {
		s.audit.Record(ctx, &domain.AuditEvent{
			ActorID:  adminID,
			Action:   domain.AuditActionApproved,
			TargetID: student.ID,
			Detail: map[string]interface{}{
				"selector":         selector,
				"already_approved": alreadyApproved,
			},
		})
	}

	if s.notifier != nil && !alreadyApproved {
		s.notifier.Notify(ctx, student.ID,
			"Your access has been approved. Register your device with /register, then request lectures with /lecture <number>.")
	}

	return &ApprovalResult{
		TargetID:        student.ID,
		Username:        student.Username,
		AlreadyApproved: alreadyApproved,
	}, nil
}

// IsAdmin reports whether id is on the configured allow-list.
func (s *Service) IsAdmin(id int64) bool {
	_, ok := s.allowedIDs[id]
	return ok
}

func (s *Service) resolveTarget(ctx context.Context, selector string) (*domain.Student, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, lgerrors.ErrTargetNotFound
	}

	var (
		student *domain.Student
		err     error
	)
	if id, parseErr := strconv.ParseInt(selector, 10, 64); parseErr == nil {
		student, err = s.repo.FindByID(ctx, id)
	} else {
		student, err = s.repo.FindByUsername(ctx, strings.TrimPrefix(selector, "@"))
	}

	if err != nil {
		if errors.Is(err, lgerrors.ErrStudentNotFound) {
			return nil, lgerrors.ErrTargetNotFound
		}
		return nil, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}
	return student, nil
}
