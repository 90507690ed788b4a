// Package registry owns the two-devices-per-student invariant.
package registry

import (
	"context"
	"errors"

	"lecturegate/internal/domain"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"
)

// Repository defines the record-store operations the registry needs. Slot
// claims must be conditional at the store level: ClaimDeviceSlot assigns the
// fingerprint to the given slot only while that slot is still empty and
// reports whether the claim landed.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
	ClaimDeviceSlot(ctx context.Context, id int64, slot int, name string, fp domain.Fingerprint) (bool, error)
}

// AuditRecorder appends audit events, best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

// RegistrationResult reports where a fingerprint ended up.
type RegistrationResult struct {
	Slot              int  `json:"slot"`
	AlreadyRegistered bool `json:"already_registered"`
}

type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger logger.Logger
}

func NewService(repo Repository, audit AuditRecorder, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: log,
	}
}

// Register binds the fingerprint to the student's first empty device slot.
// Registering a hash that already occupies a slot is a no-op. A third
// distinct fingerprint fails with ErrDeviceLimitReached; slots are never
// overwritten. Unapproved or unknown students are rejected before any slot
// is touched.
//
// The claim itself is a conditional store update, so two concurrent
// registrations for the same student cannot both land in one empty slot; the
// loser of the race re-reads the record and re-evaluates.
func (s *Service) Register(ctx context.Context, userID int64, deviceName string, fp domain.Fingerprint) (*RegistrationResult, error) {
	// Two passes: the second resolves a lost claim race against the
	// re-read record.
	for attempt := 0; attempt < domain.MaxDeviceSlots; attempt++ {
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

		if slot := student.DeviceBySlot(fp.Hash); slot != 0 {
			return &RegistrationResult{Slot: slot, AlreadyRegistered: true}, nil
		}

		slot := firstEmptySlot(student)
		if slot == 0 {
			return nil, lgerrors.ErrDeviceLimitReached
		}

		claimed, err := s.repo.ClaimDeviceSlot(ctx, userID, slot, deviceName, fp)
		if err != nil {
			return nil, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
		}
		if !claimed {
			// Another registration won the slot; retry against fresh state.
			continue
		}

		s.logger.Info("Device registered", map[string]interface{}{
			"user_id": userID,
			"slot":    slot,
			"hash":    fp.Hash,
		})
		if s.audit != nil {
			s.audit.Record(ctx, &domain.AuditEvent{
				ActorID:  userID,
				Action:   domain.AuditActionDeviceRegistered,
				TargetID: userID,
				Detail: map[string]interface{}{
					"slot": slot,
					"hash": fp.Hash,
				},
			})
		}
		return &RegistrationResult{Slot: slot}, nil
	}

	return nil, lgerrors.ErrDeviceLimitReached
}

// Verify reports whether hash exactly matches a stored slot hash for this
// student. Absent records and empty slots verify false; a hash registered to
// a different student never verifies because the lookup is keyed by id.
func (s *Service) Verify(ctx context.Context, userID int64, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}

	student, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, lgerrors.ErrStudentNotFound) {
			return false, nil
		}
		return false, lgerrors.Wrap(lgerrors.ErrStoreUnavailable, err.Error())
	}

	return student.DeviceBySlot(hash) != 0, nil
}

func firstEmptySlot(student *domain.Student) int {
	for i, d := range student.Devices {
		if !d.Filled() {
			return i + 1
		}
	}
	return 0
}
