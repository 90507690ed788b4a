package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"lecturegate/internal/domain"
	"lecturegate/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type StudentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// studentRow mirrors the students table; the two device slots are flattened
// columns with the structured fingerprint held in jsonb.
type studentRow struct {
	ID                 int64      `db:"id"`
	Username           string     `db:"username"`
	Approved           bool       `db:"approved"`
	ApprovedBy         *int64     `db:"approved_by"`
	ApprovedAt         *time.Time `db:"approved_at"`
	Device1Hash        *string    `db:"device_1_hash"`
	Device1Name        *string    `db:"device_1_name"`
	Device1Fingerprint []byte     `db:"device_1_fingerprint"`
	Device1AddedAt     *time.Time `db:"device_1_added_at"`
	Device2Hash        *string    `db:"device_2_hash"`
	Device2Name        *string    `db:"device_2_name"`
	Device2Fingerprint []byte     `db:"device_2_fingerprint"`
	Device2AddedAt     *time.Time `db:"device_2_added_at"`
	RegistrationDate   time.Time  `db:"registration_date"`
	LastActive         *time.Time `db:"last_active"`
	AccessCount        int64      `db:"access_count"`
}

const studentColumns = `
	id, username, approved, approved_by, approved_at,
	device_1_hash, device_1_name, device_1_fingerprint, device_1_added_at,
	device_2_hash, device_2_name, device_2_fingerprint, device_2_added_at,
	registration_date, last_active, access_count`

func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*domain.Student, error) {
	var row studentRow
	query := `SELECT` + studentColumns + ` FROM students WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrStudentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find student")
	}

	return row.toDomain()
}

func (r *StudentRepository) FindByUsername(ctx context.Context, username string) (*domain.Student, error) {
	var row studentRow
	query := `SELECT` + studentColumns + ` FROM students WHERE lower(username) = lower($1)`

	err := r.db.GetContext(ctx, &row, query, username)
	if err == sql.ErrNoRows {
		return nil, errors.ErrStudentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find student by username")
	}

	return row.toDomain()
}

// EnsureExists creates the pending record on first contact. An existing
// record is left untouched apart from a username refresh.
func (r *StudentRepository) EnsureExists(ctx context.Context, id int64, username string) error {
	query := `
		INSERT INTO students (id, username, approved, registration_date, access_count)
		VALUES ($1, $2, false, now(), 0)
		ON CONFLICT (id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE students.username END
	`
	_, err := r.db.ExecContext(ctx, query, id, username)
	if err != nil {
		return errors.Wrap(err, "failed to ensure student record")
	}
	return nil
}

// Approve marks the record approved. Idempotent: re-approving rewrites
// approved_by and approved_at without error, and nothing ever clears the
// flag.
func (r *StudentRepository) Approve(ctx context.Context, id, adminID int64, at time.Time) error {
	query := `
		UPDATE students
		SET approved = true, approved_by = $2, approved_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, adminID, at)
	if err != nil {
		return errors.Wrap(err, "failed to approve student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrStudentNotFound
	}
	return nil
}

// ClaimDeviceSlot assigns the fingerprint to the slot only while the slot is
// still empty. The WHERE guard makes the read-then-write race-free: of two
// concurrent claims for one slot, exactly one sees rows affected.
func (r *StudentRepository) ClaimDeviceSlot(ctx context.Context, id int64, slot int, name string, fp domain.Fingerprint) (bool, error) {
	if slot < 1 || slot > domain.MaxDeviceSlots {
		return false, fmt.Errorf("invalid device slot %d", slot)
	}

	fpJSON, err := json.Marshal(fp)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode fingerprint")
	}

	query := fmt.Sprintf(`
		UPDATE students
		SET device_%[1]d_hash = $2,
		    device_%[1]d_name = $3,
		    device_%[1]d_fingerprint = $4,
		    device_%[1]d_added_at = now()
		WHERE id = $1 AND device_%[1]d_hash IS NULL
	`, slot)

	res, err := r.db.ExecContext(ctx, query, id, fp.Hash, nullable(name), fpJSON)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim device slot")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read claim result")
	}
	return n == 1, nil
}

// RecordAccess bumps the access counters in one atomic write. Runs only
// after a fully successful authorization.
func (r *StudentRepository) RecordAccess(ctx context.Context, id int64) error {
	query := `
		UPDATE students
		SET last_active = now(), access_count = access_count + 1
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "failed to record access")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrStudentNotFound
	}
	return nil
}

func (row *studentRow) toDomain() (*domain.Student, error) {
	student := &domain.Student{
		ID:               row.ID,
		Username:         row.Username,
		Approved:         row.Approved,
		ApprovedBy:       row.ApprovedBy,
		ApprovedAt:       row.ApprovedAt,
		RegistrationDate: row.RegistrationDate,
		LastActive:       row.LastActive,
		AccessCount:      row.AccessCount,
	}

	slots := []struct {
		hash    *string
		name    *string
		fp      []byte
		addedAt *time.Time
	}{
		{row.Device1Hash, row.Device1Name, row.Device1Fingerprint, row.Device1AddedAt},
		{row.Device2Hash, row.Device2Name, row.Device2Fingerprint, row.Device2AddedAt},
	}

	for i, s := range slots {
		if s.hash == nil {
			continue
		}
		slot := domain.DeviceSlot{Hash: *s.hash, AddedAt: s.addedAt}
		if s.name != nil {
			slot.Name = *s.name
		}
		if len(s.fp) > 0 {
			var fp domain.Fingerprint
			if err := json.Unmarshal(s.fp, &fp); err != nil {
				return nil, errors.Wrap(err, "failed to decode stored fingerprint")
			}
			slot.Fingerprint = &fp
		}
		student.Devices[i] = slot
	}

	return student, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
