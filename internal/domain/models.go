// Package domain holds the shared data model for the access-control core.
package domain

import (
	"time"
)

// MaxDeviceSlots is the per-student device cap. Slots are append-only: once
// a hash lands in a slot it is never reassigned.
const MaxDeviceSlots = 2

// ClientContext carries the environment a client reported with an inbound
// event. Any field may be empty; the fingerprint builder substitutes
// sentinels.
type ClientContext struct {
	UserAgent     string `json:"user_agent"`
	ClientVersion string `json:"client_version"`
	Platform      string `json:"platform"`
	Language      string `json:"language"`
	Timezone      string `json:"timezone"`
}

// Fingerprint is the derived identifier for a client context. Hash is a
// lowercase-hex SHA-256 digest over the stable fields only; SeenAt is
// recorded for inspection but deliberately excluded from the digest so that
// the same physical device hashes identically on every contact.
type Fingerprint struct {
	UserAgent     string    `json:"user_agent"`
	ClientVersion string    `json:"client_version"`
	Platform      string    `json:"platform"`
	Language      string    `json:"language"`
	Timezone      string    `json:"timezone"`
	Hash          string    `json:"hash"`
	SeenAt        time.Time `json:"seen_at"`
}

// DeviceSlot is one of the two per-student storage positions for a
// registered fingerprint.
type DeviceSlot struct {
	Hash        string       `json:"hash,omitempty" db:"hash"`
	Name        string       `json:"name,omitempty" db:"name"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty" db:"fingerprint"`
	AddedAt     *time.Time   `json:"added_at,omitempty" db:"added_at"`
}

// Filled reports whether the slot holds a registered device.
func (s DeviceSlot) Filled() bool {
	return s.Hash != ""
}

// Student is the per-user record, keyed by Telegram user id.
type Student struct {
	ID               int64                      `json:"id" db:"id"`
	Username         string                     `json:"username" db:"username"`
	Approved         bool                       `json:"approved" db:"approved"`
	ApprovedBy       *int64                     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt       *time.Time                 `json:"approved_at,omitempty" db:"approved_at"`
	Devices          [MaxDeviceSlots]DeviceSlot `json:"devices"`
	RegistrationDate time.Time                  `json:"registration_date" db:"registration_date"`
	LastActive       *time.Time                 `json:"last_active,omitempty" db:"last_active"`
	AccessCount      int64                      `json:"access_count" db:"access_count"`
}

// DeviceBySlot returns the 1-based slot, or 0 when the hash is not
// registered on this record.
func (s *Student) DeviceBySlot(hash string) int {
	for i, d := range s.Devices {
		if d.Filled() && d.Hash == hash {
			return i + 1
		}
	}
	return 0
}

// ContentItem is one entry in the static lecture catalog. Key is either a
// lecture number ("1") or a unit identifier ("unit-algebra"); URLs holds one
// or more lines returned to an authorized student.
type ContentItem struct {
	Key       string    `json:"key" db:"key"`
	Title     string    `json:"title" db:"title"`
	URLs      []string  `json:"urls" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
