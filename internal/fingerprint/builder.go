// Package fingerprint derives stable device identifiers from reported
// client context.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"lecturegate/internal/domain"
)

// Sentinels substituted for missing context fields. Building never fails on
// incomplete input.
const (
	UnknownUserAgent = "UnknownUA"
	UnknownVersion   = "UnknownVersion"
	UnknownPlatform  = "UnknownPlatform"
	DefaultLanguage  = "en"
	DefaultTimezone  = "UTC"
)

// delimiter separates digest components. Fixed: changing it changes every
// stored hash.
const delimiter = "|"

// Build derives a Fingerprint for userID from the reported context. The
// digest covers the user id and the stable context fields only; at is kept
// on the result for inspection but excluded from the hash, so a device
// produces the same digest at registration and at every later verification.
func Build(userID int64, ctx domain.ClientContext, at time.Time) domain.Fingerprint {
	fp := domain.Fingerprint{
		UserAgent:     orSentinel(ctx.UserAgent, UnknownUserAgent),
		ClientVersion: orSentinel(ctx.ClientVersion, UnknownVersion),
		Platform:      orSentinel(ctx.Platform, UnknownPlatform),
		Language:      orSentinel(ctx.Language, DefaultLanguage),
		Timezone:      orSentinel(ctx.Timezone, DefaultTimezone),
		SeenAt:        at,
	}

	raw := strings.Join([]string{
		strconv.FormatInt(userID, 10),
		fp.UserAgent,
		fp.ClientVersion,
		fp.Platform,
		fp.Language,
		fp.Timezone,
	}, delimiter)

	sum := sha256.Sum256([]byte(raw))
	fp.Hash = hex.EncodeToString(sum[:])
	return fp
}

func orSentinel(value, sentinel string) string {
	if strings.TrimSpace(value) == "" {
		return sentinel
	}
	return value
}
