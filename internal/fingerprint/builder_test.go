package fingerprint

import (
	"testing"
	"time"

	"lecturegate/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestBuildDeterministic(t *testing.T) {
	ctx := domain.ClientContext{
		UserAgent:     "Mozilla/5.0",
		ClientVersion: "10.2",
		Platform:      "android",
		Language:      "ru",
		Timezone:      "Europe/Moscow",
	}
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := Build(42, ctx, at)
	second := Build(42, ctx, at)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Len(t, first.Hash, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first.Hash)
}

func TestBuildExcludesTimestampFromDigest(t *testing.T) {
	ctx := domain.ClientContext{Platform: "ios", Language: "en"}

	registration := Build(42, ctx, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	verification := Build(42, ctx, time.Date(2025, 6, 30, 8, 45, 0, 0, time.UTC))

	// Same physical device, different contact times: the digest must not
	// drift, only the recorded SeenAt.
	assert.Equal(t, registration.Hash, verification.Hash)
	assert.NotEqual(t, registration.SeenAt, verification.SeenAt)
}

func TestBuildSubstitutesSentinels(t *testing.T) {
	fp := Build(7, domain.ClientContext{}, time.Now())

	assert.Equal(t, UnknownUserAgent, fp.UserAgent)
	assert.Equal(t, UnknownVersion, fp.ClientVersion)
	assert.Equal(t, UnknownPlatform, fp.Platform)
	assert.Equal(t, DefaultLanguage, fp.Language)
	assert.Equal(t, DefaultTimezone, fp.Timezone)
	assert.NotEmpty(t, fp.Hash)

	// A blank context and an explicit-sentinel context hash identically.
	explicit := Build(7, domain.ClientContext{
		UserAgent:     UnknownUserAgent,
		ClientVersion: UnknownVersion,
		Platform:      UnknownPlatform,
		Language:      DefaultLanguage,
		Timezone:      DefaultTimezone,
	}, time.Now())
	assert.Equal(t, explicit.Hash, fp.Hash)
}

func TestBuildDistinguishesUsersAndContexts(t *testing.T) {
	ctx := domain.ClientContext{Platform: "android"}
	at := time.Now()

	assert.NotEqual(t, Build(1, ctx, at).Hash, Build(2, ctx, at).Hash)
	assert.NotEqual(t,
		Build(1, domain.ClientContext{Platform: "android"}, at).Hash,
		Build(1, domain.ClientContext{Platform: "ios"}, at).Hash,
	)
}
