package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lecturegate/internal/access"
	"lecturegate/internal/approval"
	"lecturegate/internal/catalog"
	"lecturegate/internal/domain"
	"lecturegate/internal/registry"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminID = int64(900)

// fakeStudentStore is an in-memory record store backing the full pipeline.
type fakeStudentStore struct {
	mu       sync.Mutex
	students map[int64]*domain.Student
}

func newFakeStudentStore() *fakeStudentStore {
	return &fakeStudentStore{students: make(map[int64]*domain.Student)}
}

func (s *fakeStudentStore) EnsureExists(ctx context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.students[id]; ok {
		existing.Username = username
		return nil
	}
	s.students[id] = &domain.Student{
		ID:               id,
		Username:         username,
		RegistrationDate: time.Now(),
	}
	return nil
}

func (s *fakeStudentStore) FindByID(ctx context.Context, id int64) (*domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return nil, lgerrors.ErrStudentNotFound
	}
	copied := *student
	return &copied, nil
}

func (s *fakeStudentStore) FindByUsername(ctx context.Context, username string) (*domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, student := range s.students {
		if strings.EqualFold(student.Username, username) {
			copied := *student
			return &copied, nil
		}
	}
	return nil, lgerrors.ErrStudentNotFound
}

func (s *fakeStudentStore) Approve(ctx context.Context, id, adminID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return lgerrors.ErrStudentNotFound
	}
	student.Approved = true
	student.ApprovedBy = &adminID
	student.ApprovedAt = &at
	return nil
}

func (s *fakeStudentStore) ClaimDeviceSlot(ctx context.Context, id int64, slot int, name string, fp domain.Fingerprint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return false, lgerrors.ErrStudentNotFound
	}
	idx := slot - 1
	if student.Devices[idx].Filled() {
		return false, nil
	}
	now := time.Now()
	student.Devices[idx] = domain.DeviceSlot{
		Hash:        fp.Hash,
		Name:        name,
		Fingerprint: &fp,
		AddedAt:     &now,
	}
	return true, nil
}

func (s *fakeStudentStore) RecordAccess(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return lgerrors.ErrStudentNotFound
	}
	now := time.Now()
	student.LastActive = &now
	student.AccessCount++
	return nil
}

type fakeContentRepo struct {
	items map[string]*domain.ContentItem
}

func (r *fakeContentRepo) FindByKey(ctx context.Context, key string) (*domain.ContentItem, error) {
	item, ok := r.items[key]
	if !ok {
		return nil, lgerrors.ErrContentNotFound
	}
	return item, nil
}

func (r *fakeContentRepo) Upsert(ctx context.Context, item *domain.ContentItem) error {
	r.items[item.Key] = item
	return nil
}

// captureNotifier records every outbound reply.
type captureNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *captureNotifier) Notify(ctx context.Context, chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *captureNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

type webhookFixture struct {
	handler  *WebhookHandler
	store    *fakeStudentStore
	notifier *captureNotifier
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	nop := logger.NewNop()
	store := newFakeStudentStore()
	notifier := &captureNotifier{}

	contentRepo := &fakeContentRepo{items: map[string]*domain.ContentItem{
		"3": {Key: "3", Title: "Lecture 3", URLs: []string{"https://videos.example.com/3"}},
	}}

	reg := registry.NewService(store, nil, nop)
	appr := approval.NewService(store, notifier, nil, []int64{testAdminID}, nop)
	cat := catalog.NewService(contentRepo, nil, nop)
	gate := access.NewService(store, reg, cat, nil, nop)

	return &webhookFixture{
		handler:  NewWebhookHandler(store, reg, appr, gate, notifier, nop),
		store:    store,
		notifier: notifier,
	}
}

func (f *webhookFixture) send(t *testing.T, userID int64, username, text string) *httptest.ResponseRecorder {
	t.Helper()
	update := telegramUpdate{
		UpdateID: 1,
		Message: &telegramMessage{
			From: &telegramUser{ID: userID, Username: username, LanguageCode: "ru"},
			Chat: &telegramChat{ID: userID},
			Text: text,
		},
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
	f.handler.ServeWebhook(rec, req)
	return rec
}

func TestWebhookLivenessProbe(t *testing.T) {
	f := newWebhookFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeWebhook(rec, httptest.NewRequest(http.MethodGet, "/api/webhook", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bot is running!")
}

func TestWebhookMalformedBodyStillAnswers200(t *testing.T) {
	f := newWebhookFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader("not json"))
	f.handler.ServeWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":false`)
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	f := newWebhookFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"update_id":7}`))
	f.handler.ServeWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.Empty(t, f.notifier.messages)
}

func TestStartCreatesPendingRecord(t *testing.T) {
	f := newWebhookFixture(t)

	rec := f.send(t, 42, "alice", "/start")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.notifier.last(), "awaiting approval")

	student, err := f.store.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", student.Username)
	assert.False(t, student.Approved)
}

func TestRegisterBeforeApprovalDenied(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/start")
	f.send(t, 42, "alice", "/register")

	assert.Contains(t, f.notifier.last(), "not been approved")
}

func TestApproveByNonAdminDenied(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/start")
	f.send(t, 43, "mallory", "/approve 42")

	assert.Contains(t, f.notifier.last(), "not authorized")

	student, err := f.store.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, student.Approved)
}

func TestFullApprovalAndAccessFlow(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	f.send(t, 42, "alice", "/start")

	// Content before approval is denied and leaves the counters alone.
	f.send(t, 42, "alice", "/lecture 3")
	assert.Contains(t, f.notifier.last(), "not been approved")

	f.send(t, testAdminID, "admin", "/approve @alice")
	assert.Contains(t, f.notifier.last(), "Student 42 approved.")

	// Content from an approved but unregistered device is still denied.
	f.send(t, 42, "alice", "/lecture 3")
	assert.Contains(t, f.notifier.last(), "not registered")

	f.send(t, 42, "alice", "/register my phone")
	assert.Contains(t, f.notifier.last(), fmt.Sprintf("slot 1 of %d", domain.MaxDeviceSlots))

	f.send(t, 42, "alice", "/lecture 3")
	reply := f.notifier.last()
	assert.Contains(t, reply, "Lecture 3")
	assert.Contains(t, reply, "https://videos.example.com/3")

	student, err := f.store.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), student.AccessCount)
	assert.NotNil(t, student.LastActive)
	assert.Equal(t, "my phone", student.Devices[0].Name)
}

func TestRegisterSameDeviceTwice(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/start")
	f.send(t, testAdminID, "admin", "/approve 42")
	f.send(t, 42, "alice", "/register")
	f.send(t, 42, "alice", "/register")

	assert.Contains(t, f.notifier.last(), "already registered (slot 1)")
}

func TestUnknownLectureDenied(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/start")
	f.send(t, testAdminID, "admin", "/approve 42")
	f.send(t, 42, "alice", "/register")
	f.send(t, 42, "alice", "/lecture 99")

	assert.Contains(t, f.notifier.last(), "does not exist")
}

func TestStartDeepLinkDeliversContent(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/start")
	f.send(t, testAdminID, "admin", "/approve 42")
	f.send(t, 42, "alice", "/register")
	f.send(t, 42, "alice", "/start lecture_3")

	assert.Contains(t, f.notifier.last(), "https://videos.example.com/3")
}

func TestStatusReflectsState(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/start")
	f.send(t, 42, "alice", "/status")
	assert.Contains(t, f.notifier.last(), "pending approval")

	f.send(t, testAdminID, "admin", "/approve 42")
	f.send(t, 42, "alice", "/register")
	f.send(t, 42, "alice", "/status")
	assert.Contains(t, f.notifier.last(), "approved")
	assert.Contains(t, f.notifier.last(), fmt.Sprintf("Devices: 1 of %d", domain.MaxDeviceSlots))
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	f := newWebhookFixture(t)

	f.send(t, 42, "alice", "/frobnicate")

	assert.Contains(t, f.notifier.last(), "/register")
}
