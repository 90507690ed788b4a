package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lecturegate/internal/access"
	"lecturegate/internal/approval"
	"lecturegate/internal/domain"
	"lecturegate/internal/fingerprint"
	"lecturegate/internal/registry"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"
)

// StudentDirectory is the slice of the record store the webhook needs
// directly: first-contact record creation and /status lookups.
type StudentDirectory interface {
	EnsureExists(ctx context.Context, id int64, username string) error
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
}

// Notifier delivers replies to a chat, fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string)
}

// WebhookHandler is the Telegram ingress: it parses updates, dispatches to
// the core services, and translates typed denials into reply text.
type WebhookHandler struct {
	students StudentDirectory
	registry *registry.Service
	approval *approval.Service
	gate     *access.Service
	notifier Notifier
	logger   logger.Logger
}

func NewWebhookHandler(
	students StudentDirectory,
	reg *registry.Service,
	appr *approval.Service,
	gate *access.Service,
	notifier Notifier,
	log logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		students: students,
		registry: reg,
		approval: appr,
		gate:     gate,
		notifier: notifier,
		logger:   log,
	}
}

// ServeWebhook handles POSTed Telegram updates. GET reports liveness so the
// webhook URL can be probed from a browser. Telegram retries non-200
// responses, so processing failures still answer 200 with ok=false.
func (h *WebhookHandler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "Bot is running!",
		})
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": "no data"})
		return
	}

	ev, ok := parseEvent(&update)
	if !ok {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
		return
	}

	h.dispatch(r.Context(), ev)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *WebhookHandler) dispatch(ctx context.Context, ev *inboundEvent) {
	switch ev.Command {
	case "/start":
		h.handleStart(ctx, ev)
	case "/register":
		h.handleRegister(ctx, ev)
	case "/approve":
		h.handleApprove(ctx, ev)
	case "/lecture", "/unit":
		if len(ev.Args) == 0 {
			h.reply(ctx, ev.ChatID, fmt.Sprintf("Usage: %s <key>", ev.Command))
			return
		}
		h.handleContent(ctx, ev, ev.Args[0])
	case "/status":
		h.handleStatus(ctx, ev)
	case "/help", "":
		h.reply(ctx, ev.ChatID, helpText)
	default:
		h.reply(ctx, ev.ChatID, "Unknown command. "+helpText)
	}
}

const helpText = "Commands: /register [device name], /lecture <number>, /unit <key>, /status, /help"

func (h *WebhookHandler) handleStart(ctx context.Context, ev *inboundEvent) {
	if err := h.students.EnsureExists(ctx, ev.UserID, ev.Username); err != nil {
		h.logger.Error("Failed to create student record", map[string]interface{}{
			"user_id": ev.UserID,
			"error":   err.Error(),
		})
		h.reply(ctx, ev.ChatID, "Something went wrong, please try again later.")
		return
	}

	// Deep link: /start lecture_3 delivers the content directly.
	if len(ev.Args) > 0 {
		if key := contentKeyFromDeepLink(ev.Args[0]); key != "" {
			h.handleContent(ctx, ev, key)
			return
		}
	}

	h.reply(ctx, ev.ChatID,
		"Welcome! Your account is awaiting approval. Once approved, register this device with /register and request lectures with /lecture <number>.")
}

func (h *WebhookHandler) handleRegister(ctx context.Context, ev *inboundEvent) {
	deviceName := strings.Join(ev.Args, " ")
	fp := fingerprint.Build(ev.UserID, ev.Context, time.Now().UTC())

	result, err := h.registry.Register(ctx, ev.UserID, deviceName, fp)
	if err != nil {
		h.reply(ctx, ev.ChatID, denialText(err))
		return
	}

	if result.AlreadyRegistered {
		h.reply(ctx, ev.ChatID, fmt.Sprintf("This device is already registered (slot %d).", result.Slot))
		return
	}
	h.reply(ctx, ev.ChatID, fmt.Sprintf("Device registered in slot %d of %d.", result.Slot, domain.MaxDeviceSlots))
}

func (h *WebhookHandler) handleApprove(ctx context.Context, ev *inboundEvent) {
	if len(ev.Args) == 0 {
		h.reply(ctx, ev.ChatID, "Usage: /approve <user id or @username>")
		return
	}

	result, err := h.approval.Approve(ctx, ev.UserID, ev.Args[0])
	if err != nil {
		h.reply(ctx, ev.ChatID, denialText(err))
		return
	}

	if result.AlreadyApproved {
		h.reply(ctx, ev.ChatID, fmt.Sprintf("Student %d was already approved.", result.TargetID))
		return
	}
	h.reply(ctx, ev.ChatID, fmt.Sprintf("Student %d approved.", result.TargetID))
}

func (h *WebhookHandler) handleContent(ctx context.Context, ev *inboundEvent, key string) {
	fp := fingerprint.Build(ev.UserID, ev.Context, time.Now().UTC())

	item, err := h.gate.Authorize(ctx, ev.UserID, fp.Hash, key)
	if err != nil {
		h.reply(ctx, ev.ChatID, denialText(err))
		return
	}

	lines := make([]string, 0, len(item.URLs)+1)
	if item.Title != "" {
		lines = append(lines, item.Title)
	}
	lines = append(lines, item.URLs...)
	h.reply(ctx, ev.ChatID, strings.Join(lines, "\n"))
}

func (h *WebhookHandler) handleStatus(ctx context.Context, ev *inboundEvent) {
	student, err := h.students.FindByID(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, lgerrors.ErrStudentNotFound) {
			h.reply(ctx, ev.ChatID, "No record found. Send /start first.")
			return
		}
		h.reply(ctx, ev.ChatID, denialText(err))
		return
	}

	devices := 0
	for _, d := range student.Devices {
		if d.Filled() {
			devices++
		}
	}

	state := "pending approval"
	if student.Approved {
		state = "approved"
	}
	h.reply(ctx, ev.ChatID, fmt.Sprintf(
		"Status: %s. Devices: %d of %d. Lectures accessed: %d.",
		state, devices, domain.MaxDeviceSlots, student.AccessCount,
	))
}

func (h *WebhookHandler) reply(ctx context.Context, chatID int64, text string) {
	h.notifier.Notify(ctx, chatID, text)
}

func (h *WebhookHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// denialText maps the typed error taxonomy to user-facing replies.
func denialText(err error) string {
	switch {
	case errors.Is(err, lgerrors.ErrNotApproved):
		return "Your account has not been approved yet. Please wait for an admin to approve you."
	case errors.Is(err, lgerrors.ErrDeviceNotRegistered):
		return "This device is not registered. Use /register on an approved device."
	case errors.Is(err, lgerrors.ErrDeviceLimitReached):
		return "Device limit reached: both device slots are in use."
	case errors.Is(err, lgerrors.ErrContentNotFound):
		return "That lecture or unit does not exist."
	case errors.Is(err, lgerrors.ErrNotAuthorized):
		return "You are not authorized to do that."
	case errors.Is(err, lgerrors.ErrTargetNotFound):
		return "No student matches that id or username."
	case errors.Is(err, lgerrors.ErrStoreUnavailable):
		return "The service is temporarily unavailable, please try again."
	default:
		return "Something went wrong, please try again later."
	}
}
