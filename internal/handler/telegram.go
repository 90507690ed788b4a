package handler

import (
	"strings"

	"lecturegate/internal/domain"
)

// Minimal subset of the Telegram Bot API update payload.
type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *telegramUser `json:"from"`
	Chat      *telegramChat `json:"chat"`
	Text      string        `json:"text"`
}

type telegramUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

// inboundEvent is the normalized form handed to the core: who, what
// command, its arguments, and the reported client context.
type inboundEvent struct {
	UserID   int64
	ChatID   int64
	Username string
	Command  string
	Args     []string
	Context  domain.ClientContext
}

// parseEvent normalizes a Telegram update. Returns false for updates with
// nothing actionable (no message, no sender).
func parseEvent(u *telegramUpdate) (*inboundEvent, bool) {
	if u == nil || u.Message == nil || u.Message.From == nil || u.Message.Chat == nil {
		return nil, false
	}

	ev := &inboundEvent{
		UserID:   u.Message.From.ID,
		ChatID:   u.Message.Chat.ID,
		Username: u.Message.From.Username,
		Context: domain.ClientContext{
			Language: u.Message.From.LanguageCode,
		},
	}

	fields := strings.Fields(u.Message.Text)
	if len(fields) == 0 {
		return ev, true
	}

	cmd := fields[0]
	if strings.HasPrefix(cmd, "/") {
		// Strip the bot-mention suffix Telegram appends in groups.
		if i := strings.Index(cmd, "@"); i > 0 {
			cmd = cmd[:i]
		}
		ev.Command = strings.ToLower(cmd)
		ev.Args = fields[1:]
	}

	return ev, true
}

// contentKeyFromDeepLink maps a /start payload to a catalog key. Payloads
// arrive as "lecture_3", "unit_algebra", or a bare key.
func contentKeyFromDeepLink(payload string) string {
	payload = strings.TrimSpace(payload)
	payload = strings.TrimPrefix(payload, "lecture_")
	payload = strings.TrimPrefix(payload, "unit_")
	return payload
}
