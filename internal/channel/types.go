// Package channel binds external messaging identities to project conversations.
// It defines the normalized inbound message model shared by all platform
// adapters and the durable channel record that anchors one external identity
// to one project's thread.
package channel

import (
	"context"
	"strings"
	"time"
)

// Platform identifies a messaging platform (e.g. "telegram", "whatsapp").
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformWeb      Platform = "web"
)

// String returns the platform as a plain string.
func (p Platform) String() string {
	return string(p)
}

// Channel is the durable binding between one external messaging identity and
// one project's conversation. Channels are deactivated, never deleted.
type Channel struct {
	ID             string         `json:"id"`
	Platform       Platform       `json:"platform"`
	ExternalUserID string         `json:"external_user_id"`
	ProjectID      string         `json:"project_id"`
	TeamID         string         `json:"team_id"`
	BoundUserID    string         `json:"bound_user_id,omitempty"`
	ThreadID       string         `json:"thread_id,omitempty"`
	Active         bool           `json:"active"`
	LastActiveAt   time.Time      `json:"last_active_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MediaRef is a transient reference to a platform-hosted attachment. It flows
// from webhook parsing into media ingestion and is not persisted itself.
type MediaRef struct {
	FileID   string `json:"file_id"`
	URL      string `json:"url,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// InboundMessage is a platform webhook payload normalized into the shape the
// gateway processes.
type InboundMessage struct {
	Platform       Platform   `json:"platform"`
	ExternalUserID string     `json:"external_user_id"`
	MessageID      string     `json:"message_id"`
	Text           string     `json:"text"`
	Media          []MediaRef `json:"media,omitempty"`
	ReceivedAt     time.Time  `json:"received_at"`
}

// Sender delivers outbound text to a platform user. SendTyping is best-effort;
// adapters log and swallow its failures.
type Sender interface {
	Send(ctx context.Context, externalUserID, text string) error
	SendTyping(ctx context.Context, externalUserID string) error
}

// DirectiveKind classifies a recognized control directive in inbound text.
type DirectiveKind string

const (
	DirectiveNone  DirectiveKind = ""
	DirectiveBegin DirectiveKind = "begin"
	DirectiveReset DirectiveKind = "reset"
)

// Directive is a control command carried in ordinary message text.
type Directive struct {
	Kind  DirectiveKind
	Param string
}

// ParseDirective recognizes the begin/connect and reset directives. Anything
// else is ordinary content.
func ParseDirective(text string) Directive {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Directive{}
	}
	param := ""
	if len(fields) > 1 {
		param = fields[1]
	}
	switch strings.ToLower(fields[0]) {
	case "/start", "/connect":
		return Directive{Kind: DirectiveBegin, Param: param}
	case "/reset":
		return Directive{Kind: DirectiveReset}
	default:
		return Directive{}
	}
}
