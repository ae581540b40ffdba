// Package whatsapp adapts WhatsApp Business Cloud webhooks onto the
// gateway's inbound pipeline. Outbound messages go through the Graph-style
// messages endpoint; inbound media handles are resolved to download URLs
// through the media endpoint.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/relayhq/relay/internal/channel"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Adapter talks to the WhatsApp Cloud API.
type Adapter struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewAdapter(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:     log.With(slog.String("adapter", "whatsapp")),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultGraphBaseURL,
	}
}

// Sender returns a channel.Sender bound to one phone number registration.
func (a *Adapter) Sender(accessToken, phoneNumberID string) channel.Sender {
	return &sender{adapter: a, accessToken: accessToken, phoneNumberID: phoneNumberID}
}

type sender struct {
	adapter       *Adapter
	accessToken   string
	phoneNumberID string
}

type outboundText struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (s *sender) Send(ctx context.Context, externalUserID, text string) error {
	payload := outboundText{MessagingProduct: "whatsapp", To: externalUserID, Type: "text"}
	payload.Text.Body = text
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", s.adapter.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build outbound request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	resp, err := s.adapter.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send whatsapp message: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// SendTyping is a no-op: the Cloud API offers no typing indicator for this
// flow. The interface treats it as best-effort, so silence is correct.
func (s *sender) SendTyping(context.Context, string) error {
	return nil
}

// envelope mirrors the webhook JSON WhatsApp delivers.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundEntry `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundEntry struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *mediaEntry `json:"image"`
	Document *mediaEntry `json:"document"`
	Audio    *mediaEntry `json:"audio"`
	Video    *mediaEntry `json:"video"`
}

type mediaEntry struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// normalizeEnvelope flattens a webhook delivery into inbound messages. One
// delivery can batch several messages.
func (a *Adapter) normalizeEnvelope(accessToken string, env envelope) []channel.InboundMessage {
	var out []channel.InboundMessage
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				normalized, ok := a.normalizeMessage(accessToken, msg)
				if !ok {
					continue
				}
				out = append(out, normalized)
			}
		}
	}
	return out
}

func (a *Adapter) normalizeMessage(accessToken string, msg inboundEntry) (channel.InboundMessage, bool) {
	inbound := channel.InboundMessage{
		Platform:       channel.PlatformWhatsApp,
		ExternalUserID: msg.From,
		MessageID:      msg.ID,
		ReceivedAt:     parseTimestamp(msg.Timestamp),
	}
	if msg.Text != nil {
		inbound.Text = msg.Text.Body
	}
	for _, media := range []*mediaEntry{msg.Image, msg.Document, msg.Audio, msg.Video} {
		if media == nil {
			continue
		}
		if inbound.Text == "" {
			inbound.Text = media.Caption
		}
		inbound.Media = append(inbound.Media, a.mediaRef(accessToken, *media))
	}
	if inbound.ExternalUserID == "" || (inbound.Text == "" && len(inbound.Media) == 0) {
		return channel.InboundMessage{}, false
	}
	return inbound, true
}

type mediaLookup struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

func (a *Adapter) mediaRef(accessToken string, media mediaEntry) channel.MediaRef {
	ref := channel.MediaRef{
		FileID:   media.ID,
		Mime:     media.MimeType,
		Filename: media.Filename,
	}
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/%s", a.baseURL, media.ID), nil)
	if err != nil {
		return ref
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("resolve media url failed", slog.Any("error", err))
		return ref
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Warn("resolve media url failed", slog.Int("status", resp.StatusCode))
		return ref
	}
	var lookup mediaLookup
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		a.logger.Warn("decode media lookup failed", slog.Any("error", err))
		return ref
	}
	ref.URL = lookup.URL
	if ref.Mime == "" {
		ref.Mime = lookup.MimeType
	}
	if ref.Size == 0 {
		ref.Size = lookup.FileSize
	}
	return ref
}

func parseTimestamp(raw string) time.Time {
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
