// Package telegram adapts Telegram Bot API webhooks onto the gateway's
// inbound pipeline and sends replies back through the Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relayhq/relay/internal/channel"
)

const maxMessageLength = 4096

// secretTokenHeader is set by Telegram when the webhook was registered with
// a secret_token.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Adapter owns the Bot API clients, one per bot token.
type Adapter struct {
	logger *slog.Logger
	mu     sync.RWMutex
	bots   map[string]*tgbotapi.BotAPI
}

func NewAdapter(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "telegram")),
		bots:   make(map[string]*tgbotapi.BotAPI),
	}
}

var getOrCreateBotForTest func(a *Adapter, token string) (*tgbotapi.BotAPI, error)

func (a *Adapter) getOrCreateBot(token string) (*tgbotapi.BotAPI, error) {
	if getOrCreateBotForTest != nil {
		return getOrCreateBotForTest(a, token)
	}
	a.mu.RLock()
	bot, ok := a.bots[token]
	a.mu.RUnlock()
	if ok {
		return bot, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if bot, ok := a.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		a.logger.Error("create bot failed", slog.Any("error", err))
		return nil, err
	}
	a.bots[token] = bot
	return bot, nil
}

// Sender returns a channel.Sender bound to one bot token.
func (a *Adapter) Sender(token string) channel.Sender {
	return &sender{adapter: a, token: token}
}

type sender struct {
	adapter *Adapter
	token   string
}

func (s *sender) Send(_ context.Context, externalUserID, text string) error {
	bot, err := s.adapter.getOrCreateBot(s.token)
	if err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(externalUserID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", externalUserID, err)
	}
	for _, chunk := range splitMessage(text, maxMessageLength) {
		message := tgbotapi.NewMessage(chatID, chunk)
		if _, err := bot.Send(message); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func (s *sender) SendTyping(_ context.Context, externalUserID string) error {
	bot, err := s.adapter.getOrCreateBot(s.token)
	if err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(externalUserID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", externalUserID, err)
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, err = bot.Request(action)
	return err
}

// normalizeUpdate flattens a Telegram update into the gateway's inbound
// shape. Returns false for updates with nothing to process (edits, channel
// posts, callbacks).
func (a *Adapter) normalizeUpdate(token string, update tgbotapi.Update) (channel.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return channel.InboundMessage{}, false
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	inbound := channel.InboundMessage{
		Platform:       channel.PlatformTelegram,
		ExternalUserID: strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:      strconv.Itoa(msg.MessageID),
		Text:           text,
		Media:          a.collectMedia(token, msg),
		ReceivedAt:     msg.Time(),
	}
	if inbound.Text == "" && len(inbound.Media) == 0 {
		return channel.InboundMessage{}, false
	}
	return inbound, true
}

func (a *Adapter) collectMedia(token string, msg *tgbotapi.Message) []channel.MediaRef {
	refs := make([]channel.MediaRef, 0, 1)
	if len(msg.Photo) > 0 {
		photo := pickPhoto(msg.Photo)
		refs = append(refs, a.mediaRef(token, photo.FileID, "", "image/jpeg", int64(photo.FileSize)))
	}
	if msg.Document != nil {
		refs = append(refs, a.mediaRef(token, msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType, int64(msg.Document.FileSize)))
	}
	if msg.Voice != nil {
		refs = append(refs, a.mediaRef(token, msg.Voice.FileID, "", msg.Voice.MimeType, int64(msg.Voice.FileSize)))
	}
	if msg.Video != nil {
		refs = append(refs, a.mediaRef(token, msg.Video.FileID, msg.Video.FileName, msg.Video.MimeType, int64(msg.Video.FileSize)))
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}

func (a *Adapter) mediaRef(token, fileID, name, mime string, size int64) channel.MediaRef {
	ref := channel.MediaRef{
		FileID:   fileID,
		Filename: strings.TrimSpace(name),
		Mime:     strings.TrimSpace(mime),
		Size:     size,
	}
	bot, err := a.getOrCreateBot(token)
	if err != nil {
		return ref
	}
	url, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		a.logger.Warn("resolve file url failed", slog.Any("error", err))
		return ref
	}
	ref.URL = url
	return ref
}

// pickPhoto chooses the largest rendition Telegram offers.
func pickPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
