package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/engine"
	"github.com/relayhq/relay/internal/media"
	"github.com/relayhq/relay/internal/pairing"
	"github.com/relayhq/relay/internal/stream"
)

// Registry is the channel registry slice the pipeline needs.
type Registry interface {
	GetOrCreate(ctx context.Context, input channel.GetOrCreateInput) (channel.GetOrCreateResult, error)
	BindThread(ctx context.Context, channelID, threadID string) error
	ResetThread(ctx context.Context, channelID string) error
}

// Pairer issues pairing codes for unbound channels.
type Pairer interface {
	Request(ctx context.Context, input pairing.RequestInput) (pairing.Request, error)
}

// ThreadResolver maps channel-local thread ids to native ones, minting on
// first write.
type ThreadResolver interface {
	ResolveWrite(ctx context.Context, id, projectID string) (string, error)
}

// Streamer is the read side the reply poller uses.
type Streamer interface {
	Sync(ctx context.Context, threadID, pageCursor, deltaCursor string) stream.SyncResult
}

// Ingester stores inbound attachments.
type Ingester interface {
	Ingest(ctx context.Context, ref channel.MediaRef, projectID, actorID string) (media.File, error)
}

const (
	replyPollInterval = time.Second

	pairingReplyFormat = "To connect this chat, enter the code %s in the app. It expires soon, so don't sit on it."
	resetReply         = "Conversation reset. Your next message starts a fresh thread."
	ingestFailedReply  = "I couldn't fetch that attachment, so I'll answer from the text alone."
	dispatchFailReply  = "Something went wrong handling that message. Please try again in a moment."
)

// Processor runs the shared inbound pipeline behind every platform adapter.
// Handlers acknowledge the webhook first and hand the message here on a
// detached context; nothing in Process may assume the HTTP request is still
// open.
type Processor struct {
	registry     Registry
	pairer       Pairer
	resolver     ThreadResolver
	streamer     Streamer
	ingester     Ingester
	dispatcher   engine.Dispatcher
	replyTimeout time.Duration
	logger       *slog.Logger
}

func NewProcessor(
	log *slog.Logger,
	registry Registry,
	pairer Pairer,
	resolver ThreadResolver,
	streamer Streamer,
	ingester Ingester,
	dispatcher engine.Dispatcher,
	replyTimeout time.Duration,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if replyTimeout <= 0 {
		replyTimeout = 2 * time.Minute
	}
	return &Processor{
		registry:     registry,
		pairer:       pairer,
		resolver:     resolver,
		streamer:     streamer,
		ingester:     ingester,
		dispatcher:   dispatcher,
		replyTimeout: replyTimeout,
		logger:       log.With(slog.String("service", "gateway")),
	}
}

// Process handles one normalized inbound message for an authenticated
// endpoint. Errors are absorbed: the webhook already returned 200, so the
// only useful failure mode is a best-effort reply to the user plus a log
// line.
func (p *Processor) Process(ctx context.Context, endpoint Endpoint, msg channel.InboundMessage, sender channel.Sender) {
	log := p.logger.With(
		slog.String("platform", string(msg.Platform)),
		slog.String("project_id", endpoint.ProjectID),
	)

	if err := sender.SendTyping(ctx, msg.ExternalUserID); err != nil {
		log.Debug("typing indicator failed", slog.Any("error", err))
	}

	directive := channel.ParseDirective(msg.Text)
	switch directive.Kind {
	case channel.DirectiveBegin:
		p.handleBegin(ctx, log, endpoint, msg, directive, sender)
	case channel.DirectiveReset:
		p.handleReset(ctx, log, endpoint, msg, sender)
	default:
		p.handleContent(ctx, log, endpoint, msg, sender)
	}
}

func (p *Processor) handleBegin(ctx context.Context, log *slog.Logger, endpoint Endpoint, msg channel.InboundMessage, directive channel.Directive, sender channel.Sender) {
	result, err := p.registry.GetOrCreate(ctx, channel.GetOrCreateInput{
		Platform:       msg.Platform,
		ExternalUserID: msg.ExternalUserID,
		ProjectID:      endpoint.ProjectID,
	})
	if err != nil {
		log.Error("channel lookup failed", slog.Any("error", err))
		p.reply(ctx, log, sender, msg.ExternalUserID, dispatchFailReply)
		return
	}
	if result.Channel.BoundUserID != "" {
		p.reply(ctx, log, sender, msg.ExternalUserID, "This chat is already connected.")
		return
	}
	// Deep links (Telegram /start payloads and the like) arrive as the
	// directive param; keep it on the pairing request so the redeeming app
	// can route the user back to where they clicked.
	var meta map[string]any
	if directive.Param != "" {
		meta = map[string]any{"start_param": directive.Param}
	}
	request, err := p.pairer.Request(ctx, pairing.RequestInput{
		ProjectID:      endpoint.ProjectID,
		Platform:       msg.Platform,
		ExternalUserID: msg.ExternalUserID,
		Metadata:       meta,
	})
	if err != nil {
		log.Error("pairing request failed", slog.Any("error", err))
		p.reply(ctx, log, sender, msg.ExternalUserID, dispatchFailReply)
		return
	}
	p.reply(ctx, log, sender, msg.ExternalUserID, fmt.Sprintf(pairingReplyFormat, request.Code))
}

func (p *Processor) handleReset(ctx context.Context, log *slog.Logger, endpoint Endpoint, msg channel.InboundMessage, sender channel.Sender) {
	result, err := p.registry.GetOrCreate(ctx, channel.GetOrCreateInput{
		Platform:       msg.Platform,
		ExternalUserID: msg.ExternalUserID,
		ProjectID:      endpoint.ProjectID,
	})
	if err != nil {
		log.Error("channel lookup failed", slog.Any("error", err))
		return
	}
	if err := p.registry.ResetThread(ctx, result.Channel.ID); err != nil {
		log.Error("thread reset failed", slog.Any("error", err))
		p.reply(ctx, log, sender, msg.ExternalUserID, dispatchFailReply)
		return
	}
	p.reply(ctx, log, sender, msg.ExternalUserID, resetReply)
}

func (p *Processor) handleContent(ctx context.Context, log *slog.Logger, endpoint Endpoint, msg channel.InboundMessage, sender channel.Sender) {
	result, err := p.registry.GetOrCreate(ctx, channel.GetOrCreateInput{
		Platform:       msg.Platform,
		ExternalUserID: msg.ExternalUserID,
		ProjectID:      endpoint.ProjectID,
	})
	if err != nil {
		log.Error("channel lookup failed", slog.Any("error", err))
		p.reply(ctx, log, sender, msg.ExternalUserID, dispatchFailReply)
		return
	}
	ch := result.Channel

	threadID := ch.ThreadID
	if threadID == "" {
		// First message on this channel: resolve the channel-local id into a
		// native thread and remember the binding.
		localID := fmt.Sprintf("%s-%s", msg.Platform, msg.ExternalUserID)
		threadID, err = p.resolver.ResolveWrite(ctx, localID, endpoint.ProjectID)
		if err != nil {
			log.Error("thread resolution failed", slog.Any("error", err))
			p.reply(ctx, log, sender, msg.ExternalUserID, dispatchFailReply)
			return
		}
		if err := p.registry.BindThread(ctx, ch.ID, threadID); err != nil {
			log.Error("thread binding failed", slog.Any("error", err))
		}
	}

	var fileIDs []string
	for _, ref := range msg.Media {
		file, err := p.ingester.Ingest(ctx, ref, endpoint.ProjectID, ch.BoundUserID)
		if err != nil {
			var ingestErr *media.IngestError
			if errors.As(err, &ingestErr) {
				log.Warn("media ingest failed",
					slog.String("stage", string(ingestErr.Stage)),
					slog.Any("error", err),
				)
			} else {
				log.Warn("media ingest failed", slog.Any("error", err))
			}
			p.reply(ctx, log, sender, msg.ExternalUserID, ingestFailedReply)
			continue
		}
		fileIDs = append(fileIDs, file.ID)
	}

	dispatchedAt := time.Now().UTC()
	err = p.dispatcher.Dispatch(ctx, engine.DispatchInput{
		ThreadID:     threadID,
		ProjectID:    endpoint.ProjectID,
		ActorID:      ch.BoundUserID,
		PromptText:   msg.Text,
		MediaFileIDs: fileIDs,
	})
	if err != nil {
		log.Error("dispatch failed", slog.Any("error", err))
		p.reply(ctx, log, sender, msg.ExternalUserID, dispatchFailReply)
		return
	}

	if body, ok := p.awaitReply(ctx, threadID, dispatchedAt); ok {
		p.reply(ctx, log, sender, msg.ExternalUserID, body)
	} else {
		log.Warn("no reply before timeout", slog.String("thread_id", threadID))
	}
}

// awaitReply polls the stream until an assistant message committed after
// dispatchedAt shows up or the bound expires.
func (p *Processor) awaitReply(ctx context.Context, threadID string, dispatchedAt time.Time) (string, bool) {
	deadline := time.Now().Add(p.replyTimeout)
	pageCursor := dispatchedAt.Format(time.RFC3339Nano)
	ticker := time.NewTicker(replyPollInterval)
	defer ticker.Stop()

	for {
		result := p.streamer.Sync(ctx, threadID, pageCursor, "")
		for _, m := range result.Committed {
			if m.Role == stream.RoleAssistant && m.Status == stream.StatusFinished {
				return m.Body, true
			}
		}
		pageCursor = result.PageCursor

		if time.Now().After(deadline) {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
		}
	}
}

func (p *Processor) reply(ctx context.Context, log *slog.Logger, sender channel.Sender, externalUserID, text string) {
	if err := sender.Send(ctx, externalUserID, text); err != nil {
		log.Error("send reply failed", slog.Any("error", err))
	}
}
