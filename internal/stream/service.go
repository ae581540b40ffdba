// Package stream owns the read and write sides of reply streaming: committed
// thread messages, per-message delta fragments, and the cooperative abort
// state consumers use to suppress stale output.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/relayhq/relay/internal/db"
	"github.com/relayhq/relay/internal/db/sqlc"
)

const (
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
	StatusAborted    = "aborted"

	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultPageSize = 50
)

// Resolver is the read-mode slice of the thread identity resolver.
type Resolver interface {
	ResolveRead(ctx context.Context, id string) (string, bool, error)
}

// Message is a committed thread message.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Delta is one incremental fragment of an assistant reply.
type Delta struct {
	MessageID string `json:"message_id"`
	Seq       int32  `json:"seq"`
	Content   string `json:"content"`
	Status    string `json:"status"`
}

// SyncResult is what a streaming read returns. It is always usable: when the
// thread is unknown or a downstream read fails, Committed and Deltas are
// empty and Diagnostic says why.
type SyncResult struct {
	ThreadID    string    `json:"thread_id"`
	Committed   []Message `json:"committed"`
	Deltas      []Delta   `json:"deltas"`
	PageCursor  string    `json:"page_cursor"`
	DeltaCursor string    `json:"delta_cursor"`
	Diagnostic  string    `json:"diagnostic,omitempty"`
}

// Service reads and writes the streaming state of threads.
type Service struct {
	queries  *sqlc.Queries
	resolver Resolver
	logger   *slog.Logger
	pageSize int32
	now      func() time.Time
}

func NewService(log *slog.Logger, queries *sqlc.Queries, resolver Resolver) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries:  queries,
		resolver: resolver,
		logger:   log.With(slog.String("service", "stream")),
		pageSize: defaultPageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sync returns the next page of committed messages and the live deltas for
// threadID. Cursors are RFC3339Nano timestamps from a previous result; empty
// means from the beginning. Sync never returns an error: a failure on any
// downstream read degrades to an empty result with Diagnostic set, so a
// polling client keeps its loop alive.
func (s *Service) Sync(ctx context.Context, threadID, pageCursor, deltaCursor string) SyncResult {
	nativeID, ok, err := s.resolver.ResolveRead(ctx, threadID)
	if err != nil {
		return s.degraded(threadID, pageCursor, deltaCursor, "resolve thread", err)
	}
	if !ok {
		// Nothing has been written under this id yet. Empty, not an error.
		return SyncResult{ThreadID: threadID, Committed: []Message{}, Deltas: []Delta{}, PageCursor: pageCursor, DeltaCursor: deltaCursor}
	}

	abortedAt, err := s.abortEpoch(ctx, nativeID)
	if err != nil {
		return s.degraded(threadID, pageCursor, deltaCursor, "read abort state", err)
	}

	result := SyncResult{
		ThreadID:    nativeID,
		Committed:   []Message{},
		Deltas:      []Delta{},
		PageCursor:  pageCursor,
		DeltaCursor: deltaCursor,
	}

	page, err := s.queries.ListThreadMessagesPage(ctx, sqlc.ListThreadMessagesPageParams{
		ThreadID:  nativeID,
		CreatedAt: parseCursor(pageCursor),
		MaxCount:  s.pageSize,
	})
	if err != nil {
		return s.degraded(threadID, pageCursor, deltaCursor, "read committed page", err)
	}
	for _, row := range page {
		// The cursor advances past suppressed rows too, or a polling client
		// would refetch them forever.
		result.PageCursor = formatCursor(row.CreatedAt)
		if suppressed(row.Status, row.StartedAt, abortedAt) {
			continue
		}
		result.Committed = append(result.Committed, toMessage(row))
	}

	live, err := s.queries.ListActiveMessageDeltas(ctx, sqlc.ListActiveMessageDeltasParams{
		ThreadID:  nativeID,
		CreatedAt: parseCursor(deltaCursor),
	})
	if err != nil {
		return s.degraded(threadID, pageCursor, deltaCursor, "read deltas", err)
	}
	deltaEdge := parseCursor(deltaCursor).Time
	for _, row := range live {
		if row.CreatedAt.Valid && row.CreatedAt.Time.After(deltaEdge) {
			deltaEdge = row.CreatedAt.Time
			result.DeltaCursor = formatCursor(row.CreatedAt)
		}
		if suppressed(row.Status, row.StartedAt, abortedAt) {
			continue
		}
		result.Deltas = append(result.Deltas, Delta{
			MessageID: dbpkg.UUIDToString(row.MessageID),
			Seq:       row.Seq,
			Content:   row.Content,
			Status:    row.Status,
		})
	}
	return result
}

// BeginMessage opens an in-progress message; its started_at stamps the
// generation epoch the abort controller compares against.
func (s *Service) BeginMessage(ctx context.Context, threadID, role string) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, fmt.Errorf("unknown message role %q", role)
	}
	row, err := s.queries.CreateThreadMessage(ctx, sqlc.CreateThreadMessageParams{
		ThreadID:  threadID,
		Role:      role,
		StartedAt: pgtype.Timestamptz{Time: s.now(), Valid: true},
	})
	if err != nil {
		return Message{}, fmt.Errorf("create thread message: %w", err)
	}
	return toMessage(row), nil
}

// AppendDelta records one fragment. Duplicate (messageID, seq) deliveries are
// absorbed by the storage key, so engine retries are safe.
func (s *Service) AppendDelta(ctx context.Context, messageID string, seq int32, content string) error {
	pgID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	inserted, err := s.queries.InsertMessageDelta(ctx, sqlc.InsertMessageDeltaParams{
		MessageID: pgID,
		Seq:       seq,
		Content:   content,
	})
	if err != nil {
		return fmt.Errorf("insert delta: %w", err)
	}
	if inserted == 0 {
		s.logger.Debug("duplicate delta absorbed",
			slog.String("message_id", messageID),
			slog.Int("seq", int(seq)),
		)
	}
	return nil
}

// Finalize commits the message body and marks it finished. When the engine
// omits body, the concatenation of recorded deltas becomes the body, which
// keeps the deltas-reproduce-body invariant by construction.
func (s *Service) Finalize(ctx context.Context, messageID, body string) (Message, error) {
	return s.finalize(ctx, messageID, body, StatusFinished)
}

// MarkAborted closes out a message whose generation was aborted mid-flight.
// Whatever deltas arrived become the body so the record stays self-consistent.
func (s *Service) MarkAborted(ctx context.Context, messageID string) (Message, error) {
	return s.finalize(ctx, messageID, "", StatusAborted)
}

func (s *Service) finalize(ctx context.Context, messageID, body, status string) (Message, error) {
	pgID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid message id: %w", err)
	}
	if body == "" {
		deltas, err := s.queries.ListMessageDeltas(ctx, pgID)
		if err != nil {
			return Message{}, fmt.Errorf("read deltas for finalize: %w", err)
		}
		var sb strings.Builder
		for _, d := range deltas {
			sb.WriteString(d.Content)
		}
		body = sb.String()
	}
	row, err := s.queries.FinalizeThreadMessage(ctx, sqlc.FinalizeThreadMessageParams{
		ID:     pgID,
		Body:   body,
		Status: status,
	})
	if err != nil {
		return Message{}, fmt.Errorf("finalize message: %w", err)
	}
	return toMessage(row), nil
}

// RequestAbort records the abort epoch for a thread. Generation already
// scheduled keeps running; consumers discard unfinished output whose
// generation started before the recorded timestamp. Cooperative, not
// preemptive.
func (s *Service) RequestAbort(ctx context.Context, threadID string) (time.Time, error) {
	nativeID, ok, err := s.resolver.ResolveRead(ctx, threadID)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve thread: %w", err)
	}
	if !ok {
		nativeID = threadID
	}
	state, err := s.queries.UpsertThreadAbort(ctx, nativeID)
	if err != nil {
		return time.Time{}, fmt.Errorf("record abort: %w", err)
	}
	s.logger.Info("abort requested", slog.String("thread_id", nativeID))
	return state.AbortedAt.Time, nil
}

func (s *Service) abortEpoch(ctx context.Context, threadID string) (time.Time, error) {
	state, err := s.queries.GetThreadState(ctx, threadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if !state.AbortedAt.Valid {
		return time.Time{}, nil
	}
	return state.AbortedAt.Time, nil
}

func (s *Service) degraded(threadID, pageCursor, deltaCursor, op string, err error) SyncResult {
	s.logger.Warn("sync degraded",
		slog.String("thread_id", threadID),
		slog.String("op", op),
		slog.Any("error", err),
	)
	return SyncResult{
		ThreadID:    threadID,
		Committed:   []Message{},
		Deltas:      []Delta{},
		PageCursor:  pageCursor,
		DeltaCursor: deltaCursor,
		Diagnostic:  fmt.Sprintf("%s: %v", op, err),
	}
}

// suppressed reports whether a message's output should be hidden from
// consumers. Only generations still in flight at the abort epoch are
// suppressed; finished messages are committed history and stay visible no
// matter when the abort landed.
func suppressed(status string, startedAt pgtype.Timestamptz, abortedAt time.Time) bool {
	if abortedAt.IsZero() || !startedAt.Valid {
		return false
	}
	if status == StatusFinished {
		return false
	}
	return startedAt.Time.Before(abortedAt)
}

func parseCursor(cursor string) pgtype.Timestamptz {
	if cursor == "" {
		return pgtype.Timestamptz{Time: time.Time{}, Valid: true}
	}
	ts, err := time.Parse(time.RFC3339Nano, cursor)
	if err != nil {
		return pgtype.Timestamptz{Time: time.Time{}, Valid: true}
	}
	return pgtype.Timestamptz{Time: ts, Valid: true}
}

func formatCursor(ts pgtype.Timestamptz) string {
	return ts.Time.UTC().Format(time.RFC3339Nano)
}

func toMessage(row sqlc.ThreadMessage) Message {
	return Message{
		ID:        dbpkg.UUIDToString(row.ID),
		ThreadID:  row.ThreadID,
		Role:      row.Role,
		Body:      row.Body,
		Status:    row.Status,
		StartedAt: row.StartedAt.Time,
		CreatedAt: row.CreatedAt.Time,
	}
}
