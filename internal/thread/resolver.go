// Package thread resolves the two thread identity schemes the gateway has
// accumulated: native ids minted by the conversation engine (UUIDs) and
// legacy ids from the pre-engine local scheme. Callers never branch on the
// scheme themselves; they resolve and work with native ids.
package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relayhq/relay/internal/db/sqlc"
)

// Kind labels which identity scheme a thread id belongs to.
type Kind string

const (
	KindNative Kind = "native"
	KindLegacy Kind = "legacy"
)

// Classify reports the identity scheme of id. Native ids are engine-minted
// UUIDs; everything else is legacy.
func Classify(id string) Kind {
	if _, err := uuid.Parse(id); err == nil {
		return KindNative
	}
	return KindLegacy
}

// Minter mints native threads on the conversation engine.
type Minter interface {
	CreateThread(ctx context.Context, projectID string) (string, error)
}

// Resolver maps legacy thread ids onto native ones.
type Resolver struct {
	queries *sqlc.Queries
	minter  Minter
	logger  *slog.Logger
}

func NewResolver(log *slog.Logger, queries *sqlc.Queries, minter Minter) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		queries: queries,
		minter:  minter,
		logger:  log.With(slog.String("service", "thread")),
	}
}

// ResolveRead returns the native id for id without side effects. For an
// unmapped legacy id it returns ok=false and a nil error; read paths treat
// that as "no thread yet", not a failure.
func (r *Resolver) ResolveRead(ctx context.Context, id string) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}
	if Classify(id) == KindNative {
		return id, true, nil
	}
	mapping, err := r.queries.GetThreadMapping(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup thread mapping: %w", err)
	}
	return mapping.NativeID, true, nil
}

// ResolveWrite returns the native id for id, minting a native thread and
// persisting the mapping when a legacy id is seen for the first time.
// Concurrent first writes converge on a single mapping: the insert is
// ON CONFLICT DO NOTHING and the loser re-reads the winner's row.
func (r *Resolver) ResolveWrite(ctx context.Context, id, projectID string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("thread id is required")
	}
	if Classify(id) == KindNative {
		return id, nil
	}

	mapping, err := r.queries.GetThreadMapping(ctx, id)
	switch {
	case err == nil:
		return mapping.NativeID, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return "", fmt.Errorf("lookup thread mapping: %w", err)
	}

	nativeID, err := r.minter.CreateThread(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("mint native thread: %w", err)
	}
	inserted, err := r.queries.InsertThreadMapping(ctx, sqlc.InsertThreadMappingParams{
		LegacyID: id,
		NativeID: nativeID,
	})
	if err != nil {
		return "", fmt.Errorf("persist thread mapping: %w", err)
	}
	if inserted == 0 {
		// Another writer mapped this legacy id first; adopt its thread. The
		// freshly minted thread stays empty on the engine side.
		raced, err := r.queries.GetThreadMapping(ctx, id)
		if err != nil {
			return "", fmt.Errorf("reload thread mapping: %w", err)
		}
		r.logger.Debug("thread mapping race lost",
			slog.String("legacy_id", id),
			slog.String("native_id", raced.NativeID),
		)
		return raced.NativeID, nil
	}
	r.logger.Info("thread mapping created",
		slog.String("legacy_id", id),
		slog.String("native_id", nativeID),
	)
	return nativeID, nil
}
