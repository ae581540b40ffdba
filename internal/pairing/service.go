// Package pairing binds an unauthenticated external messaging identity to a
// project through a short human-transcribable code.
//
// Each (project, platform, external user) identity moves through a small state
// machine: NONE -> PENDING -> REDEEMED or EXPIRED. Expiry is enforced when a
// code is observed (request or redemption), not by a background sweep.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/relayhq/relay/internal/channel"
	dbpkg "github.com/relayhq/relay/internal/db"
	"github.com/relayhq/relay/internal/db/sqlc"
)

const (
	StatusPending  = "pending"
	StatusRedeemed = "redeemed"
	StatusExpired  = "expired"
)

var (
	// ErrPairingNotFound is returned when no redeemable request matches a code.
	ErrPairingNotFound = errors.New("pairing request not found")
	// ErrPairingExpired is returned when the code's window has passed.
	ErrPairingExpired = errors.New("pairing request expired")
	// ErrUnauthenticated is returned when redemption lacks an acting user.
	ErrUnauthenticated = errors.New("redemption requires an authenticated user")
)

const uniqueViolationCode = "23505"

// ChannelRegistry is the slice of the channel registry pairing needs.
type ChannelRegistry interface {
	GetOrCreate(ctx context.Context, input channel.GetOrCreateInput) (channel.GetOrCreateResult, error)
}

// Request is a pairing request in flight.
type Request struct {
	ID             string           `json:"id"`
	ProjectID      string           `json:"project_id"`
	Platform       channel.Platform `json:"platform"`
	ExternalUserID string           `json:"external_user_id"`
	Code           string           `json:"code"`
	Status         string           `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Service implements the pairing state machine.
type Service struct {
	queries  *sqlc.Queries
	registry ChannelRegistry
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a pairing service. ttl bounds how long a code stays
// redeemable.
func NewService(log *slog.Logger, queries *sqlc.Queries, registry ChannelRegistry, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		queries:  queries,
		registry: registry,
		ttl:      ttl,
		logger:   log.With(slog.String("service", "pairing")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestInput identifies the external identity asking to pair.
type RequestInput struct {
	ProjectID      string
	Platform       channel.Platform
	ExternalUserID string
	Metadata       map[string]any
}

// Request returns the pending pairing request for the identity, creating one
// when none exists. Calling it again while a request is pending returns the
// same code; a stale pending request is expired and replaced.
func (s *Service) Request(ctx context.Context, input RequestInput) (Request, error) {
	pgProjectID, err := dbpkg.ParseUUID(input.ProjectID)
	if err != nil {
		return Request{}, fmt.Errorf("invalid project id: %w", err)
	}
	externalUserID := strings.TrimSpace(input.ExternalUserID)
	if externalUserID == "" {
		return Request{}, fmt.Errorf("external user id is required")
	}

	pendingParams := sqlc.GetPendingPairingParams{
		ProjectID:      pgProjectID,
		Platform:       string(input.Platform),
		ExternalUserID: externalUserID,
	}
	existing, err := s.queries.GetPendingPairing(ctx, pendingParams)
	switch {
	case err == nil:
		if existing.ExpiresAt.Time.After(s.now()) {
			return toRequest(existing), nil
		}
		if expireErr := s.queries.MarkPairingExpired(ctx, existing.ID); expireErr != nil {
			return Request{}, fmt.Errorf("expire stale pairing: %w", expireErr)
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return Request{}, fmt.Errorf("lookup pending pairing: %w", err)
	}

	metaBytes, err := json.Marshal(nonNilMap(input.Metadata))
	if err != nil {
		return Request{}, fmt.Errorf("marshal pairing metadata: %w", err)
	}
	code, err := GenerateCode()
	if err != nil {
		return Request{}, err
	}
	created, err := s.queries.CreatePairingRequest(ctx, sqlc.CreatePairingRequestParams{
		ProjectID:      pgProjectID,
		Platform:       string(input.Platform),
		ExternalUserID: externalUserID,
		Code:           code,
		ExpiresAt:      pgtype.Timestamptz{Time: s.now().Add(s.ttl), Valid: true},
		Metadata:       metaBytes,
	})
	if err != nil {
		// A concurrent request won the pending slot; return its code.
		if isUniqueViolation(err) {
			raced, lookupErr := s.queries.GetPendingPairing(ctx, pendingParams)
			if lookupErr == nil {
				return toRequest(raced), nil
			}
		}
		return Request{}, fmt.Errorf("create pairing request: %w", err)
	}
	s.logger.Info("pairing requested",
		slog.String("project_id", input.ProjectID),
		slog.String("platform", string(input.Platform)),
	)
	return toRequest(created), nil
}

// Redeem consumes a pending code on behalf of an authenticated user, creating
// (or binding) the channel for the paired identity. A code redeems at most
// once; expiry is checked here rather than by a sweeper.
func (s *Service) Redeem(ctx context.Context, code, actingUserID string) (channel.Channel, error) {
	if strings.TrimSpace(actingUserID) == "" {
		return channel.Channel{}, ErrUnauthenticated
	}
	pgUserID, err := dbpkg.ParseUUID(actingUserID)
	if err != nil {
		return channel.Channel{}, fmt.Errorf("invalid acting user id: %w", err)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return channel.Channel{}, ErrPairingNotFound
	}

	request, err := s.queries.GetPairingByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return channel.Channel{}, ErrPairingNotFound
		}
		return channel.Channel{}, fmt.Errorf("lookup pairing: %w", err)
	}
	if request.Status != StatusPending {
		return channel.Channel{}, ErrPairingNotFound
	}
	if !request.ExpiresAt.Time.After(s.now()) {
		if expireErr := s.queries.MarkPairingExpired(ctx, request.ID); expireErr != nil {
			s.logger.Warn("mark pairing expired failed", slog.Any("error", expireErr))
		}
		return channel.Channel{}, ErrPairingExpired
	}

	affected, err := s.queries.MarkPairingRedeemed(ctx, sqlc.MarkPairingRedeemedParams{
		ID:         request.ID,
		RedeemedBy: pgUserID,
	})
	if err != nil {
		return channel.Channel{}, fmt.Errorf("redeem pairing: %w", err)
	}
	if affected == 0 {
		// Lost a concurrent redemption race.
		return channel.Channel{}, ErrPairingNotFound
	}

	result, err := s.registry.GetOrCreate(ctx, channel.GetOrCreateInput{
		Platform:       channel.Platform(request.Platform),
		ExternalUserID: request.ExternalUserID,
		ProjectID:      dbpkg.UUIDToString(request.ProjectID),
		BoundUserID:    actingUserID,
		Metadata:       map[string]any{"paired_at": s.now().Format(time.RFC3339)},
	})
	if err != nil {
		return channel.Channel{}, fmt.Errorf("bind channel: %w", err)
	}
	s.logger.Info("pairing redeemed",
		slog.String("channel_id", result.Channel.ID),
		slog.String("platform", request.Platform),
	)
	return result.Channel, nil
}

func toRequest(row sqlc.PairingRequest) Request {
	return Request{
		ID:             dbpkg.UUIDToString(row.ID),
		ProjectID:      dbpkg.UUIDToString(row.ProjectID),
		Platform:       channel.Platform(row.Platform),
		ExternalUserID: row.ExternalUserID,
		Code:           row.Code,
		Status:         row.Status,
		ExpiresAt:      row.ExpiresAt.Time,
		CreatedAt:      row.CreatedAt.Time,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
