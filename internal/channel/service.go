package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/relayhq/relay/internal/db"
	"github.com/relayhq/relay/internal/db/sqlc"
)

// ErrChannelNotFound is returned when no channel matches a lookup.
var ErrChannelNotFound = errors.New("channel not found")

// ErrProjectNotFound is returned when the owning project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// Service is the channel registry. Uniqueness of (platform, external user,
// project) is enforced by the channels table's conditional upsert, not by
// in-process locking, so concurrent first-contact webhooks converge on one row.
type Service struct {
	queries *sqlc.Queries
	logger  *slog.Logger
}

// NewService creates a channel registry service.
func NewService(log *slog.Logger, queries *sqlc.Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "channel")),
	}
}

// GetOrCreateInput identifies or describes a channel for GetOrCreate.
type GetOrCreateInput struct {
	Platform       Platform
	ExternalUserID string
	ProjectID      string
	BoundUserID    string
	Metadata       map[string]any
}

// GetOrCreateResult carries the resolved channel and whether this call
// inserted it.
type GetOrCreateResult struct {
	Channel Channel
	IsNew   bool
}

// GetOrCreate resolves the channel for (platform, externalUserID, projectID),
// creating it on first contact. An existing channel has its activity and
// metadata refreshed, and its bound user backfilled when newly available.
func (s *Service) GetOrCreate(ctx context.Context, input GetOrCreateInput) (GetOrCreateResult, error) {
	if strings.TrimSpace(input.ExternalUserID) == "" {
		return GetOrCreateResult{}, fmt.Errorf("external user id is required")
	}
	pgProjectID, err := dbpkg.ParseUUID(input.ProjectID)
	if err != nil {
		return GetOrCreateResult{}, fmt.Errorf("invalid project id: %w", err)
	}
	project, err := s.queries.GetProject(ctx, pgProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GetOrCreateResult{}, ErrProjectNotFound
		}
		return GetOrCreateResult{}, fmt.Errorf("resolve project: %w", err)
	}

	pgBoundUserID := pgtype.UUID{}
	if strings.TrimSpace(input.BoundUserID) != "" {
		pgBoundUserID, err = dbpkg.ParseUUID(input.BoundUserID)
		if err != nil {
			return GetOrCreateResult{}, fmt.Errorf("invalid bound user id: %w", err)
		}
	}
	metaBytes, err := json.Marshal(nonNilMap(input.Metadata))
	if err != nil {
		return GetOrCreateResult{}, fmt.Errorf("marshal channel metadata: %w", err)
	}

	row, err := s.queries.UpsertChannel(ctx, sqlc.UpsertChannelParams{
		Platform:       string(input.Platform),
		ExternalUserID: strings.TrimSpace(input.ExternalUserID),
		ProjectID:      pgProjectID,
		TeamID:         project.TeamID,
		BoundUserID:    pgBoundUserID,
		Metadata:       metaBytes,
	})
	if err != nil {
		return GetOrCreateResult{}, fmt.Errorf("upsert channel: %w", err)
	}
	result := GetOrCreateResult{
		Channel: toChannelFromUpsert(row),
		IsNew:   row.Inserted,
	}
	if result.IsNew {
		s.logger.Info("channel created",
			slog.String("channel_id", result.Channel.ID),
			slog.String("platform", string(input.Platform)),
			slog.String("project_id", input.ProjectID),
		)
	}
	return result, nil
}

// GetByID loads a channel by its id.
func (s *Service) GetByID(ctx context.Context, channelID string) (Channel, error) {
	pgID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid channel id: %w", err)
	}
	row, err := s.queries.GetChannelByID(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, err
	}
	return toChannel(row), nil
}

// GetByIdentity looks up the channel for the unique identity triple.
func (s *Service) GetByIdentity(ctx context.Context, platform Platform, externalUserID, projectID string) (Channel, error) {
	pgProjectID, err := dbpkg.ParseUUID(projectID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid project id: %w", err)
	}
	row, err := s.queries.GetChannelByIdentity(ctx, sqlc.GetChannelByIdentityParams{
		Platform:       string(platform),
		ExternalUserID: strings.TrimSpace(externalUserID),
		ProjectID:      pgProjectID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, err
	}
	return toChannel(row), nil
}

// ListByProject returns all channels belonging to a project.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]Channel, error) {
	pgProjectID, err := dbpkg.ParseUUID(projectID)
	if err != nil {
		return nil, fmt.Errorf("invalid project id: %w", err)
	}
	rows, err := s.queries.ListChannelsByProject(ctx, pgProjectID)
	if err != nil {
		return nil, err
	}
	channels := make([]Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, toChannel(row))
	}
	return channels, nil
}

// GetActiveByBoundUser returns the single active channel a user holds on a
// platform within a project. The identity-triple uniqueness guarantees at
// most one result.
func (s *Service) GetActiveByBoundUser(ctx context.Context, projectID, boundUserID string, platform Platform) (Channel, error) {
	pgProjectID, err := dbpkg.ParseUUID(projectID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid project id: %w", err)
	}
	pgUserID, err := dbpkg.ParseUUID(boundUserID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid user id: %w", err)
	}
	row, err := s.queries.GetActiveChannelByBoundUser(ctx, sqlc.GetActiveChannelByBoundUserParams{
		ProjectID:   pgProjectID,
		BoundUserID: pgUserID,
		Platform:    string(platform),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, err
	}
	return toChannel(row), nil
}

// BindThread records the resolved thread id on a channel after the first
// generation dispatch.
func (s *Service) BindThread(ctx context.Context, channelID, threadID string) error {
	pgID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	return s.queries.SetChannelThread(ctx, sqlc.SetChannelThreadParams{
		ID:       pgID,
		ThreadID: dbpkg.ToPgText(threadID),
	})
}

// ResetThread clears the channel's resolved thread so the next message starts
// a fresh conversation.
func (s *Service) ResetThread(ctx context.Context, channelID string) error {
	pgID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	return s.queries.ClearChannelThread(ctx, pgID)
}

// Deactivate marks a channel inactive. Channels are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, channelID string) error {
	pgID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	return s.queries.DeactivateChannel(ctx, pgID)
}

func toChannel(row sqlc.Channel) Channel {
	return toChannelFields(
		row.ID, row.Platform, row.ExternalUserID, row.ProjectID, row.TeamID,
		row.BoundUserID, row.ThreadID, row.Active, row.LastActiveAt,
		row.Metadata, row.CreatedAt, row.UpdatedAt,
	)
}

func toChannelFromUpsert(row sqlc.UpsertChannelRow) Channel {
	return toChannelFields(
		row.ID, row.Platform, row.ExternalUserID, row.ProjectID, row.TeamID,
		row.BoundUserID, row.ThreadID, row.Active, row.LastActiveAt,
		row.Metadata, row.CreatedAt, row.UpdatedAt,
	)
}

func toChannelFields(
	id pgtype.UUID,
	platform string,
	externalUserID string,
	projectID pgtype.UUID,
	teamID pgtype.UUID,
	boundUserID pgtype.UUID,
	threadID pgtype.Text,
	active bool,
	lastActiveAt pgtype.Timestamptz,
	metadata []byte,
	createdAt pgtype.Timestamptz,
	updatedAt pgtype.Timestamptz,
) Channel {
	var meta map[string]any
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &meta)
	}
	return Channel{
		ID:             dbpkg.UUIDToString(id),
		Platform:       Platform(platform),
		ExternalUserID: externalUserID,
		ProjectID:      dbpkg.UUIDToString(projectID),
		TeamID:         dbpkg.UUIDToString(teamID),
		BoundUserID:    dbpkg.UUIDToString(boundUserID),
		ThreadID:       dbpkg.TextToString(threadID),
		Active:         active,
		LastActiveAt:   lastActiveAt.Time,
		Metadata:       meta,
		CreatedAt:      createdAt.Time,
		UpdatedAt:      updatedAt.Time,
	}
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
