// Package adapters holds what the platform webhook handlers share: the
// endpoint credential lookup and the inbound message pipeline. The handlers
// themselves stay thin translations of platform envelopes.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	dbpkg "github.com/relayhq/relay/internal/db"
	"github.com/relayhq/relay/internal/db/sqlc"
)

// ErrEndpointNotFound means the presented credential matches no endpoint.
var ErrEndpointNotFound = errors.New("platform endpoint not found")

// Endpoint is a project's registration for one platform. Metadata carries
// platform credentials (e.g. the Telegram bot token) the adapter needs for
// outbound calls.
type Endpoint struct {
	ID        string
	ProjectID string
	Platform  string
	Metadata  map[string]string
}

// Credential returns a metadata value, empty when absent.
func (e Endpoint) Credential(key string) string {
	return e.Metadata[key]
}

// EndpointStore resolves webhook credentials to projects. Lookups are keyed
// reads against storage every time; handlers run as independent instances
// and must not rely on process-local caches.
type EndpointStore interface {
	BySecret(ctx context.Context, platform, secret string) (Endpoint, error)
	ByVerifyToken(ctx context.Context, platform, token string) (Endpoint, error)
}

type sqlEndpointStore struct {
	queries *sqlc.Queries
}

func NewEndpointStore(queries *sqlc.Queries) EndpointStore {
	return &sqlEndpointStore{queries: queries}
}

func (s *sqlEndpointStore) BySecret(ctx context.Context, platform, secret string) (Endpoint, error) {
	row, err := s.queries.GetEndpointBySecret(ctx, sqlc.GetEndpointBySecretParams{
		Platform:      platform,
		WebhookSecret: secret,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Endpoint{}, ErrEndpointNotFound
		}
		return Endpoint{}, fmt.Errorf("lookup endpoint by secret: %w", err)
	}
	return toEndpoint(row), nil
}

func (s *sqlEndpointStore) ByVerifyToken(ctx context.Context, platform, token string) (Endpoint, error) {
	row, err := s.queries.GetEndpointByVerifyToken(ctx, sqlc.GetEndpointByVerifyTokenParams{
		Platform:    platform,
		VerifyToken: token,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Endpoint{}, ErrEndpointNotFound
		}
		return Endpoint{}, fmt.Errorf("lookup endpoint by verify token: %w", err)
	}
	return toEndpoint(row), nil
}

func toEndpoint(row sqlc.PlatformEndpoint) Endpoint {
	metadata := map[string]string{}
	if len(row.Metadata) > 0 {
		// Credentials are flat string pairs; anything else in there is not
		// the adapter's business.
		_ = json.Unmarshal(row.Metadata, &metadata)
	}
	return Endpoint{
		ID:        dbpkg.UUIDToString(row.ID),
		ProjectID: dbpkg.UUIDToString(row.ProjectID),
		Platform:  row.Platform,
		Metadata:  metadata,
	}
}
