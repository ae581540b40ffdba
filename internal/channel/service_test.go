package channel

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/db/sqlc"
)

// fakeRow implements pgx.Row with a custom scan function.
type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

// fakeDBTX implements sqlc.DBTX for unit testing.
type fakeDBTX struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (d *fakeDBTX) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDBTX) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (d *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if d.queryRowFunc != nil {
		return d.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func pgUUID(t *testing.T, id string) pgtype.UUID {
	t.Helper()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func makeProjectRow(id, teamID pgtype.UUID) *fakeRow {
	return &fakeRow{
		scanFunc: func(dest ...any) error {
			*dest[0].(*pgtype.UUID) = id
			*dest[1].(*pgtype.UUID) = teamID
			*dest[2].(*string) = "demo"
			*dest[3].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			return nil
		},
	}
}

func makeUpsertChannelRow(channelID, projectID, teamID pgtype.UUID, inserted bool) *fakeRow {
	return &fakeRow{
		scanFunc: func(dest ...any) error {
			*dest[0].(*pgtype.UUID) = channelID
			*dest[1].(*string) = "telegram"
			*dest[2].(*string) = "12345"
			*dest[3].(*pgtype.UUID) = projectID
			*dest[4].(*pgtype.UUID) = teamID
			*dest[5].(*pgtype.UUID) = pgtype.UUID{}
			*dest[6].(*pgtype.Text) = pgtype.Text{}
			*dest[7].(*bool) = true
			*dest[8].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			*dest[9].(*[]byte) = []byte(`{}`)
			*dest[10].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			*dest[11].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			*dest[12].(*bool) = inserted
			return nil
		},
	}
}

func TestGetOrCreate_FirstContactThenRepeat(t *testing.T) {
	t.Parallel()

	projectID := pgUUID(t, "0b6f4a97-9f3e-4b55-8f64-0c6c6de41001")
	teamID := pgUUID(t, "0b6f4a97-9f3e-4b55-8f64-0c6c6de41002")
	channelID := pgUUID(t, "0b6f4a97-9f3e-4b55-8f64-0c6c6de41003")

	calls := 0
	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			if strings.Contains(sql, "FROM projects") {
				return makeProjectRow(projectID, teamID)
			}
			calls++
			// First upsert inserts, the second one hits the existing row.
			return makeUpsertChannelRow(channelID, projectID, teamID, calls == 1)
		},
	}
	svc := NewService(nil, sqlc.New(fake))

	input := GetOrCreateInput{
		Platform:       PlatformTelegram,
		ExternalUserID: "12345",
		ProjectID:      "0b6f4a97-9f3e-4b55-8f64-0c6c6de41001",
	}

	first, err := svc.GetOrCreate(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Equal(t, "0b6f4a97-9f3e-4b55-8f64-0c6c6de41003", first.Channel.ID)
	assert.Equal(t, PlatformTelegram, first.Channel.Platform)

	second, err := svc.GetOrCreate(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Channel.ID, second.Channel.ID)
}

func TestGetOrCreate_ProjectNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, sqlc.New(&fakeDBTX{}))
	_, err := svc.GetOrCreate(context.Background(), GetOrCreateInput{
		Platform:       PlatformTelegram,
		ExternalUserID: "12345",
		ProjectID:      "0b6f4a97-9f3e-4b55-8f64-0c6c6de41001",
	})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestGetOrCreate_RequiresExternalUserID(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, sqlc.New(&fakeDBTX{}))
	_, err := svc.GetOrCreate(context.Background(), GetOrCreateInput{
		Platform:  PlatformTelegram,
		ProjectID: "0b6f4a97-9f3e-4b55-8f64-0c6c6de41001",
	})
	assert.Error(t, err)
}

func TestGetActiveByBoundUser_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, sqlc.New(&fakeDBTX{}))
	_, err := svc.GetActiveByBoundUser(
		context.Background(),
		"0b6f4a97-9f3e-4b55-8f64-0c6c6de41001",
		"0b6f4a97-9f3e-4b55-8f64-0c6c6de41004",
		PlatformTelegram,
	)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}
