package pairing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/db/sqlc"
)

const (
	testProjectID = "7e6da8a4-51a4-4b7e-9a6f-2f4f5f3c0001"
	testUserID    = "7e6da8a4-51a4-4b7e-9a6f-2f4f5f3c0002"
)

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

type fakeDBTX struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (d *fakeDBTX) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if d.execFunc != nil {
		return d.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
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

type fakeRegistry struct {
	lastInput channel.GetOrCreateInput
	result    channel.GetOrCreateResult
	err       error
}

func (r *fakeRegistry) GetOrCreate(_ context.Context, input channel.GetOrCreateInput) (channel.GetOrCreateResult, error) {
	r.lastInput = input
	return r.result, r.err
}

func mustPgUUID(t *testing.T, id string) pgtype.UUID {
	t.Helper()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func makePairingRow(t *testing.T, code, status string, expiresAt time.Time) *fakeRow {
	t.Helper()
	id := mustPgUUID(t, "7e6da8a4-51a4-4b7e-9a6f-2f4f5f3c0003")
	projectID := mustPgUUID(t, testProjectID)
	return &fakeRow{
		scanFunc: func(dest ...any) error {
			*dest[0].(*pgtype.UUID) = id
			*dest[1].(*pgtype.UUID) = projectID
			*dest[2].(*string) = "telegram"
			*dest[3].(*string) = "12345"
			*dest[4].(*string) = code
			*dest[5].(*string) = status
			*dest[6].(*pgtype.Timestamptz) = pgtype.Timestamptz{Time: expiresAt, Valid: true}
			*dest[7].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			*dest[8].(*pgtype.UUID) = pgtype.UUID{}
			*dest[9].(*[]byte) = []byte(`{}`)
			*dest[10].(*pgtype.Timestamptz) = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
			return nil
		},
	}
}

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r), "code %q uses a character outside the alphabet", code)
		}
		for _, ambiguous := range []string{"0", "O", "1", "I", "L"} {
			assert.NotContains(t, code, ambiguous)
		}
		seen[code] = true
	}
	// 50 draws over a 31^8 space should not collide.
	assert.Len(t, seen, 50)
}

func TestRequest_IdempotentWhilePending(t *testing.T) {
	t.Parallel()

	expires := time.Now().UTC().Add(time.Hour)
	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			if strings.Contains(sql, "status = 'pending'") {
				return makePairingRow(t, "ABCD2345", StatusPending, expires)
			}
			t.Fatalf("unexpected insert while a pending request exists: %s", sql)
			return nil
		},
	}
	svc := NewService(nil, sqlc.New(fake), &fakeRegistry{}, time.Hour)

	input := RequestInput{ProjectID: testProjectID, Platform: channel.PlatformTelegram, ExternalUserID: "12345"}
	first, err := svc.Request(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.Request(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "ABCD2345", first.Code)
	assert.Equal(t, first.Code, second.Code)
}

func TestRequest_ReplacesExpiredPending(t *testing.T) {
	t.Parallel()

	stale := time.Now().UTC().Add(-time.Minute)
	expired := false
	created := false
	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
			if strings.Contains(sql, "status = 'pending'") {
				return makePairingRow(t, "STALE234", StatusPending, stale)
			}
			created = true
			code := args[3].(string)
			return makePairingRow(t, code, StatusPending, time.Now().UTC().Add(time.Hour))
		},
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "'expired'") {
				expired = true
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	svc := NewService(nil, sqlc.New(fake), &fakeRegistry{}, time.Hour)

	request, err := svc.Request(context.Background(), RequestInput{
		ProjectID:      testProjectID,
		Platform:       channel.PlatformTelegram,
		ExternalUserID: "12345",
	})
	require.NoError(t, err)
	assert.True(t, expired, "stale pending request should be expired")
	assert.True(t, created, "a fresh request should replace the stale one")
	assert.NotEqual(t, "STALE234", request.Code)
	assert.Len(t, request.Code, CodeLength)
}

func TestRedeem_RequiresAuthenticatedUser(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, sqlc.New(&fakeDBTX{}), &fakeRegistry{}, time.Hour)
	_, err := svc.Redeem(context.Background(), "ABCD2345", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRedeem_UnknownCode(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, sqlc.New(&fakeDBTX{}), &fakeRegistry{}, time.Hour)
	_, err := svc.Redeem(context.Background(), "NOPE2345", testUserID)
	assert.ErrorIs(t, err, ErrPairingNotFound)
}

func TestRedeem_Expired(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			return makePairingRow(t, "ABCD2345", StatusPending, time.Now().UTC().Add(-time.Minute))
		},
	}
	svc := NewService(nil, sqlc.New(fake), &fakeRegistry{}, time.Hour)
	_, err := svc.Redeem(context.Background(), "ABCD2345", testUserID)
	assert.ErrorIs(t, err, ErrPairingExpired)
}

func TestRedeem_BindsChannelOnce(t *testing.T) {
	t.Parallel()

	status := StatusPending
	registry := &fakeRegistry{
		result: channel.GetOrCreateResult{
			Channel: channel.Channel{ID: "7e6da8a4-51a4-4b7e-9a6f-2f4f5f3c0004", Platform: channel.PlatformTelegram},
			IsNew:   true,
		},
	}
	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			return makePairingRow(t, "ABCD2345", status, time.Now().UTC().Add(time.Hour))
		},
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "'redeemed'") {
				status = StatusRedeemed
				return pgconn.NewCommandTag("UPDATE 1"), nil
			}
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	svc := NewService(nil, sqlc.New(fake), registry, time.Hour)

	ch, err := svc.Redeem(context.Background(), "abcd2345", testUserID)
	require.NoError(t, err)
	assert.Equal(t, "7e6da8a4-51a4-4b7e-9a6f-2f4f5f3c0004", ch.ID)
	assert.Equal(t, testUserID, registry.lastInput.BoundUserID)
	assert.Equal(t, "12345", registry.lastInput.ExternalUserID)

	// The code is consumed; a second redemption must fail.
	_, err = svc.Redeem(context.Background(), "ABCD2345", testUserID)
	assert.ErrorIs(t, err, ErrPairingNotFound)
}
