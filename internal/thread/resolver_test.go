package thread

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/db/sqlc"
)

const nativeID = "3f0a9c2e-8d14-4a6b-9a2e-6c5d4b3a0001"

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
	return pgconn.NewCommandTag("INSERT 0 1"), nil
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

func mappingRow(legacy, native string) *fakeRow {
	return &fakeRow{
		scanFunc: func(dest ...any) error {
			*dest[0].(*string) = legacy
			*dest[1].(*string) = native
			*dest[2].(*pgtype.Timestamptz) = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
			return nil
		},
	}
}

type fakeMinter struct {
	id      string
	calls   int
	lastPrj string
}

func (m *fakeMinter) CreateThread(_ context.Context, projectID string) (string, error) {
	m.calls++
	m.lastPrj = projectID
	return m.id, nil
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindNative, Classify(nativeID))
	assert.Equal(t, KindLegacy, Classify("telegram-8f3a1c"))
	assert.Equal(t, KindLegacy, Classify("chat:42"))
	assert.Equal(t, KindLegacy, Classify(""))
}

func TestResolveRead_NativePassthrough(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, sqlc.New(&fakeDBTX{}), &fakeMinter{})
	got, ok, err := r.ResolveRead(context.Background(), nativeID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, nativeID, got)
}

func TestResolveRead_UnmappedLegacyIsNotAnError(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, sqlc.New(&fakeDBTX{}), &fakeMinter{})
	got, ok, err := r.ResolveRead(context.Background(), "telegram-8f3a1c")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestResolveRead_MappedLegacy(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			return mappingRow(args[0].(string), nativeID)
		},
	}
	r := NewResolver(nil, sqlc.New(fake), &fakeMinter{})
	got, ok, err := r.ResolveRead(context.Background(), "telegram-8f3a1c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, nativeID, got)
}

func TestResolveWrite_MintsOnFirstUse(t *testing.T) {
	t.Parallel()

	minter := &fakeMinter{id: nativeID}
	r := NewResolver(nil, sqlc.New(&fakeDBTX{}), minter)
	got, err := r.ResolveWrite(context.Background(), "telegram-8f3a1c", "project-1")
	require.NoError(t, err)
	assert.Equal(t, nativeID, got)
	assert.Equal(t, 1, minter.calls)
	assert.Equal(t, "project-1", minter.lastPrj)
}

func TestResolveWrite_LostRaceAdoptsWinner(t *testing.T) {
	t.Parallel()

	const winnerID = "3f0a9c2e-8d14-4a6b-9a2e-6c5d4b3a0002"
	lookups := 0
	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			lookups++
			if lookups == 1 {
				// No mapping yet at first read.
				return &fakeRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
			}
			return mappingRow(args[0].(string), winnerID)
		},
		execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			// ON CONFLICT DO NOTHING: a concurrent writer already inserted.
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		},
	}
	minter := &fakeMinter{id: nativeID}
	r := NewResolver(nil, sqlc.New(fake), minter)

	got, err := r.ResolveWrite(context.Background(), "telegram-8f3a1c", "project-1")
	require.NoError(t, err)
	assert.Equal(t, winnerID, got, "loser must adopt the winner's native id")
	assert.Equal(t, 1, minter.calls)
}

func TestResolveWrite_NativePassthroughSkipsMinting(t *testing.T) {
	t.Parallel()

	minter := &fakeMinter{id: "should-not-be-used"}
	r := NewResolver(nil, sqlc.New(&fakeDBTX{}), minter)
	got, err := r.ResolveWrite(context.Background(), nativeID, "project-1")
	require.NoError(t, err)
	assert.Equal(t, nativeID, got)
	assert.Zero(t, minter.calls)
}
