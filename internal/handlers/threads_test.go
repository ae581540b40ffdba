package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/stream"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	return e
}

type fakeStreams struct {
	syncResult   stream.SyncResult
	abortedAt    time.Time
	abortErr     error
	begun        []string
	appended     []int32
	finalizeBody string
	aborted      bool
}

func (f *fakeStreams) Sync(_ context.Context, threadID, _, _ string) stream.SyncResult {
	result := f.syncResult
	result.ThreadID = threadID
	return result
}

func (f *fakeStreams) RequestAbort(_ context.Context, _ string) (time.Time, error) {
	return f.abortedAt, f.abortErr
}

func (f *fakeStreams) BeginMessage(_ context.Context, threadID, role string) (stream.Message, error) {
	f.begun = append(f.begun, role)
	return stream.Message{ID: "msg-1", ThreadID: threadID, Role: role, Status: stream.StatusInProgress}, nil
}

func (f *fakeStreams) AppendDelta(_ context.Context, _ string, seq int32, _ string) error {
	f.appended = append(f.appended, seq)
	return nil
}

func (f *fakeStreams) Finalize(_ context.Context, messageID, body string) (stream.Message, error) {
	f.finalizeBody = body
	return stream.Message{ID: messageID, Body: body, Status: stream.StatusFinished}, nil
}

func (f *fakeStreams) MarkAborted(_ context.Context, messageID string) (stream.Message, error) {
	f.aborted = true
	return stream.Message{ID: messageID, Status: stream.StatusAborted}, nil
}

func TestSyncEndpoint(t *testing.T) {
	t.Parallel()

	streams := &fakeStreams{syncResult: stream.SyncResult{
		Committed: []stream.Message{{ID: "msg-1", Body: "hello", Status: stream.StatusFinished}},
		Deltas:    []stream.Delta{},
	}}
	h := NewThreadHandler(slog.Default(), streams)
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodGet, "/threads/abc/sync?page_cursor=x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/threads/:id/sync")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	require.NoError(t, h.Sync(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result stream.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "abc", result.ThreadID)
	require.Len(t, result.Committed, 1)
	assert.Equal(t, "hello", result.Committed[0].Body)
}

func TestAbortEndpoint(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewThreadHandler(slog.Default(), &fakeStreams{abortedAt: at})
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/threads/abc/abort", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/threads/:id/abort")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	require.NoError(t, h.Abort(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), at.Format(time.RFC3339Nano))
}

func TestBeginMessageEndpoint_RejectsBadRole(t *testing.T) {
	t.Parallel()

	h := NewThreadHandler(slog.Default(), &fakeStreams{})
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/threads/abc/messages", strings.NewReader(`{"role":"system"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/threads/:id/messages")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.BeginMessage(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestFinalizeEndpoint_AbortedFlag(t *testing.T) {
	t.Parallel()

	streams := &fakeStreams{}
	h := NewThreadHandler(slog.Default(), streams)
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/messages/msg-1/finalize", strings.NewReader(`{"aborted":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/messages/:id/finalize")
	c.SetParamNames("id")
	c.SetParamValues("msg-1")

	require.NoError(t, h.Finalize(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, streams.aborted)
}
