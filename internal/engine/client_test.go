package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	var got DispatchInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/dispatch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(nil, srv.URL, time.Second)
	err := c.Dispatch(context.Background(), DispatchInput{
		ThreadID:     "thread-1",
		ProjectID:    "project-1",
		ActorID:      "user-1",
		PromptText:   "hello",
		MediaFileIDs: []string{"file-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "thread-1", got.ThreadID)
	assert.Equal(t, []string{"file-1"}, got.MediaFileIDs)
}

func TestDispatch_RequiresThread(t *testing.T) {
	c := NewClient(nil, "http://127.0.0.1:0", time.Second)
	assert.Error(t, c.Dispatch(context.Background(), DispatchInput{}))
}

func TestCreateThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/threads", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"threadId": "native-1"})
	}))
	defer srv.Close()

	c := NewClient(nil, srv.URL, time.Second)
	id, err := c.CreateThread(context.Background(), "project-1")
	require.NoError(t, err)
	assert.Equal(t, "native-1", id)
}

func TestCreateThread_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(nil, srv.URL, time.Second)
	_, err := c.CreateThread(context.Background(), "project-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
