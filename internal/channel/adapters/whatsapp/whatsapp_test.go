package whatsapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/channel"
)

func TestNormalizeEnvelope_ImageMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/media-1", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":       "https://lookaside.example/media-1",
			"mime_type": "image/jpeg",
			"file_size": 2048,
		})
	}))
	defer srv.Close()

	a := NewAdapter(nil)
	a.baseURL = srv.URL

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(`{
	  "entry": [{"changes": [{"value": {"messages": [{
	    "from": "15551230001",
	    "id": "wamid.2",
	    "timestamp": "1767225600",
	    "type": "image",
	    "image": {"id": "media-1", "mime_type": "image/jpeg", "caption": "look at this"}
	  }]}}]}]
	}`), &env))

	messages := a.normalizeEnvelope("token-1", env)
	require.Len(t, messages, 1)
	msg := messages[0]
	assert.Equal(t, channel.PlatformWhatsApp, msg.Platform)
	assert.Equal(t, "look at this", msg.Text, "caption becomes the prompt text")
	require.Len(t, msg.Media, 1)
	assert.Equal(t, "media-1", msg.Media[0].FileID)
	assert.Equal(t, "https://lookaside.example/media-1", msg.Media[0].URL)
	assert.Equal(t, "image/jpeg", msg.Media[0].Mime)
	assert.Equal(t, int64(2048), msg.Media[0].Size)
}

func TestNormalizeEnvelope_MediaLookupFailureKeepsHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewAdapter(nil)
	a.baseURL = srv.URL

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(`{
	  "entry": [{"changes": [{"value": {"messages": [{
	    "from": "15551230001",
	    "id": "wamid.3",
	    "timestamp": "1767225600",
	    "type": "document",
	    "document": {"id": "media-2", "mime_type": "application/pdf", "filename": "report.pdf"}
	  }]}}]}]
	}`), &env))

	messages := a.normalizeEnvelope("token-1", env)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Media, 1)
	assert.Equal(t, "media-2", messages[0].Media[0].FileID)
	assert.Empty(t, messages[0].Media[0].URL, "the ingest step reports this as a download failure")
	assert.Equal(t, "report.pdf", messages[0].Media[0].Filename)
}
