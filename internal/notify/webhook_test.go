package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_Send(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, time.Second)
	err := sender.Send(context.Background(), "task due soon", []string{"u1", "u2"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)

	var got payload
	require.NoError(t, json.Unmarshal(gotBody, &got))
	assert.Equal(t, "task due soon", got.Message)
	assert.Equal(t, []string{"u1", "u2"}, got.Recipients)
}

func TestWebhookSender_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, time.Second)
	err := sender.Send(context.Background(), "ping", []string{"u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookSender_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the stalled response, not an unread request,
		// is what the client times out on; release before Close so the
		// handler is not still parked when the server shuts down.
		io.Copy(io.Discard, r.Body)
		<-release
	}))
	defer server.Close()
	defer close(release)

	sender := NewWebhookSender(server.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sender.Send(ctx, "slow", []string{"u1"})
	require.Error(t, err)
}
