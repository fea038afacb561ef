package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTelegramSenderPostsMessage(t *testing.T) {
	var gotPath string
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("secret-token", "chat-42")
	s.endpoint = srv.URL + "/botsecret-token/sendMessage"

	require.NoError(t, s.Send(context.Background(), "Position opened", "Will it rain?"))
	assert.Equal(t, "/botsecret-token/sendMessage", gotPath)
	assert.Equal(t, "chat-42", got.ChatID)
	assert.Equal(t, "*Position opened*\nWill it rain?", got.Text)
	assert.Equal(t, "Markdown", got.ParseMode)
}

func TestTelegramSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"description":"bad token"}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("bad", "chat-42")
	s.endpoint = srv.URL

	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad token")
}

func TestDiscordSenderPostsMessage(t *testing.T) {
	var got discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// Discord answers webhook posts with 204 No Content.
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Position closed", "take profit at 0.32"))
	assert.Equal(t, "**Position closed**\ntake profit at 0.32", got.Content)
}

func TestDiscordSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord")
	assert.Contains(t, err.Error(), "429")
}

// recordingSender captures deliveries and optionally fails them.
type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (r *recordingSender) Send(ctx context.Context, title, message string) error {
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventPositionOpened}, discardLogger())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, EventPositionOpened, "opened", "m"))
	require.NoError(t, n.Notify(ctx, EventPositionClosed, "closed", "m"))
	assert.Equal(t, []string{"opened"}, s.titles)

	// NotifyAll bypasses the filter.
	require.NoError(t, n.NotifyAll(ctx, "urgent", "m"))
	assert.Equal(t, []string{"opened", "urgent"}, s.titles)
}

func TestNotifierEmptyEventListAllowsEverything(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventCycleDegraded, "degraded", "m"))
	assert.Equal(t, []string{"degraded"}, s.titles)
}

func TestNotifierDeliversPastFailingSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("webhook down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "title", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"title"}, good.titles)
}
