package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNotifyRefreshReuse(t *testing.T) {
	received := make(chan SecurityEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev SecurityEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			received <- ev
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookService(zaptest.NewLogger(t).Sugar(), srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	s.NotifyRefreshReuse(ctx, "alice@example.com")
	cancel()

	select {
	case ev := <-received:
		assert.Equal(t, EventRefreshTokenReuse, ev.Event)
		assert.Equal(t, "alice@example.com", ev.Email)
		assert.False(t, ev.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		require.Fail(t, "webhook was not delivered")
	}
}

func TestNotifyWithoutURLIsNoop(t *testing.T) {
	s := NewWebhookService(zaptest.NewLogger(t).Sugar(), "")
	s.NotifyRefreshReuse(context.Background(), "alice@example.com")
}
