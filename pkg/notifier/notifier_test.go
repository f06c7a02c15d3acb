package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncwarden/pkg/alerting"
)

var at = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func transition(from, to alerting.State) alerting.Transition {
	t := alerting.Transition{
		Rule: "HighRequestRate",
		Labels: model.LabelSet{
			model.AlertNameLabel: "HighRequestRate",
			"endpoint":           "/",
			"severity":           "warning",
		},
		Annotations: map[string]string{"summary": "request rate high"},
		From:        from,
		To:          to,
		Value:       10,
		Since:       at.Add(-2 * time.Minute),
		At:          at,
	}
	if to != alerting.StateInactive {
		t.ActiveSince = at.Add(-2 * time.Minute)
	}
	return t
}

type alertServer struct {
	*httptest.Server
	mu       sync.Mutex
	received [][]model.Alert
	headers  []http.Header
	status   int
}

func newAlertServer(t *testing.T) *alertServer {
	t.Helper()
	s := &alertServer{status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alerts []model.Alert
		if err := json.NewDecoder(r.Body).Decode(&alerts); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.received = append(s.received, alerts)
		s.headers = append(s.headers, r.Header.Clone())
		status := s.status
		s.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *alertServer) posts() [][]model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]model.Alert(nil), s.received...)
}

func TestWebhook_PostsFiringAlert(t *testing.T) {
	server := newAlertServer(t)
	hook, err := NewWebhook(WebhookConfig{URL: server.URL + "/api/v2/alerts", GeneratorURL: "http://syncwarden"}, nil)
	require.NoError(t, err)

	require.NoError(t, hook.Notify(context.Background(), transition(alerting.StatePending, alerting.StateFiring)))

	posts := server.posts()
	require.Len(t, posts, 1)
	require.Len(t, posts[0], 1)

	alert := posts[0][0]
	assert.Equal(t, model.LabelValue("HighRequestRate"), alert.Labels[model.AlertNameLabel])
	assert.Equal(t, model.LabelValue("request rate high"), alert.Annotations["summary"])
	assert.True(t, alert.StartsAt.Equal(at.Add(-2*time.Minute)))
	assert.True(t, alert.EndsAt.IsZero())
	assert.Equal(t, "http://syncwarden", alert.GeneratorURL)
	assert.Equal(t, "application/json", server.headers[0].Get("Content-Type"))
}

func TestWebhook_PostsResolvedAlert(t *testing.T) {
	server := newAlertServer(t)
	hook, err := NewWebhook(WebhookConfig{URL: server.URL}, nil)
	require.NoError(t, err)

	require.NoError(t, hook.Notify(context.Background(), transition(alerting.StateFiring, alerting.StateInactive)))

	posts := server.posts()
	require.Len(t, posts, 1)
	assert.True(t, posts[0][0].EndsAt.Equal(at))
	assert.True(t, posts[0][0].StartsAt.Equal(at.Add(-2*time.Minute)), "resolved alert must keep the firing StartsAt")
}

func TestWebhook_SkipsPendingTransitions(t *testing.T) {
	server := newAlertServer(t)
	hook, err := NewWebhook(WebhookConfig{URL: server.URL}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, hook.Notify(ctx, transition(alerting.StateInactive, alerting.StatePending)))
	require.NoError(t, hook.Notify(ctx, transition(alerting.StatePending, alerting.StateInactive)))

	assert.Empty(t, server.posts())
}

func TestWebhook_ServerErrorIsNotificationError(t *testing.T) {
	server := newAlertServer(t)
	server.status = http.StatusServiceUnavailable

	hook, err := NewWebhook(WebhookConfig{URL: server.URL}, nil)
	require.NoError(t, err)

	err = hook.Notify(context.Background(), transition(alerting.StateInactive, alerting.StateFiring))
	require.Error(t, err)

	var notifyErr *alerting.NotificationError
	require.ErrorAs(t, err, &notifyErr)
	assert.Equal(t, "webhook", notifyErr.Sink)
	assert.Contains(t, err.Error(), "503")
}

func TestWebhook_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	hook, err := NewWebhook(WebhookConfig{URL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	start := time.Now()
	err = hook.Notify(context.Background(), transition(alerting.StateInactive, alerting.StateFiring))
	require.Error(t, err)
	assert.Less(t, time.Since(start), DefaultWebhookTimeout)
}

func TestWebhook_Auth(t *testing.T) {
	tests := []struct {
		name   string
		auth   *AuthConfig
		header string
		want   string
	}{
		{"bearer", &AuthConfig{Type: "bearer", Token: "s3cret"}, "Authorization", "Bearer s3cret"},
		{"basic", &AuthConfig{Type: "basic", Username: "u", Password: "p"}, "Authorization", "Basic dTpw"},
		{"header", &AuthConfig{Type: "header", Headers: map[string]string{"X-Api-Key": "k"}}, "X-Api-Key", "k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newAlertServer(t)
			hook, err := NewWebhook(WebhookConfig{URL: server.URL, Auth: tt.auth}, nil)
			require.NoError(t, err)

			require.NoError(t, hook.Notify(context.Background(), transition(alerting.StateInactive, alerting.StateFiring)))
			require.Len(t, server.headers, 1)
			assert.Equal(t, tt.want, server.headers[0].Get(tt.header))
		})
	}
}

func TestNewWebhook_RequiresURL(t *testing.T) {
	_, err := NewWebhook(WebhookConfig{}, nil)
	assert.Error(t, err)
}

func TestLog_WritesTransition(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	sink := NewLog(logger)
	require.NoError(t, sink.Notify(context.Background(), transition(alerting.StatePending, alerting.StateFiring)))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "Alert firing")
	assert.Contains(t, out, "rule=HighRequestRate")
}

type failingSink struct {
	name  string
	calls int
}

func (f *failingSink) Notify(context.Context, alerting.Transition) error {
	f.calls++
	return &alerting.NotificationError{Sink: f.name, Err: errors.New("unreachable")}
}

type countingSink struct{ calls int }

func (c *countingSink) Notify(context.Context, alerting.Transition) error {
	c.calls++
	return nil
}

func TestMulti_CallsEverySinkAndJoinsErrors(t *testing.T) {
	first := &failingSink{name: "a"}
	second := &countingSink{}
	third := &failingSink{name: "b"}

	err := Multi{first, second, third}.Notify(context.Background(), transition(alerting.StateInactive, alerting.StateFiring))
	require.Error(t, err)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)
	assert.Contains(t, err.Error(), "via a")
	assert.Contains(t, err.Error(), "via b")
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Notify(context.Background(), alerting.Transition{}))
}
