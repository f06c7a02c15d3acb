// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/common/model"

	"syncwarden/pkg/alerting"
)

// DefaultWebhookTimeout bounds a single delivery.
const DefaultWebhookTimeout = 5 * time.Second

// AuthConfig configures request authentication for the webhook.
type AuthConfig struct {
	// Type is one of "basic", "bearer" or "header".
	Type     string
	Username string
	Password string
	Token    string
	Headers  map[string]string
}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	// URL receives a POST with an Alertmanager v2 alerts array, e.g.
	// http://alertmanager:9093/api/v2/alerts.
	URL string

	Timeout time.Duration

	// GeneratorURL is set on every alert (optional).
	GeneratorURL string

	Auth *AuthConfig

	// Client overrides the HTTP client (optional).
	Client *http.Client
}

// Webhook posts firing and resolved alerts in the Alertmanager API shape.
//
// Transitions into Pending, and from Pending back to Inactive, are not sent:
// Alertmanager only knows firing and resolved alerts.
type Webhook struct {
	config WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook sink.
func NewWebhook(config WebhookConfig, logger *slog.Logger) (*Webhook, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultWebhookTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := config.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Webhook{
		config: config,
		client: client,
		logger: logger.With("component", "notifier", "sink", "webhook"),
	}, nil
}

// Notify posts the transition when it fires or resolves.
func (w *Webhook) Notify(ctx context.Context, t alerting.Transition) error {
	alert, ok := w.alertFor(t)
	if !ok {
		return nil
	}

	body, err := json.Marshal([]model.Alert{alert})
	if err != nil {
		return &alerting.NotificationError{Sink: "webhook", Err: fmt.Errorf("failed to encode alert: %w", err)}
	}

	if err := w.post(ctx, body); err != nil {
		return &alerting.NotificationError{Sink: "webhook", Err: err}
	}

	w.logger.Debug("Alert delivered",
		"rule", t.Rule,
		"status", string(alert.Status()))
	return nil
}

// alertFor maps a transition to an Alertmanager alert.
func (w *Webhook) alertFor(t alerting.Transition) (model.Alert, bool) {
	annotations := make(model.LabelSet, len(t.Annotations))
	for name, value := range t.Annotations {
		annotations[model.LabelName(name)] = model.LabelValue(value)
	}

	alert := model.Alert{
		Labels:       t.Labels.Clone(),
		Annotations:  annotations,
		GeneratorURL: w.config.GeneratorURL,
	}

	// Resolved alerts carry the same StartsAt as their firing notification.
	alert.StartsAt = t.At
	if !t.Since.IsZero() {
		alert.StartsAt = t.Since
	}

	switch {
	case t.To == alerting.StateFiring:
	case t.From == alerting.StateFiring && t.To == alerting.StateInactive:
		alert.EndsAt = t.At
	default:
		return model.Alert{}, false
	}
	return alert, true
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "syncwarden/1.0")
	if w.config.Auth != nil {
		addAuthHeaders(req, w.config.Auth)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("authentication failed (401 Unauthorized)")
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("access denied (403 Forbidden)")
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error: %s", resp.Status)
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
}

func addAuthHeaders(req *http.Request, auth *AuthConfig) {
	switch auth.Type {
	case "basic":
		if auth.Username != "" || auth.Password != "" {
			credentials := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
			req.Header.Set("Authorization", "Basic "+credentials)
		}
	case "bearer":
		if auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+auth.Token)
		}
	}

	// Custom headers apply for every auth type.
	for key, value := range auth.Headers {
		req.Header.Set(key, value)
	}
}
