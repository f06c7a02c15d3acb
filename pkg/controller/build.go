package controller

import (
	"context"
	"fmt"
	"log/slog"

	"syncwarden/pkg/alerting"
	"syncwarden/pkg/cluster"
	"syncwarden/pkg/core/config"
	"syncwarden/pkg/diff"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/metricsource"
	"syncwarden/pkg/notifier"
	"syncwarden/pkg/reconciler"
	"syncwarden/pkg/retry"
	"syncwarden/pkg/source"
	"syncwarden/pkg/store"
)

func buildSource(cfg *config.Config, src source.Source, logger *slog.Logger) (source.Source, error) {
	if src == nil {
		src = source.NewDirectory(source.DirectoryConfig{
			Path:             cfg.Source.Path,
			Subdir:           cfg.Source.Subdir,
			DefaultNamespace: cfg.Source.DefaultNamespace,
			Debounce:         cfg.Source.GetDebounce(),
		}, logger)
	}
	if !cfg.Source.WatchEnabled() {
		src = intervalOnly{src}
	}
	return src, nil
}

// intervalOnly disables change notifications so passes only run on the
// interval.
type intervalOnly struct {
	source.Source
}

func (intervalOnly) Watch(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}

func buildTarget(cfg *config.Config, target cluster.Target, logger *slog.Logger) (cluster.Target, error) {
	if target != nil {
		return target, nil
	}
	k8s, err := cluster.NewKubernetesFromConfig(cluster.Config{
		Kubeconfig: cfg.Cluster.Kubeconfig,
		Timeout:    cfg.Cluster.GetRequestTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}
	return k8s, nil
}

func buildStore(ctx context.Context, cfg *config.Config, st store.Store) (store.Store, error) {
	if st != nil {
		return st, nil
	}
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := store.NewPostgres(ctx, cfg.Store.DSN, cfg.Store.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		return pg, nil
	default:
		return store.NewMemory(cfg.Store.HistoryLimit), nil
	}
}

func reconcilerConfig(cfg *config.Config) reconciler.Config {
	return reconciler.Config{
		Interval:     cfg.Sync.GetInterval(),
		FetchTimeout: cfg.Sync.GetFetchTimeout(),
		ApplyTimeout: cfg.Sync.GetApplyTimeout(),
		Workers:      cfg.Sync.Workers,
		Policy:       diff.Policy{Prune: cfg.Sync.Prune, SelfHeal: cfg.Sync.SelfHeal},
		Retry: retry.Config{
			MaxAttempts: cfg.Sync.Retry.MaxAttempts,
			BaseDelay:   cfg.Sync.Retry.GetBaseDelay(),
			MaxDelay:    cfg.Sync.Retry.GetMaxDelay(),
			Jitter:      retry.DefaultJitter,
		},
	}
}

// AlertRules converts configured rules.
func AlertRules(cfg *config.AlertingConfig) []alerting.Rule {
	rules := make([]alerting.Rule, len(cfg.Rules))
	for i := range cfg.Rules {
		r := &cfg.Rules[i]
		rules[i] = alerting.Rule{
			Name:        r.Name,
			Expr:        r.Expr,
			Range:       r.GetRange(),
			Threshold:   r.Threshold,
			For:         r.GetFor(),
			Labels:      r.Labels,
			Annotations: r.Annotations,
		}
	}
	return rules
}

func buildEvaluator(cfg *config.Config, deps Dependencies, bus *busevents.EventBus, logger *slog.Logger) (*alerting.Evaluator, error) {
	if !cfg.Alerting.Enabled() {
		return nil, nil
	}

	src := deps.Metrics
	if src == nil {
		prom, err := metricsource.NewPrometheus(metricsource.PrometheusConfig{
			Address: cfg.Alerting.PrometheusURL,
			Timeout: cfg.Alerting.GetQueryTimeout(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric source: %w", err)
		}
		src = prom
	}

	sink := deps.Notifier
	if sink == nil {
		var err error
		if sink, err = buildNotifier(&cfg.Notifier, logger); err != nil {
			return nil, err
		}
	}

	return alerting.NewEvaluator(src, sink, bus, logger, AlertRules(&cfg.Alerting), alerting.Config{
		Interval:     cfg.Alerting.GetInterval(),
		QueryTimeout: cfg.Alerting.GetQueryTimeout(),
		Retention:    cfg.Alerting.GetRetention(),
		Step:         cfg.Alerting.GetStep(),
	})
}

func buildNotifier(cfg *config.NotifierConfig, logger *slog.Logger) (alerting.Notifier, error) {
	var sinks notifier.Multi
	if cfg.LogEnabled() {
		sinks = append(sinks, notifier.NewLog(logger))
	}
	if cfg.Webhook != nil {
		webhookCfg := notifier.WebhookConfig{
			URL:          cfg.Webhook.URL,
			Timeout:      cfg.Webhook.GetTimeout(),
			GeneratorURL: cfg.Webhook.GeneratorURL,
		}
		if auth := cfg.Webhook.Auth; auth != nil {
			webhookCfg.Auth = &notifier.AuthConfig{
				Type:     auth.Type,
				Username: auth.Username,
				Password: auth.Password,
				Token:    auth.Token,
				Headers:  auth.Headers,
			}
		}
		webhook, err := notifier.NewWebhook(webhookCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook notifier: %w", err)
		}
		sinks = append(sinks, webhook)
	}
	return sinks, nil
}
