package config

import (
	"net/url"
)

const redactedValue = "REDACTED"

// Redacted returns a copy of c with credentials masked, safe to expose over
// the status API.
func (c *Config) Redacted() *Config {
	out := *c
	out.Alerting.Rules = append([]AlertRule(nil), c.Alerting.Rules...)

	if c.Store.DSN != "" {
		out.Store.DSN = redactDSN(c.Store.DSN)
	}

	if c.Notifier.Webhook != nil {
		webhook := *c.Notifier.Webhook
		if webhook.Auth != nil {
			auth := *webhook.Auth
			if auth.Password != "" {
				auth.Password = redactedValue
			}
			if auth.Token != "" {
				auth.Token = redactedValue
			}
			if len(auth.Headers) > 0 {
				auth.Headers = make(map[string]string, len(webhook.Auth.Headers))
				for name := range webhook.Auth.Headers {
					auth.Headers[name] = redactedValue
				}
			}
			webhook.Auth = &auth
		}
		out.Notifier.Webhook = &webhook
	}
	return &out
}

// redactDSN masks the password of a URL-style DSN. Other forms are masked
// entirely since key=value DSNs may carry the password anywhere.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return redactedValue
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redactedValue)
	}
	return u.String()
}
