package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"visitor-registry/config"
)

// InitSentry configures the global hub. Callers flush with FlushSentry before exit.
func InitSentry(cfg config.SentryConfig, env, version string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		Release:          "visitor-registry@" + version,
		TracesSampleRate: 0.2,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureError reports err on the request's hub when one is attached to ctx,
// otherwise on the global hub. An empty actor leaves the user unset.
func CaptureError(ctx context.Context, err error, actor string, extra map[string]interface{}) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub == nil || hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if actor != "" {
			scope.SetUser(sentry.User{Username: actor})
		}
		for k, v := range extra {
			scope.SetExtra(k, v)
		}
		hub.CaptureException(err)
	})
}
