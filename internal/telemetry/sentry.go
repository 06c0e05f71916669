// Package telemetry wires optional Sentry error reporting with privacy filtering.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/privacy"
)

var sentryInitialized atomic.Bool

// InitSentry initializes the Sentry SDK when enabled in settings and installs
// the Sentry reporter for categorized errors. Telemetry is opt-in.
func InitSentry(settings *conf.Settings, version string) error {
	return initSentry(settings, version, nil)
}

// initSentry allows tests to supply a transport.
func initSentry(settings *conf.Settings, version string, transport sentry.Transport) error {
	if !settings.Sentry.Enabled {
		getLogger().Debug("sentry telemetry is disabled")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry enabled but no dsn configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Sentry.Environment,
		ServerName:       "", // never leak the host name
		Release:          fmt.Sprintf("vigil@%s", version),
		Transport:        transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("site", privacy.ScrubMessage(settings.Main.Name))
	})

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized.Store(true)

	getLogger().Info("sentry telemetry initialized", "environment", settings.Sentry.Environment)
	return nil
}

// applyPrivacyFilters removes host identifying data and scrubs free text.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	return event
}

// Flush waits for buffered events to be sent. No-op when Sentry is not initialized.
func Flush(timeout time.Duration) {
	if !sentryInitialized.Load() {
		return
	}
	if !sentry.Flush(timeout) {
		getLogger().Warn("sentry flush timed out", "timeout", timeout)
	}
}

// Shutdown flushes pending events and uninstalls the error reporter.
func Shutdown(timeout time.Duration) {
	Flush(timeout)
	errors.SetTelemetryReporter(nil)
	sentryInitialized.Store(false)
}
