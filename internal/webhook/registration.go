package webhook

import (
	"context"

	"go.uber.org/multierr"

	"github.com/bitrixepl/engine/internal/bitrix"
)

// RegisterAll binds handlerURL to every known event (spec.md §4.J's 12
// combinations), tolerating individual per-event failures so one bad
// subscription doesn't abort the rest (the original's register_webhooks
// loop-with-partial-failure behavior).
func RegisterAll(ctx context.Context, client *bitrix.Client, handlerURL string) error {
	var errs error
	for _, event := range bitrix.KnownWebhookEvents {
		if err := client.RegisterWebhook(ctx, event, handlerURL); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// UnregisterAll unbinds handlerURL from every known event, with the
// same partial-failure tolerance as RegisterAll.
func UnregisterAll(ctx context.Context, client *bitrix.Client, handlerURL string) error {
	var errs error
	for _, event := range bitrix.KnownWebhookEvents {
		if err := client.UnregisterWebhook(ctx, event, handlerURL); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
