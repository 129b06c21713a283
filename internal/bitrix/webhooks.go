package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
)

// RegisteredWebhook describes one entry from event.get.
type RegisteredWebhook struct {
	Event   string `json:"event"`
	Handler string `json:"handler"`
}

// RegisterWebhook wraps event.bind, subscribing handlerURL to event.
func (c *Client) RegisterWebhook(ctx context.Context, event, handlerURL string) error {
	_, err := c.Call(ctx, "event.bind", map[string]any{
		"event":   event,
		"handler": handlerURL,
	})
	return err
}

// UnregisterWebhook wraps event.unbind.
func (c *Client) UnregisterWebhook(ctx context.Context, event, handlerURL string) error {
	_, err := c.Call(ctx, "event.unbind", map[string]any{
		"event":   event,
		"handler": handlerURL,
	})
	return err
}

// ListRegisteredWebhooks wraps event.get.
func (c *Client) ListRegisteredWebhooks(ctx context.Context) ([]RegisteredWebhook, error) {
	raw, err := c.Call(ctx, "event.get", nil)
	if err != nil {
		return nil, err
	}
	var hooks []RegisteredWebhook
	if err := json.Unmarshal(raw, &hooks); err != nil {
		return nil, fmt.Errorf("bitrix: decode event.get: %w", err)
	}
	return hooks, nil
}

// KnownWebhookEvents is the 12 ONCRM{DEAL,CONTACT,LEAD,COMPANY}
// {ADD,UPDATE,DELETE} combinations spec.md §4.J defines as the supported
// event surface for registration convenience.
var KnownWebhookEvents = func() []string {
	entities := []string{"DEAL", "CONTACT", "LEAD", "COMPANY"}
	actions := []string{"ADD", "UPDATE", "DELETE"}
	events := make([]string, 0, len(entities)*len(actions))
	for _, e := range entities {
		for _, a := range actions {
			events = append(events, fmt.Sprintf("ONCRM%s%s", e, a))
		}
	}
	return events
}()
