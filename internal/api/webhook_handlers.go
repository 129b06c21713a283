package api

import (
	"io"
	"net/http"

	"github.com/bitrixepl/engine/internal/webhook"
)

// webhookIntakeHandler is POST /webhooks/bitrix (spec.md §6.2): it always
// answers HTTP 200 with {status:"accepted", event, entity_id} once the
// body parses, regardless of the later async sync outcome — Dispatch
// only enqueues, it never blocks this response on the sync work.
func (s *Server) webhookIntakeHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "could not read request body")
		return
	}
	defer r.Body.Close()

	form, err := webhook.ParseForm(string(body))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed webhook body")
		return
	}

	result := s.dispatcher.Dispatch(form)
	event := webhook.StringAt(form, "event")
	entityID := webhook.StringAt(form, "data.FIELDS.ID")

	writeJSONStatus(w, http.StatusOK, map[string]any{
		"status":    "accepted",
		"event":     event,
		"entity_id": entityID,
		"queued":    result.Accepted,
	})
}

// registerWebhooksHandler is POST /webhooks/register: binds the
// configured handler URL to the 12 known CRM events.
func (s *Server) registerWebhooksHandler(w http.ResponseWriter, r *http.Request) {
	if err := webhook.RegisterAll(r.Context(), s.bitrix, s.webhookRegisterURL); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "registered"})
}

// unregisterWebhooksHandler is DELETE /webhooks/unregister.
func (s *Server) unregisterWebhooksHandler(w http.ResponseWriter, r *http.Request) {
	if err := webhook.UnregisterAll(r.Context(), s.bitrix, s.webhookRegisterURL); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "unregistered"})
}
