package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/versiongate/deploy-engine/webhook"
)

// WebhookHandler serves POST /api/v1/webhooks/{secret}.
type WebhookHandler struct {
	dispatcher *webhook.Dispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(dispatcher *webhook.Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, logger: logger}
}

// eventTypeHeader is the header this handler reads the provider's event type
// from; a reverse proxy or provider-specific adapter in front of this
// endpoint is expected to normalize whatever header the actual provider
// sends (e.g. GitHub's X-GitHub-Event) onto this one.
const eventTypeHeader = "X-Event-Type"

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	eventType := r.Header.Get(eventTypeHeader)
	if eventType == "" {
		eventType = webhook.PushEventType
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), secret, eventType, r.Body)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	if outcome.Skipped {
		writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "skipped", "reason": outcome.Reason})
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "accepted"})
}
