package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/ws"
)

const maxWebhookBody = 64 << 10

// PaymentConfirmer resolves a succeeded payment into a confirmed order.
// Satisfied by *service.CheckoutService.
type PaymentConfirmer interface {
	ConfirmByPaymentReference(ctx context.Context, paymentRef string) (*database.Order, error)
}

// WebhookHandler receives payment events from Stripe. It is a second
// confirmation path: if the mobile client dies between payment and the
// completion call, the webhook still advances the order.
type WebhookHandler struct {
	confirmer     PaymentConfirmer
	signingSecret string
	events        Broadcaster
}

func NewWebhookHandler(confirmer PaymentConfirmer, signingSecret string, events Broadcaster) *WebhookHandler {
	return &WebhookHandler{confirmer: confirmer, signingSecret: signingSecret, events: events}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/stripe", h.HandleStripe)
}

func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		log.Printf("ERROR: verify webhook signature: %v", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			log.Printf("ERROR: decode payment intent event: %v", err)
			writeError(w, http.StatusBadRequest, "invalid event payload")
			return
		}

		order, err := h.confirmer.ConfirmByPaymentReference(r.Context(), intent.ID)
		if err != nil {
			log.Printf("ERROR: confirm order for payment %s: %v", intent.ID, err)
			// Non-2xx makes Stripe redeliver, which retries reconciliation.
			writeError(w, http.StatusInternalServerError, "confirmation failed")
			return
		}
		if order != nil {
			h.events.Broadcast(ws.EventOrderCreated, map[string]string{
				"order_id": order.ID.String(),
				"total":    numericToDecimal(order.TotalAmount).StringFixed(2),
			})
		}

	case "payment_intent.payment_failed":
		log.Printf("payment failed event: %s", event.ID)

	default:
		log.Printf("unhandled webhook event type: %s", event.Type)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
