// Package router wires the HTTP API surface.
package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/storecore/paygate/handler"

	// Import for side-effect registration
	_ "github.com/storecore/paygate/gateway/liqpay"
	_ "github.com/storecore/paygate/gateway/paypal"
	_ "github.com/storecore/paygate/gateway/razorpay"
	_ "github.com/storecore/paygate/gateway/stripe"
)

// Deps carries the handlers the routes dispatch to
type Deps struct {
	Payments *handler.PaymentHandler
	Webhooks *handler.WebhookHandler
}

// Routes registers all API routes
func Routes(r chi.Router, deps Deps) {
	r.Route("/v1", func(r chi.Router) {
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/payment_form_settings", deps.Payments.GetPaymentFormSettings)
			r.Post("/charge", deps.Payments.ChargeOrder)
		})

		// Provider callbacks; providers do not authenticate, the
		// notification payload is verified instead.
		r.Post("/notifications/{gateway}", deps.Payments.PaymentNotification)

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", deps.Webhooks.ListWebhooks)
			r.Post("/", deps.Webhooks.CreateWebhook)
			r.Post("/trigger", deps.Webhooks.TriggerWebhooks)
			r.Get("/{webhookID}", deps.Webhooks.GetWebhook)
			r.Put("/{webhookID}", deps.Webhooks.UpdateWebhook)
			r.Delete("/{webhookID}", deps.Webhooks.DeleteWebhook)
		})
	})
}
