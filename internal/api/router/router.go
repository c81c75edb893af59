package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentestate/outreach/internal/http/handlers"
	httpmiddleware "github.com/agentestate/outreach/internal/http/middleware"
	"github.com/agentestate/outreach/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	TelnyxWebhooks *handlers.TelnyxWebhookHandler
	TwilioWebhooks *handlers.TwilioWebhookHandler
	EmailWebhooks  *handlers.InboundEmailHandler
	Admin          *handlers.AdminOutreachHandler
	AdminJWTSecret string
	MetricsHandler http.Handler

	// WebhookRate limits inbound webhook requests per second per IP.
	// Zero disables the limiter.
	WebhookRate  float64
	WebhookBurst int
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, provider webhooks, metrics.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		public.Route("/webhooks", func(wh chi.Router) {
			if cfg.WebhookRate > 0 {
				wh.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
			}
			if cfg.TelnyxWebhooks != nil {
				wh.Post("/telnyx/messages", cfg.TelnyxWebhooks.HandleMessages)
			}
			if cfg.TwilioWebhooks != nil {
				wh.Post("/twilio/sms", cfg.TwilioWebhooks.HandleInbound)
			}
			if cfg.EmailWebhooks != nil {
				wh.Post("/sendgrid/inbound", cfg.EmailWebhooks.HandleInbound)
			}
		})

		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin endpoints behind JWT auth.
	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))

			admin.Post("/leads", cfg.Admin.CreateLead)
			admin.Get("/leads/{leadID}", cfg.Admin.GetLead)
			admin.Get("/leads/{leadID}/state", cfg.Admin.GetState)
			admin.Post("/leads/{leadID}/outreach", cfg.Admin.StartOutreach)
			admin.Post("/leads/{leadID}/follow-up", cfg.Admin.FollowUp)
			admin.Post("/leads/{leadID}/no-show", cfg.Admin.NoShow)
			admin.Get("/campaigns/{campaignID}/leads", cfg.Admin.ListLeads)
			admin.Get("/states", cfg.Admin.ListStates)
			admin.Get("/runs/{runID}", cfg.Admin.GetRun)
		})
	}

	return r
}
