package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tavolo-app/api/internal/config"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/handler"
	mw "github.com/tavolo-app/api/internal/middleware"
	"github.com/tavolo-app/api/internal/payment"
	"github.com/tavolo-app/api/internal/service"
	"github.com/tavolo-app/api/internal/ws"
)

// New creates a Chi router with all application routes wired up: the public
// storefront, provider webhooks, the WebSocket order feed, and the
// JWT-protected merchant console.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://shop.tavolo.app",
			"https://console.tavolo.app",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Providers
	connectClient := payment.NewConnectClient(cfg.ConnectBaseURL, cfg.ConnectAPIKey)
	oauthClient := payment.NewOAuthClient(cfg.OAuthBaseURL, cfg.OAuthAPIKey)
	providers := map[string]payment.Provider{
		enum.ProviderConnect: connectClient,
		enum.ProviderOAuth:   oauthClient,
	}

	// Services
	orderService := service.NewOrderService(queries, pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	checkoutService := service.NewCheckoutService(queries, pool, func(db database.DBTX) service.CheckoutStore {
		return database.New(db)
	}, providers, hub, cfg.PublicBaseURL)
	subscriptionService := service.NewSubscriptionService(queries, connectClient, cfg.PublicBaseURL)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Provider webhooks (authenticated by signature, not JWT)
	webhookHandler := handler.NewWebhookHandler(checkoutService, subscriptionService, map[string]string{
		enum.ProviderConnect: cfg.ConnectWebhookSecret,
		enum.ProviderOAuth:   cfg.OAuthWebhookSecret,
	})
	webhookHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/stores/{sid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Public storefront
	r.Route("/stores/{sid}", func(r chi.Router) {
		catalogHandler := handler.NewCatalogHandler(queries)
		catalogHandler.RegisterRoutes(r)

		orderHandler := handler.NewOrderHandler(orderService)
		orderHandler.RegisterRoutes(r)

		checkoutHandler := handler.NewCheckoutHandler(checkoutService)
		checkoutHandler.RegisterRoutes(r)
	})

	// Merchant console (require authentication + store scoping)
	r.Route("/console/stores/{sid}", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireStore)

		merchantHandler := handler.NewMerchantHandler(queries, orderService, checkoutService, hub)
		merchantHandler.RegisterRoutes(r)

		// Billing is the owner's business
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner))
			subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
			subscriptionHandler.RegisterRoutes(r)
		})
	})

	return r
}
