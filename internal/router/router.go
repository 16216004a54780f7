package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/three-sisters-oyster/api/internal/cache"
	"github.com/three-sisters-oyster/api/internal/config"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/handler"
	mw "github.com/three-sisters-oyster/api/internal/middleware"
	"github.com/three-sisters-oyster/api/internal/service"
	"github.com/three-sisters-oyster/api/internal/ws"
)

// Deps carries the shared collaborators the routes are built from.
type Deps struct {
	Config   *config.Config
	Queries  *database.Queries
	Carts    handler.CartStore
	Cache    cache.Cache
	Checkout *service.CheckoutService
	Hub      *ws.Hub
}

// New creates a Chi router with all application routes wired up. Storefront
// routes are public (session-scoped via X-Session-ID); dashboard routes sit
// behind JWT authentication.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(d.Config.AdminEmail, d.Config.AdminPasswordHash, d.Config.JWTSecret)
	r.Route("/auth", authHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, d.Config.JWTSecret, w, r)
	})

	productHandler := handler.NewProductHandler(d.Queries, d.Cache, d.Hub)
	cartHandler := handler.NewCartHandler(d.Carts, d.Queries)
	checkoutHandler := handler.NewCheckoutHandler(d.Checkout, d.Carts, d.Hub)
	webhookHandler := handler.NewWebhookHandler(d.Checkout, d.Config.StripeWebhookSecret, d.Hub)

	// Storefront routes (public)
	r.Route("/products", productHandler.RegisterPublicRoutes)
	r.Route("/cart", cartHandler.RegisterRoutes)
	r.Route("/checkout", checkoutHandler.RegisterRoutes)
	r.Route("/webhooks", webhookHandler.RegisterRoutes)

	// Dashboard routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(d.Config.JWTSecret))

		inventoryHandler := handler.NewInventoryHandler(d.Queries, d.Hub)
		orderHandler := handler.NewOrderHandler(d.Queries, d.Hub)

		r.Route("/admin", func(r chi.Router) {
			r.Route("/products", productHandler.RegisterAdminRoutes)
			r.Route("/inventory", inventoryHandler.RegisterRoutes)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	return r
}
