package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter mounts the cart routes behind the global middleware stack.
func NewRouter(cartHandler *CartHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Get("/", cartHandler.GetCart)
		r.Post("/items", cartHandler.AddProduct)
		r.Put("/items/{product_id}", cartHandler.UpdateAmount)
		r.Delete("/items/{product_id}", cartHandler.RemoveProduct)
	})

	return otelhttp.NewHandler(r, "storefront-cart")
}
