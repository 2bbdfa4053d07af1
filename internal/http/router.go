package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
)

// NewRouter serves the given store. A nil store is allowed; cart routes
// then answer 503 until a store is attached.
func NewRouter(store *cart.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", healthHandler)

	cartHandler := NewCartHandler()
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(WithStore(store))
		r.Get("/", cartHandler.GetCart)
		r.Post("/items", cartHandler.AddItem)
		r.Post("/items/{id}/increment", cartHandler.Increment)
		r.Post("/items/{id}/decrement", cartHandler.Decrement)
	})
	return r
}

// WithStore attaches store to every request context.
func WithStore(store *cart.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store != nil {
				r = r.WithContext(cart.NewContext(r.Context(), store))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "service": "cart-store"}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
