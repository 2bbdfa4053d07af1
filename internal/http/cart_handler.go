package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
)

type CartHandler struct{}

func NewCartHandler() *CartHandler {
	return &CartHandler{}
}

type cartResponse struct {
	Items    []cart.Item `json:"items"`
	Subtotal string      `json:"subtotal"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := resolveCart(w, r)
	if !ok {
		return
	}
	writeCart(w, c)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := resolveCart(w, r)
	if !ok {
		return
	}

	var body cart.Product
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	c.AddToCart(body)
	writeCart(w, c)
}

// Increment answers 200 for unknown ids too; the store treats them as a no-op.
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	c, ok := resolveCart(w, r)
	if !ok {
		return
	}
	c.Increment(chi.URLParam(r, "id"))
	writeCart(w, c)
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	c, ok := resolveCart(w, r)
	if !ok {
		return
	}
	c.Decrement(chi.URLParam(r, "id"))
	writeCart(w, c)
}

func resolveCart(w http.ResponseWriter, r *http.Request) (cart.Cart, bool) {
	c, err := cart.FromContext(r.Context())
	if err != nil {
		if errors.Is(err, cart.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return nil, false
	}
	return c, true
}

func writeCart(w http.ResponseWriter, c cart.Cart) {
	items := c.Items()
	writeJSON(w, http.StatusOK, cartResponse{
		Items:    items,
		Subtotal: cart.Subtotal(items).StringFixed(2),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
