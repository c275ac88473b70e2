// Package handler serves the storefront JSON API on a chi router.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/chorbazzar/internal/domain/order"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/session"
)

// SessionHeader identifies the shopper on every cart, wishlist and checkout
// request. It is echoed back, carrying a fresh id when the request had none.
const SessionHeader = "X-Session-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Sessions resolves a session id to its live state.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Checkout places orders.
type Checkout interface {
	Checkout(ctx context.Context, c order.Cart, req order.CheckoutRequest) (*order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
}

// Handler implements the storefront API, delegating to the catalog, the
// session registry and the checkout service.
type Handler struct {
	products     product.Repository
	sessions     Sessions
	checkout     Checkout
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, products product.Repository, sessions Sessions, checkout Checkout) *Handler {
	return &Handler{
		products:     products,
		sessions:     sessions,
		checkout:     checkout,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts every endpoint under /api on a new router.
func (h *Handler) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Get("/cart", h.withSession(h.GetCart))
		r.Delete("/cart", h.withSession(h.ClearCart))
		r.Post("/cart/items", h.withSession(h.AddItem))
		r.Patch("/cart/items/{id}", h.withSession(h.UpdateItem))
		r.Delete("/cart/items/{id}", h.withSession(h.RemoveItem))
		r.Post("/cart/promo", h.withSession(h.ApplyPromo))
		r.Delete("/cart/promo", h.withSession(h.RemovePromo))

		r.Post("/checkout", h.withSession(h.PlaceOrder))

		r.Get("/wishlist", h.withSession(h.GetWishlist))
		r.Post("/wishlist/{id}", h.withSession(h.ToggleWishlist))

		r.Get("/notifications", h.withSession(h.Notifications))
	})
	return r
}
