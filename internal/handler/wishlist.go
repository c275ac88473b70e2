package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chorbazzar/internal/session"
)

// GetWishlist returns the stashed products.
func (h *Handler) GetWishlist(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	items := s.Wishlist.Items()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		h.encodeProducts(e, items)
		e.ObjEnd()
	})
}

// ToggleWishlist adds a catalog product to the wishlist, or removes it when
// already present.
func (h *Handler) ToggleWishlist(w http.ResponseWriter, r *http.Request, s *session.Session) {
	p, ok := h.lookupProduct(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	added, err := s.Wishlist.Toggle(r.Context(), *p)
	if err != nil {
		h.internalError(w, r, errors.Wrap(err, "toggle wishlist"))
		return
	}

	items := s.Wishlist.Items()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("added")
		e.Bool(added)
		e.FieldStart("items")
		h.encodeProducts(e, items)
		e.ObjEnd()
	})
}

// Notifications drains the session's pending toasts. Each toast is returned
// once and expired toasts are dropped.
func (h *Handler) Notifications(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	msgs := s.Feed.Drain()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("notifications")
		encodeMessages(e, msgs)
		e.ObjEnd()
	})
}
