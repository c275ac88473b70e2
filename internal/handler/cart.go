package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chorbazzar/internal/domain/cart"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/session"
)

// GetCart returns the line items and the current quote.
func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	h.writeCart(w, http.StatusOK, s.Cart.Snapshot())
}

// AddItem adds a catalog product to the cart. The product is re-read from the
// catalog so the client cannot choose the price.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var (
		productID string
		qty       = 1
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = product.DecodeID(d)
		case "quantity":
			qty, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if productID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid product id: must not be empty")
		return
	}

	p, ok := h.lookupProduct(w, r, productID)
	if !ok {
		return
	}
	if !p.InStock() {
		writeError(w, http.StatusConflict, "product is out of stock")
		return
	}

	if err := s.Cart.AddToCart(r.Context(), *p, qty); err != nil {
		h.cartError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, s.Cart.Snapshot())
}

// UpdateItem sets the quantity of a line item. Out-of-range quantities and
// products not in the cart leave it unchanged.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var (
		qty    int
		hasQty bool
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		hasQty = true
		var err error
		qty, err = d.Int()
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if !hasQty {
		writeError(w, http.StatusUnprocessableEntity, "invalid quantity: required")
		return
	}

	s.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), qty)
	h.writeCart(w, http.StatusOK, s.Cart.Snapshot())
}

// RemoveItem drops a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.Cart.RemoveFromCart(r.Context(), chi.URLParam(r, "id"))
	h.writeCart(w, http.StatusOK, s.Cart.Snapshot())
}

// ClearCart empties the cart and its promotion.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.Cart.ClearCart(r.Context())
	h.writeCart(w, http.StatusOK, s.Cart.Snapshot())
}

// ApplyPromo attempts a promotion code. A rejected code is not an HTTP error:
// the response carries success=false and the message to show inline.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var code string
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	res, err := s.Cart.ApplyPromoCode(r.Context(), code)
	if err != nil {
		h.internalError(w, r, errors.Wrap(err, "apply promo code"))
		return
	}

	snap := s.Cart.Snapshot()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(res.Success)
		e.FieldStart("message")
		e.Str(res.Message)
		e.FieldStart("cart")
		h.encodeCart(e, snap)
		e.ObjEnd()
	})
}

// RemovePromo clears the active promotion.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.Cart.RemovePromoCode(r.Context())
	h.writeCart(w, http.StatusOK, s.Cart.Snapshot())
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, snap cart.Snapshot) {
	writeJSON(w, status, func(e *jx.Encoder) {
		h.encodeCart(e, snap)
	})
}

func (h *Handler) cartError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *cart.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	h.internalError(w, r, err)
}
