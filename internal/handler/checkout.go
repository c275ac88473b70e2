package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/chorbazzar/internal/domain/order"
	"github.com/xenking/chorbazzar/internal/session"
)

// checkoutFields maps request struct fields to their JSON names.
var checkoutFields = map[string]string{
	"Email":     "email",
	"FirstName": "first_name",
	"LastName":  "last_name",
	"Address":   "address",
	"City":      "city",
	"Zip":       "zip",
}

// PlaceOrder checks out the session's cart.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req := order.CheckoutRequest{SessionID: s.ID}
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "email":
			dst = &req.Email
		case "first_name":
			dst = &req.FirstName
		case "last_name":
			dst = &req.LastName
		case "address":
			dst = &req.Address
		case "city":
			dst = &req.City
		case "zip":
			dst = &req.Zip
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	o, err := h.checkout.Checkout(r.Context(), s.Cart, req)
	if err != nil {
		h.checkoutError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) checkoutError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusUnprocessableEntity)
			e.FieldStart("message")
			e.Str("invalid checkout details")
			e.FieldStart("fields")
			e.ObjStart()
			for _, fe := range verrs {
				name, ok := checkoutFields[fe.Field()]
				if !ok {
					name = fe.Field()
				}
				e.FieldStart(name)
				e.Str(fe.Tag())
			}
			e.ObjEnd()
			e.ObjEnd()
		})
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusConflict, "cart is empty")
	case errors.Is(err, order.ErrUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "payment declined")
	default:
		h.internalError(w, r, errors.Wrap(err, "checkout"))
	}
}
