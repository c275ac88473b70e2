package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/chorbazzar/internal/domain/cart"
	"github.com/xenking/chorbazzar/internal/domain/order"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/notify"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

// decodeBody reads a JSON object from the request body, calling field for
// each key. An empty body is treated as an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + path
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	p.Image = h.imageURL(p.Image)
	e.ObjStart()
	product.EncodeFields(e, p)
	e.FieldStart("in_stock")
	e.Bool(p.InStock())
	e.ObjEnd()
}

func (h *Handler) encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		h.encodeProduct(e, p)
	}
	e.ArrEnd()
}

func (h *Handler) encodeCart(e *jx.Encoder, snap cart.Snapshot) {
	q := snap.Quote
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, li := range snap.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(li.ProductID)
		e.FieldStart("title")
		e.Str(li.Title)
		e.FieldStart("image")
		e.Str(h.imageURL(li.Image))
		e.FieldStart("category")
		e.Str(li.Category)
		e.FieldStart("unit_price")
		money(e, li.UnitPrice)
		e.FieldStart("quantity")
		e.Int(li.Quantity)
		e.FieldStart("line_total")
		money(e, li.Total())
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("item_count")
	e.Int(q.ItemCount)
	e.FieldStart("promo_code")
	if q.PromoCode == "" {
		e.Null()
	} else {
		e.Str(q.PromoCode)
	}
	e.FieldStart("subtotal")
	money(e, q.Subtotal)
	e.FieldStart("discount")
	money(e, q.Discount)
	e.FieldStart("shipping")
	money(e, q.Shipping)
	e.FieldStart("free_shipping")
	e.Bool(q.FreeShipping())
	e.FieldStart("taxes")
	money(e, q.Taxes)
	e.FieldStart("total")
	money(e, q.Total)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("items")
	order.EncodeItems(e, o.Items)
	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount")
	money(e, o.Discount)
	e.FieldStart("shipping")
	money(e, o.Shipping)
	e.FieldStart("taxes")
	money(e, o.Taxes)
	e.FieldStart("total")
	money(e, o.Total)
	if o.PromoCode != "" {
		e.FieldStart("promo_code")
		e.Str(o.PromoCode)
	}
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeMessages(e *jx.Encoder, msgs []notify.Message) {
	e.ArrStart()
	for _, m := range msgs {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(m.Text)
		e.FieldStart("created_at")
		e.Str(m.CreatedAt.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ArrEnd()
}
