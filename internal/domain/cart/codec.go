package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chorbazzar/internal/domain/product"
)

const fieldQuantity = "quantity"

// Encode writes items as the persisted JSON array.
func Encode(items []LineItem) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, li := range items {
		EncodeItem(e, li)
	}
	e.ArrEnd()

	return append([]byte(nil), e.Bytes()...)
}

// EncodeItem writes a single line item object.
func EncodeItem(e *jx.Encoder, li LineItem) {
	e.ObjStart()
	product.EncodeFields(e, product.Product{
		ID:       li.ProductID,
		Title:    li.Title,
		Price:    li.UnitPrice,
		Image:    li.Image,
		Category: li.Category,
	})
	e.FieldStart(fieldQuantity)
	e.Int(li.Quantity)
	e.ObjEnd()
}

// Decode parses a persisted JSON array. Unknown fields are skipped; an entry
// without id or price, with a negative price, with quantity below 1 or with a
// repeated id fails the whole record.
func Decode(data []byte) ([]LineItem, error) {
	var items []LineItem
	seen := make(map[string]struct{})
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		li, err := decodeItem(d)
		if err != nil {
			return errors.Wrapf(err, "item %d", len(items))
		}
		if _, dup := seen[li.ProductID]; dup {
			return errors.Errorf("item %d: duplicate id %q", len(items), li.ProductID)
		}
		seen[li.ProductID] = struct{}{}
		items = append(items, li)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func decodeItem(d *jx.Decoder) (LineItem, error) {
	var (
		p        product.Product
		qty      int
		hasPrice bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == fieldQuantity {
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "decode quantity")
			}
			qty = v
			return nil
		}
		ok, err := product.DecodeField(d, key, &p)
		if err != nil {
			return err
		}
		if !ok {
			return d.Skip()
		}
		if key == "price" {
			hasPrice = true
		}
		return nil
	})
	if err != nil {
		return LineItem{}, err
	}
	if !hasPrice {
		return LineItem{}, &ValidationError{Field: "price", Reason: "missing"}
	}
	if err := validateAdd(p, qty); err != nil {
		return LineItem{}, err
	}
	return newLineItem(p, qty), nil
}
