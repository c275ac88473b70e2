package order

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chorbazzar/internal/domain/product"
)

// EncodeItems writes items as a JSON array.
func EncodeItems(e *jx.Encoder, items []Item) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("title")
		e.Str(it.Title)
		e.FieldStart("unit_price")
		e.Num(jx.Num(it.UnitPrice.String()))
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// MarshalItems returns the JSON form of items.
func MarshalItems(items []Item) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	EncodeItems(e, items)
	return append([]byte(nil), e.Bytes()...)
}

// UnmarshalItems parses the output of MarshalItems.
func UnmarshalItems(data []byte) ([]Item, error) {
	var items []Item
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var it Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				it.ProductID, err = d.Str()
			case "title":
				it.Title, err = d.Str()
			case "unit_price":
				it.UnitPrice, err = product.DecodeDecimal(d)
			case "quantity":
				it.Quantity, err = d.Int()
			default:
				return d.Skip()
			}
			if err != nil {
				return errors.Wrapf(err, "decode %q", key)
			}
			return nil
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	return items, err
}
