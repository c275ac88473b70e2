package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Field names shared by every persisted snapshot. They match the records the
// browser storefront wrote, so existing saved carts keep loading.
const (
	fieldID       = "id"
	fieldTitle    = "title"
	fieldPrice    = "price"
	fieldImage    = "image"
	fieldCategory = "category"
	fieldMaterial = "material"
	fieldStock    = "stock"
)

// EncodeFields writes the snapshot fields of p into the currently open object.
func EncodeFields(e *jx.Encoder, p Product) {
	e.FieldStart(fieldID)
	e.Str(p.ID)
	e.FieldStart(fieldTitle)
	e.Str(p.Title)
	e.FieldStart(fieldPrice)
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart(fieldImage)
	e.Str(p.Image)
	e.FieldStart(fieldCategory)
	e.Str(p.Category)
	if p.Material != "" {
		e.FieldStart(fieldMaterial)
		e.Str(p.Material)
	}
	e.FieldStart(fieldStock)
	e.Int(p.Stock)
}

// Encode writes p as a JSON object.
func Encode(e *jx.Encoder, p Product) {
	e.ObjStart()
	EncodeFields(e, p)
	e.ObjEnd()
}

// DecodeField reads the value of key into p. It reports false for keys that
// are not snapshot fields, leaving the value unread.
func DecodeField(d *jx.Decoder, key string, p *Product) (bool, error) {
	var err error
	switch key {
	case fieldID:
		p.ID, err = DecodeID(d)
	case fieldTitle:
		p.Title, err = d.Str()
	case fieldPrice:
		p.Price, err = DecodeDecimal(d)
	case fieldImage:
		p.Image, err = d.Str()
	case fieldCategory:
		p.Category, err = d.Str()
	case fieldMaterial:
		p.Material, err = d.Str()
	case fieldStock:
		p.Stock, err = d.Int()
	default:
		return false, nil
	}
	if err != nil {
		return true, errors.Wrapf(err, "decode %q", key)
	}
	return true, nil
}

// Decode reads a single product object, skipping unknown fields.
func Decode(d *jx.Decoder) (Product, error) {
	var p Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		ok, err := DecodeField(d, key, &p)
		if err != nil {
			return err
		}
		if !ok {
			return d.Skip()
		}
		return nil
	})
	return p, err
}

// DecodeID reads an identifier that was written either as a string or as a
// JSON number (the static catalog used numeric ids).
func DecodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.New("id must be a string or number")
	}
}

// DecodeDecimal reads a monetary value written as a JSON number or a string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.New("expected number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse decimal")
	}
	return v, nil
}
