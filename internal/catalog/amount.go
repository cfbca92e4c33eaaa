package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// UnmarshalJSON reads a product whose amounts may be fractional, as older
// catalogs store them. Fractional amounts round half-up; RoundedAmounts
// lists them.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var raw struct {
		*plain
		Price          json.Number  `json:"price"`
		CompareAtPrice *json.Number `json:"compareAtPrice,omitempty"`
		Deposit        json.Number  `json:"deposit"`
		Stock          json.Number  `json:"stock"`
		Popularity     json.Number  `json:"popularity"`
	}
	raw.plain = (*plain)(p)
	p.rounded = nil
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	set := func(dst *int64, name string, n json.Number) {
		if err != nil || n == "" {
			return
		}
		d, perr := decimal.NewFromString(string(n))
		if perr != nil {
			err = fmt.Errorf("product %q: %s: invalid number %q", p.Slug, name, n)
			return
		}
		r := d.Round(0)
		if !r.Equal(d) {
			p.rounded = append(p.rounded, fmt.Sprintf("%s %s rounded to %s", name, n, r))
		}
		*dst = r.IntPart()
	}
	set(&p.Price, "price", raw.Price)
	set(&p.Deposit, "deposit", raw.Deposit)
	set(&p.Stock, "stock", raw.Stock)
	set(&p.Popularity, "popularity", raw.Popularity)
	p.CompareAtPrice = nil
	if raw.CompareAtPrice != nil {
		var v int64
		set(&v, "compareAtPrice", *raw.CompareAtPrice)
		p.CompareAtPrice = &v
	}
	return err
}

// RoundedAmounts describes every fractional amount Load rounded, one line
// per field, prefixed by the product slug.
func (c *Catalog) RoundedAmounts() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, p := range c.Products {
		for _, r := range p.rounded {
			out = append(out, p.Slug+": "+r)
		}
	}
	return out
}
