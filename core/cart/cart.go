package cart

import (
	"time"

	"github.com/silstore/storefront/core/catalog"
)

// LocalCartID marks a cart that originated locally and has not been persisted
// remotely yet. The reconciliation run that follows a sign-in looks for it.
const LocalCartID = "local"

// Line is one cart entry. The unit price is snapshotted from the product or
// variant at add time and never re-fetched.
type Line struct {
	ID             string          `json:"id"`
	Product        catalog.Product `json:"product"`
	VariantID      string          `json:"variant_id,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price"`
	SubtotalCents  int64           `json:"subtotal"`
}

// Cart is a shopping session. The total fields are always derived from the
// line sequence; recompute runs before every snapshot is published.
type Cart struct {
	ID            string    `json:"id"`
	Items         []Line    `json:"items"`
	SubtotalCents int64     `json:"subtotal"`
	TaxCents      int64     `json:"tax"`
	ShippingCents int64     `json:"shipping"`
	DiscountCents int64     `json:"discount"`
	TotalCents    int64     `json:"total"`
	Currency      string    `json:"currency"`
	CouponCode    string    `json:"coupon_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// recompute derives every total from the line sequence.
func (c *Cart) recompute() {
	var subtotal int64
	for i := range c.Items {
		line := &c.Items[i]
		line.SubtotalCents = line.UnitPriceCents * int64(line.Quantity)
		subtotal += line.SubtotalCents
	}
	c.SubtotalCents = subtotal
	c.TotalCents = subtotal + c.TaxCents + c.ShippingCents - c.DiscountCents
	c.UpdatedAt = time.Now()
}

// ItemCount is the sum of quantities across all lines.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, line := range c.Items {
		n += line.Quantity
	}
	return n
}

// IsLocal reports whether this cart has never been persisted remotely.
func (c *Cart) IsLocal() bool {
	return c != nil && c.ID == LocalCartID
}

// clone returns a deep copy so published snapshots cannot be mutated by
// callers.
func (c *Cart) clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]Line, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
