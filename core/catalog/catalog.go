package catalog

// Product is an opaque reference to a catalog entry. The catalog service owns
// the canonical record; the commerce stores only carry the snapshot captured
// at the time an item was added, so offline fallback can price lines without
// re-fetching.
type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price"`
	Currency   string    `json:"currency"`
	ImageURL   string    `json:"image,omitempty"`
	Variants   []Variant `json:"variants,omitempty"`
}

// Variant is an optional sellable variation of a product with its own price.
type Variant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
}

// PriceCentsFor returns the unit price for the given variant, falling back to
// the product price when the variant is unknown or empty.
func (p Product) PriceCentsFor(variantID string) int64 {
	if variantID == "" {
		return p.PriceCents
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v.PriceCents
		}
	}
	return p.PriceCents
}
