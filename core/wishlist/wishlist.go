package wishlist

import (
	"time"

	"github.com/silstore/storefront/core/catalog"
)

// LocalWishlistID marks a wishlist that exists only on this device.
const LocalWishlistID = "local"

// Wishlist is a set of saved products. Membership is unique: re-adding an
// already-present product is a no-op.
type Wishlist struct {
	ID        string            `json:"id"`
	User      string            `json:"user"`
	Products  []catalog.Product `json:"products"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Contains reports whether the product is already saved.
func (w *Wishlist) Contains(productID string) bool {
	if w == nil {
		return false
	}
	for _, p := range w.Products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

// Count is the number of saved products.
func (w *Wishlist) Count() int {
	if w == nil {
		return 0
	}
	return len(w.Products)
}

// IsLocal reports whether this wishlist has never been persisted remotely.
func (w *Wishlist) IsLocal() bool {
	return w != nil && w.ID == LocalWishlistID
}

func (w *Wishlist) clone() *Wishlist {
	if w == nil {
		return nil
	}
	out := *w
	out.Products = make([]catalog.Product, len(w.Products))
	copy(out.Products, w.Products)
	return &out
}
