// Package cart maintains the shopping cart: optimistic remote mutations with
// deterministic local fallback while offline, and reconciliation of the
// locally-accumulated cart into the server once the session authenticates.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/silstore/storefront/core/auth"
	"github.com/silstore/storefront/core/catalog"
	"github.com/silstore/storefront/core/commerce"
	"github.com/silstore/storefront/core/gateway"
	"github.com/silstore/storefront/core/logger"
	"github.com/silstore/storefront/pkg/async"
)

// AdvisoryLocalOnly is the user-facing advisory attached after a local
// fallback. It is distinguishable from a synced success on purpose: it tells
// the UI the reconciliation run still has work to do.
const AdvisoryLocalOnly = "saved locally, will sync when you're back online"

// AuthSource is the subscription point the store registers with at
// construction time.
type AuthSource interface {
	Subscribe(fn func(auth.Transition))
}

// Store is the cart state container. A nil snapshot means "never shopped or
// emptied"; the store distinguishes that from an empty-but-present cart by
// never keeping the latter.
type Store struct {
	mu        sync.Mutex
	gw        *gateway.Gateway
	persister *commerce.Persister
	log       *slog.Logger

	cart     *Cart
	degraded bool
	advisory string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a cart store. When sessions is non-nil the store subscribes to
// authentication transitions and reconciles its local cart on sign-in.
func New(gw *gateway.Gateway, sessions AuthSource, persister *commerce.Persister, opts ...Option) *Store {
	s := &Store{
		gw:        gw,
		persister: persister,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if sessions != nil {
		sessions.Subscribe(func(t auth.Transition) {
			if t != auth.SignedIn {
				return
			}
			async.Run(context.Background(), func(ctx context.Context) error {
				if err := s.Reconcile(ctx); err != nil {
					s.log.Warn("cart reconciliation failed",
						logger.Component("cart"), logger.Error(err))
				}
				return nil
			})
		})
	}
	return s
}

// Load rehydrates the cart from the boot cache. Called once by the process
// bootstrap; a missing or unreadable record simply leaves the cart absent.
func (s *Store) Load(ctx context.Context) {
	var snapshot *Cart
	if err := s.persister.LoadCart(ctx, &snapshot); err != nil {
		if !errors.Is(err, commerce.ErrEmptySlice) {
			s.log.Debug("no usable cart in boot cache", logger.Component("cart"), logger.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.cart = snapshot
	if snapshot.IsLocal() {
		s.degraded = true
		s.advisory = AdvisoryLocalOnly
	}
	s.mu.Unlock()
}

// Fetch requests the authoritative cart from the backend and replaces the
// local snapshot. The one operation with no local fallback: on failure the
// error propagates and local state is untouched.
func (s *Store) Fetch(ctx context.Context) error {
	var snapshot Cart
	if err := s.gw.DoJSON(ctx, http.MethodGet, "/cart/", nil, &snapshot); err != nil {
		return err
	}
	s.adopt(ctx, &snapshot)
	return nil
}

// Add puts quantity units of the product (or one of its variants) in the
// cart. On a network failure the add is applied locally instead: an existing
// line with the same product and variant is merged, otherwise a new line is
// synthesized with the price captured on the product reference.
func (s *Store) Add(ctx context.Context, product catalog.Product, quantity int, variantID string) error {
	if quantity < 1 {
		quantity = 1
	}

	var snapshot Cart
	err := s.gw.DoJSON(ctx, http.MethodPost, "/cart/add/", addPayload{
		ProductID: product.ID,
		VariantID: variantID,
		Quantity:  quantity,
	}, &snapshot)
	if err == nil {
		s.adopt(ctx, &snapshot)
		return nil
	}
	if !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.localAdd(ctx, product, quantity, variantID)
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line instead.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, lineID)
	}

	var snapshot Cart
	err := s.gw.DoJSON(ctx, http.MethodPatch, "/cart/items/"+lineID+"/",
		map[string]int{"quantity": quantity}, &snapshot)
	if err == nil {
		s.adopt(ctx, &snapshot)
		return nil
	}
	if !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.localMutate(ctx, func(c *Cart) bool {
		for i := range c.Items {
			if c.Items[i].ID == lineID {
				c.Items[i].Quantity = quantity
				return true
			}
		}
		return false
	})
	return nil
}

// Remove deletes a line. Removing the last line collapses the cart to
// absent, not to an empty-but-present session.
func (s *Store) Remove(ctx context.Context, lineID string) error {
	var snapshot Cart
	err := s.gw.DoJSON(ctx, http.MethodDelete, "/cart/items/"+lineID+"/", nil, &snapshot)
	if err == nil {
		s.adopt(ctx, &snapshot)
		return nil
	}
	if !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.localMutate(ctx, func(c *Cart) bool {
		kept := c.Items[:0]
		for _, line := range c.Items {
			if line.ID != lineID {
				kept = append(kept, line)
			}
		}
		changed := len(kept) != len(c.Items)
		c.Items = kept
		return changed
	})
	return nil
}

// Clear empties the cart entirely.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.gw.Do(ctx, http.MethodPost, "/cart/clear/", nil)
	if err != nil && !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.mu.Lock()
	s.cart = nil
	s.degraded = err != nil
	s.advisory = ""
	if err != nil {
		s.advisory = AdvisoryLocalOnly
	}
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// ApplyCoupon is remote-only: discount computation needs server-side
// business rules, so there is no local fallback and failures are hard.
func (s *Store) ApplyCoupon(ctx context.Context, code string) error {
	var snapshot Cart
	if err := s.gw.DoJSON(ctx, http.MethodPost, "/cart/coupon/",
		map[string]string{"code": code}, &snapshot); err != nil {
		return err
	}
	s.adopt(ctx, &snapshot)
	return nil
}

// RemoveCoupon is remote-only, like ApplyCoupon.
func (s *Store) RemoveCoupon(ctx context.Context) error {
	var snapshot Cart
	if err := s.gw.DoJSON(ctx, http.MethodDelete, "/cart/coupon/", nil, &snapshot); err != nil {
		return err
	}
	s.adopt(ctx, &snapshot)
	return nil
}

// Reconcile merges a locally-accumulated cart into the authoritative server
// cart after a sign-in. Adds run strictly sequentially to avoid duplicate
// lines racing each other; individual failures are logged and skipped. The
// local snapshot is discarded only once the loop completes, then Fetch adopts
// the canonical cart.
func (s *Store) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	if !s.cart.IsLocal() {
		s.mu.Unlock()
		return nil
	}
	lines := make([]Line, len(s.cart.Items))
	copy(lines, s.cart.Items)
	s.mu.Unlock()

	for _, line := range lines {
		_, err := s.gw.Do(ctx, http.MethodPost, "/cart/add/", addPayload{
			ProductID: line.Product.ID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
		if err != nil {
			s.log.Warn("skipping cart line during reconciliation",
				logger.Component("cart"), logger.ProductID(line.Product.ID), logger.Error(err))
		}
	}

	s.mu.Lock()
	s.cart = nil
	s.mu.Unlock()

	if err := s.Fetch(ctx); err != nil {
		return fmt.Errorf("fetch after reconciliation: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current cart, or nil when absent.
func (s *Store) Snapshot() *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.clone()
}

// ItemCount is the sum of quantities across all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// SubtotalCents is derived from the current snapshot.
func (s *Store) SubtotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return 0
	}
	return s.cart.SubtotalCents
}

// TotalCents is derived from the current snapshot.
func (s *Store) TotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return 0
	}
	return s.cart.TotalCents
}

// Degraded reports whether the last mutation succeeded only locally.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Advisory returns the user-facing advisory for the degraded state, or ""
// when the store is clean.
func (s *Store) Advisory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advisory
}

type addPayload struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// adopt replaces the local snapshot with the server's verbatim. A successful
// remote operation always returns the store to the clean state, which also
// resolves any earlier local-only line identifiers.
func (s *Store) adopt(ctx context.Context, snapshot *Cart) {
	s.mu.Lock()
	if snapshot == nil || len(snapshot.Items) == 0 {
		s.cart = nil
	} else {
		s.cart = snapshot
	}
	s.degraded = false
	s.advisory = ""
	s.mu.Unlock()

	s.persist(ctx)
}

// localAdd applies the degraded-path merge: same product and variant
// increments the existing line, anything else becomes a new line priced from
// the call-time product snapshot.
func (s *Store) localAdd(ctx context.Context, product catalog.Product, quantity int, variantID string) {
	s.mu.Lock()
	if s.cart == nil {
		now := time.Now()
		s.cart = &Cart{
			ID:        LocalCartID,
			Currency:  product.Currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	merged := false
	for i := range s.cart.Items {
		line := &s.cart.Items[i]
		if line.Product.ID == product.ID && line.VariantID == variantID {
			line.Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		s.cart.Items = append(s.cart.Items, Line{
			ID:             uuid.NewString(),
			Product:        product,
			VariantID:      variantID,
			Quantity:       quantity,
			UnitPriceCents: product.PriceCentsFor(variantID),
		})
	}

	s.cart.recompute()
	s.degraded = true
	s.advisory = AdvisoryLocalOnly
	s.mu.Unlock()

	s.persist(ctx)
}

// localMutate runs fn against the current cart, recomputes totals, and
// collapses to absent when no lines remain. fn reports whether it changed
// anything; when it did not (the line was already gone), the store stays in
// whatever state it was in rather than flipping to degraded over a no-op.
func (s *Store) localMutate(ctx context.Context, fn func(*Cart) bool) {
	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return
	}

	if !fn(s.cart) {
		s.mu.Unlock()
		return
	}
	if len(s.cart.Items) == 0 {
		s.cart = nil
	} else {
		s.cart.recompute()
	}
	s.degraded = true
	s.advisory = AdvisoryLocalOnly
	s.mu.Unlock()

	s.persist(ctx)
}

// persist writes the current snapshot synchronously with respect to the
// in-memory transition.
func (s *Store) persist(ctx context.Context) {
	s.mu.Lock()
	snapshot := s.cart.clone()
	s.mu.Unlock()

	if err := s.persister.SaveCart(ctx, snapshot); err != nil {
		s.log.Warn("failed to persist cart", logger.Component("cart"), logger.Error(err))
	}
}
