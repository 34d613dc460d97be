// Package wishlist maintains the saved-products list with the same
// degraded-but-usable offline behavior as the cart: remote first, local
// fallback, reconciliation on sign-in.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/silstore/storefront/core/auth"
	"github.com/silstore/storefront/core/catalog"
	"github.com/silstore/storefront/core/commerce"
	"github.com/silstore/storefront/core/gateway"
	"github.com/silstore/storefront/core/logger"
	"github.com/silstore/storefront/pkg/async"
)

// AdvisoryLocalOnly is the advisory attached after a local fallback.
const AdvisoryLocalOnly = "saved locally, will sync when you're back online"

// AuthSource is the subscription point for authentication transitions.
type AuthSource interface {
	Subscribe(fn func(auth.Transition))
}

// Store is the wishlist state container.
type Store struct {
	mu        sync.Mutex
	gw        *gateway.Gateway
	persister *commerce.Persister
	log       *slog.Logger

	list     *Wishlist
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

// New creates a wishlist store, subscribing to sign-in transitions for
// reconciliation when sessions is non-nil.
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
					s.log.Warn("wishlist reconciliation failed",
						logger.Component("wishlist"), logger.Error(err))
				}
				return nil
			})
		})
	}
	return s
}

// Load rehydrates the wishlist from the boot cache.
func (s *Store) Load(ctx context.Context) {
	var snapshot *Wishlist
	if err := s.persister.LoadWishlist(ctx, &snapshot); err != nil {
		if !errors.Is(err, commerce.ErrEmptySlice) {
			s.log.Debug("no usable wishlist in boot cache",
				logger.Component("wishlist"), logger.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.list = snapshot
	if snapshot.IsLocal() {
		s.degraded = true
		s.advisory = AdvisoryLocalOnly
	}
	s.mu.Unlock()
}

// Fetch replaces the local snapshot with the authoritative wishlist. No
// local fallback; failures propagate without mutating state.
func (s *Store) Fetch(ctx context.Context) error {
	var snapshot Wishlist
	if err := s.gw.DoJSON(ctx, http.MethodGet, "/wishlist/", nil, &snapshot); err != nil {
		return err
	}
	s.adopt(ctx, &snapshot)
	return nil
}

// Add saves a product. Adding an already-present product is a no-op. On a
// network failure the product is appended locally and the store degrades.
func (s *Store) Add(ctx context.Context, product catalog.Product) error {
	s.mu.Lock()
	present := s.list.Contains(product.ID)
	s.mu.Unlock()
	if present {
		return nil
	}

	var snapshot Wishlist
	err := s.gw.DoJSON(ctx, http.MethodPost, "/wishlist/",
		map[string]string{"product_id": product.ID}, &snapshot)
	if err == nil {
		s.adopt(ctx, &snapshot)
		return nil
	}
	if !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.localMutate(ctx, func(w *Wishlist) bool {
		if w.Contains(product.ID) {
			return false
		}
		w.Products = append(w.Products, product)
		return true
	})
	return nil
}

// Remove drops a product. Removing the last one collapses the wishlist to
// absent.
func (s *Store) Remove(ctx context.Context, productID string) error {
	var snapshot Wishlist
	err := s.gw.DoJSON(ctx, http.MethodDelete, "/wishlist/remove/"+productID+"/", nil, &snapshot)
	if err == nil {
		s.adopt(ctx, &snapshot)
		return nil
	}
	if !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.localMutate(ctx, func(w *Wishlist) bool {
		kept := w.Products[:0]
		for _, p := range w.Products {
			if p.ID != productID {
				kept = append(kept, p)
			}
		}
		changed := len(kept) != len(w.Products)
		w.Products = kept
		return changed
	})
	return nil
}

// Clear empties the wishlist.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.gw.Do(ctx, http.MethodDelete, "/wishlist/clear/", nil)
	if err != nil && !errors.Is(err, gateway.ErrNetwork) {
		return err
	}

	s.mu.Lock()
	s.list = nil
	s.degraded = err != nil
	s.advisory = ""
	if err != nil {
		s.advisory = AdvisoryLocalOnly
	}
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// Reconcile pushes a local-only wishlist into the server after sign-in:
// sequential adds, per-product failures logged and skipped, then a Fetch of
// the canonical list once the local snapshot is discarded.
func (s *Store) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	if !s.list.IsLocal() {
		s.mu.Unlock()
		return nil
	}
	products := make([]catalog.Product, len(s.list.Products))
	copy(products, s.list.Products)
	s.mu.Unlock()

	for _, p := range products {
		_, err := s.gw.Do(ctx, http.MethodPost, "/wishlist/",
			map[string]string{"product_id": p.ID})
		if err != nil {
			s.log.Warn("skipping wishlist product during reconciliation",
				logger.Component("wishlist"), logger.ProductID(p.ID), logger.Error(err))
		}
	}

	s.mu.Lock()
	s.list = nil
	s.mu.Unlock()

	if err := s.Fetch(ctx); err != nil {
		return fmt.Errorf("fetch after reconciliation: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current wishlist, or nil when absent.
func (s *Store) Snapshot() *Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.clone()
}

// Count is the number of saved products.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Count()
}

// Contains reports whether a product is saved.
func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Contains(productID)
}

// Degraded reports whether the last mutation succeeded only locally.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Advisory returns the degraded-state advisory, or "" when clean.
func (s *Store) Advisory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advisory
}

// adopt replaces the snapshot with the server's, returning the store to the
// clean state. An empty server list collapses to absent.
func (s *Store) adopt(ctx context.Context, snapshot *Wishlist) {
	s.mu.Lock()
	if snapshot == nil || len(snapshot.Products) == 0 {
		s.list = nil
	} else {
		s.list = snapshot
	}
	s.degraded = false
	s.advisory = ""
	s.mu.Unlock()

	s.persist(ctx)
}

// localMutate applies fn to the current list, synthesizing a local one when
// absent. fn reports whether it changed anything; a no-op leaves the store
// untouched, including rolling back a list synthesized just for the call.
func (s *Store) localMutate(ctx context.Context, fn func(*Wishlist) bool) {
	s.mu.Lock()
	created := false
	if s.list == nil {
		now := time.Now()
		s.list = &Wishlist{ID: LocalWishlistID, CreatedAt: now}
		created = true
	}

	if !fn(s.list) {
		if created {
			s.list = nil
		}
		s.mu.Unlock()
		return
	}
	if len(s.list.Products) == 0 {
		s.list = nil
	} else {
		s.list.UpdatedAt = time.Now()
	}
	s.degraded = true
	s.advisory = AdvisoryLocalOnly
	s.mu.Unlock()

	s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) {
	s.mu.Lock()
	snapshot := s.list.clone()
	s.mu.Unlock()

	if err := s.persister.SaveWishlist(ctx, snapshot); err != nil {
		s.log.Warn("failed to persist wishlist", logger.Component("wishlist"), logger.Error(err))
	}
}
