package cart_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silstore/storefront/core/cart"
	"github.com/silstore/storefront/core/catalog"
	"github.com/silstore/storefront/core/commerce"
	"github.com/silstore/storefront/core/gateway"
	"github.com/silstore/storefront/core/statecache"
)

var (
	apple = catalog.Product{ID: "p1", SKU: "APL", Name: "Apple", PriceCents: 1000, Currency: "KES"}
	mango = catalog.Product{ID: "p2", SKU: "MNG", Name: "Mango", PriceCents: 250, Currency: "KES", Variants: []catalog.Variant{
		{ID: "v1", Name: "Box of 12", PriceCents: 2500},
	}}
)

// fakeBackend is an in-memory commerce API: it keeps an authoritative cart
// and can be flipped offline to exercise the local fallback paths.
type fakeBackend struct {
	srv *httptest.Server

	mu       sync.Mutex
	offline  bool
	items    []cart.Line
	addCalls int
	nextID   int
	products map[string]catalog.Product
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		products: map[string]catalog.Product{apple.ID: apple, mango.ID: mango},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cart/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.offline {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		switch {
		case r.URL.Path == "/cart/" && r.Method == http.MethodGet:
		case r.URL.Path == "/cart/add/" && r.Method == http.MethodPost:
			var req struct {
				ProductID string `json:"product_id"`
				VariantID string `json:"variant_id"`
				Quantity  int    `json:"quantity"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			b.addCalls++
			b.addLocked(req.ProductID, req.VariantID, req.Quantity)
		case strings.HasPrefix(r.URL.Path, "/cart/items/") && r.Method == http.MethodPatch:
			id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/cart/items/"), "/")
			var req struct {
				Quantity int `json:"quantity"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			for i := range b.items {
				if b.items[i].ID == id {
					b.items[i].Quantity = req.Quantity
				}
			}
		case strings.HasPrefix(r.URL.Path, "/cart/items/") && r.Method == http.MethodDelete:
			id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/cart/items/"), "/")
			kept := b.items[:0]
			for _, line := range b.items {
				if line.ID != id {
					kept = append(kept, line)
				}
			}
			b.items = kept
		case r.URL.Path == "/cart/clear/" && r.Method == http.MethodPost:
			b.items = nil
		case r.URL.Path == "/cart/coupon/" && r.Method == http.MethodPost:
			http.Error(w, `{"error":"coupon not valid for this order"}`, http.StatusBadRequest)
			return
		default:
			http.NotFound(w, r)
			return
		}

		json.NewEncoder(w).Encode(b.snapshotLocked())
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) addLocked(productID, variantID string, qty int) {
	for i := range b.items {
		if b.items[i].Product.ID == productID && b.items[i].VariantID == variantID {
			b.items[i].Quantity += qty
			return
		}
	}
	p := b.products[productID]
	b.nextID++
	b.items = append(b.items, cart.Line{
		ID:             fmt.Sprintf("srv-%d", b.nextID),
		Product:        p,
		VariantID:      variantID,
		Quantity:       qty,
		UnitPriceCents: p.PriceCentsFor(variantID),
	})
}

func (b *fakeBackend) snapshotLocked() cart.Cart {
	var subtotal int64
	items := make([]cart.Line, len(b.items))
	copy(items, b.items)
	for i := range items {
		items[i].SubtotalCents = items[i].UnitPriceCents * int64(items[i].Quantity)
		subtotal += items[i].SubtotalCents
	}
	return cart.Cart{
		ID:            "srv-cart-1",
		Items:         items,
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
		Currency:      "KES",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func (b *fakeBackend) setOffline(offline bool) {
	b.mu.Lock()
	b.offline = offline
	b.mu.Unlock()
}

func newStore(t *testing.T, b *fakeBackend) *cart.Store {
	gw := gateway.New(b.srv.URL, nil)
	persister := commerce.NewPersister(statecache.NewMemoryStore())
	return cart.New(gw, nil, persister)
}

func requireDerivedTotals(t *testing.T, s *cart.Store) {
	t.Helper()
	snap := s.Snapshot()
	if snap == nil {
		assert.Zero(t, s.SubtotalCents())
		return
	}
	var want int64
	for _, line := range snap.Items {
		assert.Equal(t, line.UnitPriceCents*int64(line.Quantity), line.SubtotalCents)
		want += line.SubtotalCents
	}
	assert.Equal(t, want, snap.SubtotalCents)
}

func TestAdd_RemoteAdoptsServerSnapshot(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "srv-cart-1", snap.ID)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, int64(2000), snap.SubtotalCents)
	assert.False(t, s.Degraded())
	assert.Empty(t, s.Advisory())
	requireDerivedTotals(t, s)
}

func TestAdd_OfflineFallsBackLocally(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, cart.LocalCartID, snap.ID)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, int64(2000), snap.SubtotalCents)
	assert.True(t, s.Degraded())
	assert.Equal(t, cart.AdvisoryLocalOnly, s.Advisory())
	requireDerivedTotals(t, s)
}

func TestAdd_OfflineMergesNotDuplicates(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))
	require.NoError(t, s.Add(ctx, apple, 3, ""))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.Equal(t, int64(5000), snap.SubtotalCents)
	requireDerivedTotals(t, s)
}

func TestAdd_OfflineVariantsAreDistinctLines(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, mango, 1, ""))
	require.NoError(t, s.Add(ctx, mango, 1, "v1"))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, int64(250), snap.Items[0].UnitPriceCents)
	assert.Equal(t, int64(2500), snap.Items[1].UnitPriceCents, "variant price snapshotted at add time")
	requireDerivedTotals(t, s)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))
	lineID := s.Snapshot().Items[0].ID

	require.NoError(t, s.UpdateQuantity(ctx, lineID, 0))

	assert.Nil(t, s.Snapshot(), "only line removed: session collapses to absent")
	assert.Zero(t, s.ItemCount())
}

func TestUpdateQuantity_OfflineRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))
	lineID := s.Snapshot().Items[0].ID

	require.NoError(t, s.UpdateQuantity(ctx, lineID, 7))

	snap := s.Snapshot()
	assert.Equal(t, 7, snap.Items[0].Quantity)
	assert.Equal(t, int64(7000), snap.SubtotalCents)
	requireDerivedTotals(t, s)
}

func TestRemove_LastLineCollapsesToAbsent(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 1, ""))
	lineID := s.Snapshot().Items[0].ID

	require.NoError(t, s.Remove(ctx, lineID))

	assert.Nil(t, s.Snapshot())
}

func TestOfflineMutationOfUnknownLineLeavesStateClean(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)
	require.NoError(t, s.Add(ctx, apple, 2, ""))

	b.setOffline(true)
	require.NoError(t, s.Remove(ctx, "no-such-line"))
	require.NoError(t, s.UpdateQuantity(ctx, "no-such-line", 5))

	assert.False(t, s.Degraded(), "nothing changed, so nothing needs syncing")
	assert.Empty(t, s.Advisory())
	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, "srv-cart-1", s.Snapshot().ID)
}

func TestClear_Remote(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 1, ""))
	require.NoError(t, s.Clear(ctx))

	assert.Nil(t, s.Snapshot())
	assert.False(t, s.Degraded())
}

func TestClear_OfflineNullsLocally(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)
	require.NoError(t, s.Add(ctx, apple, 1, ""))

	b.setOffline(true)
	require.NoError(t, s.Clear(ctx))

	assert.Nil(t, s.Snapshot())
	assert.True(t, s.Degraded())
}

func TestFetch_FailurePropagatesWithoutMutation(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)
	require.NoError(t, s.Add(ctx, apple, 2, ""))

	b.setOffline(true)
	err := s.Fetch(ctx)

	assert.ErrorIs(t, err, gateway.ErrNetwork)
	require.NotNil(t, s.Snapshot(), "failed fetch must not clear state")
	assert.Equal(t, 2, s.ItemCount())
}

func TestApplyCoupon_RejectionIsHardError(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)
	require.NoError(t, s.Add(ctx, apple, 2, ""))

	err := s.ApplyCoupon(ctx, "SAVE10")

	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrValidation)
	assert.Equal(t, "coupon not valid for this order", err.Error())
	assert.Equal(t, 2, s.ItemCount(), "rejection leaves the cart untouched")
}

func TestSuccessfulRemoteOpClearsDegraded(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 1, ""))
	require.True(t, s.Degraded())

	b.setOffline(false)
	require.NoError(t, s.Add(ctx, mango, 1, ""))

	assert.False(t, s.Degraded())
	assert.Empty(t, s.Advisory())
	snap := s.Snapshot()
	assert.Equal(t, "srv-cart-1", snap.ID, "server snapshot adopted, local identifiers resolved")
}

func TestReconcile_PushesLocalLinesSequentiallyThenFetches(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))
	require.NoError(t, s.Add(ctx, mango, 1, "v1"))

	b.setOffline(false)
	require.NoError(t, s.Reconcile(ctx))

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "srv-cart-1", snap.ID)
	assert.Len(t, snap.Items, 2)
	assert.False(t, s.Degraded())

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 2, b.addCalls)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)
	require.NoError(t, s.Add(ctx, apple, 2, ""))

	b.setOffline(false)
	require.NoError(t, s.Reconcile(ctx))
	require.NoError(t, s.Reconcile(ctx))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity, "second run must not duplicate server lines")

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.addCalls, "no adds issued on the second run")
}

func TestReconcile_NoopForServerBackedCart(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	s := newStore(t, b)
	require.NoError(t, s.Add(ctx, apple, 1, ""))

	require.NoError(t, s.Reconcile(ctx))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.addCalls)
}

func TestLoad_RestoresPersistedCart(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)

	cache := statecache.NewMemoryStore()
	persister := commerce.NewPersister(cache)
	gw := gateway.New(b.srv.URL, nil)

	s := cart.New(gw, nil, persister)
	require.NoError(t, s.Add(ctx, apple, 3, ""))

	// A fresh store over the same boot cache sees the degraded local cart.
	restarted := cart.New(gw, nil, persister)
	restarted.Load(ctx)

	snap := restarted.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, cart.LocalCartID, snap.ID)
	assert.Equal(t, 3, restarted.ItemCount())
	assert.True(t, restarted.Degraded())
}

// End-to-end: offline add, sign-in style reconciliation, canonical adoption.
func TestOfflineAddThenReconcileScenario(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	b.setOffline(true)
	s := newStore(t, b)

	require.NoError(t, s.Add(ctx, apple, 2, ""))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, int64(2000), snap.SubtotalCents)
	assert.True(t, s.Degraded())

	// User authenticates, backend reachable again.
	b.setOffline(false)
	require.NoError(t, s.Reconcile(ctx))

	snap = s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "srv-cart-1", snap.ID, "local snapshot discarded for the server's")
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, int64(2000), snap.SubtotalCents)
	assert.False(t, s.Degraded())
}
