// Package commerce holds the persistence glue shared by the cart and
// wishlist stores. Both stores serialize into one commerce record, each
// owning only its own slice, so clearing the session record never disturbs
// shopping state and vice versa.
package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/silstore/storefront/core/statecache"
)

// Key is the statecache key of the commerce record. The session record lives
// under its own key.
const Key = "commerce"

// record is the {cart, wishlist}-shaped persisted state. Transient fields
// (loading, degraded, advisory) are deliberately absent.
type record struct {
	Cart     json.RawMessage `json:"cart"`
	Wishlist json.RawMessage `json:"wishlist"`
}

// ErrEmptySlice is returned by the Load helpers when the record exists but
// the requested slice has never been written.
var ErrEmptySlice = errors.New("commerce: slice not present")

// Persister mediates read-modify-write access to the shared commerce record.
// Construct one and hand it to both stores; the internal mutex keeps their
// writes from clobbering each other.
type Persister struct {
	mu    sync.Mutex
	store statecache.Store
}

// NewPersister wraps the given boot cache.
func NewPersister(store statecache.Store) *Persister {
	return &Persister{store: store}
}

// SaveCart replaces the cart slice of the commerce record. A nil value
// persists JSON null, marking the cart absent.
func (p *Persister) SaveCart(ctx context.Context, v any) error {
	return p.save(ctx, v, func(r *record, data json.RawMessage) { r.Cart = data })
}

// SaveWishlist replaces the wishlist slice of the commerce record.
func (p *Persister) SaveWishlist(ctx context.Context, v any) error {
	return p.save(ctx, v, func(r *record, data json.RawMessage) { r.Wishlist = data })
}

// LoadCart reads the cart slice into dst.
func (p *Persister) LoadCart(ctx context.Context, dst any) error {
	return p.load(ctx, dst, func(r record) json.RawMessage { return r.Cart })
}

// LoadWishlist reads the wishlist slice into dst.
func (p *Persister) LoadWishlist(ctx context.Context, dst any) error {
	return p.load(ctx, dst, func(r record) json.RawMessage { return r.Wishlist })
}

func (p *Persister) save(ctx context.Context, v any, set func(*record, json.RawMessage)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rec record
	if err := statecache.LoadRecord(ctx, p.store, Key, &rec); err != nil &&
		!errors.Is(err, statecache.ErrNotFound) &&
		!errors.Is(err, statecache.ErrVersionMismatch) &&
		!errors.Is(err, statecache.ErrCorruptRecord) {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	set(&rec, data)

	return statecache.SaveRecord(ctx, p.store, Key, rec)
}

func (p *Persister) load(ctx context.Context, dst any, get func(record) json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rec record
	if err := statecache.LoadRecord(ctx, p.store, Key, &rec); err != nil {
		return err
	}

	slice := get(rec)
	if len(slice) == 0 {
		return ErrEmptySlice
	}
	return json.Unmarshal(slice, dst)
}
