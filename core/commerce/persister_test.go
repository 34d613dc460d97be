package commerce_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silstore/storefront/core/commerce"
	"github.com/silstore/storefront/core/statecache"
)

type fakeCart struct {
	ID    string `json:"id"`
	Items int    `json:"items"`
}

type fakeWishlist struct {
	ID       string `json:"id"`
	Products int    `json:"products"`
}

func TestPersister_SlicesAreIndependent(t *testing.T) {
	ctx := context.Background()
	p := commerce.NewPersister(statecache.NewMemoryStore())

	require.NoError(t, p.SaveCart(ctx, fakeCart{ID: "c1", Items: 2}))
	require.NoError(t, p.SaveWishlist(ctx, fakeWishlist{ID: "w1", Products: 5}))

	// Overwriting one slice leaves the other intact.
	require.NoError(t, p.SaveCart(ctx, fakeCart{ID: "c2", Items: 1}))

	var cart fakeCart
	require.NoError(t, p.LoadCart(ctx, &cart))
	assert.Equal(t, "c2", cart.ID)

	var wl fakeWishlist
	require.NoError(t, p.LoadWishlist(ctx, &wl))
	assert.Equal(t, "w1", wl.ID)
	assert.Equal(t, 5, wl.Products)
}

func TestPersister_EmptySlice(t *testing.T) {
	ctx := context.Background()
	p := commerce.NewPersister(statecache.NewMemoryStore())

	require.NoError(t, p.SaveCart(ctx, fakeCart{ID: "c1"}))

	var wl fakeWishlist
	err := p.LoadWishlist(ctx, &wl)
	assert.ErrorIs(t, err, commerce.ErrEmptySlice)
}

func TestPersister_MissingRecord(t *testing.T) {
	p := commerce.NewPersister(statecache.NewMemoryStore())

	var cart fakeCart
	err := p.LoadCart(context.Background(), &cart)
	assert.ErrorIs(t, err, statecache.ErrNotFound)
}
