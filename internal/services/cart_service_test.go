package services_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlinestore/internal/database"
	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
	"onlinestore/internal/services"
)

func seedProduct(t *testing.T, store repositories.Store, sku, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          "Product " + sku,
		Description:   "test product " + sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      "test",
		SKU:           sku,
	}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return p
}

// storeFactories covers both Store implementations.
var storeFactories = map[string]func(t *testing.T) repositories.Store{
	"memory": func(t *testing.T) repositories.Store { return repositories.NewMockStore() },
	"sqlite": func(t *testing.T) repositories.Store {
		db, err := database.Open("sqlite", "file::memory:")
		require.NoError(t, err)
		require.NoError(t, database.Migrate(context.Background(), db, "sqlite", nil))
		t.Cleanup(func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		})
		return repositories.NewGORMStore(db)
	},
}

func newCartService(store repositories.Store) *services.CartService {
	return services.NewCartService(store, services.DefaultQuantityLimits, nil)
}

func assertTotalsConsistent(t *testing.T, cart *models.Cart) {
	t.Helper()
	sum := decimal.Zero
	count := 0
	for _, item := range cart.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	assert.True(t, sum.Equal(cart.TotalPrice), "total price %s, expected %s", cart.TotalPrice, sum)
	assert.Equal(t, count, cart.TotalItems)
}

func TestCartService_CreateCart(t *testing.T) {
	ctx := context.Background()
	service := newCartService(repositories.NewMockStore())

	cart, err := service.CreateCart(ctx, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cart.SessionID, "session-"))
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())

	named, err := service.CreateCart(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", named.SessionID)

	_, err = service.CreateCart(ctx, "abc")
	var conflict *services.ConflictError
	assert.ErrorAs(t, err, &conflict)

	found, err := service.GetCartBySession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, named.ID, found.ID)
}

func TestCartService_GetCart_NotFound(t *testing.T) {
	service := newCartService(repositories.NewMockStore())

	_, err := service.GetCart(context.Background(), 42)
	var nf *services.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "cart", nf.Resource)
}

func TestCartService_AddItem(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockStore()
	service := newCartService(store)
	laptop := seedProduct(t, store, "LAP", "999.99", 10)
	mouse := seedProduct(t, store, "MOU", "25.50", 100)

	cart, err := service.CreateCart(ctx, "s1")
	require.NoError(t, err)

	cart, err = service.AddItem(ctx, cart.ID, laptop.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.RequireFromString("1999.98").Equal(cart.TotalPrice))
	assert.Equal(t, 2, cart.TotalItems)
	require.NotNil(t, cart.Items[0].Product)
	assert.Equal(t, laptop.Name, cart.Items[0].Product.Name)

	cart, err = service.AddItem(ctx, cart.ID, mouse.ID, 3)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.True(t, decimal.RequireFromString("2076.48").Equal(cart.TotalPrice))
	assertTotalsConsistent(t, cart)

	reloaded, err := service.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, cart.TotalPrice.Equal(reloaded.TotalPrice))
	assert.Equal(t, cart.TotalItems, reloaded.TotalItems)
}

func TestCartService_AddItemTwiceEqualsOnceWithSum(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockStore()
	service := newCartService(store)
	p := seedProduct(t, store, "P1", "10.00", 50)

	twice, err := service.CreateCart(ctx, "twice")
	require.NoError(t, err)
	_, err = service.AddItem(ctx, twice.ID, p.ID, 2)
	require.NoError(t, err)
	twice, err = service.AddItem(ctx, twice.ID, p.ID, 3)
	require.NoError(t, err)

	once, err := service.CreateCart(ctx, "once")
	require.NoError(t, err)
	once, err = service.AddItem(ctx, once.ID, p.ID, 5)
	require.NoError(t, err)

	require.Len(t, twice.Items, 1)
	assert.Equal(t, once.Items[0].Quantity, twice.Items[0].Quantity)
	assert.True(t, once.TotalPrice.Equal(twice.TotalPrice))
	assert.Equal(t, once.TotalItems, twice.TotalItems)
}

func TestCartService_AddItem_Errors(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockStore()
	service := services.NewCartService(store, services.QuantityLimits{Min: 1, Max: 5}, nil)
	p := seedProduct(t, store, "P1", "10.00", 4)

	cart, err := service.CreateCart(ctx, "s")
	require.NoError(t, err)

	var invalid *services.ValidationError
	var stock *services.InsufficientStockError
	var nf *services.NotFoundError

	_, err = service.AddItem(ctx, cart.ID, p.ID, 0)
	assert.ErrorAs(t, err, &invalid)

	_, err = service.AddItem(ctx, cart.ID, p.ID, 6)
	assert.ErrorAs(t, err, &invalid)

	_, err = service.AddItem(ctx, cart.ID, p.ID, 5)
	require.ErrorAs(t, err, &stock)
	require.Len(t, stock.Shortages, 1)
	assert.Equal(t, 5, stock.Shortages[0].Requested)
	assert.Equal(t, 4, stock.Shortages[0].Available)
	assert.Contains(t, err.Error(), "Requested: 5, Available: 4")

	_, err = service.AddItem(ctx, cart.ID, 999, 1)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Resource)

	_, err = service.AddItem(ctx, 999, p.ID, 1)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "cart", nf.Resource)

	// Lookups run before the quantity check.
	_, err = service.AddItem(ctx, 999, p.ID, 0)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "cart", nf.Resource)
	_, err = service.AddItem(ctx, cart.ID, 999, -1)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Resource)

	// Combined quantity is what gets checked.
	_, err = service.AddItem(ctx, cart.ID, p.ID, 3)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, cart.ID, p.ID, 2)
	assert.ErrorAs(t, err, &stock)

	after, err := service.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	assert.Equal(t, 3, after.Items[0].Quantity)
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockStore()
	service := newCartService(store)
	a := seedProduct(t, store, "A", "1.10", 20)
	b := seedProduct(t, store, "B", "2.20", 20)

	cart, err := service.CreateCart(ctx, "s")
	require.NoError(t, err)
	_, err = service.AddItem(ctx, cart.ID, a.ID, 1)
	require.NoError(t, err)
	cart, err = service.AddItem(ctx, cart.ID, b.ID, 1)
	require.NoError(t, err)

	itemA := cart.FindItemByProduct(a.ID)
	require.NotNil(t, itemA)

	cart, err = service.UpdateItem(ctx, cart.ID, itemA.ID, 4)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("6.60").Equal(cart.TotalPrice))
	assertTotalsConsistent(t, cart)

	var stock *services.InsufficientStockError
	_, err = service.UpdateItem(ctx, cart.ID, itemA.ID, 21)
	assert.ErrorAs(t, err, &stock)

	var nf *services.NotFoundError
	_, err = service.UpdateItem(ctx, cart.ID, 12345, 1)
	assert.ErrorAs(t, err, &nf)
	_, err = service.UpdateItem(ctx, cart.ID, 12345, 0)
	assert.ErrorAs(t, err, &nf)

	cart, err = service.RemoveItem(ctx, cart.ID, itemA.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.True(t, decimal.RequireFromString("2.20").Equal(cart.TotalPrice))

	_, err = service.RemoveItem(ctx, cart.ID, itemA.ID)
	assert.ErrorAs(t, err, &nf)

	cart, err = service.ClearCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())
	assert.Equal(t, 0, cart.TotalItems)

	reloaded, err := service.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Items)
	assert.True(t, reloaded.TotalPrice.IsZero())
}

func TestCartService_DeleteCart(t *testing.T) {
	ctx := context.Background()
	service := newCartService(repositories.NewMockStore())

	cart, err := service.CreateCart(ctx, "s")
	require.NoError(t, err)
	require.NoError(t, service.DeleteCart(ctx, cart.ID))

	var nf *services.NotFoundError
	_, err = service.GetCart(ctx, cart.ID)
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, service.DeleteCart(ctx, cart.ID), &nf)
}

func TestCartService_MergeCarts(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockStore()
	service := newCartService(store)
	shared := seedProduct(t, store, "SHARED", "10.00", 100)
	onlySource := seedProduct(t, store, "SRC", "5.00", 100)

	source, err := service.CreateCart(ctx, "guest")
	require.NoError(t, err)
	target, err := service.CreateCart(ctx, "user")
	require.NoError(t, err)

	_, err = service.AddItem(ctx, source.ID, shared.ID, 2)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, source.ID, onlySource.ID, 1)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, target.ID, shared.ID, 3)
	require.NoError(t, err)

	merged, err := service.MergeCarts(ctx, source.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, merged.ID)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 5, merged.FindItemByProduct(shared.ID).Quantity)
	assert.Equal(t, 1, merged.FindItemByProduct(onlySource.ID).Quantity)
	assert.True(t, decimal.RequireFromString("55.00").Equal(merged.TotalPrice))
	assertTotalsConsistent(t, merged)

	var nf *services.NotFoundError
	_, err = service.GetCart(ctx, source.ID)
	assert.ErrorAs(t, err, &nf, "source cart is deleted")

	var invalid *services.ValidationError
	_, err = service.MergeCarts(ctx, target.ID, target.ID)
	assert.ErrorAs(t, err, &invalid)
}

func TestCartService_MergeCarts_CombinedLineIsBounded(t *testing.T) {
	tests := []struct {
		name           string
		stock          int
		source, target int
		check          func(t *testing.T, err error)
	}{
		{
			name:  "above max quantity",
			stock: 500, source: 60, target: 50,
			check: func(t *testing.T, err error) {
				var invalid *services.ValidationError
				assert.ErrorAs(t, err, &invalid)
			},
		},
		{
			name:  "above stock",
			stock: 5, source: 3, target: 3,
			check: func(t *testing.T, err error) {
				var stock *services.InsufficientStockError
				require.ErrorAs(t, err, &stock)
				assert.Equal(t, 6, stock.Shortages[0].Requested)
			},
		},
	}

	for storeName, newStore := range storeFactories {
		for _, tt := range tests {
			t.Run(storeName+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				store := newStore(t)
				service := newCartService(store)
				p := seedProduct(t, store, "P", "10.00", tt.stock)
				other := seedProduct(t, store, "Q", "1.00", 10)

				source, err := service.CreateCart(ctx, "a")
				require.NoError(t, err)
				target, err := service.CreateCart(ctx, "b")
				require.NoError(t, err)
				_, err = service.AddItem(ctx, source.ID, other.ID, 1)
				require.NoError(t, err)
				_, err = service.AddItem(ctx, source.ID, p.ID, tt.source)
				require.NoError(t, err)
				_, err = service.AddItem(ctx, target.ID, p.ID, tt.target)
				require.NoError(t, err)

				_, err = service.MergeCarts(ctx, source.ID, target.ID)
				tt.check(t, err)

				// Nothing changed: the merge is all-or-nothing.
				stillThere, err := service.GetCart(ctx, source.ID)
				require.NoError(t, err)
				require.Len(t, stillThere.Items, 2)
				assert.Equal(t, tt.source, stillThere.FindItemByProduct(p.ID).Quantity)
				assertTotalsConsistent(t, stillThere)
				unchanged, err := service.GetCart(ctx, target.ID)
				require.NoError(t, err)
				require.Len(t, unchanged.Items, 1)
				assert.Equal(t, tt.target, unchanged.Items[0].Quantity)
				assertTotalsConsistent(t, unchanged)
			})
		}
	}
}

func TestCartService_PurgeStaleCarts(t *testing.T) {
	ctx := context.Background()
	service := newCartService(repositories.NewMockStore())

	_, err := service.CreateCart(ctx, "old")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	removed, err := service.PurgeStaleCarts(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	removed, err = service.PurgeStaleCarts(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = service.PurgeStaleCarts(ctx, 0)
	var invalid *services.ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestCartService_TotalsStayConsistent(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMockStore()
	service := newCartService(store)

	var products []*models.Product
	for i, price := range []string{"0.99", "12.34", "999.99", "7.05"} {
		products = append(products, seedProduct(t, store, string(rune('A'+i)), price, 1000))
	}
	cart, err := service.CreateCart(ctx, "random")
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 200; step++ {
		var next *models.Cart
		switch op := rng.Intn(4); {
		case op == 0 || len(cart.Items) == 0:
			p := products[rng.Intn(len(products))]
			next, err = service.AddItem(ctx, cart.ID, p.ID, 1+rng.Intn(3))
		case op == 1:
			item := cart.Items[rng.Intn(len(cart.Items))]
			next, err = service.UpdateItem(ctx, cart.ID, item.ID, 1+rng.Intn(10))
		case op == 2:
			item := cart.Items[rng.Intn(len(cart.Items))]
			next, err = service.RemoveItem(ctx, cart.ID, item.ID)
		default:
			next, err = service.ClearCart(ctx, cart.ID)
		}
		var invalid *services.ValidationError
		if err != nil {
			// Adding past the per-line maximum is the only expected failure.
			require.ErrorAs(t, err, &invalid, "step %d", step)
			continue
		}
		cart = next
		assertTotalsConsistent(t, cart)

		stored, err := service.GetCart(ctx, cart.ID)
		require.NoError(t, err)
		assert.True(t, cart.TotalPrice.Equal(stored.TotalPrice), "step %d", step)
		assert.Equal(t, cart.TotalItems, stored.TotalItems, "step %d", step)
	}
}
