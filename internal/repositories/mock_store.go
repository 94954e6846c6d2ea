package repositories

import (
	"context"
	"sync"

	"onlinestore/internal/models"
)

// memoryData is one consistent snapshot of every table.
type memoryData struct {
	products map[uint]models.Product
	carts    map[uint]models.Cart
	orders   map[uint]models.Order

	nextProductID   uint
	nextCartID      uint
	nextCartItemID  uint
	nextOrderID     uint
	nextOrderItemID uint
}

func newMemoryData() *memoryData {
	return &memoryData{
		products: make(map[uint]models.Product),
		carts:    make(map[uint]models.Cart),
		orders:   make(map[uint]models.Order),
	}
}

func (d *memoryData) clone() *memoryData {
	c := *d
	c.products = make(map[uint]models.Product, len(d.products))
	for id, p := range d.products {
		c.products[id] = p
	}
	c.carts = make(map[uint]models.Cart, len(d.carts))
	for id, cart := range d.carts {
		cart.Items = append([]models.CartItem(nil), cart.Items...)
		c.carts[id] = cart
	}
	c.orders = make(map[uint]models.Order, len(d.orders))
	for id, o := range d.orders {
		o.Items = append([]models.OrderItem(nil), o.Items...)
		c.orders[id] = o
	}
	return &c
}

type memoryDB struct {
	mu   sync.Mutex
	data *memoryData
}

// MockStore is an in-memory implementation of Store. Transactions are
// serialized: WithTx holds the store lock, works on a private copy and
// publishes it only when fn succeeds.
type MockStore struct {
	db *memoryDB
	tx *memoryData
}

// NewMockStore creates a new, empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{db: &memoryDB{data: newMemoryData()}}
}

func (s *MockStore) Products() ProductRepository { return &MockProductRepository{store: s} }
func (s *MockStore) Carts() CartRepository       { return &MockCartRepository{store: s} }
func (s *MockStore) Orders() OrderRepository     { return &MockOrderRepository{store: s} }

func (s *MockStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.data.clone()
	if err := fn(&MockStore{db: s.db, tx: snapshot}); err != nil {
		return err
	}
	s.db.data = snapshot
	return nil
}

// view runs a read against the transaction snapshot or the committed data.
func (s *MockStore) view(fn func(d *memoryData) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.data)
}

// update runs a write atomically, as its own transaction when none is open.
func (s *MockStore) update(ctx context.Context, fn func(d *memoryData) error) error {
	return s.WithTx(ctx, func(tx Store) error {
		return fn(tx.(*MockStore).tx)
	})
}

// hydrateCart returns a copy of cart whose items carry fresh product copies.
func (d *memoryData) hydrateCart(cart models.Cart) *models.Cart {
	items := make([]models.CartItem, len(cart.Items))
	for i, item := range cart.Items {
		if p, ok := d.products[item.ProductID]; ok {
			item.Product = &p
		} else {
			item.Product = nil
		}
		items[i] = item
	}
	cart.Items = items
	return &cart
}

func copyOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem{}, o.Items...)
	return &o
}
