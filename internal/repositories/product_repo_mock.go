package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"onlinestore/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	store *MockStore
}

func matchesProduct(p *models.Product, f ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		if !strings.Contains(strings.ToLower(p.Name), kw) && !strings.Contains(strings.ToLower(p.Description), kw) {
			return false
		}
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStockOnly && p.StockQuantity <= 0 {
		return false
	}
	return true
}

func productLess(a, b *models.Product, column string) (less, equal bool) {
	switch column {
	case "name":
		return a.Name < b.Name, a.Name == b.Name
	case "price":
		return a.Price.LessThan(b.Price), a.Price.Equal(b.Price)
	case "stock_quantity":
		return a.StockQuantity < b.StockQuantity, a.StockQuantity == b.StockQuantity
	case "category":
		return a.Category < b.Category, a.Category == b.Category
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
	return a.ID < b.ID, a.ID == b.ID
}

// List returns one page of matching products.
func (r *MockProductRepository) List(ctx context.Context, filter ProductFilter, page PageRequest) (*Page[models.Product], error) {
	page = page.Normalize()
	column := sortColumn(productSortColumns, page.SortBy)

	var matched []models.Product
	_ = r.store.view(func(d *memoryData) error {
		for _, p := range d.products {
			if matchesProduct(&p, filter) {
				matched = append(matched, p)
			}
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		less, equal := productLess(&matched[i], &matched[j], column)
		if equal {
			return matched[i].ID < matched[j].ID
		}
		if page.Direction == "desc" {
			return !less
		}
		return less
	})

	return NewPage(paginate(matched, page), page, int64(len(matched))), nil
}

func paginate[T any](items []T, page PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product *models.Product
	err := r.store.view(func(d *memoryData) error {
		p, ok := d.products[id]
		if !ok {
			return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
		}
		product = &p
		return nil
	})
	return product, err
}

// GetByIDForUpdate needs no extra locking; transactions already run one at a time.
func (r *MockProductRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *MockProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product *models.Product
	err := r.store.view(func(d *memoryData) error {
		for _, p := range d.products {
			if p.SKU == sku {
				product = &p
				return nil
			}
		}
		return fmt.Errorf("product with SKU %s: %w", sku, ErrNotFound)
	})
	return product, err
}

func skuTaken(d *memoryData, sku string, except uint) bool {
	for _, p := range d.products {
		if p.SKU == sku && p.ID != except {
			return true
		}
	}
	return false
}

// Create adds a new product.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.store.update(ctx, func(d *memoryData) error {
		if skuTaken(d, product.SKU, 0) {
			return fmt.Errorf("product with SKU %s: %w", product.SKU, ErrDuplicate)
		}
		d.nextProductID++
		product.ID = d.nextProductID
		product.CreatedAt = time.Now()
		product.UpdatedAt = product.CreatedAt
		d.products[product.ID] = *product
		return nil
	})
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.store.update(ctx, func(d *memoryData) error {
		existing, ok := d.products[product.ID]
		if !ok {
			return fmt.Errorf("product with ID %d: %w", product.ID, ErrNotFound)
		}
		if skuTaken(d, product.SKU, product.ID) {
			return fmt.Errorf("product with SKU %s: %w", product.SKU, ErrDuplicate)
		}
		product.CreatedAt = existing.CreatedAt
		product.UpdatedAt = time.Now()
		d.products[product.ID] = *product
		return nil
	})
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(ctx context.Context, id uint) error {
	return r.store.update(ctx, func(d *memoryData) error {
		if _, ok := d.products[id]; !ok {
			return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
		}
		for _, cart := range d.carts {
			if cart.FindItemByProduct(id) != nil {
				return fmt.Errorf("product with ID %d is in cart %d: %w", id, cart.ID, ErrReferenced)
			}
		}
		delete(d.products, id)
		return nil
	})
}

func (r *MockProductRepository) DecrementStock(ctx context.Context, id uint, quantity int) error {
	return r.store.update(ctx, func(d *memoryData) error {
		p, ok := d.products[id]
		if !ok {
			return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
		}
		if p.StockQuantity < quantity {
			return fmt.Errorf("product with ID %d: %w", id, ErrInsufficientStock)
		}
		p.StockQuantity -= quantity
		p.UpdatedAt = time.Now()
		d.products[id] = p
		return nil
	})
}

func (r *MockProductRepository) IncrementStock(ctx context.Context, id uint, quantity int) error {
	return r.store.update(ctx, func(d *memoryData) error {
		p, ok := d.products[id]
		if !ok {
			return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
		}
		p.StockQuantity += quantity
		p.UpdatedAt = time.Now()
		d.products[id] = p
		return nil
	})
}
