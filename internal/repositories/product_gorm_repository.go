package repositories

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"onlinestore/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func (r *GORMProductRepository) filtered(ctx context.Context, filter ProductFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.Keyword != "" {
		kw := "%" + strings.ToLower(filter.Keyword) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", kw, kw)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		q = q.Where("stock_quantity > 0")
	}
	return q
}

// List retrieves one page of products matching filter.
func (r *GORMProductRepository) List(ctx context.Context, filter ProductFilter, page PageRequest) (*Page[models.Product], error) {
	page = page.Normalize()

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	err := r.filtered(ctx, filter).
		Clauses(orderClause(sortColumn(productSortColumns, page.SortBy), page.Direction)).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return NewPage(products, page, total), nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, translate(err, "product with ID %d", id)
	}
	return &product, nil
}

// GetByIDForUpdate is GetByID under SELECT ... FOR UPDATE.
func (r *GORMProductRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Clauses(forUpdate).First(&product, id).Error; err != nil {
		return nil, translate(err, "product with ID %d", id)
	}
	return &product, nil
}

func (r *GORMProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, translate(err, "product with SKU %s", sku)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return translate(err, "failed to create product %s", product.SKU)
	}
	return nil
}

// Update overwrites every mutable column, including zero values.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).
		Model(product).
		Select("Name", "Description", "Price", "StockQuantity", "Category", "SKU", "UpdatedAt").
		Updates(product)
	if res.Error != nil {
		return translate(res.Error, "failed to update product %d", product.ID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
// SQLite does not enforce foreign keys by default, so cart references are checked here too.
func (r *GORMProductRepository) Delete(ctx context.Context, id uint) error {
	var inCarts int64
	if err := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("product_id = ?", id).Count(&inCarts).Error; err != nil {
		return fmt.Errorf("failed to check cart references for product %d: %w", id, err)
	}
	if inCarts > 0 {
		return fmt.Errorf("product with ID %d is in %d cart(s): %w", id, inCarts, ErrReferenced)
	}

	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return translate(res.Error, "failed to delete product %d", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
	}
	return nil
}

// DecrementStock issues a single conditional UPDATE so two checkouts can
// never both take the last unit, even without a prior row lock.
func (r *GORMProductRepository) DecrementStock(ctx context.Context, id uint, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to decrement stock of product %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check product %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("product with ID %d: %w", id, ErrInsufficientStock)
}

func (r *GORMProductRepository) IncrementStock(ctx context.Context, id uint, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock of product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
	}
	return nil
}
