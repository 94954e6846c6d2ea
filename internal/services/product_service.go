package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
	"onlinestore/internal/validation"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		repo:     repo,
		validate: validation.New(),
		logger:   logger.Named("product"),
	}
}

// ListProducts retrieves a page of products matching filter.
func (s *ProductService) ListProducts(ctx context.Context, filter repositories.ProductFilter, page repositories.PageRequest) (*repositories.Page[models.Product], error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, validationf("minPrice %s is greater than maxPrice %s", filter.MinPrice, filter.MaxPrice)
	}
	return s.repo.List(ctx, filter, page)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return product, nil
}

func (s *ProductService) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	product, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, lookupErr(err, "product with sku", sku)
	}
	return product, nil
}

func (s *ProductService) check(product *models.Product) error {
	if err := s.validate.Struct(product); err != nil {
		return &ValidationError{Message: "invalid product", Fields: validation.Messages(err)}
	}
	return nil
}

func skuConflict(err error, sku string) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		return &ConflictError{Message: fmt.Sprintf("a product with sku %s already exists", sku)}
	}
	return err
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	product.ID = 0
	if err := s.check(product); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return skuConflict(err, product.SKU)
	}
	s.logger.Info("product created", zap.Uint("product_id", product.ID), zap.String("sku", product.SKU))
	return nil
}

// UpdateProduct replaces every mutable field of the product with the given id.
func (s *ProductService) UpdateProduct(ctx context.Context, id uint, product *models.Product) error {
	product.ID = id
	if err := s.check(product); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return lookupErr(skuConflict(err, product.SKU), "product", id)
	}
	stored, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return lookupErr(err, "product", id)
	}
	*product = *stored
	return nil
}

// DeleteProduct deletes a product by its ID. Past orders keep their snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrReferenced) {
		return &ConflictError{Message: fmt.Sprintf("product %d is still in a cart", id)}
	}
	if err != nil {
		return lookupErr(err, "product", id)
	}
	s.logger.Info("product deleted", zap.Uint("product_id", id))
	return nil
}
