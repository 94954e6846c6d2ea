package repositories

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is wrapped by every lookup or mutation that matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is wrapped when a unique key (session id, sku, order number) is already taken.
	ErrDuplicate = errors.New("duplicate key")
	// ErrInsufficientStock is returned by DecrementStock when the conditional update matches no row.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReferenced is wrapped when a delete is blocked by a foreign key.
	ErrReferenced = errors.New("record is still referenced")
)

// Store groups the repositories and provides the transaction boundary used by
// the cart and order engines. Repositories obtained from the Store passed to
// fn observe and write only inside that transaction.
type Store interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// PageRequest is a zero-based offset page.
type PageRequest struct {
	Page      int
	Size      int
	SortBy    string
	Direction string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps the request into valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Direction != "desc" {
		p.Direction = "asc"
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

var productSortColumns = map[string]string{
	"id":             "id",
	"name":           "name",
	"price":          "price",
	"stockQuantity":  "stock_quantity",
	"stock_quantity": "stock_quantity",
	"category":       "category",
	"createdAt":      "created_at",
	"created_at":     "created_at",
}

var orderSortColumns = map[string]string{
	"id":           "id",
	"orderNumber":  "order_number",
	"order_number": "order_number",
	"status":       "status",
	"totalAmount":  "total_amount",
	"total_amount": "total_amount",
	"createdAt":    "created_at",
	"created_at":   "created_at",
}

// sortColumn resolves a client supplied sort key against a whitelist,
// falling back to the primary key.
func sortColumn(whitelist map[string]string, sortBy string) string {
	if col, ok := whitelist[sortBy]; ok {
		return col
	}
	return "id"
}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// NewPage wraps content with the paging metadata for req.
func NewPage[T any](content []T, req PageRequest, total int64) *Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return &Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
