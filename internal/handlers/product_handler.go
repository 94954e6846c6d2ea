package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
	"onlinestore/internal/services"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service *services.ProductService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the product routes. Fixed paths come before /:id.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/available", h.HandleGetAvailableProducts)
	productRoutes.Get("/search", h.HandleSearchByName)
	productRoutes.Get("/search/keyword", h.HandleSearchByKeyword)
	productRoutes.Get("/filter/price", h.HandleFilterByPrice)
	productRoutes.Get("/filter/category-price", h.HandleFilterByCategoryAndPrice)
	productRoutes.Get("/sku/:sku", h.HandleGetProductBySKU)
	productRoutes.Get("/category/:category", h.HandleGetProductsByCategory)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

func (h *ProductHandler) list(c *fiber.Ctx, filter repositories.ProductFilter) error {
	page, err := pageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid paging parameters", err)
	}
	products, err := h.service.ListProducts(c.UserContext(), filter, page)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(products)
}

func decimalQuery(c *fiber.Ctx, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a decimal number, got %q", name, raw)
	}
	return &d, nil
}

func priceRange(c *fiber.Ctx) (lo, hi *decimal.Decimal, err error) {
	if lo, err = decimalQuery(c, "minPrice"); err != nil {
		return nil, nil, err
	}
	if hi, err = decimalQuery(c, "maxPrice"); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

// HandleGetProducts retrieves a page of all products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	return h.list(c, repositories.ProductFilter{})
}

func (h *ProductHandler) HandleGetAvailableProducts(c *fiber.Ctx) error {
	return h.list(c, repositories.ProductFilter{InStockOnly: true})
}

func (h *ProductHandler) HandleGetProductsByCategory(c *fiber.Ctx) error {
	return h.list(c, repositories.ProductFilter{Category: c.Params("category")})
}

func (h *ProductHandler) HandleSearchByName(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return badRequest(c, "Query parameter name is required", nil)
	}
	return h.list(c, repositories.ProductFilter{Name: name})
}

func (h *ProductHandler) HandleSearchByKeyword(c *fiber.Ctx) error {
	keyword := c.Query("keyword")
	if keyword == "" {
		return badRequest(c, "Query parameter keyword is required", nil)
	}
	return h.list(c, repositories.ProductFilter{Keyword: keyword})
}

func (h *ProductHandler) HandleFilterByPrice(c *fiber.Ctx) error {
	lo, hi, err := priceRange(c)
	if err != nil {
		return badRequest(c, "Invalid price range", err)
	}
	return h.list(c, repositories.ProductFilter{MinPrice: lo, MaxPrice: hi})
}

func (h *ProductHandler) HandleFilterByCategoryAndPrice(c *fiber.Ctx) error {
	category := c.Query("category")
	if category == "" {
		return badRequest(c, "Query parameter category is required", nil)
	}
	lo, hi, err := priceRange(c)
	if err != nil {
		return badRequest(c, "Invalid price range", err)
	}
	return h.list(c, repositories.ProductFilter{Category: category, MinPrice: lo, MaxPrice: hi})
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	productID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid product ID", err)
	}
	product, err := h.service.GetProductByID(c.UserContext(), productID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleGetProductBySKU(c *fiber.Ctx) error {
	product, err := h.service.GetProductBySKU(c.UserContext(), c.Params("sku"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.service.CreateProduct(c.UserContext(), &product); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	productID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid product ID", err)
	}
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.service.UpdateProduct(c.UserContext(), productID, &product); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	productID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid product ID", err)
	}
	if err := h.service.DeleteProduct(c.UserContext(), productID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
