package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"onlinestore/internal/services"
	"onlinestore/internal/validation"
)

// AddItemRequest is the body of POST /carts/:id/items.
type AddItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity"`
}

// UpdateItemRequest is the body of PUT /carts/:id/items/:itemId.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartHandler handles HTTP requests for shopping carts.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		service:  service,
		validate: validation.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/carts")
	cartRoutes.Post("/", h.HandleCreateCart)
	cartRoutes.Post("/merge", h.HandleMergeCarts)
	cartRoutes.Get("/session/:sessionId", h.HandleGetCartBySession)
	cartRoutes.Get("/:id", h.HandleGetCart)
	cartRoutes.Delete("/:id", h.HandleDeleteCart)
	cartRoutes.Delete("/:id/clear", h.HandleClearCart)
	cartRoutes.Post("/:id/items", h.HandleAddItem)
	cartRoutes.Put("/:id/items/:itemId", h.HandleUpdateItem)
	cartRoutes.Delete("/:id/items/:itemId", h.HandleRemoveItem)
}

// HandleCreateCart creates a cart for ?sessionId=, generating one when omitted.
func (h *CartHandler) HandleCreateCart(c *fiber.Ctx) error {
	cart, err := h.service.CreateCart(c.UserContext(), c.Query("sessionId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cartID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid cart ID", err)
	}
	cart, err := h.service.GetCart(c.UserContext(), cartID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleGetCartBySession(c *fiber.Ctx) error {
	cart, err := h.service.GetCartBySession(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

// HandleAddItem adds a product to the cart or increases its quantity.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	cartID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid cart ID", err)
	}

	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	cart, err := h.service.AddItem(c.UserContext(), cartID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	cartID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid cart ID", err)
	}
	itemID, err := idParam(c, "itemId")
	if err != nil {
		return badRequest(c, "Invalid item ID", err)
	}

	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	cart, err := h.service.UpdateItem(c.UserContext(), cartID, itemID, req.Quantity)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	cartID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid cart ID", err)
	}
	itemID, err := idParam(c, "itemId")
	if err != nil {
		return badRequest(c, "Invalid item ID", err)
	}

	cart, err := h.service.RemoveItem(c.UserContext(), cartID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	cartID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid cart ID", err)
	}
	cart, err := h.service.ClearCart(c.UserContext(), cartID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleDeleteCart(c *fiber.Ctx) error {
	cartID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid cart ID", err)
	}
	if err := h.service.DeleteCart(c.UserContext(), cartID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleMergeCarts merges ?sourceCartId= into ?targetCartId= and returns the target.
func (h *CartHandler) HandleMergeCarts(c *fiber.Ctx) error {
	sourceID, err := idQuery(c, "sourceCartId")
	if err != nil {
		return badRequest(c, "Invalid source cart ID", err)
	}
	targetID, err := idQuery(c, "targetCartId")
	if err != nil {
		return badRequest(c, "Invalid target cart ID", err)
	}

	cart, err := h.service.MergeCarts(c.UserContext(), sourceID, targetID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}
