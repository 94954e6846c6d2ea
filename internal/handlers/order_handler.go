package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"onlinestore/internal/models"
	"onlinestore/internal/services"
)

// CreateOrderRequest is the checkout body of POST /orders.
type CreateOrderRequest struct {
	CartID          uint                   `json:"cart_id"`
	CustomerInfo    models.CustomerInfo    `json:"customer_info"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/status/:status", h.HandleGetOrdersByStatus)
	orderRoutes.Get("/customer/:email", h.HandleGetOrdersByCustomer)
	orderRoutes.Get("/number/:orderNumber", h.HandleGetOrderByNumber)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/status", h.HandleUpdateOrderStatus)
	orderRoutes.Put("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
}

// HandleGetOrders retrieves a page of orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid paging parameters", err)
	}
	orders, err := h.service.ListOrders(c.UserContext(), page)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleGetOrdersByStatus(c *fiber.Ctx) error {
	status, err := models.ParseOrderStatus(c.Params("status"))
	if err != nil {
		return badRequest(c, "Invalid order status", err)
	}
	page, err := pageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid paging parameters", err)
	}
	orders, err := h.service.ListOrdersByStatus(c.UserContext(), status, page)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleGetOrdersByCustomer(c *fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid paging parameters", err)
	}
	orders, err := h.service.ListOrdersByCustomerEmail(c.UserContext(), c.Params("email"), page)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid order ID", err)
	}
	order, err := h.service.GetOrder(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleGetOrderByNumber(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByNumber(c.UserContext(), c.Params("orderNumber"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder checks out a cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	order, err := h.service.CreateOrder(c.UserContext(), services.CreateOrderInput{
		CartID:          req.CartID,
		Customer:        req.CustomerInfo,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleUpdateOrderStatus takes the new status from ?status= or a {"status": ...} body.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid order ID", err)
	}

	raw := c.Query("status")
	if raw == "" && len(c.Body()) > 0 {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "Invalid request body for status update", err)
		}
		raw = body.Status
	}
	if raw == "" {
		return badRequest(c, "Status is required for order status update", nil)
	}
	status, err := models.ParseOrderStatus(raw)
	if err != nil {
		return badRequest(c, "Invalid order status", err)
	}

	order, err := h.service.UpdateStatus(c.UserContext(), orderID, status)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid order ID", err)
	}
	order, err := h.service.CancelOrder(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid order ID", err)
	}
	if err := h.service.DeleteOrder(c.UserContext(), orderID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
