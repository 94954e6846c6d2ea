package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"onlinestore/internal/repositories"
	"onlinestore/internal/services"
	"onlinestore/internal/validation"
)

// respondError maps service errors onto HTTP statuses. Anything unrecognised
// is logged and reported as 500 without leaking internals.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		notFound   *services.NotFoundError
		invalid    *services.ValidationError
		stock      *services.InsufficientStockError
		emptyCart  *services.EmptyCartError
		transition *services.InvalidTransitionError
		conflict   *services.ConflictError
	)

	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
			"error":   "not_found",
		})
	case errors.As(err, &invalid):
		body := fiber.Map{"message": err.Error(), "error": "validation_error"}
		if len(invalid.Fields) > 0 {
			body["details"] = invalid.Fields
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	case errors.As(err, &stock):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
			"error":   "insufficient_stock",
			"details": stock.Shortages,
		})
	case errors.As(err, &emptyCart):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
			"error":   "empty_cart",
		})
	case errors.As(err, &transition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": err.Error(),
			"error":   "invalid_status_transition",
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": err.Error(),
			"error":   "conflict",
		})
	}

	logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
		"error":   "internal_error",
	})
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{"message": message, "error": "bad_request"}
	if err != nil {
		body["details"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   "validation_error",
		"details": validation.Messages(err),
	})
}

// idParam reads a positive integer path parameter.
func idParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, c.Params(name))
	}
	return uint(id), nil
}

// idQuery reads a required positive integer query parameter.
func idQuery(c *fiber.Ctx, name string) (uint, error) {
	id := c.QueryInt(name)
	if id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, c.Query(name))
	}
	return uint(id), nil
}

type pageQuery struct {
	Page      int    `query:"page"`
	Size      int    `query:"size"`
	SortBy    string `query:"sortBy"`
	Direction string `query:"direction"`
}

// pageRequest reads page, size, sortBy and direction. Negative or oversized
// values are clamped later by PageRequest.Normalize.
func pageRequest(c *fiber.Ctx) (repositories.PageRequest, error) {
	q := pageQuery{Size: repositories.DefaultPageSize, Direction: "asc"}
	if err := c.QueryParser(&q); err != nil {
		return repositories.PageRequest{}, fmt.Errorf("invalid paging parameters: %w", err)
	}
	direction := strings.ToLower(q.Direction)
	if direction == "" {
		direction = "asc"
	}
	if direction != "asc" && direction != "desc" {
		return repositories.PageRequest{}, fmt.Errorf("direction must be asc or desc, got %q", q.Direction)
	}
	return repositories.PageRequest{
		Page:      q.Page,
		Size:      q.Size,
		SortBy:    q.SortBy,
		Direction: direction,
	}, nil
}
