package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-saga-orders/internal/order"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// OrderHandler exposes the order boundary the gateway calls into: order
// creation is accepted before the saga settles, reads go to the projection.
type OrderHandler struct {
	service order.Service
	logger  *zap.Logger
}

func NewOrderHandler(service order.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

func RegisterRoutes(app *fiber.App, h *OrderHandler) {
	app.Post("/orders", h.Create)
	app.Get("/orders/:id", h.Get)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var input struct {
		Items []order.ItemRequest `json:"items"`
	}

	if err := c.BodyParser(&input); err != nil {
		h.logger.Warn("failed to parse create order body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	id, err := h.service.CreateOrder(c.UserContext(), input.Items)
	if err != nil {
		if errors.Is(err, order.ErrNoItems) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"create order failed",
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// The saga settles asynchronously; callers poll GET /orders/:id.
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"ok": true,
		"id": id,
	})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	o, err := h.service.GetOrder(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "order not found",
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"get order failed",
			zap.String("order_id", id),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(o)
}
