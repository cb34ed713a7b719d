package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/payment"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// PaymentHandler exposes the direct payment boundary: ad-hoc debits and the
// balance read.
type PaymentHandler struct {
	service payment.Service
	logger  *zap.Logger
}

func NewPaymentHandler(service payment.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

func RegisterRoutes(app *fiber.App, h *PaymentHandler) {
	app.Post("/payments", h.Create)
	app.Get("/balance", h.Balance)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	var req domain.PaymentRequestPayload

	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("failed to parse payment body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	p, err := h.service.ProcessPayment(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		mylogger.Error(
			c.UserContext(),
			h.logger,
			"process payment failed",
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if p.Status == domain.PaymentStatusFailed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":      false,
			"error":   p.Reason,
			"payment": p,
		})
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"payment": p,
	})
}

func (h *PaymentHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.GetBalance(c.UserContext())
	if err != nil {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"get balance failed",
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"balance": balance})
}
