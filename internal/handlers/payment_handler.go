package handlers

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/subgate/subgate/internal/dto"
	"github.com/subgate/subgate/internal/services"
	"github.com/subgate/subgate/internal/store"
)

// PaymentHandler is the payment-confirmed activation callback. It feeds the
// same Activate path the command stub uses, so swapping the stub for real
// billing touches nothing else.
type PaymentHandler struct {
	store         *store.Store
	subscriptions *services.SubscriptionService
	token         string
}

func NewPaymentHandler(st *store.Store, subs *services.SubscriptionService, token string) *PaymentHandler {
	return &PaymentHandler{store: st, subscriptions: subs, token: token}
}

func (h *PaymentHandler) HandleConfirmation(c *fiber.Ctx) error {
	if h.token == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhooks not configured",
		})
	}

	authHeader := c.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(authHeader), []byte(h.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var confirmation dto.PaymentConfirmation
	if err := c.BodyParser(&confirmation); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid payload",
		})
	}
	if confirmation.PrincipalID == 0 || confirmation.Days <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "principal_id and days are required",
		})
	}

	user, err := h.store.EnsureUser(confirmation.PrincipalID, "")
	if err != nil {
		slog.Error("payment webhook user lookup failed", "principal_id", confirmation.PrincipalID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process confirmation",
		})
	}

	// At most one active subscription per user: a confirmation for an
	// already-active user is acknowledged without creating a second row.
	active, err := h.subscriptions.Active(user)
	if err != nil {
		slog.Error("payment webhook subscription lookup failed", "principal_id", confirmation.PrincipalID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process confirmation",
		})
	}
	if active != nil {
		return c.JSON(fiber.Map{"received": true, "status": "already_active"})
	}

	if _, err := h.subscriptions.Activate(user, confirmation.Days); err != nil {
		slog.Error("payment webhook activation failed", "principal_id", confirmation.PrincipalID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process confirmation",
		})
	}

	slog.Info("payment confirmation processed", "principal_id", confirmation.PrincipalID, "days", confirmation.Days)
	return c.JSON(fiber.Map{"received": true, "status": "activated"})
}
