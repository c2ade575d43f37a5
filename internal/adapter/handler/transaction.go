package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/middleware"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

type TransactionHandler struct {
	Service *loyalty.Service
}

type IssueRequest struct {
	UserEmail       string `json:"user_email" validate:"required,email"`
	BillAmountCents int64  `json:"bill_amount_cents" validate:"required,gt=0"`
	Reference       string `json:"reference" validate:"max=128"`
}

type RedeemRequest struct {
	MerchantID      string `json:"merchant_id" validate:"required,uuid"`
	BillAmountCents int64  `json:"bill_amount_cents" validate:"required,gt=0"`
	PointsToRedeem  int64  `json:"points_to_redeem" validate:"required,gt=0"`
	Reference       string `json:"reference" validate:"max=128"`
}

// reference prefers the body's reference over the Idempotency-Key header.
func reference(c *fiber.Ctx, body string) string {
	if body != "" {
		return body
	}
	return middleware.IdempotencyKey(c)
}

// Issue mints points for a bill paid at the authenticated merchant.
func (h *TransactionHandler) Issue(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	if merchantID != middleware.MerchantID(c) {
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "API key does not belong to this merchant", "code": "access_denied"})
	}
	var req IssueRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	receipt, err := h.Service.Issue(c.UserContext(), loyalty.IssueRequest{
		MerchantID:      merchantID,
		UserEmail:       req.UserEmail,
		BillAmountCents: req.BillAmountCents,
		Reference:       reference(c, req.Reference),
	})
	if err != nil {
		return writeError(c, err)
	}
	middleware.MarkReplay(c, receipt.Replayed)
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(receipt)
}

// Redeem burns points from the calling user's wallet at a merchant.
func (h *TransactionHandler) Redeem(c *fiber.Ctx) error {
	var req RedeemRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid merchant_id", "code": "invalid_input"})
	}

	receipt, err := h.Service.Redeem(c.UserContext(), loyalty.RedeemRequest{
		UserID:          middleware.UserID(c),
		MerchantID:      merchantID,
		BillAmountCents: req.BillAmountCents,
		PointsToRedeem:  req.PointsToRedeem,
		Reference:       reference(c, req.Reference),
	})
	if err != nil {
		return writeError(c, err)
	}
	middleware.MarkReplay(c, receipt.Replayed)
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(receipt)
}

func (h *TransactionHandler) GetWallet(c *fiber.Ctx) error {
	wallet, err := h.Service.GetWallet(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(wallet)
}

// GetHistory pages through the caller's ledger with ?limit= and ?offset=.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	page, err := h.Service.ListTransactions(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(page)
}
