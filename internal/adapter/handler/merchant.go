package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jugnudev/JugnuInitial-sub008/internal/adapter/middleware"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

type MerchantHandler struct {
	Service *loyalty.Service
}

type UpdateConfigRequest struct {
	IssueRatePerDollar  *int64 `json:"issue_rate_per_dollar"`
	RedeemCapPercentage *int64 `json:"redeem_cap_percentage"`
}

func (h *MerchantHandler) GetConfig(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	view, err := h.Service.GetMerchantConfig(c.UserContext(), middleware.MerchantID(c), merchantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (h *MerchantHandler) UpdateConfig(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	var req UpdateConfigRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	view, err := h.Service.UpdateMerchantConfig(c.UserContext(), middleware.MerchantID(c), merchantID, loyalty.Settings{
		IssueRatePerDollar:  req.IssueRatePerDollar,
		RedeemCapPercentage: req.RedeemCapPercentage,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

// ListParticipating is public: customers browse where points can be spent.
func (h *MerchantHandler) ListParticipating(c *fiber.Ctx) error {
	merchants, err := h.Service.ListParticipatingMerchants(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"merchants": merchants})
}
