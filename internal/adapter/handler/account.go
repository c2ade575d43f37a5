package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/security"
)

// KeyStore persists hashed merchant API keys.
type KeyStore interface {
	SaveAPIKey(ctx context.Context, merchantID uuid.UUID, keyHash, keyPrefix string) error
}

// AccountHandler serves the operator routes: merchants, keys, users and point
// bank administration.
type AccountHandler struct {
	Service *loyalty.Service
	Keys    KeyStore
}

type CreateMerchantRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	WebhookURL string `json:"webhook_url" validate:"omitempty,url,max=1024"`
	Plan       string `json:"plan" validate:"omitempty,oneof=beta standard none"`
}

type ProvisionRequest struct {
	Plan string `json:"plan" validate:"omitempty,oneof=beta standard"`
}

type TopUpRequest struct {
	Points int64 `json:"points" validate:"required,gt=0"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=beta active past_due cancelled"`
}

type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

const keyWarning = "Save this now! We won't show it again."

// CreateMerchant registers a merchant, provisions its plan and returns its
// first API key.
func (h *AccountHandler) CreateMerchant(c *fiber.Ctx) error {
	var req CreateMerchantRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	merchant, cfg, err := h.Service.RegisterMerchant(c.UserContext(), loyalty.RegisterMerchantRequest{
		Name:       req.Name,
		WebhookURL: req.WebhookURL,
		Plan:       req.Plan,
	})
	if err != nil {
		return writeError(c, err)
	}

	apiKey, err := h.issueKey(c.UserContext(), merchant.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"merchant": merchant,
		"config":   cfg,
		"api_key":  apiKey,
		"warning":  keyWarning,
	})
}

// GenerateKey issues an additional API key for a merchant.
func (h *AccountHandler) GenerateKey(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	apiKey, err := h.issueKey(c.UserContext(), merchantID)
	if err != nil {
		return writeError(c, err)
	}
	// Show the key to the operator once only.
	return c.Status(http.StatusCreated).JSON(fiber.Map{"api_key": apiKey, "warning": keyWarning})
}

func (h *AccountHandler) issueKey(ctx context.Context, merchantID uuid.UUID) (string, error) {
	realKey, keyHash, err := security.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	if err := h.Keys.SaveAPIKey(ctx, merchantID, keyHash, security.DisplayPrefix(realKey)); err != nil {
		return "", err
	}
	slog.Info("API key generated", "merchant_id", merchantID)
	return realKey, nil
}

func (h *AccountHandler) Provision(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	var req ProvisionRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	view, err := h.Service.Provision(c.UserContext(), merchantID, req.Plan)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(view)
}

func (h *AccountHandler) TopUp(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	var req TopUpRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	view, err := h.Service.TopUp(c.UserContext(), merchantID, req.Points)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (h *AccountHandler) SetStatus(c *fiber.Ctx) error {
	merchantID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	var req StatusRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	view, err := h.Service.SetSubscriptionStatus(c.UserContext(), merchantID, domain.SubscriptionStatus(req.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (h *AccountHandler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	user, err := h.Service.RegisterUser(c.UserContext(), req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(user)
}

// AuditWallet compares a user's stored balance with the ledger.
func (h *AccountHandler) AuditWallet(c *fiber.Ctx) error {
	userID, ok, err := paramID(c, "id")
	if !ok {
		return err
	}
	audit, err := h.Service.VerifyWallet(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(audit)
}
