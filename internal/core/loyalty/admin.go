package loyalty

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

// Settings are the merchant-editable parts of a config.
type Settings struct {
	IssueRatePerDollar  *int64
	RedeemCapPercentage *int64
}

// UpdateMerchantConfig changes a merchant's issuance rate and redemption cap.
// Ranges are checked before any store access.
func (s *Service) UpdateMerchantConfig(ctx context.Context, caller, merchantID uuid.UUID, in Settings) (MerchantConfigView, error) {
	if caller == uuid.Nil || caller != merchantID {
		return MerchantConfigView{}, domain.ErrAccessDenied
	}
	if in.IssueRatePerDollar == nil && in.RedeemCapPercentage == nil {
		return MerchantConfigView{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if in.IssueRatePerDollar != nil {
		if err := domain.ValidateIssueRate(*in.IssueRatePerDollar); err != nil {
			return MerchantConfigView{}, err
		}
	}
	if in.RedeemCapPercentage != nil {
		if err := domain.ValidateRedeemCap(*in.RedeemCapPercentage); err != nil {
			return MerchantConfigView{}, err
		}
	}

	patch := domain.ConfigPatch{IssueRatePerDollar: in.IssueRatePerDollar, RedeemCapPercentage: in.RedeemCapPercentage}
	cfg, err := s.patchConfig(ctx, "update_config", merchantID, func(domain.MerchantConfig) (domain.ConfigPatch, error) {
		return patch, nil
	})
	if err != nil {
		return MerchantConfigView{}, err
	}
	s.logger.Info("Merchant config updated", "merchant_id", merchantID, "issue_rate", cfg.IssueRatePerDollar, "redeem_cap", cfg.RedeemCapPercentage)
	return s.configView(cfg), nil
}

// TopUp adds purchased points to a merchant's bank.
func (s *Service) TopUp(ctx context.Context, merchantID uuid.UUID, points int64) (MerchantConfigView, error) {
	if merchantID == uuid.Nil || points <= 0 {
		return MerchantConfigView{}, fmt.Errorf("%w: merchant and a positive point amount are required", domain.ErrInvalidInput)
	}
	cfg, err := s.patchConfig(ctx, "top_up", merchantID, func(cfg domain.MerchantConfig) (domain.ConfigPatch, error) {
		if cfg.PointBankPurchased > math.MaxInt64-points {
			return domain.ConfigPatch{}, fmt.Errorf("%w: top-up overflows the point bank", domain.ErrInvalidRange)
		}
		purchased := cfg.PointBankPurchased + points
		return domain.ConfigPatch{PointBankPurchased: &purchased}, nil
	})
	if err != nil {
		return MerchantConfigView{}, err
	}
	s.logger.Info("Point bank topped up", "merchant_id", merchantID, "points", points, "purchased", cfg.PointBankPurchased)
	return s.configView(cfg), nil
}

func (s *Service) SetSubscriptionStatus(ctx context.Context, merchantID uuid.UUID, status domain.SubscriptionStatus) (MerchantConfigView, error) {
	if !status.Valid() {
		return MerchantConfigView{}, fmt.Errorf("%w: unknown subscription status %q", domain.ErrInvalidInput, status)
	}
	cfg, err := s.patchConfig(ctx, "set_status", merchantID, func(domain.MerchantConfig) (domain.ConfigPatch, error) {
		return domain.ConfigPatch{SubscriptionStatus: &status}, nil
	})
	if err != nil {
		return MerchantConfigView{}, err
	}
	s.logger.Info("Subscription status changed", "merchant_id", merchantID, "status", status)
	return s.configView(cfg), nil
}

func (s *Service) patchConfig(ctx context.Context, op string, merchantID uuid.UUID, build func(domain.MerchantConfig) (domain.ConfigPatch, error)) (domain.MerchantConfig, error) {
	var updated domain.MerchantConfig
	err := s.execute(ctx, op, []string{merchantKey(merchantID)}, func(ctx context.Context, tx Tx) error {
		cfg, err := tx.GetMerchantConfig(ctx, merchantID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: merchant %s has no loyalty config", domain.ErrMerchantNotParticipating, merchantID)
		}
		if err != nil {
			return fmt.Errorf("load merchant config: %w", err)
		}
		patch, err := build(cfg)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateMerchantConfig(ctx, cfg, patch, s.now())
		return err
	})
	return updated, err
}

type RegisterMerchantRequest struct {
	Name       string
	WebhookURL string
	Plan       string
}

// RegisterMerchant creates a merchant and provisions its loyalty config from
// the named plan in one unit of work. With domain.PlanNone no config is
// created and the returned view is nil.
func (s *Service) RegisterMerchant(ctx context.Context, req RegisterMerchantRequest) (domain.Merchant, *MerchantConfigView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Merchant{}, nil, fmt.Errorf("%w: merchant name is required", domain.ErrInvalidInput)
	}
	if req.WebhookURL != "" {
		if u, err := url.Parse(req.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.Merchant{}, nil, fmt.Errorf("%w: webhook url must be an absolute http(s) url", domain.ErrInvalidInput)
		}
	}
	provision := !strings.EqualFold(strings.TrimSpace(req.Plan), domain.PlanNone)
	plan, ok := domain.PlanByName(req.Plan)
	if provision && !ok {
		return domain.Merchant{}, nil, fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidInput, req.Plan)
	}

	now := s.now()
	merchant := domain.Merchant{ID: uuid.New(), Name: name, WebhookURL: req.WebhookURL, CreatedAt: now}
	var cfg *domain.MerchantConfig
	err := s.execute(ctx, "register_merchant", []string{merchantKey(merchant.ID)}, func(ctx context.Context, tx Tx) error {
		var err error
		if merchant, err = tx.CreateMerchant(ctx, merchant); err != nil {
			return fmt.Errorf("create merchant: %w", err)
		}
		if !provision {
			return nil
		}
		created, err := tx.CreateMerchantConfig(ctx, plan.NewConfig(merchant.ID, now))
		if err != nil {
			return fmt.Errorf("create merchant config: %w", err)
		}
		cfg = &created
		return nil
	})
	if err != nil {
		return domain.Merchant{}, nil, err
	}
	if cfg == nil {
		s.logger.Info("Merchant registered without loyalty config", "merchant_id", merchant.ID)
		return merchant, nil, nil
	}
	s.logger.Info("Merchant registered", "merchant_id", merchant.ID, "plan", plan.Name)
	view := s.configView(*cfg)
	return merchant, &view, nil
}

// Provision attaches a loyalty config to an existing merchant. It is the only
// way a config comes into existence; issue and redeem never create one.
func (s *Service) Provision(ctx context.Context, merchantID uuid.UUID, planName string) (MerchantConfigView, error) {
	plan, ok := domain.PlanByName(planName)
	if !ok {
		return MerchantConfigView{}, fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidInput, planName)
	}
	var cfg domain.MerchantConfig
	err := s.execute(ctx, "provision", []string{merchantKey(merchantID)}, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetMerchant(ctx, merchantID); errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrMerchantNotFound, merchantID)
		} else if err != nil {
			return fmt.Errorf("load merchant: %w", err)
		}
		if _, err := tx.GetMerchantConfig(ctx, merchantID); err == nil {
			return fmt.Errorf("%w: merchant %s is already provisioned", domain.ErrAlreadyExists, merchantID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load merchant config: %w", err)
		}
		var err error
		cfg, err = tx.CreateMerchantConfig(ctx, plan.NewConfig(merchantID, s.now()))
		return err
	})
	if err != nil {
		return MerchantConfigView{}, err
	}
	s.logger.Info("Merchant provisioned", "merchant_id", merchantID, "plan", plan.Name)
	return s.configView(cfg), nil
}

// RegisterUser adds a customer to the directory issuance resolves emails in.
func (s *Service) RegisterUser(ctx context.Context, email string) (domain.User, error) {
	email = NormalizeEmail(email)
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return domain.User{}, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	u, err := s.store.CreateUser(ctx, domain.User{ID: uuid.New(), Email: email, CreatedAt: s.now()})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
