package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bolla-network/turion/internal/config"
	"github.com/bolla-network/turion/internal/plan"
	profiledomain "github.com/bolla-network/turion/internal/profile/domain"
	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const checkoutCurrency = "gbp"

// Plan applied when a completed checkout carries no plan metadata.
const fallbackPaidPlan = plan.Starter

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Cfg         config.Config
	Repo        subscriptiondomain.Repository
	ProfileRepo profiledomain.Repository
	Provider    subscriptiondomain.ProviderClient
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	cfg         config.Config
	repo        subscriptiondomain.Repository
	profileRepo profiledomain.Repository
	provider    subscriptiondomain.ProviderClient
}

func New(p Params) subscriptiondomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		genID:       p.GenID,
		cfg:         p.Cfg,
		repo:        p.Repo,
		profileRepo: p.ProfileRepo,
		provider:    p.Provider,
	}
}

func (s *Service) Checkout(ctx context.Context, userID, email, planID string) (*subscriptiondomain.CheckoutResponse, error) {
	p, ok := plan.ByID(strings.TrimSpace(planID))
	if !ok || !p.Paid() {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	customerID, err := s.resolveCustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, email, userID)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		// Persist the mapping right away so a later checkout reuses the same
		// customer even if this session is abandoned.
		if err := s.profileRepo.UpsertCustomerLink(ctx, s.db, userID, email, customerID); err != nil {
			return nil, err
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, subscriptiondomain.CheckoutSessionRequest{
		CustomerID:      customerID,
		UserID:          userID,
		PlanID:          p.ID,
		PlanName:        p.Name,
		UnitAmountPence: p.MonthlyPricePence,
		Currency:        checkoutCurrency,
		SuccessURL:      s.cfg.PublicURL + "/dashboard?success=true",
		CancelURL:       s.cfg.PublicURL + "/dashboard?canceled=true",
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.log.Info("checkout session created",
		zap.String("user_id", userID),
		zap.String("plan_id", p.ID),
		zap.String("session_id", session.ID),
	)

	return &subscriptiondomain.CheckoutResponse{URL: session.URL}, nil
}

func (s *Service) Portal(ctx context.Context, userID string) (*subscriptiondomain.PortalResponse, error) {
	customerID, err := s.resolveCustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, subscriptiondomain.ErrNoSubscription
	}

	url, err := s.provider.CreatePortalSession(ctx, customerID, s.cfg.PublicURL+"/dashboard")
	if err != nil {
		return nil, fmt.Errorf("create portal session: %w", err)
	}
	return &subscriptiondomain.PortalResponse{URL: url}, nil
}

func (s *Service) Get(ctx context.Context, userID string) (subscriptiondomain.Response, error) {
	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if sub == nil {
		return subscriptiondomain.Response{
			PlanID: plan.Free,
			Status: subscriptiondomain.StatusFree,
		}, nil
	}
	return subscriptiondomain.Response{
		PlanID:             sub.PlanID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}, nil
}

// ApplyCheckoutCompleted converges the account's record onto the provider-side
// truth for a completed checkout. Replays upsert the same values and leave the
// record unchanged.
func (s *Service) ApplyCheckoutCompleted(ctx context.Context, ev subscriptiondomain.CheckoutCompletedEvent) error {
	if strings.TrimSpace(ev.UserID) == "" {
		s.log.Error("checkout completed without account reference",
			zap.String("customer_id", ev.CustomerID),
		)
		return nil
	}
	if strings.TrimSpace(ev.SubscriptionID) == "" {
		// One-time payment, not a subscription checkout.
		s.log.Info("checkout completed without subscription id, skipping",
			zap.String("user_id", ev.UserID),
		)
		return nil
	}

	detail, err := s.provider.RetrieveSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("retrieve subscription %s: %w", ev.SubscriptionID, err)
	}

	planID := ev.PlanID
	if !plan.Valid(planID) {
		planID = fallbackPaidPlan
	}

	now := time.Now().UTC()
	customerID := ev.CustomerID
	subscriptionID := ev.SubscriptionID
	periodStart := detail.CurrentPeriodStart
	periodEnd := detail.CurrentPeriodEnd
	sub := &subscriptiondomain.Subscription{
		ID:                   s.genID.Generate(),
		UserID:               ev.UserID,
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &subscriptionID,
		PlanID:               planID,
		Status:               detail.Status,
		CurrentPeriodStart:   &periodStart,
		CurrentPeriodEnd:     &periodEnd,
		CancelAtPeriodEnd:    detail.CancelAtPeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Upsert(ctx, s.db, sub); err != nil {
		return err
	}

	if err := s.profileRepo.UpsertCustomerLink(ctx, s.db, ev.UserID, ev.Email, ev.CustomerID); err != nil {
		return err
	}

	s.log.Info("subscription reconciled from checkout",
		zap.String("user_id", ev.UserID),
		zap.String("plan_id", planID),
		zap.String("status", detail.Status),
	)
	return nil
}

// ApplySubscriptionUpdated applies provider-side changes. An update arriving
// before the checkout record exists is an accepted race: log and no-op, the
// provider will deliver a consistent state on the next event.
func (s *Service) ApplySubscriptionUpdated(ctx context.Context, ev subscriptiondomain.SubscriptionStateEvent) error {
	existing, err := s.repo.FindByCustomerID(ctx, s.db, ev.CustomerID)
	if err != nil {
		return err
	}
	if existing == nil {
		s.log.Warn("subscription update for unknown customer",
			zap.String("customer_id", ev.CustomerID),
			zap.String("subscription_id", ev.SubscriptionID),
		)
		return nil
	}

	// Price-to-plan remapping is a placeholder: the plan is preserved until
	// product decides plan changes should flow through the provider.
	if ev.PriceID != "" {
		s.log.Info("subscription price observed",
			zap.String("price_id", ev.PriceID),
			zap.String("plan_id", existing.PlanID),
		)
	}

	periodStart := ev.CurrentPeriodStart
	periodEnd := ev.CurrentPeriodEnd
	affected, err := s.repo.UpdateState(ctx, s.db,
		ev.SubscriptionID,
		ev.Status,
		existing.PlanID,
		&periodStart,
		&periodEnd,
		ev.CancelAtPeriodEnd,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.log.Warn("subscription update matched no rows",
			zap.String("subscription_id", ev.SubscriptionID),
		)
	}
	return nil
}

// ApplySubscriptionDeleted settles the record back to the free tier. Terminal
// for the provider subscription id regardless of prior state.
func (s *Service) ApplySubscriptionDeleted(ctx context.Context, providerSubscriptionID string) error {
	affected, err := s.repo.UpdateState(ctx, s.db,
		providerSubscriptionID,
		subscriptiondomain.StatusCanceled,
		plan.Free,
		nil,
		nil,
		false,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.log.Warn("subscription delete matched no rows",
			zap.String("subscription_id", providerSubscriptionID),
		)
		return nil
	}

	s.log.Info("subscription canceled, reverted to free tier",
		zap.String("subscription_id", providerSubscriptionID),
	)
	return nil
}

func (s *Service) resolveCustomerID(ctx context.Context, userID string) (string, error) {
	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != nil && *sub.StripeCustomerID != "" {
		return *sub.StripeCustomerID, nil
	}
	return s.profileRepo.FindStripeCustomerID(ctx, s.db, userID)
}
