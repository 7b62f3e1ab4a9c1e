package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/beateur/ninowash-backend/internal/billing"
	"github.com/beateur/ninowash-backend/pkg/db/models"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams carries the dependencies of the subscription service.
type ServiceParams struct {
	Repo     billing.Repository
	Checkout billing.CheckoutClient
	Stripe   StripeSubscriptionClient
	Tx       txRunner
	Logger   *logger.Logger
}

// Service serves customer-facing subscription operations. Webhook-driven
// state sync lives in the webhook handler; this service only reads the ledger
// and talks to Stripe for user-initiated changes.
type Service struct {
	repo     billing.Repository
	checkout billing.CheckoutClient
	stripe   StripeSubscriptionClient
	tx       txRunner
	logg     *logger.Logger
}

// NewService validates dependencies and builds the subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout client required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:     params.Repo,
		checkout: params.Checkout,
		stripe:   params.Stripe,
		tx:       params.Tx,
		logg:     params.Logger,
	}, nil
}

// Current returns the user's live subscription.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	sub, err := s.repo.FindLiveSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	return sub, nil
}

// History returns every subscription row the user ever held, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return rows, nil
}

// Payments returns the invoice history of the user's live subscription.
func (s *Service) Payments(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListPaymentsBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

// Subscribe opens a Stripe subscription checkout for the given price. A user
// who already holds a live subscription is sent through checkout anyway; the
// webhook-side ledger soft-cancels the old row once the new one is live.
func (s *Service) Subscribe(ctx context.Context, userID uuid.UUID, priceID, email string) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if priceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "price id required")
	}
	_, url, err := s.checkout.StartSubscriptionCheckout(ctx, userID, priceID, email)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription checkout")
	}
	return url, nil
}

// CancelAtPeriodEnd asks Stripe to stop renewing the user's live
// subscription. The row stays live until the deletion webhook arrives.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated, err := s.stripe.Update(ctx, sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule cancellation with stripe")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stored, err := repo.FindSubscriptionByStripeID(ctx, sub.StripeSubscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload subscription")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription disappeared")
		}
		if err := ApplyStripe(stored, updated); err != nil {
			return err
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
		sub = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// PortalSession opens the Stripe billing portal for the user.
func (s *Service) PortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "subscription has no stripe customer")
	}
	url, err := s.checkout.CreatePortalSession(ctx, sub.StripeCustomerID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return url, nil
}
