package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/beateur/ninowash-backend/pkg/config"
	"github.com/beateur/ninowash-backend/pkg/db/models"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	pkgstripe "github.com/beateur/ninowash-backend/pkg/stripe"
)

// Metadata keys the reconciliation side reads back from Stripe objects.
const (
	MetadataContextKey          = "context"
	MetadataContextBooking      = "booking"
	MetadataContextSubscription = "subscription"
	MetadataBookingIDKey        = "booking_id"
	MetadataUserIDKey           = "user_id"
	MetadataPlanIDKey           = "plan_id"
)

// CheckoutClient creates hosted Stripe pages: payment checkouts for bookings,
// subscription checkouts and the billing portal.
type CheckoutClient interface {
	StartBookingCheckout(ctx context.Context, booking *models.Booking) (sessionID, url string, err error)
	StartSubscriptionCheckout(ctx context.Context, userID uuid.UUID, priceID, customerEmail string) (sessionID, url string, err error)
	CreatePortalSession(ctx context.Context, stripeCustomerID string) (url string, err error)
}

type checkoutClient struct {
	cfg config.StripeConfig
}

// NewCheckoutClient wraps the Stripe SDK behind an interface so the booking
// and subscription services can be tested without network calls.
func NewCheckoutClient(api *pkgstripe.Client, cfg config.StripeConfig) (CheckoutClient, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &checkoutClient{cfg: cfg}, nil
}

func (c *checkoutClient) StartBookingCheckout(ctx context.Context, booking *models.Booking) (string, string, error) {
	if booking == nil {
		return "", "", pkgerrors.New(pkgerrors.CodeInternal, "booking required")
	}
	if booking.TotalCents <= 0 {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "booking total must be positive")
	}

	sess, err := session.New(c.bookingCheckoutParams(ctx, booking))
	if err != nil {
		return "", "", err
	}
	return sess.ID, sess.URL, nil
}

func (c *checkoutClient) bookingCheckoutParams(ctx context.Context, booking *models.Booking) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.cfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(c.cfg.CheckoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.cfg.Currency),
					UnitAmount: stripe.Int64(int64(booking.TotalCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Laundry booking %s", booking.Number)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata(MetadataContextKey, MetadataContextBooking)
	params.AddMetadata(MetadataBookingIDKey, booking.ID.String())
	return params
}

func (c *checkoutClient) StartSubscriptionCheckout(ctx context.Context, userID uuid.UUID, priceID, customerEmail string) (string, string, error) {
	if priceID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "price id required")
	}

	sess, err := session.New(c.subscriptionCheckoutParams(ctx, userID, priceID, customerEmail))
	if err != nil {
		return "", "", err
	}
	return sess.ID, sess.URL, nil
}

func (c *checkoutClient) subscriptionCheckoutParams(ctx context.Context, userID uuid.UUID, priceID, customerEmail string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(c.cfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(c.cfg.CheckoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserIDKey: userID.String(),
				MetadataPlanIDKey: priceID,
			},
		},
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}
	params.AddMetadata(MetadataContextKey, MetadataContextSubscription)
	params.AddMetadata(MetadataUserIDKey, userID.String())
	params.AddMetadata(MetadataPlanIDKey, priceID)
	return params
}

func (c *checkoutClient) CreatePortalSession(ctx context.Context, stripeCustomerID string) (string, error) {
	if stripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe customer id required")
	}
	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(stripeCustomerID),
		ReturnURL: stripe.String(c.cfg.PortalReturnURL),
	}
	sess, err := portalsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
