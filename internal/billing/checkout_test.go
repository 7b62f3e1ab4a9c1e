package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/beateur/ninowash-backend/pkg/config"
	"github.com/beateur/ninowash-backend/pkg/db/models"
)

func testCheckoutClient() *checkoutClient {
	return &checkoutClient{cfg: config.StripeConfig{
		Currency:           "eur",
		CheckoutSuccessURL: "https://app.example.com/success",
		CheckoutCancelURL:  "https://app.example.com/cancel",
		PortalReturnURL:    "https://app.example.com/account",
	}}
}

type ctxKey string

func TestBookingCheckoutParams(t *testing.T) {
	client := testCheckoutClient()
	ctx := context.WithValue(context.Background(), ctxKey("k"), "v")

	booking := &models.Booking{
		ID:          uuid.New(),
		Number:      "NW-000007",
		TotalCents:  4980,
		TotalAmount: decimal.NewFromInt(4980).Div(decimal.NewFromInt(100)),
	}

	params := client.bookingCheckoutParams(ctx, booking)
	if params.Context != ctx {
		t.Fatal("request context not propagated to stripe params")
	}
	if *params.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("mode = %s, want payment", *params.Mode)
	}
	if got := params.Metadata[MetadataContextKey]; got != MetadataContextBooking {
		t.Fatalf("context metadata = %q", got)
	}
	if got := params.Metadata[MetadataBookingIDKey]; got != booking.ID.String() {
		t.Fatalf("booking_id metadata = %q", got)
	}
	if len(params.LineItems) != 1 || *params.LineItems[0].PriceData.UnitAmount != 4980 {
		t.Fatalf("line items = %+v", params.LineItems)
	}
}

func TestSubscriptionCheckoutParams(t *testing.T) {
	client := testCheckoutClient()
	ctx := context.Background()
	userID := uuid.New()

	params := client.subscriptionCheckoutParams(ctx, userID, "price_monthly", "marie@example.com")
	if params.Context != ctx {
		t.Fatal("request context not propagated to stripe params")
	}
	if *params.Mode != string(stripe.CheckoutSessionModeSubscription) {
		t.Fatalf("mode = %s, want subscription", *params.Mode)
	}
	if got := params.Metadata[MetadataUserIDKey]; got != userID.String() {
		t.Fatalf("user_id metadata = %q", got)
	}
	if got := params.SubscriptionData.Metadata[MetadataUserIDKey]; got != userID.String() {
		t.Fatalf("subscription user_id metadata = %q", got)
	}
	if params.CustomerEmail == nil || *params.CustomerEmail != "marie@example.com" {
		t.Fatalf("customer email = %v", params.CustomerEmail)
	}
}
