package stripe

import (
	"context"
	"testing"

	"github.com/beateur/ninowash-backend/pkg/config"
)

func TestNewClientRejectsMissingKey(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{Secret: "whsec_x"}, nil)
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestNewClientRejectsMissingWebhookSecret(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_123"}, nil)
	if err == nil {
		t.Fatal("expected error for missing webhook secret")
	}
}

func TestNewClientEnforcesEnvKeyPairing(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_live_123",
		Secret: "whsec_x",
		Env:    "test",
	}, nil)
	if err == nil {
		t.Fatal("expected live key to be rejected in test env")
	}

	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_x",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != "test" {
		t.Fatalf("expected test env, got %q", client.Environment())
	}
	if client.SigningSecret() != "whsec_x" {
		t.Fatalf("unexpected signing secret")
	}
}

func TestNewClientRejectsUnknownEnv(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_x",
		Env:    "staging",
	}, nil)
	if err == nil {
		t.Fatal("expected unknown env to be rejected")
	}
}
