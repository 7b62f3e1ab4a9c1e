package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/beateur/ninowash-backend/pkg/auth"
	"github.com/beateur/ninowash-backend/pkg/config"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/types"
)

var jwtConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "ninowash",
	ExpirationMinutes: 30,
}

func mintToken(t *testing.T, role string) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := pkgauth.MintAccessToken(jwtConfig, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Email:  "marie@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

func TestAuthSeedsContext(t *testing.T) {
	token, userID := mintToken(t, pkgauth.RoleCustomer)

	var gotUserID, gotRole, gotEmail string
	handler := Auth(jwtConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotEmail = EmailFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotUserID != userID.String() {
		t.Fatalf("user id = %q, want %q", gotUserID, userID)
	}
	if gotRole != pkgauth.RoleCustomer {
		t.Fatalf("role = %q", gotRole)
	}
	if gotEmail != "marie@example.com" {
		t.Fatalf("email = %q", gotEmail)
	}
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	handler := Auth(jwtConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, w.Code)
		}
		var body types.ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode error envelope: %v", err)
		}
		if body.Error.Code != string(pkgerrors.CodeUnauthorized) {
			t.Fatalf("error code = %s", body.Error.Code)
		}
	}
}

func TestRequireRoleBlocksOtherRoles(t *testing.T) {
	token, _ := mintToken(t, pkgauth.RoleCustomer)

	handler := Auth(jwtConfig, nil)(RequireRole(pkgauth.RoleStaff, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	token, _ := mintToken(t, pkgauth.RoleStaff)

	ran := false
	handler := Auth(jwtConfig, nil)(RequireRole(pkgauth.RoleStaff, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ran {
		t.Fatal("handler did not run for staff role")
	}
}
