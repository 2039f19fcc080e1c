package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/service-marketplace/internal/session"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

func signedCustomerToken(t *testing.T, secret string, claims CustomerClaims, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() CustomerClaims {
	return CustomerClaims{
		Email: "ada@example.com",
		Name:  "Ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "cust-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func serveWithActor(t *testing.T, secret, auth string) (session.Actor, bool) {
	t.Helper()
	var (
		got   session.Actor
		found bool
	)
	handler := ActorJWT(secret, logging.New("error"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = session.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/drafts/d-1", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected guest requests to pass through, got %d", rec.Code)
	}
	return got, found
}

func TestActorJWTValidToken(t *testing.T) {
	actor, ok := serveWithActor(t, "secret", "Bearer "+signedCustomerToken(t, "secret", validClaims(), jwt.SigningMethodHS256))
	if !ok {
		t.Fatal("expected actor in context")
	}
	if actor.CustomerID != "cust-1" || actor.Email != "ada@example.com" || actor.Name != "Ada" {
		t.Fatalf("unexpected actor: %#v", actor)
	}
	if !actor.Authenticated() {
		t.Fatal("expected authenticated actor")
	}
}

func TestActorJWTGuestWithoutToken(t *testing.T) {
	if _, ok := serveWithActor(t, "secret", ""); ok {
		t.Fatal("expected no actor without a token")
	}
}

func TestActorJWTGuestOnBadToken(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noSubject := validClaims()
	noSubject.Subject = ""

	cases := map[string]string{
		"wrong secret":  "Bearer " + signedCustomerToken(t, "other", validClaims(), jwt.SigningMethodHS256),
		"expired":       "Bearer " + signedCustomerToken(t, "secret", expired, jwt.SigningMethodHS256),
		"no subject":    "Bearer " + signedCustomerToken(t, "secret", noSubject, jwt.SigningMethodHS256),
		"not bearer":    "Basic abc",
		"garbage token": "Bearer not-a-jwt",
	}
	for name, auth := range cases {
		t.Run(name, func(t *testing.T) {
			if actor, ok := serveWithActor(t, "secret", auth); ok {
				t.Fatalf("expected guest, got %#v", actor)
			}
		})
	}
}

func TestActorJWTDisabledWithoutSecret(t *testing.T) {
	token := "Bearer " + signedCustomerToken(t, "secret", validClaims(), jwt.SigningMethodHS256)
	if _, ok := serveWithActor(t, "", token); ok {
		t.Fatal("expected tokens to be ignored without a secret")
	}
}
