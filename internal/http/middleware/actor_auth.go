package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/service-marketplace/internal/session"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

// CustomerClaims are the claims a customer bearer token carries. The subject is
// the customer id.
type CustomerClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// ActorJWT resolves the booking actor from an HMAC-signed bearer token. Requests
// without a usable token continue as guests; booking is open to both.
func ActorJWT(secret string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := parseActor(secret, r.Header.Get("Authorization"))
			if !ok {
				if r.Header.Get("Authorization") != "" {
					logger.Debug("ignoring unusable bearer token", "path", r.URL.Path)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithActor(r.Context(), actor)))
		})
	}
}

func parseActor(secret, auth string) (session.Actor, bool) {
	if secret == "" || !strings.HasPrefix(auth, "Bearer ") {
		return session.Actor{}, false
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	claims := CustomerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return session.Actor{}, false
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return session.Actor{}, false
	}
	return session.Actor{
		CustomerID: subject,
		Email:      strings.TrimSpace(claims.Email),
		Name:       strings.TrimSpace(claims.Name),
		Phone:      strings.TrimSpace(claims.Phone),
	}, true
}
