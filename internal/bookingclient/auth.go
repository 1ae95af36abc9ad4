package bookingclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	systemSubject  = "payment-processor"
	systemRole     = "system"
	systemTokenTTL = 5 * time.Minute
)

// systemClaims is what the booking service auth middleware expects from
// internal callers.
type systemClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// authorize adds whichever service credentials are configured. Neither is
// required; unauthenticated calls are allowed for local environments.
func (c *Client) authorize(req *http.Request) error {
	if c.internalSecret != "" {
		req.Header.Set(internalSecretHeader, c.internalSecret)
	}
	if c.jwtSecret != "" {
		token, err := c.systemToken(time.Now())
		if err != nil {
			return fmt.Errorf("failed to sign system token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (c *Client) systemToken(now time.Time) (string, error) {
	claims := systemClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   systemSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(systemTokenTTL)),
		},
		Role: systemRole,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.jwtSecret))
}
