package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const sessionLeeway = 30 * time.Second

// SessionClaims are the fields read from a Clerk session token. Email is only
// present when the session template adds it.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type SessionVerifier interface {
	Verify(token string) (*SessionClaims, error)
}

type jwksSessionVerifier struct {
	keyfunc keyfunc.Keyfunc
	parser  *jwt.Parser
}

// NewSessionVerifier validates RS256 session tokens against the issuer's JWKS.
func NewSessionVerifier(issuer, jwksURL string) (SessionVerifier, error) {
	issuer = strings.TrimRight(strings.TrimSpace(issuer), "/")
	if jwksURL == "" {
		if issuer == "" {
			return nil, errors.New("clerk issuer or jwks url must be set")
		}
		jwksURL = issuer + "/.well-known/jwks.json"
	}

	kf, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(sessionLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &jwksSessionVerifier{keyfunc: kf, parser: jwt.NewParser(opts...)}, nil
}

func (v *jwksSessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc.Keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}
	return claims, nil
}
