package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Verifier parses HMAC-signed access tokens issued by the storefront identity service.
// The token subject is the customer id.
type Verifier struct {
	Secret    []byte
	Validator TokenValidator
	Now       func() time.Time
}

// NewVerifier builds an HS256 verifier.
func NewVerifier(secret, issuer, audience string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Verifier{
		Secret: []byte(secret),
		Validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: 30 * time.Second,
			Algorithm: jwa.HS256,
		},
	}, nil
}

// ParseCustomer verifies token and returns the customer id it was issued for.
func (v *Verifier) ParseCustomer(token string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return uuid.Nil, unauthorized("missing token", nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return uuid.Nil, unauthorized("invalid token", err)
	}
	if v.Validator.Algorithm != "" && algorithm != v.Validator.Algorithm {
		return uuid.Nil, unauthorized("invalid token", ErrUnexpectedAlgorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return uuid.Nil, unauthorized("invalid token", err)
	}
	id, err := v.Validator.Customer(parsed, algorithm, v.now())
	if err != nil {
		return uuid.Nil, unauthorized("invalid token", err)
	}
	return id, nil
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil || headers.Algorithm() == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	return headers.Algorithm(), nil
}

func unauthorized(message string, err error) error {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}
