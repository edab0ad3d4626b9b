package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	ErrUnexpectedAlgorithm = errors.New("auth: unexpected token algorithm")
	ErrInvalidSubject      = errors.New("auth: token subject is not a customer id")
)

// TokenValidator checks the registered claims of customer access tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Customer validates tok as signed with algorithm and returns the customer id
// carried in its subject.
func (v TokenValidator) Customer(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (uuid.UUID, error) {
	if tok == nil {
		return uuid.Nil, errors.New("auth: token is nil")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnexpectedAlgorithm, algorithm)
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.ClockSkew),
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(tok.Subject())
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidSubject
	}
	return id, nil
}
