// Package auth verifies the login tickets that the login server hands to
// clients. A ticket is an HS256 JWT whose subject is the username.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cory-johannsen/fairway/internal/config"
)

// ErrInvalidTicket is returned for any ticket that fails verification.
var ErrInvalidTicket = errors.New("invalid login ticket")

// Ticket is the identity carried by a verified login ticket.
type Ticket struct {
	AccountID uint32
	Username  string
	Nickname  string
}

// Claims are the JWT claims of a login ticket.
type Claims struct {
	jwt.RegisteredClaims
	AccountID uint32 `json:"aid"`
	Nickname  string `json:"nick"`
}

// Verifier checks login tickets against a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier builds a Verifier from cfg.
//
// Precondition: cfg.Secret must be non-empty.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
}

// Verify parses token and returns the ticket it carries.
//
// Postcondition: Returns a Ticket with non-zero AccountID and non-empty
// Username, or an error wrapping ErrInvalidTicket.
func (v *Verifier) Verify(token string) (Ticket, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}
	if claims.AccountID == 0 || claims.Subject == "" {
		return Ticket{}, fmt.Errorf("%w: missing account or subject", ErrInvalidTicket)
	}
	return Ticket{
		AccountID: claims.AccountID,
		Username:  claims.Subject,
		Nickname:  claims.Nickname,
	}, nil
}

// Issuer signs login tickets. The game server only verifies; Issuer backs the
// account CLI and tests.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer builds an Issuer from cfg.
func NewIssuer(cfg config.AuthConfig) *Issuer {
	return &Issuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, now: time.Now}
}

// Issue signs a ticket valid for ttl.
//
// Precondition: ttl > 0.
func (i *Issuer) Issue(t Ticket, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   t.Username,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountID: t.AccountID,
		Nickname:  t.Nickname,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing ticket: %w", err)
	}
	return signed, nil
}
