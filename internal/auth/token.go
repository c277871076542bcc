package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
)

var (
	ErrTokenExpired = fmt.Errorf("%w: token has expired", apperr.ErrUnauthorized)
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	ErrNoToken      = fmt.Errorf("%w: authorization header required", apperr.ErrUnauthorized)
)

type Claims struct {
	UID  string `json:"uid"`
	Role Role   `json:"role"`

	// Purpose is empty for session tokens. Reset tokens also carry a
	// fingerprint of the password hash they may replace.
	Purpose     string `json:"pur,omitempty"`
	Fingerprint string `json:"pwf,omitempty"`
	jwt.RegisteredClaims
}

const purposeReset = "password_reset"

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of tokens produced by Issue.
func (i *Issuer) TTL() time.Duration { return i.ttl }

func (i *Issuer) Issue(userID uuid.UUID, role Role) (string, error) {
	now := i.now()
	claims := Claims{
		UID:  userID.String(),
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (i *Issuer) Parse(raw string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrTokenInvalid
	}

	id, err := uuid.Parse(claims.UID)
	if err != nil || !claims.Role.Valid() || claims.Purpose != "" {
		return Principal{}, ErrTokenInvalid
	}
	return Principal{UserID: id, Role: claims.Role}, nil
}

// IssueReset signs a password reset token valid for ttl. It is rejected by
// Parse, so it can never authenticate a request.
func (i *Issuer) IssueReset(userID uuid.UUID, fingerprint string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		UID:         userID.String(),
		Purpose:     purposeReset,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return token, nil
}

// ParseReset verifies a token from IssueReset and returns its subject and
// password fingerprint.
func (i *Issuer) ParseReset(raw string) (uuid.UUID, string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", ErrTokenExpired
		}
		return uuid.Nil, "", ErrTokenInvalid
	}
	id, err := uuid.Parse(claims.UID)
	if err != nil || claims.Purpose != purposeReset || claims.Fingerprint == "" {
		return uuid.Nil, "", ErrTokenInvalid
	}
	return id, claims.Fingerprint, nil
}
