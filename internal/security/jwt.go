package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/budgetwise/backend/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed snapshot embedded in a session credential. The token
// is self-contained: it is never persisted server-side and cannot be revoked
// before expiry. Profile fields go stale until a fresh token is issued.
type Claims struct {
	Email              string `json:"email,omitempty"`
	FirstName          string `json:"firstName,omitempty"`
	LastName           string `json:"lastName,omitempty"`
	Department         string `json:"department,omitempty"`
	Gender             string `json:"gender,omitempty"`
	SubscriptionPlan   string `json:"subscriptionPlan,omitempty"`
	SubscriptionPeriod string `json:"subscriptionPeriod,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies session credentials with a process-wide
// symmetric key. The key comes from immutable configuration and is never
// mutated after construction, so the manager is safe for concurrent use.
type JWTManager struct {
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(issuer, secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{issuer: issuer, secret: []byte(secret), ttl: ttl}
}

// Issue mints a credential whose subject is the user's email and whose
// claims snapshot the user's profile at issuance time.
func (m *JWTManager) Issue(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Email:              user.Email,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		Department:         user.Department,
		Gender:             user.Gender,
		SubscriptionPlan:   user.SubscriptionPlan,
		SubscriptionPeriod: user.SubscriptionPeriod,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, expiry, and issuer, returning the embedded
// claims. All failure modes collapse into ErrInvalidToken.
func (m *JWTManager) Parse(raw string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ParseForSubject additionally requires the token's subject to equal the
// expected one.
func (m *JWTManager) ParseForSubject(raw, expectedSubject string) (*Claims, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject != expectedSubject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
