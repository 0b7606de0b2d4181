package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims identify the caller of the delivery API. Admins may address any
// site; everyone else is pinned to SiteID (and UserID when set).
type Claims struct {
	gojwt.RegisteredClaims
	SiteID string `json:"site_id"`
	UserID string `json:"user_id,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
}

// Service signs and verifies HS256 tokens.
type Service struct {
	key    []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

type Option func(*Service)

func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

func WithLeeway(d time.Duration) Option {
	return func(s *Service) { s.leeway = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: signingKey, ttl: 24 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func NewFromConfig(cfg Config) (*Service, error) {
	return New([]byte(cfg.Secret), WithIssuer(cfg.Issuer), WithTTL(cfg.TokenTTL), WithLeeway(cfg.Leeway))
}

// Generate fills the registered claims the caller left empty and signs c.
func (s *Service) Generate(c Claims) (string, error) {
	if c.SiteID == "" && !c.Admin {
		return "", ErrMissingSiteID
	}
	now := s.now()
	if c.IssuedAt == nil {
		c.IssuedAt = gojwt.NewNumericDate(now)
	}
	if c.ExpiresAt == nil && s.ttl > 0 {
		c.ExpiresAt = gojwt.NewNumericDate(now.Add(s.ttl))
	}
	if c.Issuer == "" {
		c.Issuer = s.issuer
	}
	if c.Subject == "" {
		c.Subject = c.UserID
	}

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies token and returns its claims.
func (s *Service) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithLeeway(s.leeway),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}

	var c Claims
	_, err := gojwt.ParseWithClaims(token, &c, func(*gojwt.Token) (any, error) { return s.key, nil }, opts...)
	switch {
	case err == nil:
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.Join(ErrExpiredToken, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return nil, errors.Join(ErrInvalidSignature, err)
	default:
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if c.SiteID == "" && !c.Admin {
		return nil, ErrMissingSiteID
	}
	return &c, nil
}

// CanAccess reports whether the holder may address siteID/userID. An empty
// userID means the whole site.
func (c *Claims) CanAccess(siteID, userID string) bool {
	if c == nil {
		return false
	}
	if c.Admin {
		return true
	}
	if siteID != c.SiteID {
		return false
	}
	if c.UserID == "" {
		return true
	}
	return userID == c.UserID
}
