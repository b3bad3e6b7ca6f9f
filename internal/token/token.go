// Package token issues and verifies the stateless access tokens handed out
// at login. There is no revocation: a token stays valid until it expires.
package token

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingSecret    = errors.New("token secret is required")
	ErrUnsupportedAlg   = errors.New("unsupported token algorithm")
	ErrIncompleteClaims = errors.New("subject and user id are required")
)

type Config struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
	Issuer    string
}

// ConfigFromEnv reads JWT_SECRET, JWT_ALGORITHM (HS256) and
// ACCESS_TOKEN_TTL_MINUTES (30).
func ConfigFromEnv() Config {
	alg := os.Getenv("JWT_ALGORITHM")
	if alg == "" {
		alg = "HS256"
	}
	ttl := 30
	if v, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_TTL_MINUTES")); err == nil && v > 0 {
		ttl = v
	}
	iss := os.Getenv("JWT_ISSUER")
	if iss == "" {
		iss = "backoffice"
	}
	return Config{
		Secret:    os.Getenv("JWT_SECRET"),
		Algorithm: alg,
		TTL:       time.Duration(ttl) * time.Minute,
		Issuer:    iss,
	}
}

// Claims carried by an access token. Subject is the username.
type Claims struct {
	UserID int64 `json:"uid"`
	RoleID int64 `json:"role"`
	jwt.RegisteredClaims
}

// Service signs with one process-wide secret.
type Service struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	var m *jwt.SigningMethodHMAC
	switch strings.ToUpper(cfg.Algorithm) {
	case "", "HS256":
		m = jwt.SigningMethodHS256
	case "HS384":
		m = jwt.SigningMethodHS384
	case "HS512":
		m = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlg, cfg.Algorithm)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{secret: []byte(cfg.Secret), method: m, issuer: cfg.Issuer, ttl: ttl, now: time.Now}, nil
}

// TTL is the default lifetime used when Issue is given none.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token for subject. A zero ttl uses the configured default.
func (s *Service) Issue(subject string, userID, roleID int64, ttl time.Duration) (string, time.Time, error) {
	if subject == "" || userID == 0 {
		return "", time.Time{}, ErrIncompleteClaims
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		RoleID: roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry. Every failure is reported
// as ErrInvalidToken.
func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid || claims.Subject == "" || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromHeader extracts the bearer token from an Authorization header value.
func FromHeader(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
