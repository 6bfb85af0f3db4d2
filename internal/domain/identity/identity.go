// Package identity issues and verifies the session tokens that scope
// projects to an owner.
package identity

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/id"
)

// MinSecretLen is the shortest accepted signing secret.
const MinSecretLen = 16

const issuer = "react-editor"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakSecret   = errors.New("secret too short")
)

// Principal is the authenticated owner of a request.
type Principal struct {
	OwnerID   string    `json:"owner_id"`
	Anonymous bool      `json:"anonymous"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is a signed token and who it belongs to.
type Session struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
}

// Claims is the JWT body of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Anonymous bool `json:"anon,omitempty"`
}

// Service signs and verifies tokens. Session and custom tokens use separate
// keys derived from one secret.
type Service struct {
	sessionKey []byte
	customKey  []byte
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService derives the signing keys from secret.
func NewService(secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("identity: %w (need %d bytes)", ErrWeakSecret, MinSecretLen)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	sessionKey, err := deriveKey(secret, "session")
	if err != nil {
		return nil, err
	}
	customKey, err := deriveKey(secret, "custom-token")
	if err != nil {
		return nil, err
	}
	s := &Service{sessionKey: sessionKey, customKey: customKey, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func deriveKey(secret []byte, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, []byte(issuer), []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("identity: derive %s key: %w", purpose, err)
	}
	return key, nil
}

// SignInAnonymously creates a new owner.
func (s *Service) SignInAnonymously() (Session, error) {
	return s.issue(id.NewOwnerID().String(), true)
}

// SignInWithCustomToken adopts the subject of a token minted with
// MintCustomToken.
func (s *Service) SignInWithCustomToken(token string) (Session, error) {
	claims, err := s.parse(s.customKey, token)
	if err != nil {
		return Session{}, err
	}
	return s.issue(claims.Subject, false)
}

// MintCustomToken signs a short-lived custom token for subject. Trusted
// backends use it to hand an identity to a browser.
func (s *Service) MintCustomToken(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	now := s.now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.customKey)
}

// Verify checks a session token.
func (s *Service) Verify(token string) (Principal, error) {
	claims, err := s.parse(s.sessionKey, token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		OwnerID:   claims.Subject,
		Anonymous: claims.Anonymous,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) issue(owner string, anonymous bool) (Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   owner,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Anonymous: anonymous,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.sessionKey)
	if err != nil {
		return Session{}, fmt.Errorf("identity: sign: %w", err)
	}
	return Session{
		Token: signed,
		Principal: Principal{
			OwnerID:   owner,
			Anonymous: anonymous,
			ExpiresAt: claims.ExpiresAt.Time,
		},
	}, nil
}

// parse pins HS256 so a token cannot pick its own algorithm.
func (s *Service) parse(key []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return key, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal carried by ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
