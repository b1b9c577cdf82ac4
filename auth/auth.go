package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/wagate/errx"
	"github.com/golang-jwt/jwt/v5"
)

var (
	authErrors = errx.NewRegistry("AUTH")

	ErrMissingToken  = authErrors.Register("MISSING_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Missing bearer token")
	ErrInvalidToken  = authErrors.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
	ErrExpiredToken  = authErrors.Register("EXPIRED_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Token has expired")
	ErrMissingSecret = authErrors.Register("MISSING_SECRET", errx.TypeConfiguration, http.StatusInternalServerError, "Token secret is not configured")
	ErrSigningFailed = authErrors.Register("SIGNING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to sign token")
)

// Claims carried by webhook tokens. The subject is the instance name.
type Claims struct {
	Instance string `json:"instance,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier issues and checks HS256 tokens for webhook senders
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// Option configures a TokenVerifier
type Option func(*TokenVerifier)

// WithIssuer sets the issuer written to and required from tokens
func WithIssuer(issuer string) Option {
	return func(v *TokenVerifier) { v.issuer = issuer }
}

// WithAudience sets the audience written to and required from tokens
func WithAudience(audience string) Option {
	return func(v *TokenVerifier) { v.audience = audience }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(v *TokenVerifier) { v.now = now }
}

// NewTokenVerifier creates a verifier for the given shared secret
func NewTokenVerifier(secret string, opts ...Option) (*TokenVerifier, error) {
	if secret == "" {
		return nil, authErrors.New(ErrMissingSecret)
	}
	v := &TokenVerifier{
		secret: []byte(secret),
		issuer: "wagate",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Issue signs a token for an instance that expires after ttl
func (v *TokenVerifier) Issue(instance string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Instance: instance,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   instance,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", authErrors.NewWithCause(ErrSigningFailed, err)
	}
	return signed, nil
}

// Verify parses and validates a token
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, authErrors.New(ErrMissingToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authErrors.NewWithCause(ErrExpiredToken, err)
		}
		return nil, authErrors.NewWithCause(ErrInvalidToken, err)
	}
	if claims.Instance == "" {
		claims.Instance = claims.Subject
	}
	return claims, nil
}

// VerifyHeader checks an "Authorization: Bearer <token>" header value
func (v *TokenVerifier) VerifyHeader(header string) (*Claims, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, authErrors.New(ErrMissingToken)
	}
	return v.Verify(token)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IsUnauthorized reports whether err is any token failure
func IsUnauthorized(err error) bool {
	return errx.IsType(err, errx.TypeAuthorization)
}
