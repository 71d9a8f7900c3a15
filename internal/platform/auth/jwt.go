package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the verifier-neutral view of a verified token.
type Claims struct {
	Subject string
	Values  map[string]any
}

// TokenVerifier verifies a raw bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Claims, error)
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// JWTOption customises JWTVerifier instances.
type JWTOption func(*JWTVerifier)

// WithIssuer requires the iss claim to match issuer.
func WithIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// NewJWTVerifier constructs a verifier for tokens signed with secret.
func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	v := &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// VerifyToken parses raw, checks its signature and registered claims, and returns the
// subject taken from userId (falling back to sub).
func (v *JWTVerifier) VerifyToken(_ context.Context, raw string) (*Claims, error) {
	if v == nil {
		return nil, errors.New("auth: jwt verifier not initialised")
	}
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}

	subject := claimAsString(claims, "userId")
	if subject == "" {
		subject = claimAsString(claims, "sub")
	}
	if subject == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	return &Claims{Subject: subject, Values: claims}, nil
}

var _ TokenVerifier = (*JWTVerifier)(nil)
