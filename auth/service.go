// Package auth verifies the bearer tokens that identify subscribing users.
//
// Tokens are JWTs signed with an HMAC secret or an Ed25519 key. The user id
// is read from the "uid" claim, falling back to a numeric "sub".
//
//	svc, err := auth.NewService(cfg)
//	claims, err := svc.Verify(token)
//	userID := claims.UserID
package auth

import (
	"crypto"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/notify/errors"
)

// Claims are the token claims the service understands.
type Claims struct {
	gojwt.RegisteredClaims
	UserID uint64 `json:"uid,omitempty"`
	WsID   int64  `json:"ws_id,omitempty"`
}

// resolveUserID fills UserID from the subject when the uid claim is absent.
func (c *Claims) resolveUserID() error {
	if c.UserID != 0 {
		return nil
	}
	if c.Subject == "" {
		return stderrors.New("token has no user id")
	}
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return fmt.Errorf("subject %q is not a user id", c.Subject)
	}
	c.UserID = id
	return nil
}

// Service verifies and issues tokens.
type Service struct {
	cfg       Config
	verifyKey any
	signKey   any
}

// NewService validates cfg and loads its key material.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg}
	if cfg.isHMAC() {
		s.verifyKey = []byte(cfg.Secret)
		s.signKey = []byte(cfg.Secret)
		return s, nil
	}

	if cfg.PrivateKey != "" {
		priv, err := gojwt.ParseEdPrivateKeyFromPEM([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("auth: parse private key: %w", err)
		}
		s.signKey = priv
		if signer, ok := priv.(crypto.Signer); ok {
			s.verifyKey = signer.Public()
		}
	}
	if cfg.PublicKey != "" {
		pub, err := gojwt.ParseEdPublicKeyFromPEM([]byte(cfg.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("auth: parse public key: %w", err)
		}
		s.verifyKey = pub
	}
	return s, nil
}

// Method returns the configured signing algorithm.
func (s *Service) Method() string { return s.cfg.Method }

// Verify parses and validates token. Failures are returned as AppErrors
// (TOKEN_EXPIRED or INVALID_TOKEN).
func (s *Service) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.Unauthorized("")
	}

	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, s.keyFunc, s.parserOptions()...)
	if err != nil {
		if stderrors.Is(err, gojwt.ErrTokenExpired) {
			return nil, errors.TokenExpired().WithCause(err)
		}
		return nil, errors.InvalidToken().WithCause(err)
	}
	if !parsed.Valid {
		return nil, errors.InvalidToken()
	}
	if err := claims.resolveUserID(); err != nil {
		return nil, errors.InvalidToken().WithCause(err)
	}
	return claims, nil
}

// Issue signs a token for userID valid for the configured TTL.
func (s *Service) Issue(userID uint64, wsID int64) (string, error) {
	if s.signKey == nil {
		return "", stderrors.New("auth: no signing key configured")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
		UserID: userID,
		WsID:   wsID,
	}
	if s.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{s.cfg.Audience}
	}
	signed, err := gojwt.NewWithClaims(s.cfg.signingMethod(), claims).SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) keyFunc(token *gojwt.Token) (any, error) {
	if token.Method.Alg() != s.cfg.signingMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	if s.verifyKey == nil {
		return nil, stderrors.New("no verification key configured")
	}
	return s.verifyKey, nil
}

func (s *Service) parserOptions() []gojwt.ParserOption {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.cfg.signingMethod().Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(s.cfg.Audience))
	}
	if s.cfg.Leeway > 0 {
		opts = append(opts, gojwt.WithLeeway(s.cfg.Leeway))
	}
	return opts
}
