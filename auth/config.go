package auth

import (
	"fmt"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Supported signing methods.
const (
	MethodHS256 = "HS256"
	MethodHS384 = "HS384"
	MethodHS512 = "HS512"
	MethodEdDSA = "EdDSA"
)

// Config configures token verification.
type Config struct {
	// Method is the expected signing algorithm (default: HS256).
	Method string `yaml:"method" mapstructure:"method"`
	// Secret is the HMAC key for HS* methods.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// PublicKey is the PEM-encoded Ed25519 public key for EdDSA.
	PublicKey string `yaml:"public_key" mapstructure:"public_key"`
	// PrivateKey is the PEM-encoded Ed25519 private key. Only needed to
	// issue tokens.
	PrivateKey string `yaml:"private_key" mapstructure:"private_key"`
	// Issuer is the expected "iss" claim (optional).
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// Audience is the expected "aud" claim (optional).
	Audience string `yaml:"audience" mapstructure:"audience"`
	// Leeway tolerates clock skew when checking exp/nbf.
	Leeway time.Duration `yaml:"leeway" mapstructure:"leeway"`
	// TokenTTL is the lifetime of issued tokens (default: 24h).
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	// InternalKey guards the internal publish endpoint.
	InternalKey string `yaml:"internal_key" mapstructure:"internal_key"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = MethodHS256
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
}

// Validate checks that the key material matches the method.
func (c *Config) Validate() error {
	switch c.Method {
	case MethodHS256, MethodHS384, MethodHS512:
		if c.Secret == "" {
			return fmt.Errorf("auth.secret is required for %s", c.Method)
		}
	case MethodEdDSA:
		if c.PublicKey == "" && c.PrivateKey == "" {
			return fmt.Errorf("auth.public_key is required for EdDSA")
		}
	default:
		valid := []string{MethodHS256, MethodHS384, MethodHS512, MethodEdDSA}
		return fmt.Errorf("auth.method must be one of %v (got: %s)", valid, c.Method)
	}
	if c.Leeway < 0 {
		return fmt.Errorf("auth.leeway must not be negative")
	}
	return nil
}

func (c *Config) signingMethod() gojwt.SigningMethod {
	switch c.Method {
	case MethodHS384:
		return gojwt.SigningMethodHS384
	case MethodHS512:
		return gojwt.SigningMethodHS512
	case MethodEdDSA:
		return gojwt.SigningMethodEdDSA
	default:
		return gojwt.SigningMethodHS256
	}
}

func (c *Config) isHMAC() bool {
	return slices.Contains([]string{MethodHS256, MethodHS384, MethodHS512}, c.Method)
}
