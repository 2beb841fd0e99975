package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/notify/errors"
)

func edKeys(t *testing.T) (pubPEM, privPEM string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
}

func assertCode(t *testing.T, err error, want apperrors.ErrorCode) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != want {
		t.Errorf("expected code %s, got %s", want, appErr.Code)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "hmac with secret", cfg: Config{Secret: "s"}},
		{name: "hmac without secret", cfg: Config{}, wantErr: true},
		{name: "eddsa without key", cfg: Config{Method: MethodEdDSA}, wantErr: true},
		{name: "eddsa with key", cfg: Config{Method: MethodEdDSA, PublicKey: "pem"}},
		{name: "unknown method", cfg: Config{Method: "RS256", Secret: "s"}, wantErr: true},
		{name: "negative leeway", cfg: Config{Secret: "s", Leeway: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHMACRoundTrip(t *testing.T) {
	svc, err := NewService(Config{Secret: "test-secret", Issuer: "chat", Audience: "notify"})
	if err != nil {
		t.Fatal(err)
	}

	token, err := svc.Issue(7, 1)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != 7 || claims.WsID != 1 {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestEdDSARoundTrip(t *testing.T) {
	pub, priv := edKeys(t)
	issuer, err := NewService(Config{Method: MethodEdDSA, PrivateKey: priv})
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := NewService(Config{Method: MethodEdDSA, PublicKey: pub})
	if err != nil {
		t.Fatal(err)
	}

	token, err := issuer.Issue(42, 0)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user 42, got %d", claims.UserID)
	}

	if _, err := verifier.Issue(1, 0); err == nil {
		t.Error("expected issuing without a private key to fail")
	}
}

func TestVerifyFailures(t *testing.T) {
	svc, err := NewService(Config{Secret: "test-secret"})
	if err != nil {
		t.Fatal(err)
	}
	other, _ := NewService(Config{Secret: "other-secret"})
	foreign, _ := other.Issue(7, 0)

	sign := func(claims gojwt.Claims) string {
		s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	past := gojwt.NewNumericDate(time.Now().Add(-time.Hour))
	future := gojwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
		want  apperrors.ErrorCode
	}{
		{name: "empty", token: "", want: apperrors.ErrCodeUnauthorized},
		{name: "garbage", token: "not-a-token", want: apperrors.ErrCodeInvalidToken},
		{name: "wrong key", token: foreign, want: apperrors.ErrCodeInvalidToken},
		{name: "expired", token: sign(&Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "7", ExpiresAt: past},
		}), want: apperrors.ErrCodeTokenExpired},
		{name: "no expiry", token: sign(&Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "7"},
		}), want: apperrors.ErrCodeInvalidToken},
		{name: "non-numeric subject", token: sign(&Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "alice", ExpiresAt: future},
		}), want: apperrors.ErrCodeInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			if err == nil {
				t.Fatal("expected error")
			}
			assertCode(t, err, tt.want)
		})
	}
}

func TestSubjectFallback(t *testing.T) {
	svc, _ := NewService(Config{Secret: "test-secret"})
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "99",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 99 {
		t.Errorf("expected user 99, got %d", claims.UserID)
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Error("expected no claims")
	}
	ctx = WithClaims(ctx, &Claims{UserID: 3})
	claims, ok := FromContext(ctx)
	if !ok || claims.UserID != 3 {
		t.Errorf("unexpected claims %+v %v", claims, ok)
	}
}
