package security

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/notify/security/tlstest"
)

func TestBuild_Disabled(t *testing.T) {
	cfg, err := TLSConfig{CAFile: "/does/not/exist"}.Build()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestBuild_Defaults(t *testing.T) {
	cfg, err := TLSConfig{Enabled: true, ServerName: "redis.internal"}.Build()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, "redis.internal", cfg.ServerName)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)
}

func TestBuild_MutualTLS(t *testing.T) {
	files := tlstest.Generate(t)
	cfg, err := TLSConfig{
		Enabled:    true,
		CAFile:     files.CAFile,
		CertFile:   files.CertFile,
		KeyFile:    files.KeyFile,
		MinVersion: TLS13,
	}.Build()
	require.NoError(t, err)
	require.NotNil(t, cfg.RootCAs)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestBuild_Errors(t *testing.T) {
	files := tlstest.Generate(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))

	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing ca file", TLSConfig{Enabled: true, CAFile: "/does/not/exist"}},
		{"ca file without certificates", TLSConfig{Enabled: true, CAFile: garbage}},
		{"cert without key", TLSConfig{Enabled: true, CertFile: files.CertFile}},
		{"mismatched key", TLSConfig{Enabled: true, CertFile: files.CertFile, KeyFile: files.CAFile}},
		{"unknown version", TLSConfig{Enabled: true, MinVersion: "1.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Build()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, TLSConfig{MinVersion: "bogus"}.Validate())
	assert.Error(t, TLSConfig{Enabled: true, MinVersion: "bogus"}.Validate())
	assert.Error(t, TLSConfig{Enabled: true, KeyFile: "key.pem"}.Validate())
	assert.NoError(t, TLSConfig{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem"}.Validate())
}
