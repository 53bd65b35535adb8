package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUpstreamEnv(t *testing.T) {
	t.Setenv(KeyAPIKey, "key-env")
	t.Setenv(KeyCompanyCode, "123")
	t.Setenv(KeyEmail, "ops@example.com")
	t.Setenv(KeyPassword, " pass with spaces ")
}

func TestFromEnv_Defaults(t *testing.T) {
	setUpstreamEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 20*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.AlertAfterFailures)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, cfg.Location()), cfg.DealsFromTime())
	assert.False(t, cfg.RedisEnabled())

	assert.Equal(t, "key-env", cfg.Secrets.APIKey)
	assert.Equal(t, 123, cfg.Secrets.CompanyCode)
	assert.Equal(t, " pass with spaces ", cfg.Secrets.Password, "passwords are not trimmed")
}

func TestFromEnv_Overrides(t *testing.T) {
	setUpstreamEnv(t)
	t.Setenv("REFRESH_INTERVAL", "5m")
	t.Setenv("DEALS_FROM", "2024-07-15")
	t.Setenv("DASHBOARD_TZ", "UTC")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), cfg.DealsFromTime())
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"DEALS_FROM":           "01/01/2025",
		"DASHBOARD_TZ":         "Mars/Olympus",
		"REFRESH_INTERVAL":     "10s",
		"ALERT_AFTER_FAILURES": "0",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			setUpstreamEnv(t)
			t.Setenv(key, val)
			_, err := FromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestResolveSecrets_ReportsAllMissing(t *testing.T) {
	_, err := ResolveSecrets(MapProvider{"BBCE_EMAIL": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BBCE_API_KEY, BBCE_COMPANY_CODE, BBCE_PASSWORD")
}

func TestResolveSecrets_CompanyCodeMustBeInteger(t *testing.T) {
	_, err := ResolveSecrets(MapProvider{
		KeyAPIKey: "k", KeyCompanyCode: "abc", KeyEmail: "e", KeyPassword: "p",
	})
	assert.ErrorContains(t, err, "BBCE_COMPANY_CODE")
}

func TestChain_FirstPresentWins(t *testing.T) {
	c := Chain{
		MapProvider{"A": "from-file", "B": "  "},
		MapProvider{"A": "from-env", "B": "env-b", "C": "env-c"},
	}
	v, ok := c.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "from-file", v)

	v, _ = c.Lookup("b")
	assert.Equal(t, "env-b", v, "blank values fall through")

	_, ok = c.Lookup("D")
	assert.False(t, ok)
}

func TestFromEnv_SecretsFileTakesPrecedence(t *testing.T) {
	setUpstreamEnv(t)
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"bbce_api_key: key-file\n"+
			"BBCE_COMPANY_CODE: 987\n"+
			"DASHBOARD_LOGIN: admin\n"+
			"DASHBOARD_PASSWORD: hunter2\n"), 0o600))
	t.Setenv("SECRETS_FILE", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "key-file", cfg.Secrets.APIKey)
	assert.Equal(t, 987, cfg.Secrets.CompanyCode, "numeric YAML scalars are accepted")
	assert.Equal(t, "ops@example.com", cfg.Secrets.Email, "falls back to the environment")
	assert.Equal(t, "admin", cfg.Secrets.DashboardLogin)
}

func TestLoadSecretsFile_Errors(t *testing.T) {
	_, err := LoadSecretsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "nested.yaml")
	require.NoError(t, os.WriteFile(path, []byte("BBCE:\n  key: v\n"), 0o600))
	_, err = LoadSecretsFile(path)
	assert.ErrorContains(t, err, "not a scalar")
}
