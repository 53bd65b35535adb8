package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Secret keys.
const (
	KeyAPIKey                  = "BBCE_API_KEY"
	KeyCompanyCode             = "BBCE_COMPANY_CODE"
	KeyEmail                   = "BBCE_EMAIL"
	KeyPassword                = "BBCE_PASSWORD"
	KeyDashboardLogin          = "DASHBOARD_LOGIN"
	KeyDashboardPassword       = "DASHBOARD_PASSWORD"
	KeyDashboardPasswordBcrypt = "DASHBOARD_PASSWORD_BCRYPT"
	KeyDashboardTOTPSecret     = "DASHBOARD_TOTP_SECRET"
)

// Secrets are the credentials resolved through the provider chain.
type Secrets struct {
	APIKey      string
	CompanyCode int
	Email       string
	Password    string

	DashboardLogin          string
	DashboardPassword       string
	DashboardPasswordBcrypt string
	DashboardTOTPSecret     string
}

// Provider looks up a secret. ok is false when the provider has no
// non-empty value for key.
type Provider interface {
	Lookup(key string) (value string, ok bool)
}

// EnvProvider reads process environment variables.
type EnvProvider struct{}

func (EnvProvider) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// MapProvider serves secrets from a map; keys are case-insensitive.
type MapProvider map[string]string

func (m MapProvider) Lookup(key string) (string, bool) {
	v, ok := m[strings.ToUpper(key)]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// LoadSecretsFile reads a flat YAML mapping of secret names to values.
// Scalars of any type are accepted and kept as their literal text.
func LoadSecretsFile(path string) (MapProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: secrets file: %w", err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: secrets file %s: %w", path, err)
	}
	out := make(MapProvider, len(doc))
	for k, n := range doc {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config: secrets file %s: %s is not a scalar", path, k)
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = n.Value
	}
	return out, nil
}

// Chain tries providers in order; the first present value wins.
type Chain []Provider

func (c Chain) Lookup(key string) (string, bool) {
	for _, p := range c {
		if v, ok := p.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// ResolveSecrets looks up every secret. Missing marketplace credentials are
// reported together in one error. Dashboard credentials are optional here;
// the auth package decides whether the API can start without them.
func ResolveSecrets(p Provider) (Secrets, error) {
	raw := func(k string) string {
		v, _ := p.Lookup(k)
		return v
	}
	get := func(k string) string { return strings.TrimSpace(raw(k)) }

	var missing []string
	for _, k := range []string{KeyAPIKey, KeyCompanyCode, KeyEmail, KeyPassword} {
		if _, ok := p.Lookup(k); !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Secrets{}, fmt.Errorf("config: missing secrets: %s", strings.Join(missing, ", "))
	}

	code, err := strconv.Atoi(get(KeyCompanyCode))
	if err != nil {
		return Secrets{}, errors.New("config: BBCE_COMPANY_CODE must be an integer")
	}

	return Secrets{
		APIKey:                  get(KeyAPIKey),
		CompanyCode:             code,
		Email:                   get(KeyEmail),
		Password:                raw(KeyPassword),
		DashboardLogin:          get(KeyDashboardLogin),
		DashboardPassword:       raw(KeyDashboardPassword),
		DashboardPasswordBcrypt: get(KeyDashboardPasswordBcrypt),
		DashboardTOTPSecret:     get(KeyDashboardTOTPSecret),
	}, nil
}
