// Package auth protects the dashboard API with a single configured account,
// an optional TOTP second factor and in-memory bearer sessions.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrNotConfigured      = errors.New("dashboard credentials not configured")
)

// Credentials is the dashboard account. PasswordHash (bcrypt) takes
// precedence over Password when both are set.
type Credentials struct {
	Login        string
	Password     string
	PasswordHash string
	TOTPSecret   string // base32; empty disables the second factor
}

// Authenticator checks login attempts against Credentials.
type Authenticator struct {
	creds Credentials
	now   func() time.Time
}

// NewAuthenticator validates creds.
func NewAuthenticator(creds Credentials) (*Authenticator, error) {
	creds.Login = strings.TrimSpace(creds.Login)
	if creds.Login == "" || (creds.Password == "" && creds.PasswordHash == "") {
		return nil, ErrNotConfigured
	}
	if creds.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(creds.PasswordHash)); err != nil {
			return nil, errors.New("auth: DASHBOARD_PASSWORD_BCRYPT is not a bcrypt hash")
		}
	}
	return &Authenticator{creds: creds, now: time.Now}, nil
}

// TOTPEnabled reports whether a second factor is required.
func (a *Authenticator) TOTPEnabled() bool { return a.creds.TOTPSecret != "" }

// Check verifies login and password, then the TOTP code when enabled.
// Login and password are both evaluated so timing does not reveal which
// one was wrong.
func (a *Authenticator) Check(login, password, code string) error {
	loginOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(login)), []byte(a.creds.Login)) == 1

	var passOK bool
	if a.creds.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(a.creds.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.creds.Password)) == 1
	}
	if !loginOK || !passOK {
		return ErrInvalidCredentials
	}

	if !a.TOTPEnabled() {
		return nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrTOTPRequired
	}
	ok, err := totp.ValidateCustom(code, a.creds.TOTPSecret, a.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	return nil
}
