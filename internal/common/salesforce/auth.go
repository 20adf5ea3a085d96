package salesforce

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/metrics"
)

const (
	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime = 3 * time.Minute
)

// TokenMinter exchanges signed JWT assertions for CRM access tokens
// (OAuth 2.0 JWT-bearer flow).
type TokenMinter struct {
	loginURL   string
	clientID   string
	key        *rsa.PrivateKey
	sessionTTL time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewTokenMinter parses the PEM-encoded connected-app key.
func NewTokenMinter(loginURL, clientID, privateKeyPEM string, sessionTTL time.Duration, httpClient *http.Client) (*TokenMinter, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse crm private key: %w", err)
	}
	return NewTokenMinterWithKey(loginURL, clientID, key, sessionTTL, httpClient), nil
}

func NewTokenMinterWithKey(loginURL, clientID string, key *rsa.PrivateKey, sessionTTL time.Duration, httpClient *http.Client) *TokenMinter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenMinter{
		loginURL:   strings.TrimSuffix(loginURL, "/"),
		clientID:   clientID,
		key:        key,
		sessionTTL: sessionTTL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// assertion builds the RS256 JWT for username.
func (m *TokenMinter) assertion(username string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    m.clientID,
		Subject:   username,
		Audience:  jwt.ClaimStrings{m.loginURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.key)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
}

// Mint performs the token exchange for username.
func (m *TokenMinter) Mint(ctx context.Context, username string) (*Session, error) {
	if username == "" {
		return nil, errs.NewCRMNotConfiguredError("no CRM username to authorize")
	}

	signed, err := m.assertion(username)
	if err != nil {
		return nil, errs.NewInternalError(fmt.Errorf("sign assertion: %w", err))
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", signed)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		metrics.CRMTokenMints.WithLabelValues("mint", "error").Inc()
		return nil, ClassifyError("token exchange", fmt.Errorf("failed to execute token request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.CRMTokenMints.WithLabelValues("mint", "rejected").Inc()
		apiErr := newAPIError("token exchange", resp.StatusCode, body)
		// invalid_grant: user not pre-authorized for the connected app, or bad key.
		return nil, errs.New(errs.ErrCodeCRMAPIError, "CRM token exchange failed", apiErr.Error()).
			WithMetadata("username", username)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" || tr.InstanceURL == "" {
		return nil, errs.New(errs.ErrCodeCRMAPIError, "CRM token exchange failed", "token response without access_token or instance_url")
	}

	metrics.CRMTokenMints.WithLabelValues("mint", "ok").Inc()
	return &Session{
		AccessToken: tr.AccessToken,
		InstanceURL: tr.InstanceURL,
		ExpiresAt:   m.now().Add(m.sessionTTL),
	}, nil
}
