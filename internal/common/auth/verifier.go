// internal/common/auth/verifier.go
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
)

// Claims are the ID-token claims the functions rely on.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// Caller is the authenticated principal of one invocation.
type Caller struct {
	UID   string
	Email string
	Name  string
	Role  string
}

// Verifier validates caller ID tokens. RS256 tokens are checked against
// the PEM certificates published at certsURL (kid -> cert); HS256 tokens
// against a shared secret for local development.
type Verifier struct {
	issuer     string
	audience   string
	hmacSecret []byte
	certsURL   string
	httpClient *http.Client

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	keysExpiry time.Time
	now        func() time.Time
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		hmacSecret: []byte(cfg.HMACSecret),
		certsURL:   cfg.CertsURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keys:       make(map[string]*rsa.PublicKey),
		now:        time.Now,
	}
}

// Verify parses and validates an ID token.
func (v *Verifier) Verify(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, errs.NewUnauthenticatedError("missing ID token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, v.keyFunc(ctx), opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.NewUnauthenticatedError("ID token expired")
		}
		return nil, errs.NewUnauthenticatedError(err.Error())
	}
	if claims.Subject == "" {
		return nil, errs.NewUnauthenticatedError("ID token has no subject")
	}

	return &Caller{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

func (v *Verifier) methods() []string {
	var m []string
	if v.certsURL != "" {
		m = append(m, jwt.SigningMethodRS256.Alg())
	}
	if len(v.hmacSecret) > 0 {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	return m
}

func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(tok *jwt.Token) (interface{}, error) {
		switch tok.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return v.hmacSecret, nil
		case *jwt.SigningMethodRSA:
			kid, _ := tok.Header["kid"].(string)
			return v.publicKey(ctx, kid)
		default:
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
	}
}

func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := v.now().Before(v.keysExpiry)
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown key id %q", kid)
}

// refreshKeys downloads the kid -> PEM certificate map and honors Cache-Control max-age.
func (v *Verifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("build certs request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch certs: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("decode certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("parse cert %s: %w", kid, err)
		}
		keys[kid] = key
	}

	v.mu.Lock()
	v.keys = keys
	v.keysExpiry = v.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()
	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "max-age=") {
			if secs, err := strconv.Atoi(strings.TrimPrefix(part, "max-age=")); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Hour
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
