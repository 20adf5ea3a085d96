package salesforce

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/metrics"
)

// ConnectOptions selects how a CRM session is obtained. A caller-supplied
// AccessToken and InstanceURL take precedence over minting for Username.
type ConnectOptions struct {
	AccessToken string
	InstanceURL string
	Username    string
}

// Connector hands out CRM clients. Minted tokens are reused in-process via
// oauth2.ReuseTokenSource and across instances via the TokenCache.
type Connector struct {
	minter          *TokenMinter
	cache           TokenCache
	apiVersion      string
	defaultUsername string
	httpClient      *http.Client
	mintTimeout     time.Duration
	logger          logger.Logger

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewConnector builds a Connector from config. Without JWT-bearer settings
// only caller-supplied sessions work.
func NewConnector(cfg config.CRMConfig, cache TokenCache, log logger.Logger) (*Connector, error) {
	httpClient := &http.Client{Timeout: config.GetDuration(cfg.Timeout)}

	var minter *TokenMinter
	if cfg.JWTBearerEnabled() {
		m, err := NewTokenMinter(cfg.LoginURL, cfg.ClientID, cfg.PrivateKey, time.Duration(cfg.SessionTTL)*time.Second, httpClient)
		if err != nil {
			return nil, err
		}
		minter = m
	} else {
		log.Warn("CRM JWT-bearer flow not configured, only caller sessions will work", nil)
	}
	return NewConnectorWith(minter, cache, cfg.APIVersion, cfg.Username, httpClient, log), nil
}

func NewConnectorWith(minter *TokenMinter, cache TokenCache, apiVersion, defaultUsername string, httpClient *http.Client, log logger.Logger) *Connector {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Connector{
		minter:          minter,
		cache:           cache,
		apiVersion:      apiVersion,
		defaultUsername: defaultUsername,
		httpClient:      httpClient,
		mintTimeout:     30 * time.Second,
		logger:          log,
		sources:         make(map[string]oauth2.TokenSource),
	}
}

// Connect returns a client for the options' session.
func (c *Connector) Connect(ctx context.Context, opts ConnectOptions) (*Client, error) {
	if opts.AccessToken != "" {
		if opts.InstanceURL == "" {
			return nil, errs.NewValidationError("CRM instance URL is required with a CRM access token")
		}
		return NewClient(Session{AccessToken: opts.AccessToken, InstanceURL: opts.InstanceURL}, c.apiVersion, c.httpClient), nil
	}

	session, err := c.Session(ctx, opts.Username)
	if err != nil {
		return nil, err
	}
	return NewClient(*session, c.apiVersion, c.httpClient), nil
}

// Session returns a minted session for username (or the integration user).
func (c *Connector) Session(ctx context.Context, username string) (*Session, error) {
	if username == "" {
		username = c.defaultUsername
	}
	if c.minter == nil || username == "" {
		return nil, errs.NewCRMNotConfiguredError("no CRM access token supplied and JWT-bearer flow unavailable")
	}

	type result struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan result, 1)
	src := c.source(username)
	go func() {
		tok, err := src.Token()
		done <- result{tok, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errs.NewTimeoutError("crm token exchange", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, ClassifyError("token exchange", r.err)
		}
		return sessionFromToken(r.tok), nil
	}
}

// Refresh drops cached tokens for username and mints a new session.
func (c *Connector) Refresh(ctx context.Context, username string) (*Session, error) {
	if username == "" {
		username = c.defaultUsername
	}
	c.mu.Lock()
	delete(c.sources, username)
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Delete(ctx, username); err != nil {
			c.logger.Warn("Failed to drop cached CRM token", map[string]interface{}{"username": username, "error": err.Error()})
		}
	}
	return c.Session(ctx, username)
}

// MintingEnabled reports whether server-side tokens are available.
func (c *Connector) MintingEnabled() bool {
	return c.minter != nil
}

func (c *Connector) source(username string) oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src, ok := c.sources[username]; ok {
		return src
	}
	src := oauth2.ReuseTokenSource(nil, &cachingSource{
		minter:   c.minter,
		cache:    c.cache,
		username: username,
		timeout:  c.mintTimeout,
		logger:   c.logger,
	})
	c.sources[username] = src
	return src
}

// cachingSource consults the shared cache before minting.
type cachingSource struct {
	minter   *TokenMinter
	cache    TokenCache
	username string
	timeout  time.Duration
	logger   logger.Logger
}

// Minimum remaining lifetime for a cached session to be handed out.
const minRemaining = time.Minute

func (s *cachingSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.username)
		if err != nil {
			s.logger.Warn("CRM token cache unavailable", map[string]interface{}{"error": err.Error()})
		} else if cached != nil && time.Until(cached.ExpiresAt) > minRemaining {
			metrics.CRMTokenMints.WithLabelValues("cache", "ok").Inc()
			return cached.token(), nil
		}
	}

	session, err := s.minter.Mint(ctx, s.username)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Minted CRM session", map[string]interface{}{
		"username":    s.username,
		"instanceUrl": session.InstanceURL,
		"expiresAt":   session.ExpiresAt,
	})

	if s.cache != nil {
		if err := s.cache.Put(ctx, s.username, session); err != nil {
			s.logger.Warn("Failed to cache CRM token", map[string]interface{}{"error": err.Error()})
		}
	}
	return session.token(), nil
}

func (s *Session) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: s.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.ExpiresAt,
	}
	return tok.WithExtra(map[string]interface{}{"instance_url": s.InstanceURL})
}

func sessionFromToken(tok *oauth2.Token) *Session {
	instanceURL, _ := tok.Extra("instance_url").(string)
	return &Session{
		AccessToken: tok.AccessToken,
		InstanceURL: instanceURL,
		ExpiresAt:   tok.Expiry,
	}
}
