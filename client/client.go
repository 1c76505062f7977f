// Package client talks to the identity provider over HTTP: token
// renewal, revocation and session close, plus construction of the
// browse-to URLs. It implements the collaborator interfaces consumed by
// the token manager and the session flow.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/habedi/oidckit/pkg/autherr"
	"github.com/habedi/oidckit/pkg/queue"
	"github.com/habedi/oidckit/token"
	"github.com/rs/zerolog/log"
)

// Config describes one identity provider application.
type Config struct {
	Issuer      string
	ClientID    string
	RedirectURI string
	Scopes      []string

	// Endpoint overrides; defaults are derived from Issuer.
	TokenEndpoint     string
	RevokeEndpoint    string
	SessionEndpoint   string
	LogoutEndpoint    string
	AuthorizeEndpoint string

	// StorageDir holds the client's small persisted values (refresh
	// token, referrer URI). Defaults to token.DefaultStoragePath.
	StorageDir string

	HTTPClient *http.Client
}

// Client performs provider exchanges. All network operations are
// funneled through one FIFO queue so overlapping exchanges from the
// same instance cannot race each other.
type Client struct {
	cfg   Config
	http  *http.Client
	queue queue.Queue

	mu           sync.Mutex
	refreshToken string
}

func New(cfg Config) (*Client, error) {
	if cfg.Issuer == "" {
		return nil, autherr.New(autherr.Validation, "issuer cannot be empty", nil)
	}
	if cfg.ClientID == "" {
		return nil, autherr.New(autherr.Validation, "client ID cannot be empty", nil)
	}
	issuer := strings.TrimRight(cfg.Issuer, "/")
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = issuer + "/v1/token"
	}
	if cfg.RevokeEndpoint == "" {
		cfg.RevokeEndpoint = issuer + "/v1/revoke"
	}
	if cfg.SessionEndpoint == "" {
		cfg.SessionEndpoint = issuer + "/v1/sessions/me"
	}
	if cfg.LogoutEndpoint == "" {
		cfg.LogoutEndpoint = issuer + "/v1/logout"
	}
	if cfg.AuthorizeEndpoint == "" {
		cfg.AuthorizeEndpoint = issuer + "/v1/authorize"
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = token.DefaultStoragePath
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// SetRefreshToken stores the refresh token used for renewals, both in
// memory and on disk so it survives process restarts.
func (c *Client) SetRefreshToken(rt string) error {
	c.mu.Lock()
	c.refreshToken = rt
	c.mu.Unlock()
	if err := os.MkdirAll(c.cfg.StorageDir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(c.refreshTokenPath(), []byte(rt), 0o600)
}

func (c *Client) refreshTokenPath() string {
	return filepath.Join(c.cfg.StorageDir, "refresh_token")
}

func (c *Client) currentRefreshToken() string {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()
	if rt != "" {
		return rt
	}
	data, err := os.ReadFile(c.refreshTokenPath())
	if err != nil {
		return ""
	}
	rt = strings.TrimSpace(string(data))
	c.mu.Lock()
	c.refreshToken = rt
	c.mu.Unlock()
	return rt
}

// Renew exchanges the refresh token for fresh credentials and returns
// the variant matching tok's kind. Implements token.Renewer.
func (c *Client) Renew(ctx context.Context, key string, tok token.Token) (token.Token, error) {
	var out token.Token
	err := c.queue.Do(ctx, func(ctx context.Context) error {
		refresh := c.currentRefreshToken()
		if refresh == "" {
			return autherr.New(autherr.Validation, "no refresh token available for renewal", nil)
		}

		form := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refresh},
			"client_id":     {c.cfg.ClientID},
			"scope":         {strings.Join(tok.Scopes, " ")},
		}
		body, err := c.postForm(ctx, c.cfg.TokenEndpoint, form)
		if err != nil {
			return err
		}

		var result struct {
			AccessToken  string `json:"access_token"`
			IDToken      string `json:"id_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int64  `json:"expires_in"`
			Scope        string `json:"scope"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to parse token response: %w", err)
		}
		if result.RefreshToken != "" && result.RefreshToken != refresh {
			if err := c.SetRefreshToken(result.RefreshToken); err != nil {
				log.Warn().Err(err).Msg("Failed to persist rotated refresh token")
			}
		}

		scopes := tok.Scopes
		if result.Scope != "" {
			scopes = strings.Fields(result.Scope)
		}
		switch tok.Kind {
		case token.KindAccess:
			out = token.New(token.KindAccess, result.AccessToken,
				scopes, time.Now().Unix()+result.ExpiresIn)
		case token.KindID:
			fresh, err := token.FromRaw(token.KindID, result.IDToken, scopes)
			if err != nil {
				return err
			}
			out = fresh
		default:
			return autherr.New(autherr.Validation, fmt.Sprintf("cannot renew token of kind %q", tok.Kind), nil)
		}
		log.Info().Str("key", key).Msg("Token renewed with the provider")
		return nil
	})
	return out, err
}

// Revoke invalidates one raw access token with the provider (RFC 7009).
// Implements session.Revoker.
func (c *Client) Revoke(ctx context.Context, raw string) error {
	return c.queue.Do(ctx, func(ctx context.Context) error {
		form := url.Values{
			"token":           {raw},
			"token_type_hint": {"access_token"},
			"client_id":       {c.cfg.ClientID},
		}
		_, err := c.postForm(ctx, c.cfg.RevokeEndpoint, form)
		return err
	})
}

// Close ends the provider's server-side session. A 404 means the
// session was already gone and is reported as a SessionGone error for
// the flow to absorb. Implements session.Closer.
func (c *Client) Close(ctx context.Context) error {
	return c.queue.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.SessionEndpoint, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to close provider session: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return &autherr.Error{Kind: autherr.SessionGone, Code: "resource_not_found", Message: "server session not found"}
		}
		if resp.StatusCode >= 300 {
			return providerError(resp)
		}
		return nil
	})
}

// postForm sends a form-encoded POST and returns the response body, or
// a classified provider error for non-2xx responses.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, providerError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}
	return body, nil
}

// providerError maps an OAuth2 error response body onto the error
// taxonomy. Unparseable bodies become plain internal errors.
func providerError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var result struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Error == "" {
		return autherr.New(autherr.Internal, fmt.Sprintf("provider returned status %d", resp.StatusCode), nil)
	}
	return autherr.FromProviderCode(result.Error, result.Description)
}
