package client

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/habedi/oidckit/pkg/autherr"
)

// LogoutURL builds the provider logout URL carrying the id-token hint
// and the post-logout landing page, plus an optional opaque state.
// Implements session.URLBuilder.
func (c *Client) LogoutURL(idToken, redirectURI, state string) string {
	u := fmt.Sprintf("%s?id_token_hint=%s&post_logout_redirect_uri=%s",
		c.cfg.LogoutEndpoint, url.QueryEscape(idToken), url.QueryEscape(redirectURI))
	if state != "" {
		u += "&state=" + url.QueryEscape(state)
	}
	return u
}

// AuthorizeURL builds the authorization-code URL for starting a login.
// An empty state gets a generated opaque value.
func (c *Client) AuthorizeURL(state string) (string, error) {
	if c.cfg.RedirectURI == "" {
		return "", autherr.New(autherr.Validation, "redirect URI cannot be empty", nil)
	}
	if state == "" {
		state = uuid.NewString()
	}
	query := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(c.cfg.Scopes, " ")},
		"state":         {state},
	}
	return c.cfg.AuthorizeEndpoint + "?" + query.Encode(), nil
}

func (c *Client) fromURIPath() string {
	return filepath.Join(c.cfg.StorageDir, "from_uri")
}

// SetFromURI records where the user was before the login redirect so
// the host application can send them back afterwards.
func (c *Client) SetFromURI(uri string) error {
	if err := os.MkdirAll(c.cfg.StorageDir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(c.fromURIPath(), []byte(uri), 0o600)
}

// FromURI returns the recorded referrer URI, or "" when none was set.
func (c *Client) FromURI() (string, error) {
	data, err := os.ReadFile(c.fromURIPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
