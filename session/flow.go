// Package session drives the sign-out side of the identity flow: access
// token revocation, server-side session close and the choice between a
// provider logout redirect and a local reload/redirect.
package session

import (
	"context"
	"net/url"

	"github.com/habedi/oidckit/pkg/autherr"
	"github.com/habedi/oidckit/token"
	"github.com/rs/zerolog/log"
)

// Closer closes the provider's server-side session.
type Closer interface {
	Close(ctx context.Context) error
}

// Revoker revokes one raw token with the provider.
type Revoker interface {
	Revoke(ctx context.Context, raw string) error
}

// Navigator is the side-effecting navigation boundary. Assign and
// Reload are terminal: the flow never calls them after a failure.
type Navigator interface {
	Assign(url string)
	Reload()
	CurrentURL() string
}

// URLBuilder constructs the provider's browse-to URLs.
type URLBuilder interface {
	LogoutURL(idToken, redirectURI, state string) string
	AuthorizeURL(state string) (string, error)
}

// TokenStore is the slice of the token manager the flow needs.
type TokenStore interface {
	Get(ctx context.Context, key string) (*token.Token, error)
	Remove(key string) error
	Clear() error
}

// Config wires the flow's collaborators.
type Config struct {
	Tokens  TokenStore
	Session Closer
	Revoker Revoker
	Nav     Navigator
	URLs    URLBuilder

	// PostLogoutRedirectURI is the configured default landing page
	// after sign-out. Empty means the current page's origin.
	PostLogoutRedirectURI string
}

// Flow executes the sign-out decision procedure. It holds no mutable
// state; every call is a one-shot run over its collaborators.
type Flow struct {
	tokens          TokenStore
	session         Closer
	revoker         Revoker
	nav             Navigator
	urls            URLBuilder
	defaultRedirect string
}

func NewFlow(cfg Config) *Flow {
	return &Flow{
		tokens:          cfg.Tokens,
		session:         cfg.Session,
		revoker:         cfg.Revoker,
		nav:             cfg.Nav,
		urls:            cfg.URLs,
		defaultRedirect: cfg.PostLogoutRedirectURI,
	}
}

// SignOutOptions tune one SignOut call.
type SignOutOptions struct {
	// PostLogoutRedirectURI overrides the configured default.
	PostLogoutRedirectURI string
	// IDToken supplies the id-token hint explicitly instead of a store
	// read. NoIDTokenHint forces the no-hint path even when a token is
	// stored.
	IDToken       *token.Token
	NoIDTokenHint bool
	// AccessToken supplies the token to revoke explicitly instead of a
	// store read. DisableRevoke skips revocation entirely.
	AccessToken   *token.Token
	DisableRevoke bool
	// State is an opaque value appended to the provider logout URL.
	State string
}

// RevokeAccessToken revokes tok with the provider. When tok is nil the
// stored access token is used and removed from the store first; if none
// is stored either, the call succeeds without contacting the provider.
func (f *Flow) RevokeAccessToken(ctx context.Context, tok *token.Token) error {
	if tok == nil {
		stored, err := f.tokens.Get(ctx, token.KeyAccessToken)
		if err != nil {
			return err
		}
		if stored != nil {
			if err := f.tokens.Remove(token.KeyAccessToken); err != nil {
				return err
			}
		}
		tok = stored
	}
	if tok == nil {
		// Nothing to revoke; not an error.
		return nil
	}
	return f.revoker.Revoke(ctx, tok.Raw)
}

// CloseSession clears all locally stored tokens and closes the
// provider's session. A provider report that the session was already
// gone counts as success; everything else propagates.
func (f *Flow) CloseSession(ctx context.Context) error {
	if err := f.tokens.Clear(); err != nil {
		return err
	}
	err := f.session.Close(ctx)
	if autherr.IsKind(err, autherr.SessionGone) {
		log.Debug().Msg("Server session already gone, treating close as success")
		return nil
	}
	return err
}

// SignOut runs the sign-out decision procedure. Local tokens are always
// cleared before any network call; navigation is the last action taken
// and never happens after a failure.
func (f *Flow) SignOut(ctx context.Context, opts SignOutOptions) error {
	redirectURI := opts.PostLogoutRedirectURI
	if redirectURI == "" {
		redirectURI = f.defaultRedirect
	}
	if redirectURI == "" {
		redirectURI = origin(f.nav.CurrentURL())
	}

	var idTok *token.Token
	if !opts.NoIDTokenHint {
		idTok = opts.IDToken
		if idTok == nil {
			stored, err := f.tokens.Get(ctx, token.KeyIDToken)
			if err != nil {
				return err
			}
			idTok = stored
		}
	}

	accessTok := opts.AccessToken
	if !opts.DisableRevoke && accessTok == nil {
		stored, err := f.tokens.Get(ctx, token.KeyAccessToken)
		if err != nil {
			return err
		}
		accessTok = stored
	}

	if err := f.tokens.Clear(); err != nil {
		return err
	}

	if !opts.DisableRevoke && accessTok != nil {
		if err := f.revoker.Revoke(ctx, accessTok.Raw); err != nil {
			return err
		}
	}

	if idTok == nil {
		// Without an id-token hint the provider session is closed
		// directly and navigation stays local.
		if err := f.CloseSession(ctx); err != nil {
			return err
		}
		if redirectURI == f.nav.CurrentURL() {
			f.nav.Reload()
		} else {
			f.nav.Assign(redirectURI)
		}
		return nil
	}

	// With an id-token hint the provider invalidates its session as
	// part of honoring the logout redirect; no local close call.
	f.nav.Assign(f.urls.LogoutURL(idTok.Raw, redirectURI, opts.State))
	return nil
}

// LoginRedirect sends the user agent to the provider's authorization
// endpoint. The redirect response is handled by the caller.
func (f *Flow) LoginRedirect(state string) error {
	u, err := f.urls.AuthorizeURL(state)
	if err != nil {
		return err
	}
	f.nav.Assign(u)
	return nil
}

// origin reduces a page URL to its scheme://host origin. A URL that
// does not parse is returned unchanged.
func origin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return pageURL
	}
	return u.Scheme + "://" + u.Host
}
