package session_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/habedi/oidckit/pkg/autherr"
	"github.com/habedi/oidckit/session"
	"github.com/habedi/oidckit/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	tokens  map[string]token.Token
	cleared bool
	removed []string
	getErr  error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]token.Token)}
}

func (s *fakeTokenStore) Get(ctx context.Context, key string) (*token.Token, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	tok, ok := s.tokens[key]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

func (s *fakeTokenStore) Remove(key string) error {
	s.removed = append(s.removed, key)
	delete(s.tokens, key)
	return nil
}

func (s *fakeTokenStore) Clear() error {
	s.cleared = true
	s.tokens = make(map[string]token.Token)
	return nil
}

type fakeCloser struct {
	calls int
	err   error
}

func (c *fakeCloser) Close(ctx context.Context) error {
	c.calls++
	return c.err
}

type fakeRevoker struct {
	revoked []string
	err     error
}

func (r *fakeRevoker) Revoke(ctx context.Context, raw string) error {
	r.revoked = append(r.revoked, raw)
	return r.err
}

type fakeNavigator struct {
	current  string
	assigned []string
	reloads  int
}

func (n *fakeNavigator) Assign(u string)    { n.assigned = append(n.assigned, u) }
func (n *fakeNavigator) Reload()            { n.reloads++ }
func (n *fakeNavigator) CurrentURL() string { return n.current }

type fakeURLs struct{}

func (fakeURLs) LogoutURL(idToken, redirectURI, state string) string {
	u := fmt.Sprintf("https://idp.example.com/v1/logout?id_token_hint=%s&post_logout_redirect_uri=%s",
		url.QueryEscape(idToken), url.QueryEscape(redirectURI))
	if state != "" {
		u += "&state=" + url.QueryEscape(state)
	}
	return u
}

func (fakeURLs) AuthorizeURL(state string) (string, error) {
	return "https://idp.example.com/v1/authorize?state=" + url.QueryEscape(state), nil
}

type harness struct {
	store   *fakeTokenStore
	closer  *fakeCloser
	revoker *fakeRevoker
	nav     *fakeNavigator
	flow    *session.Flow
}

func newHarness(defaultRedirect string) *harness {
	h := &harness{
		store:   newFakeTokenStore(),
		closer:  &fakeCloser{},
		revoker: &fakeRevoker{},
		nav:     &fakeNavigator{current: "https://app.example.com/dashboard"},
	}
	h.flow = session.NewFlow(session.Config{
		Tokens:                h.store,
		Session:               h.closer,
		Revoker:               h.revoker,
		Nav:                   h.nav,
		URLs:                  fakeURLs{},
		PostLogoutRedirectURI: defaultRedirect,
	})
	return h
}

func (h *harness) withTokens() *harness {
	h.store.tokens[token.KeyIDToken] = token.New(token.KindID, "id-raw", []string{"openid"}, 10_000)
	h.store.tokens[token.KeyAccessToken] = token.New(token.KindAccess, "access-raw", []string{"openid"}, 10_000)
	return h
}

func TestRevokeAccessToken_ReadsAndRemovesStoredToken(t *testing.T) {
	h := newHarness("").withTokens()

	err := h.flow.RevokeAccessToken(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{token.KeyAccessToken}, h.store.removed)
	assert.Equal(t, []string{"access-raw"}, h.revoker.revoked)
}

func TestRevokeAccessToken_NothingStoredResolvesQuietly(t *testing.T) {
	h := newHarness("")

	err := h.flow.RevokeAccessToken(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, h.revoker.revoked, "provider is never contacted")
}

func TestRevokeAccessToken_ExplicitTokenSkipsStore(t *testing.T) {
	h := newHarness("").withTokens()
	tok := token.New(token.KindAccess, "explicit-raw", []string{"openid"}, 10_000)

	err := h.flow.RevokeAccessToken(context.Background(), &tok)

	require.NoError(t, err)
	assert.Empty(t, h.store.removed)
	assert.Equal(t, []string{"explicit-raw"}, h.revoker.revoked)
}

func TestCloseSession_ClearsTokensAndAbsorbsSessionGone(t *testing.T) {
	h := newHarness("").withTokens()
	h.closer.err = &autherr.Error{Kind: autherr.SessionGone, Code: "resource_not_found", Message: "gone"}

	err := h.flow.CloseSession(context.Background())

	require.NoError(t, err, "an already-gone session counts as success")
	assert.True(t, h.store.cleared)
	assert.Equal(t, 1, h.closer.calls)
}

func TestCloseSession_OtherErrorsPropagate(t *testing.T) {
	h := newHarness("")
	h.closer.err = errors.New("network down")

	err := h.flow.CloseSession(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

func TestSignOut_DefaultPathUsesProviderLogoutRedirect(t *testing.T) {
	h := newHarness("").withTokens()

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{})

	require.NoError(t, err)
	assert.True(t, h.store.cleared, "local tokens cleared before any network call")
	assert.Equal(t, []string{"access-raw"}, h.revoker.revoked)
	assert.Zero(t, h.closer.calls, "provider closes its own session on the redirect path")

	require.Len(t, h.nav.assigned, 1)
	target := h.nav.assigned[0]
	assert.Contains(t, target, "id_token_hint="+url.QueryEscape("id-raw"))
	assert.Contains(t, target, "post_logout_redirect_uri="+url.QueryEscape("https://app.example.com"))
}

func TestSignOut_StateParameterIsAppended(t *testing.T) {
	h := newHarness("").withTokens()

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{State: "opaque value"})

	require.NoError(t, err)
	require.Len(t, h.nav.assigned, 1)
	assert.Contains(t, h.nav.assigned[0], "state="+url.QueryEscape("opaque value"))
}

func TestSignOut_NoIDTokenHintFallsBackToCloseSession(t *testing.T) {
	h := newHarness("https://app.example.com/goodbye").withTokens()

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{NoIDTokenHint: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"access-raw"}, h.revoker.revoked)
	assert.Equal(t, 1, h.closer.calls)
	assert.Equal(t, []string{"https://app.example.com/goodbye"}, h.nav.assigned)
	assert.Zero(t, h.nav.reloads)
}

func TestSignOut_RedirectEqualToCurrentPageReloads(t *testing.T) {
	h := newHarness("https://app.example.com/dashboard").withTokens()

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{NoIDTokenHint: true})

	require.NoError(t, err)
	assert.Equal(t, 1, h.nav.reloads)
	assert.Empty(t, h.nav.assigned)
}

func TestSignOut_NoStoredIDTokenAlsoFallsBack(t *testing.T) {
	h := newHarness("https://app.example.com/goodbye")
	h.store.tokens[token.KeyAccessToken] = token.New(token.KindAccess, "access-raw", []string{"openid"}, 10_000)

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, h.closer.calls)
	assert.Equal(t, []string{"https://app.example.com/goodbye"}, h.nav.assigned)
}

func TestSignOut_RevokeFailureSuppressesNavigation(t *testing.T) {
	h := newHarness("").withTokens()
	h.revoker.err = errors.New("revocation endpoint down")

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{})

	require.Error(t, err)
	assert.Empty(t, h.nav.assigned)
	assert.Zero(t, h.nav.reloads)
	assert.True(t, h.store.cleared, "tokens are cleared before the failing call")
}

func TestSignOut_CloseSessionFailureSuppressesNavigation(t *testing.T) {
	h := newHarness("")
	h.closer.err = errors.New("session endpoint down")

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{NoIDTokenHint: true})

	require.Error(t, err)
	assert.Empty(t, h.nav.assigned)
	assert.Zero(t, h.nav.reloads)
}

func TestSignOut_DisableRevokeSkipsRevocation(t *testing.T) {
	h := newHarness("").withTokens()

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{DisableRevoke: true})

	require.NoError(t, err)
	assert.Empty(t, h.revoker.revoked)
	require.Len(t, h.nav.assigned, 1)
}

func TestSignOut_ExplicitIDTokenTakesPrecedence(t *testing.T) {
	h := newHarness("").withTokens()
	explicit := token.New(token.KindID, "explicit-id-raw", []string{"openid"}, 10_000)

	err := h.flow.SignOut(context.Background(), session.SignOutOptions{IDToken: &explicit})

	require.NoError(t, err)
	require.Len(t, h.nav.assigned, 1)
	assert.Contains(t, h.nav.assigned[0], "id_token_hint="+url.QueryEscape("explicit-id-raw"))
}

func TestLoginRedirect_AssignsAuthorizeURL(t *testing.T) {
	h := newHarness("")

	err := h.flow.LoginRedirect("abc")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://idp.example.com/v1/authorize?state=abc"}, h.nav.assigned)
}
