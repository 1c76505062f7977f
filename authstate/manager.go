// Package authstate derives a single coherent "is the user
// authenticated" snapshot from raw token state. Recomputations are
// cancelable and coalesced so subscribers only ever see the freshest
// settled snapshot.
package authstate

import (
	"context"
	"sync"

	"github.com/habedi/oidckit/events"
	"github.com/habedi/oidckit/token"
	"github.com/rs/zerolog/log"
)

// EventAuthStateChange carries one AuthState value as its payload.
const EventAuthStateChange = "authStateChange"

// DefaultMaxCancels bounds how many times an in-flight recomputation
// may be superseded before further triggers are dropped and the current
// one is left to finish. Breaks infinite-cancellation loops under
// rapid event storms.
const DefaultMaxCancels = 10

// AuthState is an immutable snapshot of the derived authentication
// state. It is replaced wholesale on every settled recomputation.
type AuthState struct {
	Pending       bool
	Authenticated bool
	IDToken       *token.Token
	AccessToken   *token.Token
}

// TokenSource is the slice of the token manager the auth state manager
// needs: reads, expiry checks and lifecycle event subscription.
type TokenSource interface {
	Get(ctx context.Context, key string) (*token.Token, error)
	HasExpired(tok token.Token) bool
	On(event string, h events.Handler) (off func())
}

// Predicate decides Authenticated for a snapshot. The default requires
// both tokens to be present and unexpired.
type Predicate func(ctx context.Context, idToken, accessToken *token.Token) (bool, error)

// Config carries the Manager's construction options.
type Config struct {
	Tokens     TokenSource
	Predicate  Predicate // optional
	MaxCancels int       // defaults to DefaultMaxCancels when 0
}

type pendingRecompute struct {
	cancel context.CancelFunc
}

// Manager recomputes the auth state whenever token lifecycle events
// fire (or on demand) and notifies subscribers exactly once per
// settled recomputation.
type Manager struct {
	mu         sync.Mutex
	bus        *events.Bus
	tokens     TokenSource
	predicate  Predicate
	maxCancels int

	current AuthState
	pending *pendingRecompute
	cancels int
	offs    []func()
}

// NewManager builds a Manager, subscribes it to the token manager's
// "added", "renewed" and "removed" events and kicks off the first
// recomputation. Until that settles, AuthState reports Pending.
func NewManager(cfg Config) *Manager {
	maxCancels := cfg.MaxCancels
	if maxCancels == 0 {
		maxCancels = DefaultMaxCancels
	}
	m := &Manager{
		bus:        events.NewBus(),
		tokens:     cfg.Tokens,
		predicate:  cfg.Predicate,
		maxCancels: maxCancels,
		current:    AuthState{Pending: true},
	}
	trigger := func(args ...any) { m.UpdateAuthState(context.Background()) }
	for _, event := range []string{token.EventAdded, token.EventRenewed, token.EventRemoved} {
		m.offs = append(m.offs, m.tokens.On(event, trigger))
	}
	m.UpdateAuthState(context.Background())
	return m
}

// AuthState returns the current snapshot. It never triggers a
// recomputation.
func (m *Manager) AuthState() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnAuthStateChange subscribes to settled snapshots and returns the
// token that unsubscribes the handler.
func (m *Manager) OnAuthStateChange(h func(AuthState)) (off func()) {
	return m.bus.Subscribe(EventAuthStateChange, func(args ...any) {
		h(args[0].(AuthState))
	})
}

// UpdateAuthState initiates a recomputation, superseding any in-flight
// one by canceling it cooperatively. Once the cancellation counter
// reaches its ceiling the call is dropped instead, letting the
// in-flight recomputation finish — the freshest trigger loses, but
// liveness wins.
func (m *Manager) UpdateAuthState(ctx context.Context) {
	m.mu.Lock()
	if m.pending != nil {
		if m.cancels >= m.maxCancels {
			m.mu.Unlock()
			return
		}
		m.cancels++
		m.pending.cancel()
	}
	rctx, cancel := context.WithCancel(ctx)
	p := &pendingRecompute{cancel: cancel}
	m.pending = p
	m.mu.Unlock()

	go m.recompute(rctx, p)
}

// Close cancels any in-flight recomputation and detaches the manager
// from token events.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.pending != nil {
		m.pending.cancel()
		m.pending = nil
	}
	offs := m.offs
	m.offs = nil
	m.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// recompute reads both tokens, demotes expired ones to nil for this
// snapshot only, resolves the predicate and, unless superseded along
// the way, installs and publishes the new snapshot.
func (m *Manager) recompute(ctx context.Context, p *pendingRecompute) {
	idToken := m.readToken(ctx, token.KeyIDToken)
	if ctx.Err() != nil {
		return
	}
	accessToken := m.readToken(ctx, token.KeyAccessToken)
	if ctx.Err() != nil {
		return
	}

	authenticated := idToken != nil && accessToken != nil
	if m.predicate != nil {
		ok, err := m.predicate(ctx, idToken, accessToken)
		if err != nil {
			log.Warn().Err(err).Msg("Auth state predicate failed, treating as unauthenticated")
			ok = false
		}
		authenticated = ok
	}
	if ctx.Err() != nil {
		return
	}

	next := AuthState{
		Pending:       false,
		Authenticated: authenticated,
		IDToken:       idToken,
		AccessToken:   accessToken,
	}

	m.mu.Lock()
	if m.pending != p {
		// Superseded between the last checkpoint and here.
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.cancels = 0
	m.current = next
	m.mu.Unlock()

	m.bus.Publish(EventAuthStateChange, next)
}

// readToken returns the stored token under key, or nil when it is
// absent, unreadable or already past its effective expiry. Expired
// tokens are only excluded from the snapshot, never removed from
// storage here.
func (m *Manager) readToken(ctx context.Context, key string) *token.Token {
	tok, err := m.tokens.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read token for auth state")
		return nil
	}
	if tok == nil || m.tokens.HasExpired(*tok) {
		return nil
	}
	return tok
}
