package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/habedi/oidckit/events"
	"github.com/habedi/oidckit/pkg/autherr"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Lifecycle events emitted by the Manager. Payloads are positional and
// documented per event.
const (
	EventAdded   = "added"   // key string, token Token
	EventRemoved = "removed" // key string
	EventRenewed = "renewed" // key string, newToken Token, oldToken Token
	EventExpired = "expired" // key string, token Token
	EventError   = "error"   // err error
)

// DefaultEarlySeconds is the safety margin subtracted from a token's
// expiry so renewal starts before the token actually lapses.
const DefaultEarlySeconds = 30

// Renewer exchanges an expiring token for a fresh one with the
// provider. Implemented by the client package; faked in tests.
type Renewer interface {
	Renew(ctx context.Context, key string, tok Token) (Token, error)
}

// Config carries the Manager's construction options.
type Config struct {
	// Storage, when set, bypasses the selection chain entirely.
	Storage Storage
	// StorageKind and StorageDir feed SelectStorage when Storage is nil.
	StorageKind StorageKind
	StorageDir  string

	Renewer      Renewer
	AutoRenew    bool
	EarlySeconds int64 // defaults to DefaultEarlySeconds when 0
	Clock        Clock // defaults to SystemClock
}

// Manager owns the token store: it validates and persists tokens,
// schedules their expiration, deduplicates renewal and emits lifecycle
// events. Safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	bus       *events.Bus
	store     Storage
	clock     Clock
	renewer   Renewer
	autoRenew bool
	early     int64
	timers    map[string]*time.Timer
	renewals  singleflight.Group
}

// NewManager builds a Manager and schedules expiration for every token
// already persisted. Startup scan failures are surfaced only as an
// "error" event (and a log line) because no caller is awaiting them.
func NewManager(cfg Config) (*Manager, error) {
	store := cfg.Storage
	if store == nil {
		var err error
		store, err = SelectStorage(cfg.StorageKind, cfg.StorageDir)
		if err != nil {
			return nil, err
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	early := cfg.EarlySeconds
	if early == 0 {
		early = DefaultEarlySeconds
	}

	m := &Manager{
		bus:       events.NewBus(),
		store:     store,
		clock:     clock,
		renewer:   cfg.Renewer,
		autoRenew: cfg.AutoRenew,
		early:     early,
		timers:    make(map[string]*time.Timer),
	}
	m.bus.Subscribe(EventExpired, m.expiredPolicy)

	tokens, err := store.GetAll()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to scan persisted tokens at startup")
		m.bus.Publish(EventError, autherr.New(autherr.Internal, "failed to scan persisted tokens", err))
		return m, nil
	}
	m.mu.Lock()
	for key, tok := range tokens {
		m.scheduleLocked(key, tok)
	}
	m.mu.Unlock()
	return m, nil
}

// On registers a handler for one of the lifecycle events and returns
// the token that unsubscribes it.
func (m *Manager) On(event string, h events.Handler) (off func()) {
	return m.bus.Subscribe(event, h)
}

// Add validates tok, writes it into the store, (re)schedules its
// expiration timer and emits "added". Any renewal already cached for
// the key is forgotten so the next Renew starts fresh.
func (m *Manager) Add(key string, tok Token) error {
	if err := tok.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	tokens, err := m.store.GetAll()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	tokens[key] = tok
	if err := m.store.SetAll(tokens); err != nil {
		m.mu.Unlock()
		return err
	}
	m.scheduleLocked(key, tok)
	m.mu.Unlock()

	m.renewals.Forget(key)
	m.bus.Publish(EventAdded, key, tok)
	return nil
}

// Get reads the token stored under key, or nil when absent.
func (m *Manager) Get(ctx context.Context, key string) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens, err := m.store.GetAll()
	if err != nil {
		return nil, err
	}
	tok, ok := tokens[key]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

// Remove cancels the key's expiration timer, deletes it from the store
// and emits "removed". Removing an absent key only emits the event.
func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	m.cancelTimerLocked(key)
	tokens, err := m.store.GetAll()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	delete(tokens, key)
	if err := m.store.SetAll(tokens); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.bus.Publish(EventRemoved, key)
	return nil
}

// Clear cancels every expiration timer and wipes the token store.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.timers {
		m.cancelTimerLocked(key)
	}
	return m.store.Clear()
}

// HasExpired reports whether tok is past its effective expiry, the real
// expiry minus the configured early margin. Equality counts as expired.
func (m *Manager) HasExpired(tok Token) bool {
	return tok.ExpiresAt-m.early <= m.clock.Now()
}

// Renew exchanges the token stored under key for a fresh one. While a
// renewal for key is outstanding, further calls share its outcome
// instead of contacting the provider again.
func (m *Manager) Renew(ctx context.Context, key string) (*Token, error) {
	v, err, _ := m.renewals.Do(key, func() (any, error) {
		return m.renewOnce(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	tok := v.(Token)
	return &tok, nil
}

func (m *Manager) renewOnce(ctx context.Context, key string) (Token, error) {
	old, err := m.Get(ctx, key)
	if err != nil {
		return Token{}, err
	}
	if old == nil {
		return Token{}, autherr.New(autherr.NotFound, fmt.Sprintf("no token with key %q", key), nil)
	}
	if m.renewer == nil {
		return Token{}, autherr.New(autherr.Validation, "no renewer configured", nil)
	}

	fresh, err := m.renewer.Renew(ctx, key, *old)
	if err != nil {
		return Token{}, m.renewFailed(key, *old, err)
	}

	// A token removed while its renewal was in flight must not be
	// resurrected; the result is returned but not persisted.
	cur, err := m.Get(ctx, key)
	if err != nil {
		return Token{}, err
	}
	if cur == nil {
		return fresh, nil
	}
	if err := m.Add(key, fresh); err != nil {
		if autherr.IsKind(err, autherr.Validation) {
			return Token{}, m.renewFailed(key, *old, err)
		}
		return Token{}, err
	}
	m.bus.Publish(EventRenewed, key, fresh, *old)
	return fresh, nil
}

// renewFailed applies the failure policy: a provider-rejected or
// locally invalid token is dropped from the store and surfaced on the
// "error" event; any other failure propagates without side effects.
func (m *Manager) renewFailed(key string, old Token, err error) error {
	if !autherr.IsKind(err, autherr.ProviderRejected) && !autherr.IsKind(err, autherr.Validation) {
		return err
	}
	if rmErr := m.Remove(key); rmErr != nil {
		log.Warn().Err(rmErr).Str("key", key).Msg("Failed to remove rejected token")
	}
	var ae *autherr.Error
	if errors.As(err, &ae) {
		ae.TokenKey = key
		ae.AccessToken = old.IsAccess()
	}
	m.bus.Publish(EventError, err)
	return err
}

// expiredPolicy is the built-in handler for "expired": renew when auto
// renewal is on (failures already surface on the "error" event),
// otherwise drop the token.
func (m *Manager) expiredPolicy(args ...any) {
	key := args[0].(string)
	if m.autoRenew && m.renewer != nil {
		if _, err := m.Renew(context.Background(), key); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Auto-renewal failed")
		}
		return
	}
	if err := m.Remove(key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to remove expired token")
	}
}

// scheduleLocked replaces any live timer for key with one that fires at
// the token's effective expiry. Callers hold m.mu.
func (m *Manager) scheduleLocked(key string, tok Token) {
	m.cancelTimerLocked(key)
	wait := tok.ExpiresAt - m.early - m.clock.Now()
	if wait < 0 {
		wait = 0
	}
	var t *time.Timer
	t = time.AfterFunc(time.Duration(wait)*time.Second, func() {
		m.mu.Lock()
		// A callback that already started cannot be stopped; it may
		// have lost a race against Remove or Clear. Only the timer
		// still registered for the key is allowed to fire.
		if m.timers[key] != t {
			m.mu.Unlock()
			return
		}
		delete(m.timers, key)
		m.mu.Unlock()
		m.bus.Publish(EventExpired, key, tok)
	})
	m.timers[key] = t
}

func (m *Manager) cancelTimerLocked(key string) {
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
}
