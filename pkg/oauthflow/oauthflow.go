// Package oauthflow is a concrete, optional implementation of
// httpapi.OAuthExchanger: a generic authorization-code-flow exchanger that
// a deployment can wire in when it wants this core to perform the vendor
// code exchange itself rather than delegating to an external OAuth broker.
// It follows wisbric-nightowl's OIDCFlowHandler shape (random state, a
// short-TTL state store, AuthCodeURL then Exchange) generalized across
// multiple named providers instead of a single identity provider.
package oauthflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/httpapi"
)

// PendingAuth is what's stashed between the authorize redirect and the
// callback, keyed by the state token.
type PendingAuth struct {
	ReturnURL    string
	ConnectionID string
}

// StateStore persists pending authorizations for the few minutes between
// redirecting a user to a vendor and that vendor calling back. Take must be
// a single atomic get-and-delete so a state token can't be replayed.
type StateStore interface {
	Save(ctx context.Context, state string, pending PendingAuth, ttl time.Duration) error
	Take(ctx context.Context, state string) (PendingAuth, bool, error)
}

// memoryStateStore is the default StateStore: fine for a single-instance
// deployment; multi-instance deployments should inject a Redis-backed
// StateStore instead (same interface, same TTL contract).
type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
}

type pendingEntry struct {
	pending PendingAuth
	expires time.Time
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{entries: make(map[string]pendingEntry)}
}

func (s *memoryStateStore) Save(_ context.Context, state string, pending PendingAuth, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = pendingEntry{pending: pending, expires: time.Now().Add(ttl)}
	return nil
}

func (s *memoryStateStore) Take(_ context.Context, state string) (PendingAuth, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	delete(s.entries, state)
	if !ok || time.Now().After(e.expires) {
		return PendingAuth{}, false, nil
	}
	return e.pending, true, nil
}

const stateTTL = 10 * time.Minute

// Exchanger performs the authorization-code exchange for a fixed set of
// named providers, each configured with its own oauth2.Config (client ID,
// secret, endpoint, default scopes).
type Exchanger struct {
	configs map[string]*oauth2.Config
	states  StateStore
}

// NewExchanger builds an Exchanger over the given provider configs. states
// defaults to an in-memory store when nil.
func NewExchanger(configs map[string]*oauth2.Config, states StateStore) *Exchanger {
	if states == nil {
		states = newMemoryStateStore()
	}
	return &Exchanger{configs: configs, states: states}
}

// AuthorizeURL implements httpapi.OAuthExchanger.
func (e *Exchanger) AuthorizeURL(provider string, req httpapi.AuthorizeRequest) (string, string, error) {
	cfg, ok := e.configs[provider]
	if !ok {
		return "", "", errs.New(errs.KindValidation, 400, "no oauth2 configuration registered for provider %q", provider)
	}

	state, err := randomState()
	if err != nil {
		return "", "", errs.Wrap(errs.KindUnknown, 0, err)
	}
	if err := e.states.Save(context.Background(), state, PendingAuth{
		ReturnURL:    req.ReturnURL,
		ConnectionID: req.ConnectionID,
	}, stateTTL); err != nil {
		return "", "", errs.Wrap(errs.KindUnknown, 0, err)
	}

	authCfg := *cfg
	if len(req.Scopes) > 0 {
		authCfg.Scopes = req.Scopes
	}
	return authCfg.AuthCodeURL(state), state, nil
}

// HandleCallback implements httpapi.OAuthExchanger. It does not call out to
// a vendor userinfo endpoint, so the returned result's Email is always
// empty, and the exchanged token is discarded rather than returned or
// stored.
func (e *Exchanger) HandleCallback(provider, code, state string) (httpapi.CallbackResult, error) {
	cfg, ok := e.configs[provider]
	if !ok {
		return httpapi.CallbackResult{}, errs.New(errs.KindValidation, 400, "no oauth2 configuration registered for provider %q", provider)
	}

	pending, ok, err := e.states.Take(context.Background(), state)
	if err != nil {
		return httpapi.CallbackResult{}, errs.Wrap(errs.KindUnknown, 0, err)
	}
	if !ok {
		return httpapi.CallbackResult{}, errs.New(errs.KindAuth, 400, "invalid or expired oauth state")
	}

	if _, err := cfg.Exchange(context.Background(), code); err != nil {
		return httpapi.CallbackResult{}, errs.Wrap(errs.KindAuth, 401, err)
	}

	return httpapi.CallbackResult{
		ReturnURL:    pending.ReturnURL,
		ConnectionID: pending.ConnectionID,
	}, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
