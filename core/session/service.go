package session

import (
	"context"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

type (
	Options struct {
		API       Client
		Repo      Repository
		Logger    core.Logger
		Navigator Navigator // optional
		Recorder  Recorder  // optional
	}

	// Store is the single source of truth for "who is logged in". It owns the
	// in-memory session and the persisted record, and it is the only component
	// allowed to call the remote authentication/profile endpoints.
	//
	// All state transitions are serialized; a profile response that no longer
	// matches the active token is discarded rather than committed.
	Store struct {
		api    Client
		repo   Repository
		logger core.Logger
		nav    Navigator
		rec    Recorder

		mu      sync.Mutex
		state   State
		subs    map[int]func(State)
		nextSub int
	}
)

func NewStore(opts *Options) *Store {
	nav := opts.Navigator
	if nav == nil {
		nav = nopNavigator{}
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Store{
		api:    opts.API,
		repo:   opts.Repo,
		logger: opts.Logger,
		nav:    nav,
		rec:    rec,
		// loading until the host runs Restore
		state: State{Loading: true},
		subs:  make(map[int]func(State)),
	}
}

// Current returns a snapshot of the session state.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to be called with a snapshot after every committed
// state change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Restore rehydrates the session from the persisted record. The host calls it
// exactly once at startup. When a full record is found it is adopted as-is and
// a background profile refresh reconciles it with the server; Restore itself
// never waits on the network.
func (s *Store) Restore(ctx context.Context) {
	token, usr, err := s.repo.LoadRecord(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			s.logger.Warn("reading session record", err)
		}
		s.commit(func(st *State) {
			st.Token, st.User, st.Loading = "", nil, false
		})
		return
	}

	s.peekTokenExpiry(token)
	s.commit(func(st *State) {
		u := usr.Clone()
		st.Token, st.User, st.Loading = token, &u, false
	})

	go s.RefreshProfile(ctx)
}

// Login authenticates against the remote API. On success the token and
// profile are persisted together and committed; on any failure (bad
// credentials, transport error, malformed payload) the prior session state is
// left untouched and false is returned. Loading is cleared on every path.
func (s *Store) Login(ctx context.Context, creds user.Credentials) bool {
	if err := creds.Validate(); err != nil {
		s.logger.Debug("login: invalid credentials", err)
		s.rec.LoginFailed()
		return false
	}

	s.commit(func(st *State) { st.Loading = true })

	token, usr, err := s.api.Login(ctx, creds)
	if err != nil {
		s.logger.Debug("login failed", err)
		s.rec.LoginFailed()
		s.commit(func(st *State) { st.Loading = false })
		return false
	}

	s.mu.Lock()
	if err := s.repo.SaveRecord(ctx, token, usr); err != nil {
		s.logger.Warn("persisting session record", err)
	}
	s.mutate(func(st *State) {
		u := usr.Clone()
		st.Token, st.User, st.Loading = token, &u, false
	})
	snap, subs := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap, subs)

	s.rec.LoginSucceeded()
	return true
}

// RefreshProfile fetches the profile for the current token and replaces the
// in-memory and persisted profile wholesale. It is a no-op without a token.
// Failures are silent: a stale profile is better than a dropped session, and
// the token is never invalidated here. A response arriving after the token
// changed (logout, re-login) is discarded.
func (s *Store) RefreshProfile(ctx context.Context) {
	s.mu.Lock()
	token := s.state.Token
	s.mu.Unlock()
	if token == "" {
		return
	}

	usr, err := s.api.FetchProfile(ctx, token)
	if err != nil {
		s.logger.Debug("profile refresh failed; keeping current profile", err)
		return
	}

	s.mu.Lock()
	if s.state.Token != token {
		s.mu.Unlock()
		s.logger.Debug("discarding profile response for a stale token")
		s.rec.StaleRefreshDiscarded()
		return
	}
	if err := s.repo.SaveRecord(ctx, token, usr); err != nil {
		s.logger.Warn("persisting session record", err)
	}
	s.mutate(func(st *State) {
		u := usr.Clone()
		st.User = &u
	})
	snap, subs := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap, subs)

	s.rec.ProfileRefreshed()
}

// Logout clears the persisted record and the in-memory session, then requests
// navigation to the login entry point. Idempotent: with no active session it
// only emits the navigation signal.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	if err := s.repo.ClearRecord(ctx); err != nil {
		s.logger.Warn("clearing session record", err)
	}
	wasAuthenticated := s.state.Authenticated()
	s.mutate(func(st *State) {
		st.Token, st.User = "", nil
	})
	snap, subs := s.snapshotLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		s.notify(snap, subs)
		s.rec.LoggedOut()
	}
	s.nav.To(LoginPath)
}

func (s *Store) mutate(fn func(*State)) { fn(&s.state) }

func (s *Store) snapshotLocked() (State, []func(State)) {
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return s.state.clone(), subs
}

func (s *Store) commit(fn func(*State)) {
	s.mu.Lock()
	s.mutate(fn)
	snap, subs := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap, subs)
}

func (s *Store) notify(snap State, subs []func(State)) {
	for _, fn := range subs {
		fn(snap)
	}
}

// peekTokenExpiry decodes the restored token without verification, purely to
// log when it is already past its expiry. The session is kept either way; the
// server remains the authority on token validity.
func (s *Store) peekTokenExpiry(token string) {
	var claims jwt.StandardClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil {
		return // opaque token; nothing to peek at
	}
	if claims.ExpiresAt > 0 && time.Now().Unix() > claims.ExpiresAt {
		s.logger.Warn("restored token is past its expiry; keeping session until the server rejects it")
	}
}
