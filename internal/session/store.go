// Package session owns the authenticated identity of the client: login,
// logout, restore from durable storage and token refresh.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/internal/storage"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/logger"
	"github.com/teamcoffee/storefront/pkg/validator"
)

var (
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Events receives session lifecycle notifications.
type Events interface {
	UserLoggedIn(ctx context.Context, s domain.Session) error
	UserLoggedOut(ctx context.Context, email string) error
}

// Store is the single source of truth for "who is signed in".
type Store struct {
	users     api.Users
	storage   storage.Store
	events    Events
	logger    *slog.Logger
	proactive bool
	skew      time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	sess     domain.Session
	state    State
	onLogout []func(context.Context)

	refreshes singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithEvents publishes login and logout notifications.
func WithEvents(e Events) Option {
	return func(s *Store) { s.events = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithProactiveRefresh makes EnsureFresh refresh an access token that
// expires within skew.
func WithProactiveRefresh(enabled bool, skew time.Duration) Option {
	return func(s *Store) {
		s.proactive = enabled
		s.skew = skew
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an anonymous session store.
func New(users api.Users, st storage.Store, opts ...Option) *Store {
	s := &Store{
		users:   users,
		storage: st,
		logger:  slog.Default(),
		now:     time.Now,
		state:   Anonymous,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnLogout registers fn to run whenever the session is cleared.
func (s *Store) OnLogout(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns a snapshot of the session.
func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

// AccessToken returns the bearer token, or "" when anonymous.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.AccessToken
}

// IsAuthenticated reports whether an access token is held.
func (s *Store) IsAuthenticated() bool {
	return s.Current().IsAuthenticated()
}

// IsAdmin reports whether the signed-in user has the ADMIN role.
func (s *Store) IsAdmin() bool {
	c := s.Current()
	return c.IsAuthenticated() && c.IsAdmin()
}

// Login authenticates with the backend. On failure the prior session is
// left untouched.
func (s *Store) Login(ctx context.Context, email, password string) (domain.Session, error) {
	if email == "" || password == "" {
		return domain.Session{}, apperrors.InvalidInput("email and password are required")
	}

	prev := s.transition(Authenticating)
	res, err := s.users.Login(ctx, email, password)
	if err != nil {
		s.transition(prev)
		if errors.Is(err, apperrors.ErrAuthRequired) {
			return domain.Session{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}
	if res.Token.AccessToken == "" {
		s.transition(prev)
		return domain.Session{}, apperrors.UnexpectedResult("", "login response carried no access token")
	}

	sess := domain.NewSession(res)
	s.mu.Lock()
	s.sess = sess
	s.state = Authenticated
	s.mu.Unlock()

	ctx = logger.WithUserEmail(ctx, sess.UserEmail)
	s.persist(ctx, sess)
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "signed in", slog.String("role", string(sess.Role)))

	if s.events != nil {
		if err := s.events.UserLoggedIn(ctx, sess); err != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "login event not published", slog.String("error", err.Error()))
		}
	}
	return sess, nil
}

// Register validates req locally and creates the account. It never signs
// the user in.
func (s *Store) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	if err := validator.Validate(req); err != nil {
		return domain.User{}, err
	}

	res, err := s.users.Register(ctx, req)
	if err != nil {
		return domain.User{}, fmt.Errorf("register: %w", err)
	}

	u := res.User
	if u.Email == "" {
		u = domain.User{Name: req.Username, Email: req.Email, Role: req.Role, Address: req.Address}
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "account registered", slog.String("email", u.Email))
	return u, nil
}

// Logout tells the backend best effort and clears local state
// unconditionally. Calling it while anonymous is a no-op.
func (s *Store) Logout(ctx context.Context) {
	cur := s.Current()
	if cur.IsAuthenticated() {
		if err := s.users.Logout(ctx); err != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "backend logout failed, clearing locally",
				slog.String("error", err.Error()),
			)
		}
	}
	s.clear(ctx, cur.UserEmail)
}

// DeleteAccount removes the signed-in account and clears the session.
func (s *Store) DeleteAccount(ctx context.Context) error {
	cur := s.Current()
	if !cur.IsAuthenticated() {
		return apperrors.AuthRequired("sign in to delete your account")
	}
	if err := s.users.Delete(ctx, cur.UserEmail); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.clear(ctx, cur.UserEmail)
	return nil
}

// Restore re-establishes a persisted session without network access. It
// reports whether a session was found.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	access, err := s.storage.Get(ctx, storage.KeyAccessToken)
	if errors.Is(err, apperrors.ErrNotFound) || (err == nil && access == "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore access token: %w", err)
	}

	var sess domain.Session
	raw, err := s.storage.Get(ctx, storage.KeyUser)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return false, fmt.Errorf("restore user: %w", err)
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return false, fmt.Errorf("restore user: %w", err)
	}

	refresh, err := s.storage.Get(ctx, storage.KeyRefreshToken)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("restore refresh token: %w", err)
	}
	sess.AccessToken, sess.RefreshToken = access, refresh

	s.mu.Lock()
	s.sess = sess
	s.state = Authenticated
	s.mu.Unlock()

	logger.WithContext(logger.WithUserEmail(ctx, sess.UserEmail), s.logger).DebugContext(ctx, "session restored")
	return true, nil
}

// EnsureFresh refreshes the access token ahead of time when proactive
// refresh is enabled and the token is expired or about to expire.
func (s *Store) EnsureFresh(ctx context.Context) error {
	if !s.proactive {
		return nil
	}
	token := s.AccessToken()
	if token == "" {
		return nil
	}
	exp, err := TokenExpiry(token)
	if err != nil || exp.IsZero() {
		return nil
	}
	if s.now().Add(s.skew).Before(exp) {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share one network call. On failure the session is cleared.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshes.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	cur := s.sess
	if cur.RefreshToken == "" {
		s.mu.Unlock()
		s.clear(ctx, cur.UserEmail)
		return apperrors.Wrap(ErrNoRefreshToken, "refresh")
	}
	s.state = Refreshing
	s.mu.Unlock()

	ctx = logger.WithUserEmail(ctx, cur.UserEmail)
	pair, err := s.users.Refresh(ctx, cur.RefreshToken)
	if err == nil && pair.AccessToken == "" {
		err = apperrors.UnexpectedResult("", "refresh response carried no access token")
	}
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "refresh rejected, signing out",
			slog.String("error", err.Error()),
		)
		s.clear(ctx, cur.UserEmail)
		return fmt.Errorf("refresh: %w", err)
	}

	s.mu.Lock()
	s.sess.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		s.sess.RefreshToken = pair.RefreshToken
	}
	s.state = Authenticated
	updated := s.sess
	s.mu.Unlock()

	s.persist(ctx, updated)
	return nil
}

// transition sets the state and returns the previous one.
func (s *Store) transition(to State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = to
	return prev
}

func (s *Store) persist(ctx context.Context, sess domain.Session) {
	user, err := json.Marshal(sess)
	if err == nil {
		err = s.storage.Set(ctx, storage.KeyUser, string(user))
	}
	if err == nil {
		err = s.storage.Set(ctx, storage.KeyAccessToken, sess.AccessToken)
	}
	if err == nil {
		if sess.RefreshToken != "" {
			err = s.storage.Set(ctx, storage.KeyRefreshToken, sess.RefreshToken)
		} else {
			err = s.storage.Delete(ctx, storage.KeyRefreshToken)
		}
	}
	if err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "session not persisted", slog.String("error", err.Error()))
	}
}

// clear drops the session from memory and storage and runs logout hooks.
func (s *Store) clear(ctx context.Context, email string) {
	s.mu.Lock()
	wasAuthenticated := s.sess.IsAuthenticated()
	s.sess = domain.Session{}
	s.state = Anonymous
	hooks := append([]func(context.Context){}, s.onLogout...)
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, storage.SessionKeys...); err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "session storage not cleared", slog.String("error", err.Error()))
	}
	for _, fn := range hooks {
		fn(ctx)
	}

	if wasAuthenticated && s.events != nil && email != "" {
		if err := s.events.UserLoggedOut(ctx, email); err != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "logout event not published", slog.String("error", err.Error()))
		}
	}
}
