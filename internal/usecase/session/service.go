package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/liked"
	domsession "github.com/kailas-cloud/puppyradar/internal/domain/session"
	logpkg "github.com/kailas-cloud/puppyradar/internal/logger"
	"github.com/kailas-cloud/puppyradar/internal/metrics"
)

// LoginForm is the data submitted on the landing page. All fields are required.
type LoginForm struct {
	FirstName string
	LastName  string
	Email     string
}

// Validate trims the fields and checks that none is empty and the email looks like one.
func (f *LoginForm) Validate() error {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)

	var missing []string
	if f.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if f.LastName == "" {
		missing = append(missing, "lastName")
	}
	if f.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidLogin, strings.Join(missing, ", "))
	}
	if at := strings.Index(f.Email, "@"); at <= 0 || at == len(f.Email)-1 {
		return fmt.Errorf("%w: malformed email", domain.ErrInvalidLogin)
	}
	return nil
}

// Name is the display name sent upstream.
func (f *LoginForm) Name() string {
	return f.FirstName + " " + f.LastName
}

// Service is the session state container. All reads and writes of the login
// status and the liked list go through its actions.
type Service struct {
	repo   Repository
	auth   Authenticator
	newID  func() string
	now    func() time.Time
	mu     sync.RWMutex
	hooks  []func(sid string)
	logger *zap.Logger
}

// New creates a session service.
func New(repo Repository, auth Authenticator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		auth:   auth,
		newID:  uuid.NewString,
		now:    time.Now,
		logger: logger,
	}
}

// OnLogout registers fn to run after a session is logged out.
func (s *Service) OnLogout(fn func(sid string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Get returns the session state.
func (s *Service) Get(ctx context.Context, sid string) (domsession.State, error) {
	if sid == "" {
		return domsession.State{}, domain.ErrSessionNotFound
	}
	st, err := s.repo.Load(ctx, sid)
	if err != nil {
		return domsession.State{}, fmt.Errorf("get session: %w", err)
	}
	return st, nil
}

// Login validates the form, opens an upstream session and stores a new local one.
func (s *Service) Login(ctx context.Context, form LoginForm) (domsession.State, error) {
	if err := form.Validate(); err != nil {
		return domsession.State{}, err
	}

	token, err := s.auth.Login(ctx, form.Name(), form.Email)
	if err != nil {
		return domsession.State{}, fmt.Errorf("upstream login: %w", err)
	}

	st := domsession.State{
		ID: s.newID(),
		Status: domsession.Status{
			LoggedIn:    true,
			Name:        form.Name(),
			Email:       form.Email,
			AccessToken: token,
			CreatedAt:   s.now().UTC(),
		},
		Liked: liked.Set{},
	}
	if err := s.repo.SaveStatus(ctx, st.ID, st.Status); err != nil {
		return domsession.State{}, fmt.Errorf("login: %w", err)
	}
	if err := s.repo.SaveLiked(ctx, st.ID, st.Liked); err != nil {
		return domsession.State{}, fmt.Errorf("login: %w", err)
	}

	metrics.SessionEventsTotal.WithLabelValues("login").Inc()
	logpkg.FromContext(ctx).Info("user logged in", zap.String("session_id", st.ID))
	return st, nil
}

// SetLikedDogs replaces the liked list.
func (s *Service) SetLikedDogs(ctx context.Context, sid string, set liked.Set) error {
	if err := s.repo.SaveLiked(ctx, sid, set); err != nil {
		return fmt.Errorf("set liked dogs: %w", err)
	}
	return nil
}

// ToggleLike flips dogID in the liked list and reports whether it is now liked.
// Concurrent toggles of one session never lose each other's writes.
func (s *Service) ToggleLike(ctx context.Context, sid, dogID string) (bool, error) {
	if sid == "" {
		return false, domain.ErrSessionNotFound
	}
	isLiked, err := s.repo.ToggleLiked(ctx, sid, dogID)
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	return isLiked, nil
}

// Logout closes the upstream session (best effort), removes the stored state
// and runs the logout hooks. An already-missing session is not an error.
func (s *Service) Logout(ctx context.Context, sid string) error {
	log := logpkg.FromContext(ctx).With(zap.String("session_id", sid))

	st, err := s.repo.Load(ctx, sid)
	switch {
	case err == nil:
		if st.Status.AccessToken != "" {
			if lerr := s.auth.Logout(ctx, st.Status.AccessToken); lerr != nil {
				log.Warn("upstream logout failed", zap.Error(lerr))
			}
		}
	case errors.Is(err, domain.ErrSessionNotFound):
	default:
		log.Warn("load session on logout failed", zap.Error(err))
	}

	if err := s.repo.Delete(ctx, sid); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.mu.RLock()
	hooks := append([]func(string){}, s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(sid)
	}

	metrics.SessionEventsTotal.WithLabelValues("logout").Inc()
	log.Info("user logged out")
	return nil
}
