package search

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/domain"
)

// DefaultMaxControllers bounds the registry when no limit is configured.
const DefaultMaxControllers = 1024

// Registry holds one Controller per session, evicting the least recently used
// one once the limit is reached.
type Registry struct {
	api      DogsAPI
	sessions SessionCloser
	cfg      domain.SearchConfig
	logger   *zap.Logger

	// mu makes the lookup and the token-change replacement in Get one step.
	mu    sync.Mutex
	cache *lru.Cache[string, *Controller]
}

// NewRegistry creates a Registry. max <= 0 uses DefaultMaxControllers.
func NewRegistry(
	api DogsAPI, sessions SessionCloser, cfg domain.SearchConfig, maxControllers int, logger *zap.Logger,
) *Registry {
	if maxControllers <= 0 {
		maxControllers = DefaultMaxControllers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.NewWithEvict(maxControllers, func(sid string, _ *Controller) {
		logger.Debug("released search controller", zap.String("session_id", sid))
	})
	if err != nil {
		// Only a non-positive size fails, which is ruled out above.
		panic(err)
	}
	return &Registry{
		api:      api,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
	}
}

// Get returns the controller of sid, creating it on first use. A token change
// (re-login under the same session id) replaces the controller.
func (r *Registry) Get(sid, token string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctrl, ok := r.cache.Get(sid); ok && ctrl.token == token {
		return ctrl
	}
	ctrl := NewController(r.api, r.sessions, r.cfg, sid, token, r.logger)
	r.cache.Add(sid, ctrl)
	return ctrl
}

// Drop forgets the controller of sid.
func (r *Registry) Drop(sid string) {
	r.cache.Remove(sid)
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	return r.cache.Len()
}
