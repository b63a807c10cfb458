package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	"github.com/kailas-cloud/puppyradar/internal/domain/search/query"
	"github.com/kailas-cloud/puppyradar/internal/metrics"
)

// Option is one entry of the breed multi-select.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Controller keeps the search view state of one session consistent with the URL.
//
// Every OnQueryChange takes a new generation number. Results are committed only
// while their generation is still the newest, so a slow response to an older URL
// never overwrites the state of a newer one. The superseded call still gets a
// view of its own results.
type Controller struct {
	api      DogsAPI
	sessions SessionCloser
	cfg      domain.SearchConfig
	sid      string
	token    string
	logger   *zap.Logger

	mu         sync.Mutex
	generation uint64
	loggedOut  bool
	state      snapshot
}

// snapshot is the derived state of one settled query.
type snapshot struct {
	q            query.Query
	breedOptions []Option
	page         *dog.Page
	details      []dog.Dog
}

// NewController creates a controller bound to one session and its dogs API token.
func NewController(
	api DogsAPI, sessions SessionCloser, cfg domain.SearchConfig,
	sid, token string, logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		api:      api,
		sessions: sessions,
		cfg:      cfg,
		sid:      sid,
		token:    token,
		logger:   logger.With(zap.String("session_id", sid)),
		state: snapshot{
			q:            query.Parse(url.Values{}, cfg),
			breedOptions: []Option{},
			details:      []dog.Dog{},
		},
	}
}

// OnQueryChange derives the view state from URL values, fetches the breed list and
// the result page concurrently, then resolves the page's dog records. The state is
// committed only when both fetches succeed and no newer query was issued meanwhile.
//
// Errors: ErrUnauthorized after the session was logged out, ErrUpstream for other
// dogs API failures. A failed query leaves the committed state untouched.
func (c *Controller) OnQueryChange(ctx context.Context, v url.Values) (View, error) {
	q := query.Parse(v, c.cfg)

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	var (
		breeds []string
		page   dog.Page
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := c.api.Breeds(gctx, c.token)
		if err != nil {
			return fmt.Errorf("breeds: %w", err)
		}
		breeds = b
		return nil
	})
	g.Go(func() error {
		p, err := c.api.Search(gctx, c.token, dog.SearchParams{
			Breeds: q.Breeds,
			AgeMin: q.AgeMin,
			AgeMax: q.AgeMax,
			Size:   c.cfg.PageSize,
			From:   q.Offset(c.cfg.PageSize),
			Sort:   q.SortKey(),
		})
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		page = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, c.queryFailed(ctx, err)
	}

	next := snapshot{
		q:            q,
		breedOptions: make([]Option, len(breeds)),
		page:         &page,
	}
	for i, b := range breeds {
		next.breedOptions[i] = Option{Label: b, Value: b}
	}
	details, ok := c.fetchDetails(ctx, &page)

	c.mu.Lock()
	defer c.mu.Unlock()
	next.details = details
	if !ok {
		next.details = c.state.details
	}
	if gen != c.generation {
		metrics.SearchStaleResultsTotal.WithLabelValues("query").Inc()
		c.logger.Debug("search result superseded, not committed", zap.Uint64("generation", gen))
		view := next.view(c.cfg)
		view.Superseded = true
		return view, nil
	}
	c.state = next
	return c.state.view(c.cfg), nil
}

// OnResultPageChange resolves the dog records of page into the detail list.
// An empty page clears the list without a fetch. A failed fetch is logged and
// the previous list is kept.
func (c *Controller) OnResultPageChange(ctx context.Context, page *dog.Page) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	details, ok := c.fetchDetails(ctx, page)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		metrics.SearchStaleResultsTotal.WithLabelValues("details").Inc()
		return
	}
	c.state.details = details
}

// fetchDetails returns the dog records of page in result order. It reports
// false when the fetch failed.
func (c *Controller) fetchDetails(ctx context.Context, page *dog.Page) ([]dog.Dog, bool) {
	if page.Empty() {
		return []dog.Dog{}, true
	}
	dogs, err := c.api.Details(ctx, c.token, page.ResultIDs)
	if err != nil {
		c.logger.Warn("fetch dog details failed",
			zap.Int("ids", len(page.ResultIDs)),
			zap.Error(err),
		)
		return nil, false
	}
	return dogs, true
}

// queryFailed routes a failed breed/search join. A 401 logs the session out once.
func (c *Controller) queryFailed(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		c.mu.Lock()
		first := !c.loggedOut
		c.loggedOut = true
		c.mu.Unlock()

		if first {
			metrics.SessionEventsTotal.WithLabelValues("expired").Inc()
			c.logger.Info("dogs api rejected session, logging out")
			if lerr := c.sessions.Logout(context.WithoutCancel(ctx), c.sid); lerr != nil {
				c.logger.Error("logout after unauthorized failed", zap.Error(lerr))
			}
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	c.logger.Error("search query failed", zap.Error(err))
	return err
}

// Generation returns the number of queries issued so far.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}
