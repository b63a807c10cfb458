package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/puppyradar/internal/db"
	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/liked"
	domsession "github.com/kailas-cloud/puppyradar/internal/domain/session"
)

var keyPrefix = domain.KeyPrefix + "session:"

// likedValue is stored for every liked dog id in the liked hash.
const likedValue = "1"

// store is the consumer interface for session persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HReplace(ctx context.Context, key string, fields map[string]string, ttl time.Duration, touch ...string) error
	HToggle(ctx context.Context, key, field, value string, ttl time.Duration, touch ...string) (bool, error)
}

// Repo persists each session as a JSON login status key and a liked hash
// keyed by dog id.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a session repository. Every write refreshes the key TTL.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Load reads a session. A missing login status means the session does not exist;
// a missing liked hash reads as empty.
func (r *Repo) Load(ctx context.Context, sid string) (domsession.State, error) {
	data, err := r.store.Get(ctx, statusKey(sid))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsession.State{}, domain.ErrSessionNotFound
		}
		return domsession.State{}, fmt.Errorf("load %s: %w", domsession.KeyLoginStatus, err)
	}

	st := domsession.State{ID: sid}
	if err := json.Unmarshal(data, &st.Status); err != nil {
		return domsession.State{}, fmt.Errorf("decode %s: %w", domsession.KeyLoginStatus, err)
	}

	fields, err := r.store.HGetAll(ctx, likedKey(sid))
	if err != nil {
		return domsession.State{}, fmt.Errorf("load %s: %w", domsession.KeyLikedList, err)
	}
	st.Liked = make(liked.Set, len(fields))
	for id := range fields {
		st.Liked[id] = true
	}
	return st, nil
}

// SaveStatus writes the login status.
func (r *Repo) SaveStatus(ctx context.Context, sid string, status domsession.Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode %s: %w", domsession.KeyLoginStatus, err)
	}
	if err := r.store.SetWithTTL(ctx, statusKey(sid), data, r.ttl); err != nil {
		return fmt.Errorf("save %s: %w", domsession.KeyLoginStatus, err)
	}
	return nil
}

// SaveLiked replaces the liked list and keeps the login status alive alongside it.
func (r *Repo) SaveLiked(ctx context.Context, sid string, set liked.Set) error {
	ids := set.IDs()
	fields := make(map[string]string, len(ids))
	for _, id := range ids {
		fields[id] = likedValue
	}
	if err := r.store.HReplace(ctx, likedKey(sid), fields, r.ttl, statusKey(sid)); err != nil {
		return fmt.Errorf("save %s: %w", domsession.KeyLikedList, err)
	}
	return nil
}

// ToggleLiked flips dogID in the liked list in a single atomic write and
// reports whether it is now liked.
func (r *Repo) ToggleLiked(ctx context.Context, sid, dogID string) (bool, error) {
	on, err := r.store.HToggle(ctx, likedKey(sid), dogID, likedValue, r.ttl, statusKey(sid))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, domain.ErrSessionNotFound
		}
		return false, fmt.Errorf("toggle %s: %w", domsession.KeyLikedList, err)
	}
	return on, nil
}

// Delete removes both keys of a session.
func (r *Repo) Delete(ctx context.Context, sid string) error {
	if err := r.store.Del(ctx, statusKey(sid), likedKey(sid)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Both keys of a session share the {sid} hash tag so multi-key commands stay
// in one cluster slot.
func statusKey(sid string) string { return keyPrefix + "{" + sid + "}:" + domsession.KeyLoginStatus }
func likedKey(sid string) string  { return keyPrefix + "{" + sid + "}:" + domsession.KeyLikedList }
