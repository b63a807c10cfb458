package session

import (
	"context"

	"github.com/kailas-cloud/puppyradar/internal/domain/liked"
	domsession "github.com/kailas-cloud/puppyradar/internal/domain/session"
)

// Repository persists session state.
type Repository interface {
	Load(ctx context.Context, sid string) (domsession.State, error)
	SaveStatus(ctx context.Context, sid string, status domsession.Status) error
	SaveLiked(ctx context.Context, sid string, set liked.Set) error
	// ToggleLiked flips dogID atomically and reports whether it is now liked.
	ToggleLiked(ctx context.Context, sid, dogID string) (bool, error)
	Delete(ctx context.Context, sid string) error
}

// Authenticator opens and closes upstream dogs API sessions.
type Authenticator interface {
	Login(ctx context.Context, name, email string) (string, error)
	Logout(ctx context.Context, token string) error
}
