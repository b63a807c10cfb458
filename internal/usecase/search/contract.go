package search

import (
	"context"

	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
)

// DogsAPI is the part of the dogs API the search view needs.
type DogsAPI interface {
	Breeds(ctx context.Context, token string) ([]string, error)
	Search(ctx context.Context, token string, p dog.SearchParams) (dog.Page, error)
	Details(ctx context.Context, token string, ids []string) ([]dog.Dog, error)
}

// SessionCloser logs a session out when the dogs API rejects its credentials.
type SessionCloser interface {
	Logout(ctx context.Context, sid string) error
}
