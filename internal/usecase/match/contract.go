package match

import (
	"context"

	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
)

// DogsAPI is the part of the dogs API the match step needs.
type DogsAPI interface {
	Match(ctx context.Context, token string, ids []string) (string, error)
	Details(ctx context.Context, token string, ids []string) ([]dog.Dog, error)
}
