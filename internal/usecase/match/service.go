package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	"github.com/kailas-cloud/puppyradar/internal/domain/liked"
)

// Service picks the adoption match out of a session's liked dogs.
type Service struct {
	api    DogsAPI
	logger *zap.Logger
}

// New creates a match Service.
func New(api DogsAPI, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, logger: logger}
}

// Match asks the dogs API to pick one of the liked dogs and returns its record.
// Returns ErrNoLikedDogs when nothing is liked.
func (s *Service) Match(ctx context.Context, token string, set liked.Set) (dog.Dog, error) {
	if set.Len() == 0 {
		return dog.Dog{}, domain.ErrNoLikedDogs
	}

	id, err := s.api.Match(ctx, token, set.IDs())
	if err != nil {
		return dog.Dog{}, fmt.Errorf("match: %w", err)
	}

	dogs, err := s.api.Details(ctx, token, []string{id})
	if err != nil {
		return dog.Dog{}, fmt.Errorf("match details: %w", err)
	}
	if len(dogs) == 0 {
		return dog.Dog{}, fmt.Errorf("matched dog %s not found: %w", id, domain.ErrUpstream)
	}

	s.logger.Info("Match found", zap.String("dog_id", id), zap.Int("candidates", set.Len()))
	return dogs[0], nil
}
