package health

import "context"

// DBPinger checks session store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker checks that the dogs API is reachable.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}
