package health

import "context"

// DBPinger checks corpus database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CachePinger checks embedding-cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks the embedding and completion provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
