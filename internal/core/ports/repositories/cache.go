package repositories

import "context"

// CalculationCache is an optional cache for persistence-free calculation
// previews. The engine is deterministic, so identical terms can safely be
// served from cache. Implementations must be safe for concurrent use; cache
// failures degrade to recomputing, never to an error for the caller.
type CalculationCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}
