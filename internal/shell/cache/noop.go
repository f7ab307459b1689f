package cache

import (
	"context"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// NoopCache is used when caching is disabled or Redis is unreachable at
// startup. Every lookup is a miss and every store succeeds silently.
type NoopCache struct{}

// NewNoopCache creates a disabled cache.
func NewNoopCache() *NoopCache { return &NoopCache{} }

func (*NoopCache) GetDetection(ctx context.Context, key string) (*domain.Detection, error) {
	return nil, nil
}

func (*NoopCache) SetDetection(ctx context.Context, key string, detection *domain.Detection) error {
	return nil
}

func (*NoopCache) Ping(ctx context.Context) error { return nil }

func (*NoopCache) Enabled() bool { return false }

func (*NoopCache) Close() error { return nil }
