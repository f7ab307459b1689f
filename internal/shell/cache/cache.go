// Package cache provides a Redis-backed result cache for detections.
// Identical image bytes hash to the same key, so re-uploads of a frame
// skip the detection pipeline entirely. The cache is optional: every
// failure degrades to a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// keyPrefix namespaces detection results in a shared Redis instance.
const keyPrefix = "detect:"

// Cache stores detection results keyed by image content hash.
type Cache interface {
	// GetDetection returns the cached detection for the key, or nil on a miss.
	GetDetection(ctx context.Context, key string) (*domain.Detection, error)

	// SetDetection stores a detection under the key with the configured TTL.
	SetDetection(ctx context.Context, key string, detection *domain.Detection) error

	// Ping verifies the cache connection.
	Ping(ctx context.Context) error

	// Enabled reports whether the cache is backed by a real store.
	Enabled() bool

	// Close releases the cache connection.
	Close() error
}

// Key derives the cache key for an image from its content hash.
func Key(imageData []byte) string {
	sum := sha256.Sum256(imageData)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// DefaultTTL matches the historical 5 minute cache window.
const DefaultTTL = 5 * time.Minute
