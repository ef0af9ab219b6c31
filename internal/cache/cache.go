package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cutlinehq/cutline/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Document Cache Operations

// SetDocument caches a project's serialized timeline document
func (c *Cache) SetDocument(ctx context.Context, projectID string, document []byte, ttl time.Duration) error {
	key := fmt.Sprintf("document:%s", projectID)
	return c.client.Set(ctx, key, document, ttl).Err()
}

// GetDocument retrieves a cached timeline document, nil on miss
func (c *Cache) GetDocument(ctx context.Context, projectID string) ([]byte, error) {
	key := fmt.Sprintf("document:%s", projectID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get document from cache: %w", err)
	}
	return data, nil
}

// DeleteDocument removes a project's document from cache
func (c *Cache) DeleteDocument(ctx context.Context, projectID string) error {
	key := fmt.Sprintf("document:%s", projectID)
	return c.client.Del(ctx, key).Err()
}

// Export Job Cache Operations

// SetExportJob caches export job metadata
func (c *Cache) SetExportJob(ctx context.Context, job *models.ExportJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal export job: %w", err)
	}

	key := fmt.Sprintf("export:%s", job.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetExportJob retrieves export job metadata from cache
func (c *Cache) GetExportJob(ctx context.Context, jobID string) (*models.ExportJob, error) {
	key := fmt.Sprintf("export:%s", jobID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get export job from cache: %w", err)
	}

	var job models.ExportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export job: %w", err)
	}

	return &job, nil
}

// DeleteExportJob removes an export job from cache
func (c *Cache) DeleteExportJob(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("export:%s", jobID)
	return c.client.Del(ctx, key).Err()
}

// ExportProgress is one progress entry the worker publishes while
// rendering.
type ExportProgress struct {
	PercentComplete float64 `json:"percent_complete"`
	StatusMessage   string  `json:"status_message"`
}

// SetExportProgress publishes export progress for quick polling
func (c *Cache) SetExportProgress(ctx context.Context, jobID string, progress ExportProgress, ttl time.Duration) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal export progress: %w", err)
	}

	key := fmt.Sprintf("export:progress:%s", jobID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetExportProgress retrieves the latest export progress, nil on miss
func (c *Cache) GetExportProgress(ctx context.Context, jobID string) (*ExportProgress, error) {
	key := fmt.Sprintf("export:progress:%s", jobID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get export progress from cache: %w", err)
	}

	var progress ExportProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export progress: %w", err)
	}

	return &progress, nil
}

// IncrementExportAttempts bumps and returns the attempt counter for a
// job. The worker feeds it into the retry publisher so retries are
// bounded even though deliveries lose their headers across requeues.
func (c *Cache) IncrementExportAttempts(ctx context.Context, jobID string, ttl time.Duration) (int, error) {
	key := fmt.Sprintf("export:attempts:%s", jobID)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment export attempts: %w", err)
	}
	c.client.Expire(ctx, key, ttl)
	return int(n), nil
}

// RequestExportCancel raises the cancel flag for a running export. The
// worker polls it between frames, so cancellation lands before the next
// tick rather than mid-write.
func (c *Cache) RequestExportCancel(ctx context.Context, jobID string, ttl time.Duration) error {
	key := fmt.Sprintf("export:cancel:%s", jobID)
	return c.client.Set(ctx, key, "1", ttl).Err()
}

// ExportCancelRequested reports whether a cancel flag is raised.
func (c *Cache) ExportCancelRequested(ctx context.Context, jobID string) (bool, error) {
	key := fmt.Sprintf("export:cancel:%s", jobID)
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cancel flag: %w", err)
	}
	return n > 0, nil
}

// Thumbnail Cache Operations

// SetThumbnail caches an asset's thumbnail location
func (c *Cache) SetThumbnail(ctx context.Context, assetID string, path string, ttl time.Duration) error {
	key := fmt.Sprintf("thumbnail:%s", assetID)
	return c.client.Set(ctx, key, path, ttl).Err()
}

// GetThumbnail retrieves an asset's thumbnail location from cache
func (c *Cache) GetThumbnail(ctx context.Context, assetID string) (string, error) {
	key := fmt.Sprintf("thumbnail:%s", assetID)
	path, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get thumbnail from cache: %w", err)
	}
	return path, nil
}

// Rate Limiting Operations

// CheckRateLimit checks if a rate limit has been exceeded
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	// Increment counter
	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	// Check if limit exceeded
	return count <= limit, nil
}

// Locking Operations

// AcquireLock attempts to acquire a distributed lock, used to keep two
// workers off the same export job
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// Exists checks if a key exists
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
