package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"lms-test-service/internal/app"
	"lms-test-service/internal/domain"
)

// TestLoader fetches test definitions from a backing store (e.g., Postgres).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.TestDefinition, error)
	LoadTests(ctx context.Context) ([]domain.TestDefinition, error)
}

// TestRepository caches test definitions in Redis and falls back to a loader on cache miss.
// It is safe for concurrent use; loads of different tests run in parallel.
// Definitions are stored as JSON: SET test:{testID}:definition {json} EX ttl
type TestRepository struct {
	client *redis.Client
	loader TestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewTestRepository(client *redis.Client, loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID string) (domain.TestDefinition, error) {
	if test, ok := r.cached(ctx, testID); ok {
		return test, nil
	}

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if test, ok := r.cached(ctx, testID); ok {
			return test, nil
		}

		test, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.TestDefinition{}, err
		}
		if err := app.ValidateTest(test); err != nil {
			return domain.TestDefinition{}, err
		}

		if data, err := json.Marshal(test); err == nil {
			// best-effort: a failed cache write only costs a reload
			_ = r.client.Set(ctx, r.definitionKey(testID), data, r.ttlWithJitter()).Err()
		}
		return test, nil
	})
	if err != nil {
		return domain.TestDefinition{}, err
	}
	return result.(domain.TestDefinition), nil
}

// ListTests reads through to the loader.
func (r *TestRepository) ListTests(ctx context.Context) ([]domain.TestDefinition, error) {
	return r.loader.LoadTests(ctx)
}

// Invalidate drops the cached copy of a test.
func (r *TestRepository) Invalidate(ctx context.Context, testID string) error {
	return r.client.Del(ctx, r.definitionKey(testID)).Err()
}

func (r *TestRepository) cached(ctx context.Context, testID string) (domain.TestDefinition, bool) {
	data, err := r.client.Get(ctx, r.definitionKey(testID)).Bytes()
	if err != nil {
		return domain.TestDefinition{}, false
	}
	var test domain.TestDefinition
	if err := json.Unmarshal(data, &test); err != nil {
		return domain.TestDefinition{}, false
	}
	return test, true
}

func (r *TestRepository) definitionKey(testID string) string {
	return "test:" + testID + ":definition"
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	jitter := r.rnd.Int63n(jitterMax + 1)
	r.rndMu.Unlock()
	return r.ttl + time.Duration(jitter)
}
