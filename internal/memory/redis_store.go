package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/circuitbreaker"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
)

const keyPrefix = "iudex:memory"

// RedisStore keeps consultation entries in Redis, one JSON value per
// query hash, namespaced by tenant. It is a reuse cache: entries expire
// with the configured TTL and overwrites by hash are last-write-wins.
type RedisStore struct {
	cli    *circuitbreaker.RedisWrapper
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStore(addr string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	rc := redis.NewClient(&redis.Options{Addr: addr})
	wrapper := circuitbreaker.NewRedisWrapper(rc, "consultation-memory", "memory", logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wrapper.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect consultation memory redis: %w", err)
	}
	return &RedisStore{cli: wrapper, ttl: ttl, logger: logger}, nil
}

// NewRedisStoreWithClient wires an existing client, used by tests.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	wrapper := circuitbreaker.NewRedisWrapper(client, "consultation-memory-test", "memory", logger)
	return &RedisStore{cli: wrapper, ttl: ttl, logger: logger}
}

func entryKey(tenantID, hash string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, tenantID, hash)
}

// Ping probes the backing Redis, used by health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx)
}

// FindSimilar scans the tenant's namespace and ranks entries by keyword
// Jaccard similarity against the query. Entries from other tenants are
// unreachable because the scan pattern is tenant-scoped.
func (s *RedisStore) FindSimilar(ctx context.Context, query, tenantID string, threshold float64, limit int) ([]Match, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required for memory lookup")
	}
	if limit <= 0 {
		limit = 3
	}
	queryKeywords := ExtractKeywords(query)
	if len(queryKeywords) == 0 {
		metrics.MemoryLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}

	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, tenantID)
	keys, err := s.cli.Keys(ctx, pattern)
	if err != nil {
		metrics.MemoryLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scan consultation memory: %w", err)
	}

	var matches []Match
	for _, key := range keys {
		raw, err := s.cli.Get(ctx, key)
		if err != nil || raw == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.logger.Warn("Dropping unreadable memory entry", zap.String("key", key), zap.Error(err))
			continue
		}
		if e.TenantID != tenantID {
			continue
		}
		sim := JaccardSimilarity(queryKeywords, e.Keywords)
		if sim >= threshold {
			matches = append(matches, Match{Entry: e, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	if len(matches) > 0 {
		metrics.MemoryLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.MemoryLookups.WithLabelValues("miss").Inc()
	}
	return matches, nil
}

// Store writes one entry keyed by the query hash. Overwriting an existing
// hash is acceptable; entries are hints, not records.
func (s *RedisStore) Store(ctx context.Context, e Entry) (string, error) {
	if e.TenantID == "" {
		return "", fmt.Errorf("tenant id is required for memory store")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.QueryHash == "" {
		e.QueryHash = QueryHash(e.Query)
	}
	if len(e.Keywords) == 0 {
		e.Keywords = ExtractKeywords(e.Query)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode memory entry: %w", err)
	}
	if err := s.cli.Set(ctx, entryKey(e.TenantID, e.QueryHash), raw, s.ttl); err != nil {
		metrics.MemoryWrites.WithLabelValues("redis", "error").Inc()
		return "", fmt.Errorf("store memory entry: %w", err)
	}
	metrics.MemoryWrites.WithLabelValues("redis", "ok").Inc()
	return e.ID, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error { return s.cli.Close() }
