package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient is an in-memory sorted set store.
type MockRedisClient struct {
	mutex sync.Mutex
	zsets map[string]map[string]float64
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{zsets: make(map[string]map[string]float64)}
}

func (m *MockRedisClient) ZAdd(ctx context.Context, key string, z redis.Z) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}

	m.zsets[key][z.Member.(string)] = z.Score
	return nil
}

func (m *MockRedisClient) ZRem(ctx context.Context, key string, members ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, member := range members {
		delete(m.zsets[key], member)
	}

	return nil
}

func (m *MockRedisClient) ZRangeByScore(ctx context.Context, key string, max float64, limit int) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	members := []redis.Z{}
	for member, score := range m.zsets[key] {
		if score <= max {
			members = append(members, redis.Z{Member: member, Score: score})
		}
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Score < members[j].Score
	})

	result := []string{}
	for _, z := range members {
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, z.Member.(string))
	}

	return result, nil
}

func (m *MockRedisClient) ZScore(ctx context.Context, key, member string) (float64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, redis.Nil
	}

	return score, nil
}

func (m *MockRedisClient) Close() error {
	return nil
}
