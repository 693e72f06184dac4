//go:build integration

package sequence_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	platformredis "gatepass/internal/platform/redis"
	"gatepass/internal/sequence"
	"gatepass/pkg/testutil/containers"
)

type RedisCounterSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *sequence.RedisStore
}

func TestRedisCounterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCounterSuite))
}

func (s *RedisCounterSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = sequence.NewRedis(&platformredis.Client{Client: s.redis.Client})
}

func (s *RedisCounterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCounterSuite) TestNext() {
	ctx := context.Background()

	seq, err := s.store.Next(ctx, "EXPO", "20250115")
	s.Require().NoError(err)
	s.Equal(int64(1), seq)

	seq, err = s.store.Next(ctx, "EXPO", "20250115")
	s.Require().NoError(err)
	s.Equal(int64(2), seq)

	seq, err = s.store.Next(ctx, "EXPO", "20250116")
	s.Require().NoError(err)
	s.Equal(int64(1), seq)
}

func (s *RedisCounterSuite) TestConcurrentNext() {
	const n = 100
	ctx := context.Background()

	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := s.store.Next(ctx, "CONCURRENT", "20250601")
			s.NoError(err)
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for seq := range results {
		s.False(seen[seq], "sequence %d returned twice", seq)
		seen[seq] = true
	}
	s.Len(seen, n)
}
