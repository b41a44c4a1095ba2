package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches the candidate pool for one bank tuple from a backing store (e.g. Postgres).
type PoolLoader interface {
	LoadPool(ctx context.Context, req domain.BankRequest) ([]domain.Question, error)
}

// BankCache caches tuple pools in Redis (hash per tuple) and falls back to a loader on cache miss.
// Questions are stored as: HSET bank:pool:{subject|chapter|topics} {questionID} {question JSON}
type BankCache struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankCache(client *redis.Client, loader PoolLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FromBank returns up to req.Count questions sampled from the tuple's pool.
func (r *BankCache) FromBank(ctx context.Context, req domain.BankRequest) ([]domain.Question, error) {
	pool, err := r.pool(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.sample(pool, req.Count), nil
}

func (r *BankCache) pool(ctx context.Context, req domain.BankRequest) ([]domain.Question, error) {
	key := poolKey(req)
	if cached, ok := r.cached(ctx, key); ok {
		return cached, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := r.cached(ctx, key); ok {
			return cached, nil
		}

		questions, err := r.loader.LoadPool(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return questions, nil
		}

		pipe := r.client.Pipeline()
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, q.ID, raw)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[bank-cache] fill %s: %v", key, err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *BankCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	out := make([]domain.Question, 0, len(fields))
	for id, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			log.Printf("[bank-cache] drop corrupt entry %s/%s: %v", key, id, err)
			continue
		}
		out = append(out, q)
	}
	// HGETALL order is unspecified; keep sampling reproducible for a given seed.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out) > 0
}

func (r *BankCache) sample(pool []domain.Question, n int) []domain.Question {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	r.rndMu.Lock()
	idx := r.rnd.Perm(len(pool))
	r.rndMu.Unlock()
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}

func (r *BankCache) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func poolKey(req domain.BankRequest) string {
	topics := append([]string(nil), req.Topics...)
	sort.Strings(topics)
	return "bank:pool:" + req.Subject + "|" + req.Chapter + "|" + strings.Join(topics, ",")
}
