package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches the candidate pool for one bank tuple from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, req domain.BankRequest) ([]domain.Question, error)
}

// BankCache caches tuple pools with TTL to avoid repeated DB hits and samples
// the requested count from the cached pool on every call.
type BankCache struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewBankCache(loader PoolLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

// FromBank returns up to req.Count questions for the tuple.
func (r *BankCache) FromBank(ctx context.Context, req domain.BankRequest) ([]domain.Question, error) {
	pool, err := r.pool(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.sample(pool, req.Count), nil
}

func (r *BankCache) pool(ctx context.Context, req domain.BankRequest) ([]domain.Question, error) {
	key := PoolKey(req)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadPool(ctx, req)
		if err != nil {
			return nil, err
		}
		// empty pools are not cached so harvested questions show up promptly
		if len(questions) == 0 {
			return questions, nil
		}

		r.mu.Lock()
		r.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
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
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// PoolKey identifies a tuple independent of topic order.
func PoolKey(req domain.BankRequest) string {
	topics := append([]string(nil), req.Topics...)
	sort.Strings(topics)
	return req.Subject + "|" + req.Chapter + "|" + strings.Join(topics, ",")
}
