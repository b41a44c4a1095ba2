package exam

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// BankSource answers generate-from-db queries (backend question bank).
type BankSource interface {
	FromBank(ctx context.Context, req domain.BankRequest) ([]domain.Question, error)
}

// AIGenerator is the AI generation fallback.
type AIGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.Question, error)
}

// Harvester receives AI batches so later sessions can be served from the bank.
type Harvester interface {
	Harvest(ctx context.Context, batch domain.HarvestBatch) error
}

const (
	bankQueryConcurrency = 4
	maxTopUpAttempts     = 2
	harvestTimeout       = 10 * time.Second
)

// Source resolves a SessionConfig into concrete questions.
type Source struct {
	bank      BankSource
	ai        AIGenerator
	harvester Harvester

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSource(bank BankSource, ai AIGenerator, harvester Harvester) *Source {
	return &Source{
		bank:      bank,
		ai:        ai,
		harvester: harvester,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSeed makes shuffling deterministic; used by tests.
func (s *Source) WithSeed(seed int64) *Source {
	s.rnd = rand.New(rand.NewSource(seed))
	return s
}

// Acquire returns exactly cfg.TargetCount questions, except for past papers which
// are returned verbatim.
func (s *Source) Acquire(ctx context.Context, cfg domain.SessionConfig) ([]domain.Question, error) {
	start := time.Now()
	defer func() {
		metrics.AcquisitionDuration.WithLabelValues(string(cfg.Mode)).Observe(time.Since(start).Seconds())
	}()

	switch cfg.Mode {
	case domain.ModePastPaper:
		if len(cfg.FixedQuestions) == 0 {
			return nil, domain.ErrNoQuestions
		}
		out := make([]domain.Question, len(cfg.FixedQuestions))
		copy(out, cfg.FixedQuestions)
		metrics.QuestionsAcquired.WithLabelValues("fixed").Add(float64(len(out)))
		return out, nil
	case domain.ModePreset:
		pool, err := s.generate(ctx, cfg, cfg.TargetCount)
		if err != nil {
			return nil, err
		}
		return s.finalize(pool, cfg.TargetCount)
	case domain.ModeCustom:
		pool := s.fromBank(ctx, cfg)
		metrics.QuestionsAcquired.WithLabelValues("bank").Add(float64(len(pool)))
		for attempt := 0; len(pool) < cfg.TargetCount && attempt < maxTopUpAttempts; attempt++ {
			generated, err := s.generate(ctx, cfg, cfg.TargetCount-len(pool))
			if err != nil {
				if len(pool) == 0 {
					return nil, err
				}
				log.Printf("[source] ai top-up failed: %v", err)
				break
			}
			pool = append(pool, generated...)
		}
		return s.finalize(pool, cfg.TargetCount)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidConfig, cfg.Mode)
	}
}

// fromBank queries each selection for its share of the target; failed tuples count as empty.
func (s *Source) fromBank(ctx context.Context, cfg domain.SessionConfig) []domain.Question {
	if s.bank == nil || len(cfg.Selections) == 0 {
		return nil
	}
	share := ceilDiv(cfg.TargetCount, len(cfg.Selections))
	results := make([][]domain.Question, len(cfg.Selections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bankQueryConcurrency)
	for i, sel := range cfg.Selections {
		i, sel := i, sel
		g.Go(func() error {
			questions, err := s.bank.FromBank(gctx, domain.BankRequest{
				Subject: sel.Subject,
				Chapter: sel.Chapter,
				Topics:  sel.Topics,
				Count:   share,
			})
			if err != nil {
				log.Printf("[source] bank query %s/%s failed: %v", sel.Subject, sel.Chapter, err)
				return nil
			}
			results[i] = questions
			return nil
		})
	}
	_ = g.Wait()

	var pool []domain.Question
	for _, r := range results {
		pool = append(pool, r...)
	}
	return pool
}

func (s *Source) generate(ctx context.Context, cfg domain.SessionConfig, count int) ([]domain.Question, error) {
	if s.ai == nil {
		return nil, domain.ErrNoQuestions
	}
	req := domain.GenerationRequest{
		Configs:          cfg.Selections,
		Quotas:           cfg.Quotas,
		Standard:         cfg.Standard,
		Count:            count,
		Difficulty:       cfg.Difficulty,
		FocusInstruction: cfg.FocusInstruction,
	}
	questions, err := s.ai.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ai generation: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	metrics.QuestionsAcquired.WithLabelValues("ai").Add(float64(len(questions)))
	s.harvest(domain.HarvestBatch{Standard: cfg.Standard, Questions: questions})
	return questions, nil
}

// harvest submits the batch without blocking the caller; failures are only logged.
func (s *Source) harvest(batch domain.HarvestBatch) {
	if s.harvester == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), harvestTimeout)
		defer cancel()
		if err := s.harvester.Harvest(ctx, batch); err != nil {
			metrics.HarvestFailures.Inc()
			log.Printf("[source] harvest of %d questions failed: %v", len(batch.Questions), err)
		}
	}()
}

func (s *Source) finalize(pool []domain.Question, target int) ([]domain.Question, error) {
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestions
	}
	if len(pool) < target {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrNotEnoughQuestions, len(pool), target)
	}
	out := make([]domain.Question, len(pool))
	copy(out, pool)
	s.mu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.mu.Unlock()
	return out[:target], nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
