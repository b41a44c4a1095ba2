package generator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"exam-prep-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// maxPerCall bounds one model call; bigger targets are split.
	maxPerCall         = 25
	maxCallsPerTarget  = 3
	targetConcurrency  = 3
	DefaultTemperature = 0.7
)

// target is one slice of a request sent to the model.
type target struct {
	subject string
	chapter string
	topics  []string
	count   int
}

// Generator implements exam.AIGenerator over an LLMClient.
type Generator struct {
	llm         LLMClient
	temperature float64
}

func New(llm LLMClient, temperature float64) *Generator {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &Generator{llm: llm, temperature: temperature}
}

// Generate returns up to req.Count questions tagged with the subject and
// chapter they were requested for.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.Question, error) {
	targets := plan(req)
	if len(targets) == 0 {
		return nil, domain.ErrNoQuestions
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = g.temperature
	}

	results := make([][]domain.Question, len(targets))
	var (
		mu      sync.Mutex
		lastErr error
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(targetConcurrency)
	for i, t := range targets {
		i, t := i, t
		eg.Go(func() error {
			qs, err := g.fill(egCtx, t, req, temperature)
			if err != nil {
				mu.Lock()
				lastErr = err
				mu.Unlock()
				log.Printf("[generator] target %s/%s: %v", t.subject, t.chapter, err)
			}
			results[i] = qs
			return nil
		})
	}
	_ = eg.Wait()

	var out []domain.Question
	for _, qs := range results {
		out = append(out, qs...)
	}
	if len(out) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, domain.ErrNoQuestions
	}
	return out, nil
}

func (g *Generator) fill(ctx context.Context, t target, req domain.GenerationRequest, temperature float64) ([]domain.Question, error) {
	var (
		out     []domain.Question
		lastErr error
	)
	for call := 0; call < maxCallsPerTarget && len(out) < t.count; call++ {
		n := t.count - len(out)
		if n > maxPerCall {
			n = maxPerCall
		}
		resp, err := g.llm.Generate(ctx, Prompt{
			System:      SystemPrompt(),
			User:        BuildUserPrompt(t, req.Standard, req.Difficulty, req.FocusInstruction, n),
			Temperature: temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			lastErr = err
			continue
		}
		qs, problems, err := ParseResponse(resp.Content)
		for _, p := range problems {
			log.Printf("[generator] dropped %s", p)
		}
		if err != nil {
			lastErr = err
			continue
		}
		for i := range qs {
			tag(&qs[i], t, len(out)+i)
		}
		if len(qs) > n {
			qs = qs[:n]
		}
		out = append(out, qs...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("generate %d questions: %w", t.count, lastErr)
	}
	return out, nil
}

// tag fills in the classification the model left out.
func tag(q *domain.Question, t target, i int) {
	if q.Subject == "" {
		q.Subject = t.subject
	}
	if q.Chapter == "" {
		q.Chapter = t.chapter
	}
	if q.Topic == "" && len(t.topics) > 0 {
		q.Topic = t.topics[i%len(t.topics)]
	}
}

// plan splits a request into per-subject or per-chapter targets whose counts sum to req.Count
// (quotas take precedence and carry their own counts).
func plan(req domain.GenerationRequest) []target {
	if len(req.Quotas) > 0 {
		chapters := make(map[string]domain.TopicSelection, len(req.Configs))
		for _, c := range req.Configs {
			chapters[c.Subject] = c
		}
		out := make([]target, 0, len(req.Quotas))
		for _, q := range req.Quotas {
			if q.QuestionCount <= 0 {
				continue
			}
			sel := chapters[q.Subject]
			out = append(out, target{subject: q.Subject, chapter: sel.Chapter, topics: sel.Topics, count: q.QuestionCount})
		}
		return out
	}
	if req.Count <= 0 {
		return nil
	}
	if len(req.Configs) == 0 {
		return []target{{count: req.Count}}
	}

	base, rem := req.Count/len(req.Configs), req.Count%len(req.Configs)
	out := make([]target, 0, len(req.Configs))
	for i, c := range req.Configs {
		n := base
		if i < rem {
			n++
		}
		if n == 0 {
			continue
		}
		out = append(out, target{subject: c.Subject, chapter: c.Chapter, topics: c.Topics, count: n})
	}
	return out
}
