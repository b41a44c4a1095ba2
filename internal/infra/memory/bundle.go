package memory

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/selection"
	"gopkg.in/yaml.v3"
)

//go:embed bundle.yaml
var bundleYAML []byte

type bundledQuestion struct {
	ID          string   `yaml:"id"`
	Question    string   `yaml:"question"`
	Options     []string `yaml:"options"`
	Answer      int      `yaml:"answer"`
	Explanation string   `yaml:"explanation"`
	Subject     string   `yaml:"subject"`
	Chapter     string   `yaml:"chapter"`
	Topic       string   `yaml:"topic"`
	Difficulty  string   `yaml:"difficulty"`
}

func (b bundledQuestion) toDomain() domain.Question {
	return domain.Question{
		ID:                 b.ID,
		Question:           b.Question,
		Options:            b.Options,
		CorrectAnswerIndex: b.Answer,
		Explanation:        b.Explanation,
		Subject:            b.Subject,
		Chapter:            b.Chapter,
		Topic:              b.Topic,
		Difficulty:         b.Difficulty,
	}
}

type bundledPaper struct {
	ID               string   `yaml:"id"`
	Title            string   `yaml:"title"`
	Subject          string   `yaml:"subject"`
	Year             int      `yaml:"year"`
	TimeLimitMinutes int      `yaml:"timeLimitMinutes"`
	Questions        []string `yaml:"questions"`
}

// Bundle is the static content shipped with the binary: the catalog, a
// starter question bank and past papers built from it.
type Bundle struct {
	Catalog   selection.Catalog
	Questions []domain.Question
	Papers    []selection.Paper
}

// LoadBundle parses the embedded bundle.
func LoadBundle() (Bundle, error) {
	return parseBundle(bundleYAML)
}

func parseBundle(data []byte) (Bundle, error) {
	var raw struct {
		Catalog   selection.Catalog `yaml:"catalog"`
		Questions []bundledQuestion `yaml:"questions"`
		Papers    []bundledPaper    `yaml:"papers"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Bundle{}, fmt.Errorf("parse bundle: %w", err)
	}

	b := Bundle{Catalog: raw.Catalog}
	byID := make(map[string]domain.Question, len(raw.Questions))
	for _, bq := range raw.Questions {
		q := bq.toDomain()
		if err := q.Validate(); err != nil {
			return Bundle{}, fmt.Errorf("bundled question %s: %w", q.ID, err)
		}
		b.Questions = append(b.Questions, q)
		byID[q.ID] = q
	}
	for _, bp := range raw.Papers {
		p := selection.Paper{
			ID:               bp.ID,
			Title:            bp.Title,
			Subject:          bp.Subject,
			Year:             bp.Year,
			TimeLimitMinutes: bp.TimeLimitMinutes,
		}
		for _, id := range bp.Questions {
			q, ok := byID[id]
			if !ok {
				return Bundle{}, fmt.Errorf("paper %s references unknown question %s", bp.ID, id)
			}
			p.Questions = append(p.Questions, q)
		}
		b.Papers = append(b.Papers, p)
	}
	return b, nil
}

// StaticBank is a PoolLoader over the bundled questions (useful for tests/demos).
type StaticBank struct {
	questions []domain.Question
}

func NewStaticBank(questions []domain.Question) *StaticBank {
	return &StaticBank{questions: questions}
}

func (l *StaticBank) LoadPool(_ context.Context, req domain.BankRequest) ([]domain.Question, error) {
	topics := make(map[string]struct{}, len(req.Topics))
	for _, t := range req.Topics {
		topics[t] = struct{}{}
	}
	var out []domain.Question
	for _, q := range l.questions {
		if q.Subject != req.Subject || q.Chapter != req.Chapter {
			continue
		}
		if len(topics) > 0 {
			if _, ok := topics[q.Topic]; !ok {
				continue
			}
		}
		out = append(out, q)
	}
	return out, nil
}

// PaperStore is a selection.PaperRepository over a fixed set of papers.
type PaperStore struct {
	papers map[string]selection.Paper
}

func NewPaperStore(papers []selection.Paper) *PaperStore {
	m := make(map[string]selection.Paper, len(papers))
	for _, p := range papers {
		m[p.ID] = p
	}
	return &PaperStore{papers: m}
}

func (s *PaperStore) ListPapers(_ context.Context) ([]selection.PaperSummary, error) {
	out := make([]selection.PaperSummary, 0, len(s.papers))
	for _, p := range s.papers {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *PaperStore) GetPaper(_ context.Context, id string) (selection.Paper, error) {
	p, ok := s.papers[id]
	if !ok {
		return selection.Paper{}, selection.ErrPaperNotFound
	}
	return p, nil
}
