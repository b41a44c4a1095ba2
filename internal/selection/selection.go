package selection

import (
	"fmt"

	"exam-prep-service/internal/domain"
)

// Discipline is the chapter selection rule of a custom exam.
type Discipline string

const (
	// DisciplineSingle allows exactly one chapter across all subjects.
	DisciplineSingle Discipline = "SINGLE"
	// DisciplineMulti allows any number of chapters from any subjects.
	DisciplineMulti Discipline = "MULTI"
)

// Selection is a custom-mode chapter/topic pick. Chapters keep the order they
// were added in; topics keep catalog order.
type Selection interface {
	Discipline() Discipline
	ToggleChapter(subject, chapter string) error
	ToggleAllChapters(subject string) error
	ToggleTopic(subject, chapter, topic string) error
	ToggleAllTopics(subject, chapter string) error
	Picks() []domain.TopicSelection
}

// New returns an empty selection for the given discipline.
func New(d Discipline, catalog Catalog) (Selection, error) {
	switch d {
	case DisciplineSingle:
		return NewSingle(catalog), nil
	case DisciplineMulti:
		return NewMulti(catalog), nil
	default:
		return nil, ErrUnknownDiscipline
	}
}

// FromPicks rebuilds a selection by replaying toggles. A nil Topics list keeps
// the chapter default (every topic); a non-nil list selects exactly those topics.
func FromPicks(d Discipline, catalog Catalog, picks []domain.TopicSelection) (Selection, error) {
	sel, err := New(d, catalog)
	if err != nil {
		return nil, err
	}
	if d == DisciplineSingle && len(picks) > 1 {
		return nil, ErrSingleChapterOnly
	}
	seen := make(map[string]struct{}, len(picks))
	for _, p := range picks {
		key := p.Subject + "/" + p.Chapter
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChapter, key)
		}
		seen[key] = struct{}{}
		if err := sel.ToggleChapter(p.Subject, p.Chapter); err != nil {
			return nil, err
		}
		if p.Topics == nil {
			continue
		}
		// A freshly added chapter has every topic, so this clears it.
		if err := sel.ToggleAllTopics(p.Subject, p.Chapter); err != nil {
			return nil, err
		}
		for _, t := range p.Topics {
			if err := sel.ToggleTopic(p.Subject, p.Chapter, t); err != nil {
				return nil, err
			}
		}
	}
	return sel, nil
}

type pick struct {
	subject string
	chapter Chapter
	topics  map[string]struct{}
}

// picks is the ordered chapter set both variants are built on.
type picks struct {
	catalog Catalog
	items   []*pick
}

func (p *picks) find(subject, chapter string) int {
	for i, it := range p.items {
		if it.subject == subject && it.chapter.Name == chapter {
			return i
		}
	}
	return -1
}

func (p *picks) add(subject string, ch Chapter) {
	topics := make(map[string]struct{}, len(ch.Topics))
	for _, t := range ch.Topics {
		topics[t] = struct{}{}
	}
	p.items = append(p.items, &pick{subject: subject, chapter: ch, topics: topics})
}

func (p *picks) remove(i int) {
	p.items = append(p.items[:i], p.items[i+1:]...)
}

func (p *picks) selected(subject, chapter string) (*pick, error) {
	if _, err := p.catalog.chapter(subject, chapter); err != nil {
		return nil, err
	}
	i := p.find(subject, chapter)
	if i < 0 {
		return nil, ErrChapterNotSelected
	}
	return p.items[i], nil
}

func (p *picks) toggleTopic(subject, chapter, topic string) error {
	it, err := p.selected(subject, chapter)
	if err != nil {
		return err
	}
	if !it.chapter.hasTopic(topic) {
		return ErrUnknownTopic
	}
	if _, ok := it.topics[topic]; ok {
		delete(it.topics, topic)
	} else {
		it.topics[topic] = struct{}{}
	}
	return nil
}

func (p *picks) toggleAllTopics(subject, chapter string) error {
	it, err := p.selected(subject, chapter)
	if err != nil {
		return err
	}
	if len(it.topics) == len(it.chapter.Topics) {
		it.topics = map[string]struct{}{}
		return nil
	}
	for _, t := range it.chapter.Topics {
		it.topics[t] = struct{}{}
	}
	return nil
}

func (p *picks) export() []domain.TopicSelection {
	out := make([]domain.TopicSelection, 0, len(p.items))
	for _, it := range p.items {
		topics := make([]string, 0, len(it.topics))
		for _, t := range it.chapter.Topics {
			if _, ok := it.topics[t]; ok {
				topics = append(topics, t)
			}
		}
		out = append(out, domain.TopicSelection{Subject: it.subject, Chapter: it.chapter.Name, Topics: topics})
	}
	return out
}

// Single holds at most one chapter system-wide. Picking another chapter replaces it.
type Single struct {
	picks
}

func NewSingle(catalog Catalog) *Single {
	return &Single{picks: picks{catalog: catalog}}
}

func (*Single) Discipline() Discipline { return DisciplineSingle }

func (s *Single) ToggleChapter(subject, chapter string) error {
	ch, err := s.catalog.chapter(subject, chapter)
	if err != nil {
		return err
	}
	if s.find(subject, chapter) >= 0 {
		s.items = nil
		return nil
	}
	s.items = nil
	s.add(subject, ch)
	return nil
}

// ToggleAllChapters is not offered in single selection.
func (s *Single) ToggleAllChapters(string) error {
	return ErrSingleChapterOnly
}

func (s *Single) ToggleTopic(subject, chapter, topic string) error {
	return s.toggleTopic(subject, chapter, topic)
}

func (s *Single) ToggleAllTopics(subject, chapter string) error {
	return s.toggleAllTopics(subject, chapter)
}

func (s *Single) Picks() []domain.TopicSelection { return s.export() }

// Multi holds any number of chapters from any subjects.
type Multi struct {
	picks
}

func NewMulti(catalog Catalog) *Multi {
	return &Multi{picks: picks{catalog: catalog}}
}

func (*Multi) Discipline() Discipline { return DisciplineMulti }

func (m *Multi) ToggleChapter(subject, chapter string) error {
	ch, err := m.catalog.chapter(subject, chapter)
	if err != nil {
		return err
	}
	if i := m.find(subject, chapter); i >= 0 {
		m.remove(i)
		return nil
	}
	m.add(subject, ch)
	return nil
}

// ToggleAllChapters adds every missing chapter of subject, or clears the
// subject when all of its chapters are already selected.
func (m *Multi) ToggleAllChapters(subject string) error {
	s, ok := m.catalog.subject(subject)
	if !ok {
		return ErrUnknownSubject
	}
	all := true
	for _, ch := range s.Chapters {
		if m.find(subject, ch.Name) < 0 {
			all = false
			break
		}
	}
	if all {
		kept := m.items[:0]
		for _, it := range m.items {
			if it.subject != subject {
				kept = append(kept, it)
			}
		}
		m.items = kept
		return nil
	}
	for _, ch := range s.Chapters {
		if m.find(subject, ch.Name) < 0 {
			m.add(subject, ch)
		}
	}
	return nil
}

func (m *Multi) ToggleTopic(subject, chapter, topic string) error {
	return m.toggleTopic(subject, chapter, topic)
}

func (m *Multi) ToggleAllTopics(subject, chapter string) error {
	return m.toggleAllTopics(subject, chapter)
}

func (m *Multi) Picks() []domain.TopicSelection { return m.export() }
