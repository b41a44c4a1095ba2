package selection

// Catalog is the subject -> chapter -> topic tree selections are made against.
type Catalog struct {
	Subjects []Subject `json:"subjects" yaml:"subjects"`
}

type Subject struct {
	Name     string    `json:"name" yaml:"name"`
	Chapters []Chapter `json:"chapters" yaml:"chapters"`
}

type Chapter struct {
	Name   string   `json:"name" yaml:"name"`
	Topics []string `json:"topics" yaml:"topics"`
}

func (c Catalog) subject(name string) (Subject, bool) {
	for _, s := range c.Subjects {
		if s.Name == name {
			return s, true
		}
	}
	return Subject{}, false
}

func (c Catalog) chapter(subject, chapter string) (Chapter, error) {
	s, ok := c.subject(subject)
	if !ok {
		return Chapter{}, ErrUnknownSubject
	}
	for _, ch := range s.Chapters {
		if ch.Name == chapter {
			return ch, nil
		}
	}
	return Chapter{}, ErrUnknownChapter
}

func (ch Chapter) hasTopic(topic string) bool {
	for _, t := range ch.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
