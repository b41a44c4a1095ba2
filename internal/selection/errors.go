package selection

import "errors"

var (
	ErrUnknownSubject       = errors.New("unknown subject")
	ErrUnknownChapter       = errors.New("unknown chapter")
	ErrUnknownTopic         = errors.New("unknown topic")
	ErrChapterNotSelected   = errors.New("chapter is not selected")
	ErrSingleChapterOnly    = errors.New("single selection allows exactly one chapter")
	ErrDuplicateChapter     = errors.New("chapter selected more than once")
	ErrUnknownDiscipline    = errors.New("unknown selection discipline")
	ErrNoChapters           = errors.New("select at least one chapter")
	ErrChapterWithoutTopics = errors.New("every selected chapter needs at least one topic")
	ErrUnknownPreset        = errors.New("unknown preset")
	ErrUnknownTier          = errors.New("unknown difficulty tier")
	ErrPaperNotFound        = errors.New("past paper not found")
)
