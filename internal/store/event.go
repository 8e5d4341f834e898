package store

import (
	"sync"
	"time"

	"github.com/aura-stage/backend/internal/models"
)

// Event is the authoritative aggregate for one eventId. Fields are only read or written
// while the event lock is held, which store.Update guarantees.
type Event struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	Polls     map[string]*models.Poll
	PollOrder []string

	Bundles     map[string]*models.Bundle
	BundleOrder []string

	Timers     map[string]*models.Timer
	TimerOrder []string

	Questions     map[string]*models.Question
	QuestionOrder []string
	QAEnabled     bool

	Settings models.DisplaySettings

	Connections    map[string]models.Connection
	Reactions      []models.Reaction
	TotalReactions int
}

func newEvent(id string, now time.Time) *Event {
	return &Event{
		ID:          id,
		CreatedAt:   now,
		Polls:       make(map[string]*models.Poll),
		Bundles:     make(map[string]*models.Bundle),
		Timers:      make(map[string]*models.Timer),
		Questions:   make(map[string]*models.Question),
		QAEnabled:   true,
		Settings:    models.DefaultDisplaySettings(),
		Connections: make(map[string]models.Connection),
	}
}

// AddPoll inserts p keeping creation order.
func (e *Event) AddPoll(p *models.Poll) {
	e.Polls[p.ID] = p
	e.PollOrder = append(e.PollOrder, p.ID)
}

// RemovePoll deletes a poll by id.
func (e *Event) RemovePoll(id string) {
	delete(e.Polls, id)
	e.PollOrder = removeID(e.PollOrder, id)
}

// AddBundle inserts b keeping creation order.
func (e *Event) AddBundle(b *models.Bundle) {
	e.Bundles[b.ID] = b
	e.BundleOrder = append(e.BundleOrder, b.ID)
}

// RemoveBundle deletes a bundle by id.
func (e *Event) RemoveBundle(id string) {
	delete(e.Bundles, id)
	e.BundleOrder = removeID(e.BundleOrder, id)
}

// AddTimer inserts t keeping creation order.
func (e *Event) AddTimer(t *models.Timer) {
	e.Timers[t.ID] = t
	e.TimerOrder = append(e.TimerOrder, t.ID)
}

// RemoveTimer deletes a timer by id.
func (e *Event) RemoveTimer(id string) {
	delete(e.Timers, id)
	e.TimerOrder = removeID(e.TimerOrder, id)
}

// AddQuestion inserts q keeping submission order.
func (e *Event) AddQuestion(q *models.Question) {
	e.Questions[q.ID] = q
	e.QuestionOrder = append(e.QuestionOrder, q.ID)
}

// RemoveQuestion deletes a question by id.
func (e *Event) RemoveQuestion(id string) {
	delete(e.Questions, id)
	e.QuestionOrder = removeID(e.QuestionOrder, id)
}

// ClearQuestions removes every question.
func (e *Event) ClearQuestions() {
	e.Questions = make(map[string]*models.Question)
	e.QuestionOrder = nil
}

// PollList returns copies of all polls in creation order.
func (e *Event) PollList() []*models.Poll {
	out := make([]*models.Poll, 0, len(e.PollOrder))
	for _, id := range e.PollOrder {
		out = append(out, e.Polls[id].Clone())
	}
	return out
}

// BundleList returns copies of all bundles in creation order.
func (e *Event) BundleList() []*models.Bundle {
	out := make([]*models.Bundle, 0, len(e.BundleOrder))
	for _, id := range e.BundleOrder {
		out = append(out, e.Bundles[id].Clone())
	}
	return out
}

// TimerList returns copies of all timers in creation order with currentElapsed
// refreshed for now.
func (e *Event) TimerList(now time.Time) []*models.Timer {
	out := make([]*models.Timer, 0, len(e.TimerOrder))
	for _, id := range e.TimerOrder {
		t := e.Timers[id].Clone()
		t.CurrentElapsed = t.ElapsedAt(now)
		out = append(out, t)
	}
	return out
}

// DisplayedTimers returns copies of the timers shown on displays.
func (e *Event) DisplayedTimers(now time.Time) []*models.Timer {
	out := make([]*models.Timer, 0, models.MaxDisplayedTimers)
	for _, t := range e.TimerList(now) {
		if t.ShowOnDisplay {
			out = append(out, t)
		}
	}
	return out
}

// QuestionList returns copies of all questions in submission order.
func (e *Event) QuestionList() []*models.Question {
	out := make([]*models.Question, 0, len(e.QuestionOrder))
	for _, id := range e.QuestionOrder {
		out = append(out, e.Questions[id].Clone())
	}
	return out
}

// PublicQuestions returns copies of the approved and featured questions.
func (e *Event) PublicQuestions() []*models.Question {
	out := make([]*models.Question, 0, len(e.QuestionOrder))
	for _, id := range e.QuestionOrder {
		if q := e.Questions[id]; q.Public() {
			out = append(out, q.Clone())
		}
	}
	return out
}

// FeaturedQuestion returns a copy of the featured question, or nil.
func (e *Event) FeaturedQuestion() *models.Question {
	for _, id := range e.QuestionOrder {
		if q := e.Questions[id]; q.Status == models.QuestionFeatured {
			return q.Clone()
		}
	}
	return nil
}

// DisplayedPoll returns the poll currently shown on displays, or nil.
func (e *Event) DisplayedPoll() *models.Poll {
	for _, id := range e.PollOrder {
		if p := e.Polls[id]; p.ShowOnDisplay {
			return p
		}
	}
	return nil
}

// LivePoll returns the most recently created live poll, or nil.
func (e *Event) LivePoll() *models.Poll {
	for i := len(e.PollOrder) - 1; i >= 0; i-- {
		if p := e.Polls[e.PollOrder[i]]; p.Status == models.PollLive {
			return p
		}
	}
	return nil
}

// Stats recomputes the aggregate counters from the roster and reaction queue.
func (e *Event) Stats() models.Stats {
	displays := make(map[string]struct{})
	audience := 0
	for _, c := range e.Connections {
		switch c.Role {
		case models.RoleDisplay:
			displays[c.DisplayID] = struct{}{}
		case models.RoleAudience:
			audience++
		}
	}
	return models.Stats{
		TotalReactions: e.TotalReactions,
		QueueLength:    len(e.Reactions),
		ActiveDisplays: len(displays),
		AudienceCount:  audience,
	}
}

// DisplayIDs returns the distinct display ids currently joined.
func (e *Event) DisplayIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range e.Connections {
		if c.Role != models.RoleDisplay {
			continue
		}
		if _, ok := seen[c.DisplayID]; ok {
			continue
		}
		seen[c.DisplayID] = struct{}{}
		out = append(out, c.DisplayID)
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
