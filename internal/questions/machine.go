// Package questions implements audience Q&A submission and moderation.
package questions

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
)

// Submit adds a pending question. Submissions are refused while Q&A is disabled.
func Submit(ev *store.Event, text, author string, now time.Time) (*models.Question, error) {
	if !ev.QAEnabled {
		return nil, apperror.InvalidTransition("Q&A is closed")
	}
	q := &models.Question{
		ID:         uuid.New().String(),
		Text:       text,
		AuthorName: author,
		Status:     models.QuestionPending,
		CreatedAt:  now,
		Voters:     make(map[string]struct{}),
	}
	ev.AddQuestion(q)
	return q, nil
}

func get(ev *store.Event, questionID string) (*models.Question, error) {
	q, ok := ev.Questions[questionID]
	if !ok {
		return nil, apperror.NotFound("question", questionID)
	}
	return q, nil
}

// Upvote counts one vote per voter on a visible question.
func Upvote(ev *store.Event, questionID, voterID string) (*models.Question, error) {
	q, err := get(ev, questionID)
	if err != nil {
		return nil, err
	}
	if !q.Public() {
		return nil, apperror.InvalidTransition("question %s is %s", q.ID, q.Status)
	}
	if _, ok := q.Voters[voterID]; ok {
		return nil, apperror.InvalidTransition("question %s already upvoted", q.ID)
	}
	if q.Voters == nil {
		q.Voters = make(map[string]struct{})
	}
	q.Voters[voterID] = struct{}{}
	q.Upvotes = len(q.Voters)
	return q, nil
}

func transition(ev *store.Event, questionID string, from, to models.QuestionStatus) (*models.Question, error) {
	q, err := get(ev, questionID)
	if err != nil {
		return nil, err
	}
	if q.Status != from {
		return nil, apperror.InvalidTransition("question %s is %s, not %s", q.ID, q.Status, from)
	}
	q.Status = to
	return q, nil
}

// Approve moves a pending question to approved.
func Approve(ev *store.Event, questionID string) (*models.Question, error) {
	return transition(ev, questionID, models.QuestionPending, models.QuestionApproved)
}

// Reject moves a pending question to rejected.
func Reject(ev *store.Event, questionID string) (*models.Question, error) {
	return transition(ev, questionID, models.QuestionPending, models.QuestionRejected)
}

// Feature puts an approved question on displays. Any previously featured question goes
// back to approved, so at most one is featured.
func Feature(ev *store.Event, questionID string) (*models.Question, error) {
	q, err := get(ev, questionID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuestionApproved {
		return nil, apperror.InvalidTransition("question %s is %s, not approved", q.ID, q.Status)
	}
	for _, other := range ev.Questions {
		if other.Status == models.QuestionFeatured {
			other.Status = models.QuestionApproved
		}
	}
	q.Status = models.QuestionFeatured
	return q, nil
}

// Unfeature returns the featured question to approved.
func Unfeature(ev *store.Event, questionID string) (*models.Question, error) {
	return transition(ev, questionID, models.QuestionFeatured, models.QuestionApproved)
}

// Delete removes a question in any status.
func Delete(ev *store.Event, questionID string) (*models.Question, error) {
	q, err := get(ev, questionID)
	if err != nil {
		return nil, err
	}
	ev.RemoveQuestion(q.ID)
	return q, nil
}

// ClearAll removes every question and reports whether one was featured.
func ClearAll(ev *store.Event) bool {
	hadFeatured := ev.FeaturedQuestion() != nil
	ev.ClearQuestions()
	return hadFeatured
}

// Toggle sets whether the audience may submit, or flips it when enabled is nil.
func Toggle(ev *store.Event, enabled *bool) bool {
	if enabled == nil {
		ev.QAEnabled = !ev.QAEnabled
	} else {
		ev.QAEnabled = *enabled
	}
	return ev.QAEnabled
}
