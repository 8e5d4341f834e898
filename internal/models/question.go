package models

import (
	"time"
)

// QuestionStatus is the moderation state of an audience question.
type QuestionStatus string

const (
	QuestionPending  QuestionStatus = "pending"
	QuestionApproved QuestionStatus = "approved"
	QuestionRejected QuestionStatus = "rejected"
	QuestionFeatured QuestionStatus = "featured"
)

// Question represents an audience question in an event.
type Question struct {
	ID         string              `json:"id"`
	Text       string              `json:"text"`
	AuthorName string              `json:"authorName"`
	Status     QuestionStatus      `json:"status"`
	Upvotes    int                 `json:"upvotes"`
	CreatedAt  time.Time           `json:"createdAt"`
	Voters     map[string]struct{} `json:"-"`
}

// Public reports whether the audience may see the question.
func (q *Question) Public() bool {
	return q.Status == QuestionApproved || q.Status == QuestionFeatured
}

// Clone returns a deep copy.
func (q *Question) Clone() *Question {
	c := *q
	c.Voters = make(map[string]struct{}, len(q.Voters))
	for k := range q.Voters {
		c.Voters[k] = struct{}{}
	}
	return &c
}
