package models

import (
	"time"
)

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	PollReady  PollStatus = "ready"
	PollLive   PollStatus = "live"
	PollClosed PollStatus = "closed"
)

// PollOption is one answer choice.
type PollOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// PollResults holds the tally. Voters is authoritative; VoteCounts and TotalVotes are
// derived from it by Recount.
type PollResults struct {
	VoteCounts map[string]int                 `json:"voteCounts"`
	TotalVotes int                            `json:"totalVotes"`
	Voters     map[string]map[string]struct{} `json:"-"`
}

// Poll represents a multiple-choice poll in an event.
type Poll struct {
	ID              string       `json:"id"`
	Question        string       `json:"question"`
	Options         []PollOption `json:"options"`
	AllowChange     bool         `json:"allowChange"`
	AllowMultiple   bool         `json:"allowMultiple"`
	LiveResults     bool         `json:"liveResults"`
	DurationSeconds *int         `json:"durationSeconds"`
	BundleID        *string      `json:"bundleId"`
	Status          PollStatus   `json:"status"`
	ShowOnDisplay   bool         `json:"showOnDisplay"`
	ShowResults     bool         `json:"showResults"`
	CreatedAt       time.Time    `json:"createdAt"`
	ClosesAt        *time.Time   `json:"closesAt"`
	Results         PollResults  `json:"results"`
}

// NewPollResults returns an empty tally with a zero count for every option.
func NewPollResults(options []PollOption) PollResults {
	r := PollResults{
		VoteCounts: make(map[string]int, len(options)),
		Voters:     make(map[string]map[string]struct{}),
	}
	for _, o := range options {
		r.VoteCounts[o.ID] = 0
	}
	return r
}

// HasOption reports whether optionID belongs to the poll.
func (p *Poll) HasOption(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Recount rebuilds VoteCounts and TotalVotes from Voters.
func (p *Poll) Recount() {
	counts := make(map[string]int, len(p.Options))
	for _, o := range p.Options {
		counts[o.ID] = 0
	}
	total := 0
	for _, selected := range p.Results.Voters {
		for optionID := range selected {
			counts[optionID]++
			total++
		}
	}
	p.Results.VoteCounts = counts
	p.Results.TotalVotes = total
}

// Selection returns the voter's chosen option ids in poll option order.
func (p *Poll) Selection(voterID string) []string {
	selected := p.Results.Voters[voterID]
	out := make([]string, 0, len(selected))
	for _, o := range p.Options {
		if _, ok := selected[o.ID]; ok {
			out = append(out, o.ID)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p *Poll) Clone() *Poll {
	c := *p
	c.Options = append([]PollOption(nil), p.Options...)
	if p.DurationSeconds != nil {
		d := *p.DurationSeconds
		c.DurationSeconds = &d
	}
	if p.BundleID != nil {
		b := *p.BundleID
		c.BundleID = &b
	}
	if p.ClosesAt != nil {
		t := *p.ClosesAt
		c.ClosesAt = &t
	}
	c.Results.VoteCounts = make(map[string]int, len(p.Results.VoteCounts))
	for k, v := range p.Results.VoteCounts {
		c.Results.VoteCounts[k] = v
	}
	c.Results.Voters = make(map[string]map[string]struct{}, len(p.Results.Voters))
	for voter, selected := range p.Results.Voters {
		s := make(map[string]struct{}, len(selected))
		for id := range selected {
			s[id] = struct{}{}
		}
		c.Results.Voters[voter] = s
	}
	return &c
}

// PollResultsView is the tally as sent on `poll:results`.
type PollResultsView struct {
	PollID     string         `json:"pollId"`
	VoteCounts map[string]int `json:"voteCounts"`
	TotalVotes int            `json:"totalVotes"`
}

// ResultsView copies the current tally.
func (p *Poll) ResultsView() PollResultsView {
	counts := make(map[string]int, len(p.Results.VoteCounts))
	for k, v := range p.Results.VoteCounts {
		counts[k] = v
	}
	return PollResultsView{PollID: p.ID, VoteCounts: counts, TotalVotes: p.Results.TotalVotes}
}

// PublicOption hides correctness until results are revealed.
type PublicOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

// PublicPoll is the poll as seen by displays and the audience.
type PublicPoll struct {
	ID            string           `json:"id"`
	Question      string           `json:"question"`
	Options       []PublicOption   `json:"options"`
	AllowMultiple bool             `json:"allowMultiple"`
	AllowChange   bool             `json:"allowChange"`
	Status        PollStatus       `json:"status"`
	ShowResults   bool             `json:"showResults"`
	ClosesAt      *time.Time       `json:"closesAt"`
	Results       *PollResultsView `json:"results,omitempty"`
}

// PublicView renders the poll for displays. Results and correctness are included only
// when showResults is set, or when withLiveResults is true and the poll allows them.
func (p *Poll) PublicView(withLiveResults bool) PublicPoll {
	reveal := p.ShowResults
	opts := make([]PublicOption, len(p.Options))
	for i, o := range p.Options {
		opts[i] = PublicOption{ID: o.ID, Text: o.Text}
		if reveal {
			correct := o.IsCorrect
			opts[i].IsCorrect = &correct
		}
	}
	v := PublicPoll{
		ID:            p.ID,
		Question:      p.Question,
		Options:       opts,
		AllowMultiple: p.AllowMultiple,
		AllowChange:   p.AllowChange,
		Status:        p.Status,
		ShowResults:   p.ShowResults,
	}
	if p.ClosesAt != nil {
		t := *p.ClosesAt
		v.ClosesAt = &t
	}
	if reveal || (withLiveResults && p.LiveResults) {
		r := p.ResultsView()
		v.Results = &r
	}
	return v
}

// PollArchive is the durable record written when a poll closes.
type PollArchive struct {
	EventID    string         `json:"eventId"`
	PollID     string         `json:"pollId"`
	Question   string         `json:"question"`
	Options    []PollOption   `json:"options"`
	VoteCounts map[string]int `json:"voteCounts"`
	TotalVotes int            `json:"totalVotes"`
	ClosedAt   time.Time      `json:"closedAt"`
}

// Archive builds the durable record for a closed poll.
func (p *Poll) Archive(eventID string, closedAt time.Time) PollArchive {
	r := p.ResultsView()
	return PollArchive{
		EventID:    eventID,
		PollID:     p.ID,
		Question:   p.Question,
		Options:    append([]PollOption(nil), p.Options...),
		VoteCounts: r.VoteCounts,
		TotalVotes: r.TotalVotes,
		ClosedAt:   closedAt,
	}
}
