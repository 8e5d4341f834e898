package rooms

import (
	"time"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
)

// Server to client event names.
const (
	EventPollSync          = "poll:sync"
	EventPollResults       = "poll:results"
	EventPollActive        = "poll:active"
	EventPollClosed        = "poll:closed"
	EventPollDisplay       = "poll:display"
	EventPollVoteConfirmed = "poll:vote-confirmed"
	EventPollVoteError     = "poll:vote-error"
	EventBundleSync        = "bundle:sync"
	EventTimerSync         = "timer:sync"
	EventTimerTick         = "timer:tick"
	EventTimerDisplay      = "timer:display"
	EventQASync            = "qa:sync"
	EventQAFeatured        = "qa:featured"
	EventSettingsSync      = "settings:sync"
	EventStatsUpdate       = "stats:update"
	EventReactionDisplay   = "reaction:display"
	EventReactionCooldown  = "reaction:cooldown"
	EventError             = "error"
	EventConnectError      = "connect_error"
	EventJoined            = "joined"
)

// PollSync is the full poll list for the control room.
type PollSync struct {
	Polls []*models.Poll `json:"polls"`
}

// PollDisplay is the poll shown on displays, or nil when none is.
type PollDisplay struct {
	Poll *models.PublicPoll `json:"poll"`
}

// PollActive is the live poll offered to the audience, or nil.
type PollActive struct {
	Poll *models.PublicPoll `json:"poll"`
}

// PollClosed announces a poll that stopped accepting votes.
type PollClosed struct {
	PollID  string                 `json:"pollId"`
	Results models.PollResultsView `json:"results"`
}

// BundleSync is the full bundle list.
type BundleSync struct {
	Bundles []*models.Bundle `json:"bundles"`
}

// TimerSync is the full timer list with currentElapsed refreshed.
type TimerSync struct {
	Timers     []*models.Timer `json:"timers"`
	ServerTime time.Time       `json:"serverTime"`
}

// QASync is the question list. The audience variant carries only public questions.
type QASync struct {
	Questions []*models.Question `json:"questions"`
	Enabled   bool               `json:"enabled"`
}

// QAFeatured is the featured question, or nil.
type QAFeatured struct {
	Question *models.Question `json:"question"`
}

// ReactionDisplay is a batch of reactions for displays to animate.
type ReactionDisplay struct {
	Reactions []models.Reaction `json:"reactions"`
}

// ReactionCooldown tells an audience member to back off.
type ReactionCooldown struct {
	RetryAfterSeconds int `json:"retryAfterSeconds"`
}

// Payload builders. Callers hold the event lock.

func PollSyncOf(ev *store.Event) PollSync {
	return PollSync{Polls: ev.PollList()}
}

func PollDisplayOf(ev *store.Event) PollDisplay {
	p := ev.DisplayedPoll()
	if p == nil {
		return PollDisplay{}
	}
	v := p.PublicView(false)
	return PollDisplay{Poll: &v}
}

func PollActiveOf(ev *store.Event) PollActive {
	p := ev.LivePoll()
	if p == nil {
		return PollActive{}
	}
	v := p.PublicView(true)
	return PollActive{Poll: &v}
}

func BundleSyncOf(ev *store.Event) BundleSync {
	return BundleSync{Bundles: ev.BundleList()}
}

func TimerSyncOf(ev *store.Event, now time.Time) TimerSync {
	return TimerSync{Timers: ev.TimerList(now), ServerTime: now}
}

func TimerDisplayOf(ev *store.Event, now time.Time) models.TimerDisplay {
	return models.TimerDisplay{Timers: ev.DisplayedTimers(now), ServerTime: now}
}

func QASyncOf(ev *store.Event) QASync {
	return QASync{Questions: ev.QuestionList(), Enabled: ev.QAEnabled}
}

func PublicQASyncOf(ev *store.Event) QASync {
	return QASync{Questions: ev.PublicQuestions(), Enabled: ev.QAEnabled}
}

func QAFeaturedOf(ev *store.Event) QAFeatured {
	return QAFeatured{Question: ev.FeaturedQuestion()}
}

// Router turns state deltas into the minimal set of room broadcasts. Every method must be
// called with the event lock held so payloads reflect one consistent state.
type Router struct {
	b Broadcaster
}

// NewRouter creates a router over b.
func NewRouter(b Broadcaster) *Router {
	return &Router{b: b}
}

func (r *Router) control(ev *store.Event, event string, payload interface{}) {
	r.b.Broadcast(Control(ev.ID), event, payload)
}

func (r *Router) audience(ev *store.Event, event string, payload interface{}) {
	r.b.Broadcast(Audience(ev.ID), event, payload)
}

func (r *Router) displays(ev *store.Event, event string, payload interface{}) {
	r.b.BroadcastPrefix(DisplayPrefix(ev.ID), event, payload)
}

// SendTo delivers one event to a single connection.
func (r *Router) SendTo(clientID, event string, payload interface{}) {
	r.b.SendToClient(clientID, event, payload)
}

// PollsChanged pushes the poll list to the control room.
func (r *Router) PollsChanged(ev *store.Event) {
	r.control(ev, EventPollSync, PollSyncOf(ev))
}

// PollDisplayChanged pushes the shown poll to every display.
func (r *Router) PollDisplayChanged(ev *store.Event) {
	r.displays(ev, EventPollDisplay, PollDisplayOf(ev))
}

// AudiencePollChanged pushes the live poll, or its absence, to the audience.
func (r *Router) AudiencePollChanged(ev *store.Event) {
	r.audience(ev, EventPollActive, PollActiveOf(ev))
}

// VoteRecorded pushes the new tally. The audience sees it only for live-results polls and
// displays only when the poll is shown with results revealed.
func (r *Router) VoteRecorded(ev *store.Event, p *models.Poll) {
	view := p.ResultsView()
	r.control(ev, EventPollResults, view)
	if p.LiveResults {
		r.audience(ev, EventPollResults, view)
	}
	if p.ShowOnDisplay && p.ShowResults {
		r.PollDisplayChanged(ev)
	}
}

// PollClosed announces the close to producers and the audience, then refreshes displays
// if the poll is shown.
func (r *Router) PollClosed(ev *store.Event, p *models.Poll) {
	msg := PollClosed{PollID: p.ID, Results: p.ResultsView()}
	r.control(ev, EventPollClosed, msg)
	r.audience(ev, EventPollClosed, msg)
	r.PollsChanged(ev)
	if p.ShowOnDisplay {
		r.PollDisplayChanged(ev)
	}
}

// BundlesChanged pushes the bundle list to the control room.
func (r *Router) BundlesChanged(ev *store.Event) {
	r.control(ev, EventBundleSync, BundleSyncOf(ev))
}

// TimersChanged pushes the timer list to the control room, and the displayed set to
// displays when it was affected.
func (r *Router) TimersChanged(ev *store.Event, now time.Time, displayAffected bool) {
	r.control(ev, EventTimerSync, TimerSyncOf(ev, now))
	if displayAffected {
		r.displays(ev, EventTimerDisplay, TimerDisplayOf(ev, now))
	}
}

// TimerTick sends a progress update to the control room only.
func (r *Router) TimerTick(ev *store.Event, tick models.TimerTick) {
	r.control(ev, EventTimerTick, tick)
}

// QuestionsChanged pushes the full list to the control room and the public subset to the
// audience. Displays hear only about the featured question.
func (r *Router) QuestionsChanged(ev *store.Event, featuredChanged bool) {
	r.control(ev, EventQASync, QASyncOf(ev))
	r.audience(ev, EventQASync, PublicQASyncOf(ev))
	if featuredChanged {
		r.displays(ev, EventQAFeatured, QAFeaturedOf(ev))
	}
}

// SettingsChanged sends the single settings object to the control room and all displays.
func (r *Router) SettingsChanged(ev *store.Event) {
	r.control(ev, EventSettingsSync, ev.Settings)
	r.displays(ev, EventSettingsSync, ev.Settings)
}

// StatsChanged pushes recomputed stats to the control room.
func (r *Router) StatsChanged(ev *store.Event) {
	r.control(ev, EventStatsUpdate, ev.Stats())
}

// Reactions sends a batch of reactions to every display.
func (r *Router) Reactions(ev *store.Event, batch []models.Reaction) {
	if len(batch) == 0 {
		return
	}
	r.displays(ev, EventReactionDisplay, ReactionDisplay{Reactions: batch})
}
