package polls

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func newEvent(t *testing.T) *store.Event {
	t.Helper()
	st := store.New(clockwork.NewFakeClockAt(t0), nil)
	return st.Ensure("keynote")
}

func draft(allowMultiple, allowChange bool, options ...string) validation.PollDraft {
	if len(options) == 0 {
		options = []string{"A", "B", "C"}
	}
	d := validation.PollDraft{Question: "Pick one", AllowMultiple: allowMultiple, AllowChange: allowChange}
	for _, o := range options {
		d.Options = append(d.Options, validation.OptionDraft{Text: o})
	}
	return d
}

func livePoll(t *testing.T, ev *store.Event, d validation.PollDraft) *models.Poll {
	t.Helper()
	p := Create(ev, d, t0)
	_, err := SendToDisplay(ev, p.ID, t0)
	require.NoError(t, err)
	return p
}

func opt(p *models.Poll, i int) string { return p.Options[i].ID }

func assertTallyConsistent(t *testing.T, p *models.Poll) {
	t.Helper()
	sum := 0
	for _, n := range p.Results.VoteCounts {
		sum += n
	}
	selections := 0
	for _, set := range p.Results.Voters {
		selections += len(set)
	}
	assert.Equal(t, sum, p.Results.TotalVotes)
	assert.Equal(t, selections, p.Results.TotalVotes)
}

func TestVoteConfigurations(t *testing.T) {
	type step struct {
		voter, option int
		err           error
	}
	tests := []struct {
		name           string
		multiple       bool
		change         bool
		steps          []step
		wantSelections map[int][]int
	}{
		{
			name:     "single choice without change",
			multiple: false, change: false,
			steps: []step{
				{voter: 1, option: 0},
				{voter: 1, option: 1, err: apperror.ErrAlreadyVoted},
				{voter: 1, option: 0, err: apperror.ErrAlreadyVoted},
				{voter: 2, option: 1},
			},
			wantSelections: map[int][]int{1: {0}, 2: {1}},
		},
		{
			name:     "single choice with change",
			multiple: false, change: true,
			steps: []step{
				{voter: 1, option: 0},
				{voter: 1, option: 2},
				{voter: 1, option: 2},
			},
			wantSelections: map[int][]int{1: {2}},
		},
		{
			name:     "multiple choice without change",
			multiple: true, change: false,
			steps: []step{
				{voter: 1, option: 0},
				{voter: 1, option: 1},
				{voter: 1, option: 0, err: apperror.ErrAlreadyVoted},
			},
			wantSelections: map[int][]int{1: {0, 1}},
		},
		{
			name:     "multiple choice with change toggles",
			multiple: true, change: true,
			steps: []step{
				{voter: 1, option: 0},
				{voter: 1, option: 1},
				{voter: 1, option: 0},
				{voter: 2, option: 2},
				{voter: 2, option: 2},
			},
			wantSelections: map[int][]int{1: {1}},
		},
	}
	voterID := func(n int) string { return []string{"", "v1", "v2"}[n] }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newEvent(t)
			p := livePoll(t, ev, draft(tt.multiple, tt.change))
			for i, s := range tt.steps {
				_, err := Vote(ev, p.ID, voterID(s.voter), opt(p, s.option))
				if s.err != nil {
					require.Error(t, err, "step %d", i)
					assert.True(t, errors.Is(err, s.err), "step %d: %v", i, err)
				} else {
					require.NoError(t, err, "step %d", i)
				}
				assertTallyConsistent(t, p)
			}
			assert.Len(t, p.Results.Voters, len(tt.wantSelections))
			for voter, options := range tt.wantSelections {
				var want []string
				for _, o := range options {
					want = append(want, opt(p, o))
				}
				assert.Equal(t, want, p.Selection(voterID(voter)))
			}
		})
	}
}

func TestAlreadyVotedLeavesStateUnchanged(t *testing.T) {
	ev := newEvent(t)
	p := livePoll(t, ev, draft(false, false))
	_, err := Vote(ev, p.ID, "v1", opt(p, 0))
	require.NoError(t, err)
	before := p.Clone()

	_, err = Vote(ev, p.ID, "v1", opt(p, 1))
	assert.True(t, errors.Is(err, apperror.ErrAlreadyVoted))
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))
	assert.Equal(t, before, p)
}

func TestVoteGuards(t *testing.T) {
	ev := newEvent(t)
	p := Create(ev, draft(false, false), t0)

	_, err := Vote(ev, p.ID, "v1", opt(p, 0))
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition), "ready poll")

	_, err = SendToDisplay(ev, p.ID, t0)
	require.NoError(t, err)
	_, err = Vote(ev, p.ID, "v1", "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = Vote(ev, "missing", "v1", opt(p, 0))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = Close(ev, p.ID)
	require.NoError(t, err)
	_, err = Vote(ev, p.ID, "v1", opt(p, 0))
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition), "closed poll")
	assert.Equal(t, 0, p.Results.TotalVotes)
}

func TestLifecycle(t *testing.T) {
	ev := newEvent(t)
	dur := 30
	d := draft(false, false)
	d.DurationSeconds = &dur
	p := Create(ev, d, t0)
	assert.Equal(t, models.PollReady, p.Status)

	_, err := Close(ev, p.ID)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))

	_, err = SendToDisplay(ev, p.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, models.PollLive, p.Status)
	assert.True(t, p.ShowOnDisplay)
	require.NotNil(t, p.ClosesAt)
	assert.Equal(t, t0.Add(30*time.Second), *p.ClosesAt)

	_, err = SendToDisplay(ev, p.ID, t0)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))

	_, err = Vote(ev, p.ID, "v1", opt(p, 0))
	require.NoError(t, err)
	_, err = SetShowResults(ev, p.ID, nil)
	require.NoError(t, err)
	assert.True(t, p.ShowResults)

	_, err = Close(ev, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollClosed, p.Status)
	assert.True(t, p.ShowOnDisplay, "closing keeps the poll on displays")

	_, err = Delete(ev, p.ID)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))

	_, err = Reset(ev, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollReady, p.Status)
	assert.False(t, p.ShowOnDisplay)
	assert.False(t, p.ShowResults)
	assert.Nil(t, p.ClosesAt)
	assert.Equal(t, 0, p.Results.TotalVotes)
	assert.Empty(t, p.Results.Voters)
	assert.Equal(t, 0, p.Results.VoteCounts[opt(p, 0)])

	_, err = Delete(ev, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ev.Polls)
	assert.Empty(t, ev.PollOrder)
}

func TestOnlyOnePollShown(t *testing.T) {
	ev := newEvent(t)
	a := livePoll(t, ev, draft(false, false))
	b := livePoll(t, ev, draft(false, false))
	assert.False(t, a.ShowOnDisplay)
	assert.True(t, b.ShowOnDisplay)

	_, err := Show(ev, a.ID)
	require.NoError(t, err)
	assert.True(t, a.ShowOnDisplay)
	assert.False(t, b.ShowOnDisplay)
	assert.Equal(t, a.ID, ev.DisplayedPoll().ID)

	_, err = Hide(ev, a.ID)
	require.NoError(t, err)
	assert.Nil(t, ev.DisplayedPoll())

	c := Create(ev, draft(false, false), t0)
	_, err = Show(ev, c.ID)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))
}

func TestCloseExpired(t *testing.T) {
	ev := newEvent(t)
	short, long := 5, 60
	d1, d2 := draft(false, false), draft(false, false)
	d1.DurationSeconds, d2.DurationSeconds = &short, &long
	p1 := livePoll(t, ev, d1)
	p2 := livePoll(t, ev, d2)
	p3 := livePoll(t, ev, draft(false, false))

	assert.Empty(t, CloseExpired(ev, t0.Add(4*time.Second)))

	closed := CloseExpired(ev, t0.Add(5*time.Second))
	require.Len(t, closed, 1)
	assert.Equal(t, p1.ID, closed[0].ID)
	assert.Equal(t, models.PollClosed, p1.Status)
	assert.Equal(t, models.PollLive, p2.Status)

	CloseExpired(ev, t0.Add(time.Hour))
	assert.Equal(t, models.PollClosed, p2.Status)
	assert.Equal(t, models.PollLive, p3.Status, "polls without a duration never auto-close")
}
