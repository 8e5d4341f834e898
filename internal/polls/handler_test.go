package polls

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/ratelimit"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/rooms/roomstest"
	"github.com/aura-stage/backend/internal/store"
)

type fakeArchiver struct {
	mu       sync.Mutex
	archives []models.PollArchive
}

func (f *fakeArchiver) EnqueuePollArchive(_ context.Context, a models.PollArchive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archives = append(f.archives, a)
	return nil
}

func (f *fakeArchiver) received() []models.PollArchive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PollArchive(nil), f.archives...)
}

func (f *fakeArchiver) await(t *testing.T, n int) []models.PollArchive {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.received()) >= n }, time.Second, 5*time.Millisecond)
	return f.received()
}

type fixture struct {
	st       *store.Store
	rec      *roomstest.Recorder
	archiver *fakeArchiver
	h        *Handler
	producer models.Connection
}

const eventID = "keynote"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	st := store.New(clock, nil)
	st.Ensure(eventID)
	rec := &roomstest.Recorder{}
	arch := &fakeArchiver{}
	pub := NewPublisher(arch, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go pub.Run(ctx)
	h := NewHandler(st, rooms.NewRouter(rec), ratelimit.New(ratelimit.DefaultRules, clock, nil), pub, nil)
	return &fixture{
		st:       st,
		rec:      rec,
		archiver: arch,
		h:        h,
		producer: models.Connection{ID: "conn-producer", EventID: eventID, Role: models.RoleProducer, ActorID: "producer-1"},
	}
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func (f *fixture) onlyPoll(t *testing.T) *models.Poll {
	t.Helper()
	var p *models.Poll
	require.NoError(t, f.st.View(eventID, func(ev *store.Event) error {
		require.Len(t, ev.PollOrder, 1)
		p = ev.Polls[ev.PollOrder[0]].Clone()
		return nil
	}))
	return p
}

func TestPickOneScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := models.Connection{ID: "conn-v1", EventID: eventID, Role: models.RoleAudience, ActorID: "v1"}

	require.NoError(t, f.h.Create(ctx, f.producer, json.RawMessage(`{"eventId":"keynote","question":"Pick one","options":["A","B"]}`)))
	p := f.onlyPoll(t)
	a, b := p.Options[0].ID, p.Options[1].ID
	assert.Equal(t, "A", p.Options[0].Text)
	assert.True(t, f.rec.Has(rooms.Control(eventID), rooms.EventPollSync))

	require.NoError(t, f.h.SendToDisplay(ctx, f.producer, raw(t, PollRequest{PollID: p.ID})))
	var shown rooms.PollDisplay
	require.True(t, f.rec.Last(rooms.DisplayPrefix(eventID), rooms.EventPollDisplay, &shown))
	require.NotNil(t, shown.Poll)
	assert.Equal(t, p.ID, shown.Poll.ID)
	assert.Nil(t, shown.Poll.Results, "results hidden until revealed")
	var active rooms.PollActive
	require.True(t, f.rec.Last(rooms.Audience(eventID), rooms.EventPollActive, &active))
	require.NotNil(t, active.Poll)

	f.rec.Reset()
	require.NoError(t, f.h.Vote(ctx, voter, raw(t, VoteRequest{PollID: p.ID, OptionID: a})))

	var results models.PollResultsView
	require.True(t, f.rec.Last(rooms.Control(eventID), rooms.EventPollResults, &results))
	assert.Equal(t, map[string]int{a: 1, b: 0}, results.VoteCounts)
	assert.Equal(t, 1, results.TotalVotes)
	assert.Empty(t, f.rec.To(rooms.Audience(eventID), rooms.EventPollResults), "live results are off")
	assert.Empty(t, f.rec.To(rooms.DisplayPrefix(eventID), rooms.EventPollDisplay), "results are not revealed")

	var confirmed VoteConfirmed
	require.True(t, f.rec.Last(voter.ID, rooms.EventPollVoteConfirmed, &confirmed))
	assert.Equal(t, []string{a}, confirmed.OptionIDs)

	require.NoError(t, f.h.Close(ctx, f.producer, raw(t, PollRequest{PollID: p.ID})))
	assert.True(t, f.rec.Has(rooms.Audience(eventID), rooms.EventPollClosed))
	archived := f.archiver.await(t, 1)
	require.Len(t, archived, 1)
	assert.Equal(t, eventID, archived[0].EventID)
	assert.Equal(t, 1, archived[0].VoteCounts[a])

	err := f.h.Vote(ctx, voter, raw(t, VoteRequest{PollID: p.ID, OptionID: b}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))
	assert.Equal(t, 1, f.onlyPoll(t).Results.TotalVotes)
}

func TestLiveResultsReachAudience(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.h.Create(ctx, f.producer, json.RawMessage(`{"question":"Q","options":["A","B"],"liveResults":true}`)))
	p := f.onlyPoll(t)
	require.NoError(t, f.h.SendToDisplay(ctx, f.producer, raw(t, PollRequest{PollID: p.ID})))
	require.NoError(t, f.h.ShowResults(ctx, f.producer, raw(t, ShowResultsRequest{PollID: p.ID})))

	f.rec.Reset()
	voter := models.Connection{ID: "conn-v1", EventID: eventID, Role: models.RoleAudience, ActorID: "v1"}
	require.NoError(t, f.h.Vote(ctx, voter, raw(t, VoteRequest{PollID: p.ID, OptionID: p.Options[1].ID})))

	assert.Len(t, f.rec.To(rooms.Audience(eventID), rooms.EventPollResults), 1)
	var shown rooms.PollDisplay
	require.True(t, f.rec.Last(rooms.DisplayPrefix(eventID), rooms.EventPollDisplay, &shown))
	require.NotNil(t, shown.Poll.Results)
	assert.Equal(t, 1, shown.Poll.Results.TotalVotes)
}

func TestCreateValidatesBeforeTouchingState(t *testing.T) {
	f := newFixture(t)
	err := f.h.Create(context.Background(), f.producer, json.RawMessage(`{"question":"Q","options":"A,B"}`))
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	require.NoError(t, f.st.View(eventID, func(ev *store.Event) error {
		assert.Empty(t, ev.Polls)
		return nil
	}))
	assert.Empty(t, f.rec.Messages())
}

func TestVoteRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.h.Create(ctx, f.producer, json.RawMessage(`{"question":"Q","options":["A","B"],"allowChange":true}`)))
	p := f.onlyPoll(t)
	require.NoError(t, f.h.SendToDisplay(ctx, f.producer, raw(t, PollRequest{PollID: p.ID})))

	voter := models.Connection{ID: "conn-v1", EventID: eventID, Role: models.RoleAudience, ActorID: "v1"}
	for i := 0; i < 200; i++ {
		require.NoError(t, f.h.Vote(ctx, voter, raw(t, VoteRequest{PollID: p.ID, OptionID: p.Options[i%2].ID})))
	}
	err := f.h.Vote(ctx, voter, raw(t, VoteRequest{PollID: p.ID, OptionID: p.Options[0].ID}))
	assert.True(t, errors.Is(err, apperror.ErrRateLimited))
}

func TestBundleHandlersBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.h.Create(ctx, f.producer, json.RawMessage(`{"question":"Q","options":["A","B"]}`)))
	p := f.onlyPoll(t)

	require.NoError(t, f.h.CreateBundle(ctx, f.producer, raw(t, CreateBundleRequest{Name: "Quiz", PollIDs: []string{p.ID}})))
	var sync rooms.BundleSync
	require.True(t, f.rec.Last(rooms.Control(eventID), rooms.EventBundleSync, &sync))
	require.Len(t, sync.Bundles, 1)
	bundleID := sync.Bundles[0].ID

	require.NoError(t, f.h.StartBundle(ctx, f.producer, raw(t, BundleRequest{BundleID: bundleID})))
	var active rooms.PollActive
	require.True(t, f.rec.Last(rooms.Audience(eventID), rooms.EventPollActive, &active))
	require.NotNil(t, active.Poll)
	assert.Equal(t, p.ID, active.Poll.ID)

	err := f.h.NextInBundle(ctx, f.producer, raw(t, BundleRequest{BundleID: bundleID}))
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))

	require.NoError(t, f.h.ShowResults(ctx, f.producer, raw(t, ShowResultsRequest{PollID: p.ID})))
	require.NoError(t, f.h.NextInBundle(ctx, f.producer, raw(t, BundleRequest{BundleID: bundleID})))
	require.True(t, f.rec.Last(rooms.Control(eventID), rooms.EventBundleSync, &sync))
	assert.Equal(t, models.BundleCompleted, sync.Bundles[0].Status)
	assert.Len(t, f.archiver.await(t, 1), 1)
}
