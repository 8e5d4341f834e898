package timers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/rooms/roomstest"
	"github.com/aura-stage/backend/internal/store"
)

func TestHandlerBroadcasts(t *testing.T) {
	ctx := context.Background()
	st := store.New(clockwork.NewFakeClockAt(t0), nil)
	st.Ensure("keynote")
	rec := &roomstest.Recorder{}
	h := NewHandler(st, rooms.NewRouter(rec), nil)
	producer := models.Connection{ID: "c1", EventID: "keynote", Role: models.RoleProducer, ActorID: "p1"}

	require.NoError(t, h.Create(ctx, producer, json.RawMessage(`{"name":"Break","type":"countdown","duration":300000}`)))
	var sync rooms.TimerSync
	require.True(t, rec.Last(rooms.Control("keynote"), rooms.EventTimerSync, &sync))
	require.Len(t, sync.Timers, 1)
	tm := sync.Timers[0]
	assert.Equal(t, "top-right", tm.Position, "appearance defaults from display settings")
	assert.False(t, rec.Has(rooms.DisplayPrefix("keynote"), rooms.EventTimerDisplay))

	ref := json.RawMessage(`{"timerId":"` + tm.ID + `"}`)
	require.NoError(t, h.Start(ctx, producer, ref))
	assert.False(t, rec.Has(rooms.DisplayPrefix("keynote"), rooms.EventTimerDisplay), "hidden timer")

	require.NoError(t, h.SendToDisplay(ctx, producer, ref))
	var display models.TimerDisplay
	require.True(t, rec.Last(rooms.DisplayPrefix("keynote"), rooms.EventTimerDisplay, &display))
	require.Len(t, display.Timers, 1)
	assert.Equal(t, models.TimerRunning, display.Timers[0].Status)

	require.NoError(t, h.Hide(ctx, producer, ref))
	require.True(t, rec.Last(rooms.DisplayPrefix("keynote"), rooms.EventTimerDisplay, &display))
	assert.Empty(t, display.Timers)

	err := h.UpdateDisplayText(ctx, producer, json.RawMessage(`{"timerId":"`+tm.ID+`","displayText":"Back soon"}`))
	require.NoError(t, err)
	require.True(t, rec.Last(rooms.Control("keynote"), rooms.EventTimerSync, &sync))
	assert.Equal(t, "Back soon", sync.Timers[0].DisplayText)

	err = h.UpdateSettings(ctx, producer, json.RawMessage(`{"timerId":"`+tm.ID+`","color":"teal"}`))
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	err = h.Create(ctx, producer, json.RawMessage(`{"name":"Break","type":"countdown"}`))
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
