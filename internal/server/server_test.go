package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-stage/backend/config"
	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/auth"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/realtime"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/pkg/response"
	"github.com/aura-stage/backend/pkg/utils"
)

type harness struct {
	srv   *Server
	ts    *httptest.Server
	jwt   *auth.JWTService
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hash, err := utils.HashPassword("booth-pass")
	require.NoError(t, err)
	cfg := &config.Config{
		Server:   config.ServerConfig{CORSAllowedOrigins: "*"},
		Realtime: config.RealtimeConfig{TickInterval: 500 * time.Millisecond, SendBuffer: 64, MaxMessageBytes: 65536},
		Auth:     config.AuthConfig{AVTechPasswordHash: hash},
	}
	jwt := auth.NewJWTService("test-secret", 1)
	token, err := jwt.Generate("producer-1", "producer")
	require.NoError(t, err)

	srv := New(cfg, Deps{Clock: clockwork.NewFakeClock(), JWT: jwt})
	ts := httptest.NewServer(srv.Engine)
	t.Cleanup(ts.Close)
	return &harness{srv: srv, ts: ts, jwt: jwt, token: token}
}

type socket struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial(t *testing.T, query string) *socket {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &socket{t: t, conn: conn}
}

func (s *socket) send(event string, data interface{}) {
	s.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(s.t, err)
	require.NoError(s.t, s.conn.WriteJSON(realtime.WSMessage{Event: event, Data: raw}))
}

// await reads until event arrives and decodes it into v.
func (s *socket) await(event string, v interface{}) {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg realtime.WSMessage
		require.NoError(s.t, s.conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event != event {
			continue
		}
		if v != nil {
			require.NoError(s.t, json.Unmarshal(msg.Data, v))
		}
		return
	}
}

func TestLiveEventEndToEnd(t *testing.T) {
	h := newHarness(t)

	producer := h.dial(t, "token="+h.token)
	producer.send("join-event", map[string]string{"eventId": "keynote", "role": "producer"})
	producer.await(rooms.EventJoined, nil)
	producer.await(rooms.EventStatsUpdate, nil)

	viewer := h.dial(t, "")
	viewer.send("join-event", map[string]string{"eventId": "keynote", "role": "audience"})
	viewer.await(rooms.EventQASync, nil)

	screen := h.dial(t, "")
	screen.send("join-display", map[string]string{"eventId": "keynote", "displayId": "main"})
	screen.await(rooms.EventSettingsSync, nil)

	producer.send("poll:create", map[string]interface{}{
		"question":    "Best talk?",
		"options":     []string{"Opening", "Closing"},
		"liveResults": true,
	})
	var sync rooms.PollSync
	producer.await(rooms.EventPollSync, &sync)
	require.Len(t, sync.Polls, 1)
	poll := sync.Polls[0]

	producer.send("poll:send-to-display", map[string]string{"pollId": poll.ID})
	var active rooms.PollActive
	viewer.await(rooms.EventPollActive, &active)
	require.NotNil(t, active.Poll)
	assert.Equal(t, "Best talk?", active.Poll.Question)
	var shown rooms.PollDisplay
	screen.await(rooms.EventPollDisplay, &shown)
	require.NotNil(t, shown.Poll)

	option := poll.Options[1].ID
	viewer.send("poll:vote", map[string]string{"pollId": poll.ID, "optionId": option})
	var confirmed struct {
		PollID    string   `json:"pollId"`
		OptionIDs []string `json:"optionIds"`
	}
	viewer.await(rooms.EventPollVoteConfirmed, &confirmed)
	assert.Equal(t, []string{option}, confirmed.OptionIDs)

	var results models.PollResultsView
	producer.await(rooms.EventPollResults, &results)
	assert.Equal(t, 1, results.TotalVotes)
	assert.Equal(t, 1, results.VoteCounts[option])

	viewer.send("poll:vote", map[string]string{"pollId": poll.ID, "optionId": poll.Options[0].ID})
	var voteErr apperror.Payload
	viewer.await(rooms.EventPollVoteError, &voteErr)
	assert.Equal(t, apperror.KindAlreadyVoted, voteErr.Code)

	viewer.send("poll:close", map[string]string{"pollId": poll.ID})
	var denied apperror.Payload
	viewer.await(rooms.EventError, &denied)
	assert.Equal(t, apperror.KindUnauthorized, denied.Code)

	producer.send("poll:close", map[string]string{"pollId": poll.ID})
	var closed rooms.PollClosed
	viewer.await(rooms.EventPollClosed, &closed)
	assert.Equal(t, poll.ID, closed.PollID)
}

func TestPrivilegedJoinRefused(t *testing.T) {
	h := newHarness(t)

	tech := h.dial(t, "password=wrong")
	tech.send("join-event", map[string]string{"eventId": "keynote", "role": "avtech"})
	var refused realtime.ConnectError
	tech.await(rooms.EventConnectError, &refused)
	assert.Equal(t, apperror.KindUnauthorized, refused.Code)

	tech = h.dial(t, "password=booth-pass")
	tech.send("join-event", map[string]string{"eventId": "keynote", "role": "avtech"})
	var joined struct {
		Role models.Role `json:"role"`
	}
	tech.await(rooms.EventJoined, &joined)
	assert.Equal(t, models.RoleAVTech, joined.Role)

	tech.send("poll:create", map[string]interface{}{"question": "q?", "options": []string{"a", "b"}})
	var denied apperror.Payload
	tech.await(rooms.EventError, &denied)
	assert.Equal(t, apperror.KindUnauthorized, denied.Code)
}

func TestHTTPRoutes(t *testing.T) {
	h := newHarness(t)

	get := func(path, token string) (*http.Response, response.Body) {
		req, err := http.NewRequest(http.MethodGet, h.ts.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		var body response.Body
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		return res, body
	}

	res, body := get("/health", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, body.Success)

	res, _ = get("/events/keynote/stats", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	viewerToken, err := h.jwt.Generate("viewer-1", "viewer")
	require.NoError(t, err)
	res, _ = get("/events/keynote/stats", viewerToken)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = get("/events/keynote/stats", h.token)
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "no one joined yet")
	assert.Equal(t, string(apperror.KindNotFound), body.Code)

	screen := h.dial(t, "")
	screen.send("join-display", map[string]string{"eventId": "keynote", "displayId": "main"})
	screen.await(rooms.EventSettingsSync, nil)

	res, body = get("/events/keynote/stats", h.token)
	require.Equal(t, http.StatusOK, res.StatusCode)
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var stats models.Stats
	require.NoError(t, json.Unmarshal(raw, &stats))
	assert.Equal(t, 1, stats.ActiveDisplays)

	res, _ = get("/events/keynote/results", h.token)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
