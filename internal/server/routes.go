package server

import (
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/polls"
	"github.com/aura-stage/backend/internal/questions"
	"github.com/aura-stage/backend/internal/reactions"
	"github.com/aura-stage/backend/internal/realtime"
	"github.com/aura-stage/backend/internal/settings"
	"github.com/aura-stage/backend/internal/timers"
)

type socketHandlers struct {
	polls     *polls.Handler
	timers    *timers.Handler
	questions *questions.Handler
	settings  *settings.Handler
	reactions *reactions.Handler
}

var (
	producerOnly = []models.Role{models.RoleProducer}
	control      = []models.Role{models.RoleProducer, models.RoleAVTech}
	audience     = []models.Role{models.RoleAudience}
	voters       = []models.Role{models.RoleProducer, models.RoleAVTech, models.RoleAudience}
)

// registerSocketRoutes installs the role matrix. Content authoring and destructive
// operations are producer-only; A/V technicians run the show.
func registerSocketRoutes(d *realtime.Dispatcher, h socketHandlers) {
	d.Handle("poll:create", h.polls.Create, producerOnly...)
	d.Handle("poll:delete", h.polls.Delete, producerOnly...)
	d.Handle("poll:close", h.polls.Close, control...)
	d.Handle("poll:reset", h.polls.Reset, control...)
	d.Handle("poll:show-results", h.polls.ShowResults, control...)
	d.Handle("poll:send-to-display", h.polls.SendToDisplay, control...)
	d.Handle("poll:hide", h.polls.Hide, control...)
	d.Handle("poll:show", h.polls.Show, control...)
	d.Handle(realtime.EventPollVote, h.polls.Vote, voters...)

	d.Handle("bundle:create", h.polls.CreateBundle, producerOnly...)
	d.Handle("bundle:add-poll", h.polls.AddToBundle, producerOnly...)
	d.Handle("bundle:remove-poll", h.polls.RemoveFromBundle, producerOnly...)
	d.Handle("bundle:delete", h.polls.DeleteBundle, producerOnly...)
	d.Handle("bundle:start", h.polls.StartBundle, control...)
	d.Handle("bundle:next", h.polls.NextInBundle, control...)

	d.Handle("timer:create", h.timers.Create, producerOnly...)
	d.Handle("timer:delete", h.timers.Delete, producerOnly...)
	d.Handle("timer:start", h.timers.Start, control...)
	d.Handle("timer:pause", h.timers.Pause, control...)
	d.Handle("timer:resume", h.timers.Resume, control...)
	d.Handle("timer:reset", h.timers.Reset, control...)
	d.Handle("timer:update-settings", h.timers.UpdateSettings, control...)
	d.Handle("timer:update-display-text", h.timers.UpdateDisplayText, control...)
	d.Handle("timer:send-to-display", h.timers.SendToDisplay, control...)
	d.Handle("timer:hide", h.timers.Hide, control...)

	d.Handle("qa:submit", h.questions.Submit, audience...)
	d.Handle("qa:upvote", h.questions.Upvote, audience...)
	d.Handle("qa:clear-all", h.questions.ClearAll, producerOnly...)
	d.Handle("qa:toggle", h.questions.Toggle, control...)
	d.Handle("qa:approve", h.questions.Approve, control...)
	d.Handle("qa:reject", h.questions.Reject, control...)
	d.Handle("qa:feature", h.questions.Feature, control...)
	d.Handle("qa:unfeature", h.questions.Unfeature, control...)
	d.Handle("qa:delete", h.questions.Delete, control...)

	d.Handle("settings:update", h.settings.Update, control...)

	d.Handle("reaction:send", h.reactions.Send, audience...)
	d.Handle("reaction:test", h.reactions.Test, control...)
	d.Handle("reaction:test-surge", h.reactions.TestSurge, control...)
	d.Handle("queue:clear", h.reactions.ClearQueue, control...)
}
