package validation

import (
	"bytes"
	"encoding/json"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
)

// SettingsPatch is a partial display settings update. Nil fields keep their value.
type SettingsPatch struct {
	EmojiSize      *string `json:"emojiSize" binding:"omitempty,emoji_size"`
	AnimationSpeed *string `json:"animationSpeed" binding:"omitempty,animation_speed"`
	SpawnDirection *string `json:"spawnDirection" binding:"omitempty,spawn_direction"`
	SpawnPosition  *string `json:"spawnPosition" binding:"omitempty,spawn_position"`
	PollPosition   *string `json:"pollPosition" binding:"omitempty,screen_position"`
	PollSize       *string `json:"pollSize" binding:"omitempty,element_size"`
	QAPosition     *string `json:"qaPosition" binding:"omitempty,screen_position"`
	QASize         *string `json:"qaSize" binding:"omitempty,element_size"`
	TimerPosition  *string `json:"timerPosition" binding:"omitempty,screen_position"`
	TimerSize      *string `json:"timerSize" binding:"omitempty,element_size"`
	TimerStyle     *string `json:"timerStyle" binding:"omitempty,timer_style"`
	TimerColor     *string `json:"timerColor" binding:"omitempty,timer_color"`
	MaxOnScreen    *int    `json:"maxOnScreen" binding:"omitempty,max_on_screen"`
	EmojisEnabled  *bool   `json:"emojisEnabled"`
}

// DecodeSettings parses and validates a settings patch. Unknown keys, wrong types and
// out-of-enum values reject the whole patch.
func DecodeSettings(raw json.RawMessage) (SettingsPatch, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return SettingsPatch{}, apperror.Validation("settings", "is required")
	}
	var p SettingsPatch
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return SettingsPatch{}, decodeError(err)
	}
	if err := Struct(&p); err != nil {
		return SettingsPatch{}, err
	}
	if p.Len() == 0 {
		return SettingsPatch{}, apperror.Validation("settings", "no settings provided")
	}
	return p, nil
}

func (p SettingsPatch) stringFields(s *models.DisplaySettings) []struct {
	dst *string
	src *string
} {
	return []struct {
		dst *string
		src *string
	}{
		{&s.EmojiSize, p.EmojiSize},
		{&s.AnimationSpeed, p.AnimationSpeed},
		{&s.SpawnDirection, p.SpawnDirection},
		{&s.SpawnPosition, p.SpawnPosition},
		{&s.PollPosition, p.PollPosition},
		{&s.PollSize, p.PollSize},
		{&s.QAPosition, p.QAPosition},
		{&s.QASize, p.QASize},
		{&s.TimerPosition, p.TimerPosition},
		{&s.TimerSize, p.TimerSize},
		{&s.TimerStyle, p.TimerStyle},
		{&s.TimerColor, p.TimerColor},
	}
}

// Len counts the keys present in the patch.
func (p SettingsPatch) Len() int {
	n := 0
	for _, f := range p.stringFields(&models.DisplaySettings{}) {
		if f.src != nil {
			n++
		}
	}
	if p.MaxOnScreen != nil {
		n++
	}
	if p.EmojisEnabled != nil {
		n++
	}
	return n
}

// Apply returns current with every present key replaced.
func (p SettingsPatch) Apply(current models.DisplaySettings) models.DisplaySettings {
	next := current
	for _, f := range p.stringFields(&next) {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if p.MaxOnScreen != nil {
		next.MaxOnScreen = *p.MaxOnScreen
	}
	if p.EmojisEnabled != nil {
		next.EmojisEnabled = *p.EmojisEnabled
	}
	return next
}
