package validation

import (
	"github.com/aura-stage/backend/internal/models"
)

// MaxTimerDuration is the longest countdown in milliseconds (24h).
const MaxTimerDuration = int64(24 * 60 * 60 * 1000)

// CreateTimerRequest is the `timer:create` payload.
type CreateTimerRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Type        string `json:"type" binding:"required,oneof=countdown stopwatch"`
	Duration    *int64 `json:"duration" binding:"required_if=Type countdown,omitempty,gt=0,lte=86400000"`
	Position    string `json:"position" binding:"omitempty,screen_position"`
	Size        string `json:"size" binding:"omitempty,element_size"`
	Style       string `json:"style" binding:"omitempty,timer_style"`
	Color       string `json:"color" binding:"omitempty,timer_color"`
	DisplayText string `json:"displayText" binding:"max=100"`
}

// TimerDraft is a sanitized timer ready for the store.
type TimerDraft struct {
	Name        string
	Type        models.TimerType
	Duration    *int64
	Position    string
	Size        string
	Style       string
	Color       string
	DisplayText string
}

// Timer validates a timer creation request. Unset appearance fields take the event's
// timer display settings. A stopwatch ignores any duration it was sent.
func Timer(req CreateTimerRequest, defaults models.DisplaySettings) (TimerDraft, error) {
	Trim(&req)
	if err := Struct(&req); err != nil {
		return TimerDraft{}, err
	}
	d := TimerDraft{
		Name:        req.Name,
		Type:        models.TimerType(req.Type),
		Position:    orDefault(req.Position, defaults.TimerPosition),
		Size:        orDefault(req.Size, defaults.TimerSize),
		Style:       orDefault(req.Style, defaults.TimerStyle),
		Color:       orDefault(req.Color, defaults.TimerColor),
		DisplayText: req.DisplayText,
	}
	if d.Type == models.TimerCountdown {
		dur := *req.Duration
		d.Duration = &dur
	}
	return d, nil
}

// TimerAppearance is the per-timer subset of display enums. Empty fields are unset.
type TimerAppearance struct {
	Position string `json:"position" binding:"omitempty,screen_position"`
	Size     string `json:"size" binding:"omitempty,element_size"`
	Style    string `json:"style" binding:"omitempty,timer_style"`
	Color    string `json:"color" binding:"omitempty,timer_color"`
}

// Validate checks every non-empty field against the display enums.
func (a TimerAppearance) Validate() error {
	return Struct(&a)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
