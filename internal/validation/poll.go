package validation

import (
	"encoding/json"

	"github.com/aura-stage/backend/internal/apperror"
)

// CreatePollRequest is the `poll:create` payload.
type CreatePollRequest struct {
	Question        string        `json:"question" binding:"required,max=500"`
	Options         []OptionInput `json:"options" binding:"required,min=2,max=6,dive"`
	AllowChange     bool          `json:"allowChange"`
	AllowMultiple   bool          `json:"allowMultiple"`
	LiveResults     bool          `json:"liveResults"`
	DurationSeconds *int          `json:"durationSeconds" binding:"omitempty,min=5,max=3600"`
}

// OptionInput is one poll option. On the wire it is either a plain string or a
// {text, isCorrect} object.
type OptionInput struct {
	Text      string `json:"text" binding:"required,max=100"`
	IsCorrect bool   `json:"isCorrect"`
}

// UnmarshalJSON accepts both option forms.
func (o *OptionInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*o = OptionInput{Text: s}
		return nil
	}
	type plain OptionInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = OptionInput(p)
	return nil
}

// OptionDraft is a sanitized option without an id.
type OptionDraft struct {
	Text      string
	IsCorrect bool
}

// PollDraft is a sanitized poll ready for the store.
type PollDraft struct {
	Question        string
	Options         []OptionDraft
	AllowChange     bool
	AllowMultiple   bool
	LiveResults     bool
	DurationSeconds *int
}

// Poll validates a poll creation request. Option text must be unique after trimming;
// comparison is exact, so "Yes" and "yes" are different options.
func Poll(req CreatePollRequest) (PollDraft, error) {
	req.Options = append([]OptionInput(nil), req.Options...)
	Trim(&req)
	if err := Struct(&req); err != nil {
		return PollDraft{}, err
	}

	options := make([]OptionDraft, 0, len(req.Options))
	seen := make(map[string]struct{}, len(req.Options))
	for _, opt := range req.Options {
		if _, dup := seen[opt.Text]; dup {
			return PollDraft{}, apperror.Validation("options", "duplicate option %q", opt.Text)
		}
		seen[opt.Text] = struct{}{}
		options = append(options, OptionDraft{Text: opt.Text, IsCorrect: opt.IsCorrect})
	}

	return PollDraft{
		Question:        req.Question,
		Options:         options,
		AllowChange:     req.AllowChange,
		AllowMultiple:   req.AllowMultiple,
		LiveResults:     req.LiveResults,
		DurationSeconds: req.DurationSeconds,
	}, nil
}
