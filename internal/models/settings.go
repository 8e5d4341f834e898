package models

// DisplaySettings is the per-event rendering configuration shared by every display.
type DisplaySettings struct {
	EmojiSize      string `json:"emojiSize"`
	AnimationSpeed string `json:"animationSpeed"`
	SpawnDirection string `json:"spawnDirection"`
	SpawnPosition  string `json:"spawnPosition"`
	PollPosition   string `json:"pollPosition"`
	PollSize       string `json:"pollSize"`
	QAPosition     string `json:"qaPosition"`
	QASize         string `json:"qaSize"`
	TimerPosition  string `json:"timerPosition"`
	TimerSize      string `json:"timerSize"`
	TimerStyle     string `json:"timerStyle"`
	TimerColor     string `json:"timerColor"`
	MaxOnScreen    int    `json:"maxOnScreen"`
	EmojisEnabled  bool   `json:"emojisEnabled"`
}

// DefaultDisplaySettings returns the settings a new event starts with.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		EmojiSize:      "medium",
		AnimationSpeed: "normal",
		SpawnDirection: "up",
		SpawnPosition:  "random",
		PollPosition:   "center",
		PollSize:       "medium",
		QAPosition:     "bottom-center",
		QASize:         "medium",
		TimerPosition:  "top-right",
		TimerSize:      "medium",
		TimerStyle:     "digital",
		TimerColor:     "white",
		MaxOnScreen:    50,
		EmojisEnabled:  true,
	}
}
