// Package speech describes how a reply should be read aloud. Clients hand
// the hints to their speech synthesizer; nothing is spoken server side.
package speech

import "github.com/wolfman30/vision-helper/internal/locale"

// Style selects voice settings for a kind of reply.
type Style string

const (
	StyleChat      Style = "chat"
	StyleNarration Style = "narration"
)

const (
	defaultRate   = 0.7
	defaultVolume = 1.0
	chatPitch     = 1.0
	storyPitch    = 1.1
)

// Utterance carries text-to-speech settings.
type Utterance struct {
	Lang   string  `json:"lang"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// For returns the settings for lang and style. Speech is slow for elderly
// listeners; narration is pitched slightly higher.
func For(lang locale.Language, style Style) Utterance {
	u := Utterance{
		Lang:   voiceTag(lang),
		Rate:   defaultRate,
		Pitch:  chatPitch,
		Volume: defaultVolume,
	}
	if style == StyleNarration {
		u.Pitch = storyPitch
	}
	return u
}

func voiceTag(lang locale.Language) string {
	switch lang {
	case locale.Japanese:
		return "ja-JP"
	case locale.English:
		return "en-US"
	default:
		return "zh-TW"
	}
}
