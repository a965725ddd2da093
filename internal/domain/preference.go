package domain

import "time"

type PreferenceKey string

const (
	PrefStyle     PreferenceKey = "style"
	PrefVideoMode PreferenceKey = "video_mode"
)

const (
	StyleShort = "short"
	StyleLong  = "long"

	VideoModeTranscript = "transcript"
	VideoModeNarrative  = "narrative"
)

// DefaultPreferences apply when nothing was stored for a chat.
var DefaultPreferences = map[PreferenceKey]string{
	PrefStyle:     StyleLong,
	PrefVideoMode: VideoModeNarrative,
}

type Consent struct {
	ChatID     int64
	Accepted   bool
	AcceptedAt time.Time
}
