package domain

import (
	"mime"
	"strings"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaUnknown  MediaKind = "unknown"
)

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/rtf":    true,
	"application/json":   true,
	"application/xml":    true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.oasis.opendocument.text":                                 true,
}

// KindOf classifies a mime type. Parameters such as charset are ignored.
func KindOf(mimeType string) MediaKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaImage
	case strings.HasPrefix(mt, "video/"):
		return MediaVideo
	case strings.HasPrefix(mt, "audio/"):
		return MediaAudio
	case strings.HasPrefix(mt, "text/"), documentTypes[mt]:
		return MediaDocument
	default:
		return MediaUnknown
	}
}
