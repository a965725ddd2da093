package telegram

import (
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentFrom(t *testing.T) {
	tests := []struct {
		name string
		msg  *models.Message
		id   string
		mime string
	}{
		{"photo picks largest", &models.Message{Photo: []models.PhotoSize{{FileID: "small"}, {FileID: "big"}}}, "big", "image/jpeg"},
		{"video", &models.Message{Video: &models.Video{FileID: "v", MimeType: "video/quicktime"}}, "v", "video/quicktime"},
		{"video note", &models.Message{VideoNote: &models.VideoNote{FileID: "n"}}, "n", "video/mp4"},
		{"voice default mime", &models.Message{Voice: &models.Voice{FileID: "o"}}, "o", "audio/ogg"},
		{"audio", &models.Message{Audio: &models.Audio{FileID: "a", MimeType: "audio/mpeg"}}, "a", "audio/mpeg"},
		{"animation wins over document", &models.Message{
			Animation: &models.Animation{FileID: "gif", MimeType: "video/mp4"},
			Document:  &models.Document{FileID: "doc", MimeType: "video/mp4"},
		}, "gif", "video/mp4"},
		{"document", &models.Message{Document: &models.Document{FileID: "d", MimeType: "application/pdf", FileName: "a.pdf"}}, "d", "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := AttachmentFrom(tt.msg)
			require.True(t, ok)
			assert.Equal(t, tt.id, a.FileID)
			assert.Equal(t, tt.mime, a.MimeType)
		})
	}

	_, ok := AttachmentFrom(&models.Message{Text: "oi"})
	assert.False(t, ok)
	_, ok = AttachmentFrom(nil)
	assert.False(t, ok)
}

func TestResolveMime(t *testing.T) {
	assert.Equal(t, "application/pdf", ResolveMime("application/pdf", "x.bin", nil))
	assert.True(t, strings.HasPrefix(ResolveMime("", "pagina.html", nil), "text/html"))
	assert.Equal(t, "image/png", ResolveMime("application/octet-stream", "", []byte("\x89PNG\r\n\x1a\n0000")))
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = readLimited(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	data, err = readLimited(strings.NewReader("123456"), 0)
	require.NoError(t, err)
	assert.Len(t, data, 6)
}
