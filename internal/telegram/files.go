package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

var ErrFileTooLarge = errors.New("file exceeds download limit")

// Attachment is the media part of an incoming message.
type Attachment struct {
	FileID   string
	MimeType string
	FileName string
	Size     int64
}

// AttachmentFrom picks the media of msg. Photos use the largest size.
// Animations are checked before documents because Telegram sends both.
func AttachmentFrom(msg *models.Message) (Attachment, bool) {
	switch {
	case msg == nil:
		return Attachment{}, false
	case len(msg.Photo) > 0:
		p := msg.Photo[len(msg.Photo)-1]
		return Attachment{FileID: p.FileID, MimeType: "image/jpeg", Size: int64(p.FileSize)}, true
	case msg.Video != nil:
		return Attachment{FileID: msg.Video.FileID, MimeType: orDefault(msg.Video.MimeType, "video/mp4"), Size: int64(msg.Video.FileSize)}, true
	case msg.VideoNote != nil:
		return Attachment{FileID: msg.VideoNote.FileID, MimeType: "video/mp4", Size: int64(msg.VideoNote.FileSize)}, true
	case msg.Animation != nil:
		return Attachment{FileID: msg.Animation.FileID, MimeType: orDefault(msg.Animation.MimeType, "video/mp4"), Size: int64(msg.Animation.FileSize)}, true
	case msg.Voice != nil:
		return Attachment{FileID: msg.Voice.FileID, MimeType: orDefault(msg.Voice.MimeType, "audio/ogg"), Size: int64(msg.Voice.FileSize)}, true
	case msg.Audio != nil:
		return Attachment{FileID: msg.Audio.FileID, MimeType: msg.Audio.MimeType, FileName: msg.Audio.FileName, Size: int64(msg.Audio.FileSize)}, true
	case msg.Document != nil:
		return Attachment{FileID: msg.Document.FileID, MimeType: msg.Document.MimeType, FileName: msg.Document.FileName, Size: int64(msg.Document.FileSize)}, true
	default:
		return Attachment{}, false
	}
}

// DownloadFile downloads a file from Telegram by file ID, refusing anything
// larger than maxSize bytes. It also returns the file path on Telegram's side.
func DownloadFile(ctx context.Context, b *bot.Bot, fileID string, maxSize int64) ([]byte, string, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	if maxSize > 0 && int64(file.FileSize) > maxSize {
		return nil, "", ErrFileTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, maxSize)
	if err != nil {
		return nil, "", err
	}
	return data, file.FilePath, nil
}

func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read file data: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file data: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// ResolveMime trusts the declared type unless it is missing or generic, then
// tries the file extension and finally content sniffing.
func ResolveMime(declared, name string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ext := filepath.Ext(name); ext != "" {
		if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
			return byExt
		}
	}
	return http.DetectContentType(data)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
