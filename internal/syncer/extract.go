package syncer

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/mwantia/chansync/pkg/channel"
)

var ErrNoAttachment = errors.New("message has no file attachment")

const defaultMimeType = "application/octet-stream"

// preferredExtensions overrides mime.ExtensionsByType, which returns its
// candidates sorted alphabetically rather than by preference.
var preferredExtensions = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"video/mp4":        ".mp4",
	"video/x-matroska": ".mkv",
	"video/quicktime":  ".mov",
	"audio/mpeg":       ".mp3",
	"audio/ogg":        ".ogg",
	"audio/mp4":        ".m4a",
	"application/pdf":  ".pdf",
	"application/zip":  ".zip",
	"text/plain":       ".txt",
}

// Attachment is the file metadata extracted from a channel message.
type Attachment struct {
	MessageID int64
	Name      string
	MimeType  string
	Size      int64
}

// Extract derives the file name, MIME type and size announced by msg.
// Messages without media return ErrNoAttachment; unusable media returns an
// *ExtractionError.
func Extract(msg channel.Message) (Attachment, error) {
	media := msg.Media
	if media == nil {
		return Attachment{}, ErrNoAttachment
	}
	if media.Size < 0 {
		return Attachment{}, &ExtractionError{MessageID: msg.ID, Reason: fmt.Sprintf("negative size %d", media.Size)}
	}

	switch media.Kind {
	case channel.MediaPhoto:
		return Attachment{
			MessageID: msg.ID,
			Name:      fmt.Sprintf("photo_%d.jpg", msg.ID),
			MimeType:  "image/jpeg",
			Size:      media.Size,
		}, nil

	case channel.MediaDocument:
		mimeType := strings.TrimSpace(media.MimeType)
		if mimeType == "" {
			mimeType = defaultMimeType
		}

		name := strings.TrimSpace(media.FileName)
		if strings.ContainsAny(name, "/\x00") {
			return Attachment{}, &ExtractionError{MessageID: msg.ID, Reason: fmt.Sprintf("invalid file name '%s'", media.FileName)}
		}
		if name == "" {
			switch {
			case media.Video:
				name = fmt.Sprintf("video_%d%s", msg.ID, guessExtension(mimeType, ".mp4"))
			case media.Audio:
				name = fmt.Sprintf("audio_%d%s", msg.ID, guessExtension(mimeType, ".mp3"))
			default:
				name = fmt.Sprintf("file_%d%s", msg.ID, guessExtension(mimeType, ".bin"))
			}
		}

		return Attachment{
			MessageID: msg.ID,
			Name:      name,
			MimeType:  mimeType,
			Size:      media.Size,
		}, nil
	}

	return Attachment{}, &ExtractionError{MessageID: msg.ID, Reason: fmt.Sprintf("unsupported media kind '%s'", media.Kind)}
}

func guessExtension(mimeType, fallback string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}
	if ext, ok := preferredExtensions[base]; ok {
		return ext
	}
	if base == defaultMimeType {
		return fallback
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return fallback
}
