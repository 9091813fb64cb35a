// Package channel holds the message types shared by channel adapters and the
// synchronization engine.
package channel

import "time"

type MediaKind string

const (
	MediaDocument MediaKind = "document"
	MediaPhoto    MediaKind = "photo"
)

// Message is a single channel post. Media is nil for text-only posts.
type Message struct {
	ID    int64     `json:"id"`
	Date  time.Time `json:"date"`
	Media *Media    `json:"media,omitempty"`
}

// Media describes the attachment of a message as reported by the bridge.
// Video and Audio are set when the document carries the matching attribute.
type Media struct {
	Kind     MediaKind `json:"kind"`
	FileName string    `json:"fileName,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	Size     int64     `json:"size"`
	Video    bool      `json:"video,omitempty"`
	Audio    bool      `json:"audio,omitempty"`
}
