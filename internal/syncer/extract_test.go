package syncer

import (
	"testing"

	"github.com/mwantia/chansync/pkg/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		msg      channel.Message
		wantName string
		wantMime string
	}{
		{
			name:     "document with file name",
			msg:      channel.Message{ID: 1, Media: &channel.Media{Kind: channel.MediaDocument, FileName: "report.pdf", MimeType: "application/pdf", Size: 5}},
			wantName: "report.pdf",
			wantMime: "application/pdf",
		},
		{
			name:     "video without file name",
			msg:      channel.Message{ID: 2, Media: &channel.Media{Kind: channel.MediaDocument, MimeType: "video/mp4", Video: true}},
			wantName: "video_2.mp4",
			wantMime: "video/mp4",
		},
		{
			name:     "audio without file name",
			msg:      channel.Message{ID: 3, Media: &channel.Media{Kind: channel.MediaDocument, MimeType: "audio/mpeg", Audio: true}},
			wantName: "audio_3.mp3",
			wantMime: "audio/mpeg",
		},
		{
			name:     "video with unknown type falls back",
			msg:      channel.Message{ID: 4, Media: &channel.Media{Kind: channel.MediaDocument, MimeType: "video/x-zz-unknown", Video: true}},
			wantName: "video_4.mp4",
			wantMime: "video/x-zz-unknown",
		},
		{
			name:     "document without type",
			msg:      channel.Message{ID: 5, Media: &channel.Media{Kind: channel.MediaDocument}},
			wantName: "file_5.bin",
			wantMime: "application/octet-stream",
		},
		{
			name:     "photo",
			msg:      channel.Message{ID: 6, Media: &channel.Media{Kind: channel.MediaPhoto, Size: 2048}},
			wantName: "photo_6.jpg",
			wantMime: "image/jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att, err := Extract(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.ID, att.MessageID)
			assert.Equal(t, tt.wantName, att.Name)
			assert.Equal(t, tt.wantMime, att.MimeType)
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	_, err := Extract(textMessage(1))
	require.ErrorIs(t, err, ErrNoAttachment)

	_, err = Extract(channel.Message{ID: 2, Media: &channel.Media{Kind: "sticker"}})
	require.ErrorIs(t, err, ErrExtraction)

	_, err = Extract(channel.Message{ID: 3, Media: &channel.Media{Kind: channel.MediaDocument, FileName: "../etc/passwd"}})
	require.ErrorIs(t, err, ErrExtraction)

	_, err = Extract(channel.Message{ID: 4, Media: &channel.Media{Kind: channel.MediaDocument, FileName: "a", Size: -1}})
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, int64(4), extractionErr.MessageID)
}
