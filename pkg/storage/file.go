// Package storage holds the file types shared by storage adapters and the
// synchronization engine.
package storage

// File is a registration request for a file already uploaded to the channel.
type File struct {
	Name      string
	MimeType  string
	Size      int64
	MessageID int64
}

// Entry is a single file in the storage listing.
type Entry struct {
	ID   string
	Name string
	Path string
}
