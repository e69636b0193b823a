package core

import "time"

// Message is the domain model for a chat message as broadcast to the room.
type Message struct {
	ID        int64
	Username  string
	Text      string
	IsAdmin   bool
	CreatedAt time.Time
	// File is set for attachment messages.
	File *FileAttachment
}

// FileAttachment carries the metadata of an uploaded file.
type FileAttachment struct {
	Filename        string
	StorageFilename string
	URL             string
	FileType        string
	FileSize        int64
}
