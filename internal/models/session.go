package models

import (
	"time"
)

// UploadedFile is an image accepted into a session.
type UploadedFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	Hash       string    `json:"hash,omitempty"`
	Data       []byte    `json:"-"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// SessionStatus is derived from the session fields, it is never stored.
type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"       // no file
	StatusReady      SessionStatus = "ready"      // file uploaded, nothing extracted
	StatusProcessing SessionStatus = "processing" // extraction in flight
	StatusCompleted  SessionStatus = "completed"  // extracted text available
)

// SessionSnapshot is a point-in-time copy of a session's state.
type SessionSnapshot struct {
	ID            string        `json:"id"`
	Status        SessionStatus `json:"status"`
	File          *UploadedFile `json:"file,omitempty"`
	CardType      CardType      `json:"cardType,omitempty"`
	ExtractedText string        `json:"extractedText"`
	Processing    bool          `json:"processing"`
	LastError     string        `json:"lastError,omitempty"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NoticeVariant mirrors the toast variants of the web page.
type NoticeVariant string

const (
	NoticeDefault     NoticeVariant = "default"
	NoticeDestructive NoticeVariant = "destructive"
)

// Notice is a user-facing message attached to API responses.
type Notice struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Variant     NoticeVariant `json:"variant"`
}
