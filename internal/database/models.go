package database

import (
	"database/sql"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations. Callers should test
// with errors.Is; everything else coming out of the store is a wrapped
// driver or transaction failure.
var (
	// ErrNotFound indicates the referenced request identity does not exist.
	ErrNotFound = errors.New("request not found")

	// ErrInvalidKind indicates a content kind outside the enumerated set.
	ErrInvalidKind = errors.New("invalid content kind")
)

// ContentKind enumerates the kinds of material a client can attach to a
// request. The items table carries a matching CHECK constraint.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindPhoto ContentKind = "photo"
	KindVideo ContentKind = "video"
	KindVoice ContentKind = "voice"
)

// Valid reports whether k is one of the enumerated content kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindPhoto, KindVideo, KindVoice:
		return true
	}
	return false
}

// Request represents one client submission routed to a branch. Branch stays
// NULL until the client picks a destination; AdminResponse stays NULL until
// a staff member replies. Items are loaded in insertion order, which is the
// order the client produced them.
type Request struct {
	ID            string         `db:"id"`
	RequesterID   int64          `db:"requester_id"`
	Branch        sql.NullString `db:"branch"`
	AdminResponse sql.NullString `db:"admin_response"`
	CreatedAt     time.Time      `db:"created_at"`

	Items []ContentItem `db:"-"`
}

// ContentItem is one unit of client-submitted material belonging to exactly
// one request. Deleting the request cascades to its items.
type ContentItem struct {
	ID        uint        `db:"id"`
	RequestID string      `db:"request_id"`
	Kind      ContentKind `db:"kind"`
	Content   string      `db:"content"`
	CreatedAt time.Time   `db:"created_at"`
}

// RequestChanges describes a partial update of a request. Nil fields are
// left untouched; supplied fields are written atomically.
type RequestChanges struct {
	Branch        *string
	AdminResponse *string
}
