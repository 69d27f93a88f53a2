// Package domain defines the comment subsystem's data model. Comments and
// anonymous-identity assignments are persisted as JSON documents in the
// key-value store (one comment log and one identity map per post), so these
// types carry JSON tags rather than ORM mappings.
package domain

import "time"

// Comment is a single anonymous comment on a blog post.
//
// Fields:
//   - ID: unique identifier within the post (UUID string).
//   - Author: generated pseudonym ("anon1", "anon2", …); never user-supplied.
//   - Text: comment body, trimmed of surrounding whitespace, non-empty.
//   - Timestamp: server-assigned UTC creation time (ISO-8601 on the wire).
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CommentLog is the append-only sequence of comments for one post, in the
// order the store observed the appends.
type CommentLog []Comment

// IdentityMap maps a requester fingerprint to its assigned pseudonym for one
// post. Entries are created once and never updated or removed.
type IdentityMap map[string]string
