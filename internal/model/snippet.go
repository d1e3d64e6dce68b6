// Package model defines the data structures used throughout the application.
//
// TWO KINDS OF RECORD:
//   - Snippet is the mutable slot, one per (OwnerID, Name). It carries the
//     language label and a pointer to the Version currently considered latest.
//   - Version is an immutable content blob. Every write creates a new one;
//     none is ever updated, and the only way one disappears is when its
//     parent Snippet is deleted.
//
// The `db:"..."` tags are read by sqlx when scanning rows into these structs.
package model

import "time"

// Snippet is the mutable record for one named snippet of one owner.
//
// LatestVersionID is nil only inside the write transaction that creates the
// Snippet, before its first Version is linked. Outside that window it always
// points at a Version whose SnippetID equals this Snippet's ID.
type Snippet struct {
	ID              string    `json:"id"         db:"id"`
	OwnerID         string    `json:"ownerId"    db:"owner_id"`
	Name            string    `json:"name"       db:"name"`
	Language        string    `json:"language"   db:"language"`
	LatestVersionID *string   `json:"-"          db:"latest_version_id"`
	CreatedAt       time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt"  db:"updated_at"`
}

// Version is one immutable content submission. SnippetID is a plain
// back-reference used for filtering; it never changes after creation.
type Version struct {
	ID        string    `json:"id"        db:"id"`
	SnippetID string    `json:"snippetId" db:"snippet_id"`
	Content   string    `json:"content"   db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SnippetWithContent pairs a Snippet with the content of its latest Version.
// LatestContent is empty when the pointer is missing or dangling.
type SnippetWithContent struct {
	Snippet
	LatestContent string `db:"latest_content"`
}

// SnippetView is returned by a successful upsert.
type SnippetView struct {
	Name      string
	Language  string
	UpdatedAt time.Time
	Content   string
}

// SnippetContentView is returned by get: snippet metadata plus the content
// of the resolved Version (latest or pinned).
type SnippetContentView struct {
	Name      string
	Language  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnippetSummary is the metadata-only shape used by list and search.
// It has no content field.
type SnippetSummary struct {
	Name      string
	Language  string
	UpdatedAt time.Time
}

// VersionSummary is one entry of a snippet's history.
type VersionSummary struct {
	ID        string
	Content   string
	CreatedAt time.Time
}

// Summary returns the metadata-only view of s.
func (s *Snippet) Summary() SnippetSummary {
	return SnippetSummary{
		Name:      s.Name,
		Language:  s.Language,
		UpdatedAt: s.UpdatedAt,
	}
}

// Summary returns the history-entry view of v.
func (v *Version) Summary() VersionSummary {
	return VersionSummary{
		ID:        v.ID,
		Content:   v.Content,
		CreatedAt: v.CreatedAt,
	}
}
