// Package repository declares the storage interfaces the snippet core is
// written against. The sqlstore package implements them over SQL.
//
// Implementations report a missing row as apperror.NotFound and wrap every
// other failure as a plain error; the service layer classifies those as
// storage faults.
package repository

import (
	"context"

	"github.com/sakif/snippet-store/internal/model"
)

// VersionRepository is the append-only Version Store. Versions are created
// and read, never updated; they are only removed together with their parent.
type VersionRepository interface {
	// Create allocates a new identity, stamps the current time and stores
	// content under snippetID.
	Create(ctx context.Context, snippetID, content string) (*model.Version, error)
	GetByID(ctx context.Context, id string) (*model.Version, error)
	// ListBySnippet returns every Version of snippetID in no particular order.
	ListBySnippet(ctx context.Context, snippetID string) ([]model.Version, error)
	// DeleteBySnippet removes all Versions of snippetID and reports how many
	// were removed. Zero is not an error.
	DeleteBySnippet(ctx context.Context, snippetID string) (int64, error)
}

// SnippetRepository stores the mutable Snippet rows, keyed by (owner, name).
type SnippetRepository interface {
	// Upsert inserts the snippet or, when (OwnerID, Name) already exists,
	// overwrites its language and updated_at. On return snippet holds the
	// stored ID and timestamps.
	Upsert(ctx context.Context, snippet *model.Snippet) error
	GetByName(ctx context.Context, ownerID, name string) (*model.Snippet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error)
	// ListWithLatestContent is ListByOwner joined with each snippet's latest
	// Version content. A missing Version yields empty content.
	ListWithLatestContent(ctx context.Context, ownerID string) ([]model.SnippetWithContent, error)
	SetLatestVersion(ctx context.Context, snippetID, versionID string) error
	// Delete removes the snippet row and returns it so the caller can
	// cascade to its Versions.
	Delete(ctx context.Context, ownerID, name string) (*model.Snippet, error)
}

// Store is an open storage handle. InTx runs fn against a Store bound to a
// single transaction: committed when fn returns nil, rolled back otherwise.
// Calling InTx on a transaction-bound Store reuses the same transaction.
type Store interface {
	Snippets() SnippetRepository
	Versions() VersionRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
}
