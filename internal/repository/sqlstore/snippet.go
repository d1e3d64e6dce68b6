package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/snippet-store/internal/apperror"
	"github.com/sakif/snippet-store/internal/model"
	"github.com/sakif/snippet-store/internal/repository"
)

var _ repository.SnippetRepository = (*SnippetDB)(nil)

const snippetColumns = `id, owner_id, name, language, latest_version_id, created_at, updated_at`

// SnippetDB is the SnippetRepository over either the pool or a transaction.
//
// sqlx.ExtContext is the interface *sqlx.DB and *sqlx.Tx share, so the same
// methods serve both. Rebind is on it too, which is how one query string
// works for sqlite (?) and postgres ($1).
type SnippetDB struct {
	q sqlx.ExtContext
}

// timestamp is the single source of "now" for rows written by this package.
// UTC with microsecond precision: postgres stores no finer, and a value read
// back must equal the one written.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Upsert creates the snippet or overwrites language and updated_at in place.
//
// KEY CONCEPTS:
//
//  1. ON CONFLICT ... DO UPDATE:
//     The UNIQUE (owner_id, name) constraint does the existence check inside
//     the database, so two concurrent first writes of the same name cannot
//     both insert. sqlite and postgres accept the same syntax, including the
//     `excluded` pseudo-table holding the row that failed to insert.
//
//  2. NO RETURNING:
//     After the statement we read the row back with GetByName. On conflict
//     the generated id is discarded and the existing one kept; the read-back
//     is what tells the caller which id won.
func (r *SnippetDB) Upsert(ctx context.Context, snippet *model.Snippet) error {
	now := timestamp()

	_, err := r.q.ExecContext(ctx, r.q.Rebind(
		`INSERT INTO snippets (id, owner_id, name, language, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, name) DO UPDATE
		 SET language = excluded.language, updated_at = excluded.updated_at`),
		xid.New().String(),
		snippet.OwnerID,
		snippet.Name,
		snippet.Language,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: upserting snippet %s/%s: %w", snippet.OwnerID, snippet.Name, err)
	}

	stored, err := r.GetByName(ctx, snippet.OwnerID, snippet.Name)
	if err != nil {
		return err
	}
	*snippet = *stored
	return nil
}

// GetByName looks up one snippet. A miss is apperror.NotFound.
func (r *SnippetDB) GetByName(ctx context.Context, ownerID, name string) (*model.Snippet, error) {
	var snippet model.Snippet

	// sqlx.GetContext scans the single row into the struct by db tag, so
	// column order in the SELECT no longer has to match a Scan call.
	err := sqlx.GetContext(ctx, r.q, &snippet, r.q.Rebind(
		`SELECT `+snippetColumns+`
		 FROM snippets
		 WHERE owner_id = ? AND name = ?`),
		ownerID, name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", name)
		}
		return nil, fmt.Errorf("sqlstore: getting snippet %s/%s: %w", ownerID, name, err)
	}

	return &snippet, nil
}

// ListByOwner returns every snippet of ownerID in creation order.
func (r *SnippetDB) ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error) {
	snippets := []model.Snippet{}

	err := sqlx.SelectContext(ctx, r.q, &snippets, r.q.Rebind(
		`SELECT `+snippetColumns+`
		 FROM snippets
		 WHERE owner_id = ?
		 ORDER BY created_at, id`),
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing snippets of %s: %w", ownerID, err)
	}

	return snippets, nil
}

// ListWithLatestContent joins each snippet with the content of the Version
// its pointer names.
//
// LEFT JOIN keeps snippets whose pointer is NULL or names a Version that no
// longer exists; COALESCE turns the missing content into ''.
func (r *SnippetDB) ListWithLatestContent(ctx context.Context, ownerID string) ([]model.SnippetWithContent, error) {
	rows := []model.SnippetWithContent{}

	err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(
		`SELECT s.id, s.owner_id, s.name, s.language, s.latest_version_id,
		        s.created_at, s.updated_at,
		        COALESCE(v.content, '') AS latest_content
		 FROM snippets s
		 LEFT JOIN snippet_versions v ON v.id = s.latest_version_id
		 WHERE s.owner_id = ?
		 ORDER BY s.created_at, s.id`),
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing snippet content of %s: %w", ownerID, err)
	}

	return rows, nil
}

// SetLatestVersion repoints the snippet at versionID.
func (r *SnippetDB) SetLatestVersion(ctx context.Context, snippetID, versionID string) error {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`UPDATE snippets SET latest_version_id = ? WHERE id = ?`),
		versionID, snippetID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: setting latest version of %s: %w", snippetID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippetID)
	}

	return nil
}

// Delete removes the snippet row and returns what it held.
//
// The row is read first so the caller learns the id to cascade on. The
// DELETE still checks RowsAffected: a concurrent delete between the two
// statements makes this one a NotFound rather than a silent success.
func (r *SnippetDB) Delete(ctx context.Context, ownerID, name string) (*model.Snippet, error) {
	snippet, err := r.GetByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}

	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`DELETE FROM snippets WHERE id = ?`),
		snippet.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: deleting snippet %s/%s: %w", ownerID, name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("snippet", name)
	}

	return snippet, nil
}
