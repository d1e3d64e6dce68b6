package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/snippet-store/internal/apperror"
	"github.com/sakif/snippet-store/internal/model"
	"github.com/sakif/snippet-store/internal/repository"
)

var _ repository.VersionRepository = (*VersionDB)(nil)

// VersionDB is the append-only VersionRepository. There is no Update:
// a Version never changes after Create.
type VersionDB struct {
	q sqlx.ExtContext
}

// Create stores content as a new Version of snippetID.
//
// xid ids begin with a timestamp, so within one process they also sort in
// creation order. History still orders by created_at and uses the id only
// to break ties.
func (r *VersionDB) Create(ctx context.Context, snippetID, content string) (*model.Version, error) {
	version := &model.Version{
		ID:        xid.New().String(),
		SnippetID: snippetID,
		Content:   content,
		CreatedAt: timestamp(),
	}

	_, err := r.q.ExecContext(ctx, r.q.Rebind(
		`INSERT INTO snippet_versions (id, snippet_id, content, created_at)
		 VALUES (?, ?, ?, ?)`),
		version.ID,
		version.SnippetID,
		version.Content,
		version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: creating version of %s: %w", snippetID, err)
	}

	return version, nil
}

func (r *VersionDB) GetByID(ctx context.Context, id string) (*model.Version, error) {
	var version model.Version

	err := sqlx.GetContext(ctx, r.q, &version, r.q.Rebind(
		`SELECT id, snippet_id, content, created_at
		 FROM snippet_versions
		 WHERE id = ?`),
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("version", id)
		}
		return nil, fmt.Errorf("sqlstore: getting version %s: %w", id, err)
	}

	return &version, nil
}

// ListBySnippet returns the Versions of snippetID without ordering them.
// Callers that present history sort it themselves.
func (r *VersionDB) ListBySnippet(ctx context.Context, snippetID string) ([]model.Version, error) {
	versions := []model.Version{}

	err := sqlx.SelectContext(ctx, r.q, &versions, r.q.Rebind(
		`SELECT id, snippet_id, content, created_at
		 FROM snippet_versions
		 WHERE snippet_id = ?`),
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing versions of %s: %w", snippetID, err)
	}

	return versions, nil
}

func (r *VersionDB) DeleteBySnippet(ctx context.Context, snippetID string) (int64, error) {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`DELETE FROM snippet_versions WHERE snippet_id = ?`),
		snippetID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: deleting versions of %s: %w", snippetID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	return n, nil
}
