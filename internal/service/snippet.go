// Package service contains the Snippet Directory: the business rules that
// sit between transport (HTTP, CLI) and storage.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler / CLI (transport) → parses requests, writes responses
//	Service       (business)  → validates, orders writes, classifies errors
//	Repository    (data)      → reads/writes rows
//
// The service is written against repository.Store, not a concrete
// database. Tests hand it an in-memory sqlite store; main hands it
// whichever dialect was configured.
//
// WRITE ORDERING:
// Every write runs inside Store.InTx, so a failure part-way leaves nothing
// visible:
//
//	upsert: Snippets.Upsert → Versions.Create → Snippets.SetLatestVersion
//	delete: Snippets.Delete → Versions.DeleteBySnippet
//
// There is no application lock. Two concurrent upserts of the same key
// both create a Version; whichever pointer update commits last is latest.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/snippet-store/internal/apperror"
	"github.com/sakif/snippet-store/internal/model"
	"github.com/sakif/snippet-store/internal/repository"
)

// Validation limits.
const (
	MaxSnippetNameLength = 200     // bytes
	MaxContentLength     = 1 << 20 // 1 MiB
)

// SnippetService implements the six snippet operations.
type SnippetService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewSnippetService(store repository.Store, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		store:  store,
		logger: logger,
	}
}

// Upsert writes content as the newest Version of (ownerID, name), creating
// the snippet on first write, and returns what was stored.
//
// Language and content are both required inputs on every call; there is no
// partial update. Content is stored verbatim, including an empty string.
func (s *SnippetService) Upsert(ctx context.Context, ownerID, name, language, content string) (*model.SnippetView, error) {
	// === VALIDATION ===
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(content) > MaxContentLength {
		return nil, apperror.InvalidArgument("code_content",
			fmt.Sprintf("code content must be %d bytes or less", MaxContentLength))
	}

	// === ONE TRANSACTION ===
	// If SetLatestVersion fails the rollback also discards the new Version
	// and the language/updated_at change made by Upsert.
	var (
		snippet *model.Snippet
		version *model.Version
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		snippet = &model.Snippet{OwnerID: ownerID, Name: name, Language: language}
		if err := tx.Snippets().Upsert(ctx, snippet); err != nil {
			return err
		}

		var err error
		version, err = tx.Versions().Create(ctx, snippet.ID, content)
		if err != nil {
			return err
		}

		if err := tx.Snippets().SetLatestVersion(ctx, snippet.ID, version.ID); err != nil {
			return err
		}
		snippet.LatestVersionID = &version.ID
		return nil
	})
	if err != nil {
		return nil, s.writeFailure("upsert", ownerID, name, err)
	}

	s.logger.Info("snippet upserted",
		slog.String("owner_id", ownerID),
		slog.String("name", name),
		slog.String("version_id", version.ID),
		slog.Int("content_bytes", len(content)),
	)

	return &model.SnippetView{
		Name:      snippet.Name,
		Language:  snippet.Language,
		UpdatedAt: snippet.UpdatedAt.UTC(),
		Content:   version.Content,
	}, nil
}

// Get returns the snippet with the content of its latest Version, or of the
// Version named by versionID when that is non-empty.
//
// A pinned versionID must belong to this snippet. An id from another
// snippet (or another owner) is reported exactly like a missing one.
func (s *SnippetService) Get(ctx context.Context, ownerID, name, versionID string) (*model.SnippetContentView, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	snippet, err := s.store.Snippets().GetByName(ctx, ownerID, name)
	if err != nil {
		return nil, s.readFailure("get", err)
	}

	var version *model.Version
	if versionID != "" {
		version, err = s.store.Versions().GetByID(ctx, versionID)
		if err != nil {
			return nil, s.readFailure("get", err)
		}
		if version.SnippetID != snippet.ID {
			s.logger.Warn("version requested through a foreign snippet",
				slog.String("owner_id", ownerID),
				slog.String("name", name),
				slog.String("version_id", versionID),
			)
			return nil, apperror.NotFound("version", versionID)
		}
	} else {
		if snippet.LatestVersionID == nil {
			return nil, apperror.NotFound("version", "latest of "+name)
		}
		version, err = s.store.Versions().GetByID(ctx, *snippet.LatestVersionID)
		if err != nil {
			return nil, s.readFailure("get", err)
		}
	}

	return &model.SnippetContentView{
		Name:      snippet.Name,
		Language:  snippet.Language,
		Content:   version.Content,
		CreatedAt: snippet.CreatedAt.UTC(),
		UpdatedAt: snippet.UpdatedAt.UTC(),
	}, nil
}

// List returns metadata for every snippet of ownerID. No content.
func (s *SnippetService) List(ctx context.Context, ownerID string) ([]model.SnippetSummary, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	snippets, err := s.store.Snippets().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.readFailure("list", err)
	}

	summaries := make([]model.SnippetSummary, 0, len(snippets))
	for i := range snippets {
		summaries = append(summaries, summaryOf(&snippets[i]))
	}
	return summaries, nil
}

// Delete removes the snippet and every one of its Versions.
func (s *SnippetService) Delete(ctx context.Context, ownerID, name string) error {
	if err := validateOwner(ownerID); err != nil {
		return err
	}

	var removed int64
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		// Snippet row first: once it is gone no read path reaches the
		// Versions, whatever happens to the cleanup below.
		snippet, err := tx.Snippets().Delete(ctx, ownerID, name)
		if err != nil {
			return err
		}
		removed, err = tx.Versions().DeleteBySnippet(ctx, snippet.ID)
		return err
	})
	if err != nil {
		return s.writeFailure("delete", ownerID, name, err)
	}

	s.logger.Info("snippet deleted",
		slog.String("owner_id", ownerID),
		slog.String("name", name),
		slog.Int64("versions_removed", removed),
	)
	return nil
}

// ListVersions returns the full history of a snippet, newest first.
func (s *SnippetService) ListVersions(ctx context.Context, ownerID, name string) ([]model.VersionSummary, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	snippet, err := s.store.Snippets().GetByName(ctx, ownerID, name)
	if err != nil {
		return nil, s.readFailure("list versions", err)
	}

	versions, err := s.store.Versions().ListBySnippet(ctx, snippet.ID)
	if err != nil {
		return nil, s.readFailure("list versions", err)
	}

	// The repository returns history unordered. Ties on created_at fall
	// back to the id, which sorts in creation order.
	sort.SliceStable(versions, func(i, j int) bool {
		if !versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].CreatedAt.After(versions[j].CreatedAt)
		}
		return versions[i].ID > versions[j].ID
	})

	history := make([]model.VersionSummary, 0, len(versions))
	for i := range versions {
		entry := versions[i].Summary()
		entry.CreatedAt = entry.CreatedAt.UTC()
		history = append(history, entry)
	}
	return history, nil
}

// Search returns the snippets whose latest content contains keyword,
// compared case-insensitively. A snippet with no resolvable latest Version
// is searched as empty content.
func (s *SnippetService) Search(ctx context.Context, ownerID, keyword string) ([]model.SnippetSummary, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(keyword) == "" {
		return nil, apperror.InvalidArgument("keyword", "keyword is required")
	}

	rows, err := s.store.Snippets().ListWithLatestContent(ctx, ownerID)
	if err != nil {
		return nil, s.readFailure("search", err)
	}

	needle := strings.ToLower(keyword)
	matches := make([]model.SnippetSummary, 0)
	for i := range rows {
		if strings.Contains(strings.ToLower(rows[i].LatestContent), needle) {
			matches = append(matches, summaryOf(&rows[i].Snippet))
		}
	}

	s.logger.Debug("snippet search",
		slog.String("owner_id", ownerID),
		slog.Int("scanned", len(rows)),
		slog.Int("matched", len(matches)),
	)
	return matches, nil
}

// readFailure classifies err and logs it when it is a storage fault.
// NotFound is a normal answer and is not logged.
func (s *SnippetService) readFailure(op string, err error) error {
	err = apperror.Classify(op, err)
	if errors.Is(err, apperror.ErrStorage) {
		s.logger.Error("snippet read failed",
			slog.String("op", op),
			slog.Any("error", apperror.Cause(err)),
		)
	}
	return err
}

func (s *SnippetService) writeFailure(op, ownerID, name string, err error) error {
	err = apperror.Classify(op, err)
	if errors.Is(err, apperror.ErrStorage) {
		s.logger.Error("snippet write failed",
			slog.String("op", op),
			slog.String("owner_id", ownerID),
			slog.String("name", name),
			slog.Any("error", apperror.Cause(err)),
		)
	}
	return err
}

func summaryOf(snippet *model.Snippet) model.SnippetSummary {
	summary := snippet.Summary()
	summary.UpdatedAt = summary.UpdatedAt.UTC()
	return summary
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperror.InvalidArgument("owner_id", "owner id is required")
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperror.InvalidArgument("snippet_name", "snippet name is required")
	}
	if len(name) > MaxSnippetNameLength {
		return apperror.InvalidArgument("snippet_name",
			fmt.Sprintf("snippet name must be %d bytes or less", MaxSnippetNameLength))
	}
	return nil
}
