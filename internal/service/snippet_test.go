package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-store/internal/apperror"
	"github.com/sakif/snippet-store/internal/model"
	"github.com/sakif/snippet-store/internal/repository"
	"github.com/sakif/snippet-store/internal/repository/sqlstore"
)

// =========================================================================
// TEST STORE
// =========================================================================
//
// The service runs against a real in-memory sqlite store, so the tests
// cover the SQL and the transaction ordering together. Faults that sqlite
// will not produce on demand are injected by faultyStore below.

func newTestStore(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T) (*SnippetService, *sqlstore.DB) {
	t.Helper()
	db := newTestStore(t)
	return NewSnippetService(db, newTestLogger()), db
}

// faultyStore wraps a Store and fails selected repository calls, including
// calls made through a transaction it started.
type faultyStore struct {
	repository.Store
	setLatestErr error
	listErr      error
	deleteVerErr error
}

func (f *faultyStore) Snippets() repository.SnippetRepository {
	return &faultySnippets{SnippetRepository: f.Store.Snippets(), f: f}
}

func (f *faultyStore) Versions() repository.VersionRepository {
	return &faultyVersions{VersionRepository: f.Store.Versions(), f: f}
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.InTx(ctx, func(tx repository.Store) error {
		inner := *f
		inner.Store = tx
		return fn(&inner)
	})
}

type faultySnippets struct {
	repository.SnippetRepository
	f *faultyStore
}

func (s *faultySnippets) SetLatestVersion(ctx context.Context, snippetID, versionID string) error {
	if s.f.setLatestErr != nil {
		return s.f.setLatestErr
	}
	return s.SnippetRepository.SetLatestVersion(ctx, snippetID, versionID)
}

func (s *faultySnippets) ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error) {
	if s.f.listErr != nil {
		return nil, s.f.listErr
	}
	return s.SnippetRepository.ListByOwner(ctx, ownerID)
}

type faultyVersions struct {
	repository.VersionRepository
	f *faultyStore
}

func (v *faultyVersions) DeleteBySnippet(ctx context.Context, snippetID string) (int64, error) {
	if v.f.deleteVerErr != nil {
		return 0, v.f.deleteVerErr
	}
	return v.VersionRepository.DeleteBySnippet(ctx, snippetID)
}

func mustUpsert(t *testing.T, svc *SnippetService, owner, name, language, content string) {
	t.Helper()
	_, err := svc.Upsert(context.Background(), owner, name, language, content)
	require.NoError(t, err)
}

// =========================================================================
// UPSERT + GET
// =========================================================================

func TestUpsert_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Upsert(ctx, "alice", "hello.py", "python", "print('hi')")
	require.NoError(t, err)
	assert.Equal(t, "hello.py", view.Name)
	assert.Equal(t, "python", view.Language)
	assert.Equal(t, "print('hi')", view.Content)
	assert.False(t, view.UpdatedAt.IsZero())

	got, err := svc.Get(ctx, "alice", "hello.py", "")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", got.Content)
	assert.Equal(t, "python", got.Language)
	assert.True(t, got.UpdatedAt.Equal(view.UpdatedAt))
}

func TestUpsert_UpdateOverwritesLanguageKeepsCreatedAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "x", "python", "a")
	first, err := svc.Get(ctx, "alice", "x", "")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	mustUpsert(t, svc, "alice", "x", "ruby", "b")

	second, err := svc.Get(ctx, "alice", "x", "")
	require.NoError(t, err)
	assert.Equal(t, "ruby", second.Language)
	assert.Equal(t, "b", second.Content)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

// Writing identical content again still counts as an update.
func TestUpsert_SameContentStillCreatesVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "x", "go", "same")
	mustUpsert(t, svc, "alice", "x", "go", "same")

	history, err := svc.ListVersions(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpsert_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name      string
		owner     string
		snippet   string
		content   string
		wantField string
	}{
		{"blank owner", "  ", "x", "c", "owner_id"},
		{"blank name", "alice", "", "c", "snippet_name"},
		{"whitespace name", "alice", " \t", "c", "snippet_name"},
		{"name too long", "alice", strings.Repeat("n", MaxSnippetNameLength+1), "c", "snippet_name"},
		{"content too long", "alice", "x", strings.Repeat("c", MaxContentLength+1), "code_content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), tt.owner, tt.snippet, "go", tt.content)
			require.ErrorIs(t, err, apperror.ErrInvalidArgument)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestUpsert_EmptyContentAllowed(t *testing.T) {
	svc, _ := newTestService(t)

	mustUpsert(t, svc, "alice", "empty", "", "")

	got, err := svc.Get(context.Background(), "alice", "empty", "")
	require.NoError(t, err)
	assert.Equal(t, "", got.Content)
}

// A failed pointer update must leave the snippet exactly as it was: old
// language, old updated_at, and no extra Version.
func TestUpsert_PointerFailureRollsBack(t *testing.T) {
	db := newTestStore(t)
	svc := NewSnippetService(db, newTestLogger())
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "x", "python", "v1")
	before, err := svc.Get(ctx, "alice", "x", "")
	require.NoError(t, err)

	driverErr := errors.New("connection lost")
	broken := NewSnippetService(&faultyStore{Store: db, setLatestErr: driverErr}, newTestLogger())

	_, err = broken.Upsert(ctx, "alice", "x", "go", "v2")
	require.ErrorIs(t, err, apperror.ErrStorage)
	assert.ErrorIs(t, err, driverErr)

	after, err := svc.Get(ctx, "alice", "x", "")
	require.NoError(t, err)
	assert.Equal(t, "python", after.Language)
	assert.Equal(t, "v1", after.Content)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))

	history, err := svc.ListVersions(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpsert_FirstWriteFailureLeavesNoSnippet(t *testing.T) {
	db := newTestStore(t)
	broken := NewSnippetService(&faultyStore{Store: db, setLatestErr: errors.New("boom")}, newTestLogger())
	ctx := context.Background()

	_, err := broken.Upsert(ctx, "alice", "new", "go", "body")
	require.ErrorIs(t, err, apperror.ErrStorage)

	svc := NewSnippetService(db, newTestLogger())
	_, err = svc.Get(ctx, "alice", "new", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// Concurrent upserts of one key all land as Versions; the latest is one of
// them. No lock orders the writers.
func TestUpsert_ConcurrentSameKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Upsert(ctx, "alice", "race", "go", fmt.Sprintf("w%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := svc.ListVersions(ctx, "alice", "race")
	require.NoError(t, err)
	assert.Len(t, history, writers)

	latest, err := svc.Get(ctx, "alice", "race", "")
	require.NoError(t, err)
	assert.Equal(t, history[0].Content, latest.Content, "latest pointer must name the newest version")

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustUpsert(t, svc, "alice", "x", "go", "c")

	_, err := svc.Get(ctx, "alice", "missing", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Get(ctx, "alice", "x", "no-such-version")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Get(ctx, "", "x", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}

// =========================================================================
// HISTORY
// =========================================================================

func TestListVersions_NewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, c := range []string{"c1", "c2", "c3"} {
		mustUpsert(t, svc, "alice", "h", "go", c)
	}

	history, err := svc.ListVersions(ctx, "alice", "h")
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "c3", history[0].Content)
	assert.Equal(t, "c2", history[1].Content)
	assert.Equal(t, "c1", history[2].Content)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.After(history[i-1].CreatedAt))
	}
}

func TestGet_HistoricalPin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, c := range []string{"c1", "c2", "c3"} {
		mustUpsert(t, svc, "alice", "h", "go", c)
	}
	history, err := svc.ListVersions(ctx, "alice", "h")
	require.NoError(t, err)
	oldest := history[len(history)-1]

	pinned, err := svc.Get(ctx, "alice", "h", oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", pinned.Content)

	latest, err := svc.Get(ctx, "alice", "h", "")
	require.NoError(t, err)
	assert.Equal(t, "c3", latest.Content)
}

// A version id that exists but belongs to another snippet, of the same or
// of another owner, is not reachable through this snippet.
func TestGet_ForeignVersionIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "mine", "go", "alice-secret")
	mustUpsert(t, svc, "alice", "other", "go", "other-body")
	mustUpsert(t, svc, "bob", "mine", "go", "bob-secret")

	aliceHistory, err := svc.ListVersions(ctx, "alice", "mine")
	require.NoError(t, err)
	foreign := aliceHistory[0].ID

	_, err = svc.Get(ctx, "alice", "other", foreign)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Get(ctx, "bob", "mine", foreign)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListVersions_UnknownSnippet(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListVersions(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// LIST + DELETE
// =========================================================================

func TestList_OwnerIsolationAndNoContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "shared", "go", "alice body")
	mustUpsert(t, svc, "alice", "solo", "rust", "fn main() {}")
	mustUpsert(t, svc, "bob", "shared", "python", "bob body")

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)

	for _, s := range list {
		assert.NotEqual(t, "python", s.Language, "bob's snippet leaked into alice's list")
	}

	empty, err := svc.List(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestList_StorageFault(t *testing.T) {
	db := newTestStore(t)
	svc := NewSnippetService(&faultyStore{Store: db, listErr: errors.New("disk I/O error")}, newTestLogger())

	_, err := svc.List(context.Background(), "alice")
	assert.ErrorIs(t, err, apperror.ErrStorage)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
}

func TestDelete_ThenNotFoundTwice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustUpsert(t, svc, "alice", "x", "go", "c")

	require.NoError(t, svc.Delete(ctx, "alice", "x"))

	_, err := svc.Get(ctx, "alice", "x", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = svc.Delete(ctx, "alice", "x")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDelete_Cascades(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	for _, c := range []string{"c1", "c2", "c3"} {
		mustUpsert(t, svc, "alice", "x", "go", c)
	}
	history, err := svc.ListVersions(ctx, "alice", "x")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", "x"))

	_, err = svc.ListVersions(ctx, "alice", "x")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	for _, v := range history {
		_, err := db.Versions().GetByID(ctx, v.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "version %s survived the cascade", v.ID)
	}

	// Recreating the name starts a fresh history.
	mustUpsert(t, svc, "alice", "x", "go", "again")
	fresh, err := svc.ListVersions(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestDelete_CleanupFailureKeepsSnippet(t *testing.T) {
	db := newTestStore(t)
	svc := NewSnippetService(db, newTestLogger())
	ctx := context.Background()
	mustUpsert(t, svc, "alice", "x", "go", "c")

	broken := NewSnippetService(&faultyStore{Store: db, deleteVerErr: errors.New("timeout")}, newTestLogger())
	err := broken.Delete(ctx, "alice", "x")
	require.ErrorIs(t, err, apperror.ErrStorage)

	got, err := svc.Get(ctx, "alice", "x", "")
	require.NoError(t, err, "rolled-back delete must leave the snippet readable")
	assert.Equal(t, "c", got.Content)
}

// =========================================================================
// SEARCH
// =========================================================================

func TestSearch_CaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "A", "python", "def foo(): pass")
	mustUpsert(t, svc, "alice", "B", "python", "class Bar")
	mustUpsert(t, svc, "bob", "C", "python", "foo everywhere")

	got, err := svc.Search(ctx, "alice", "FOO")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)
}

func TestSearch_OnlyLatestContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "x", "go", "needle")
	mustUpsert(t, svc, "alice", "x", "go", "haystack")

	got, err := svc.Search(ctx, "alice", "needle")
	require.NoError(t, err)
	assert.Empty(t, got, "older versions are not searched")
	assert.NotNil(t, got)
}

func TestSearch_BlankKeyword(t *testing.T) {
	svc, _ := newTestService(t)

	for _, kw := range []string{"", "   ", "\t\n"} {
		_, err := svc.Search(context.Background(), "alice", kw)
		assert.ErrorIs(t, err, apperror.ErrInvalidArgument, "keyword %q", kw)
	}
}

// A snippet whose latest pointer is dangling searches as empty content
// instead of failing the whole search.
func TestSearch_DanglingPointerIsEmpty(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, "alice", "ok", "go", "func foo()")
	mustUpsert(t, svc, "alice", "broken", "go", "func foo()")

	broken, err := db.Snippets().GetByName(ctx, "alice", "broken")
	require.NoError(t, err)
	require.NoError(t, db.Snippets().SetLatestVersion(ctx, broken.ID, "gone"))

	got, err := svc.Search(ctx, "alice", "foo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Name)

	_, err = svc.Get(ctx, "alice", "broken", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
