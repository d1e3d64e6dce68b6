package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-store/internal/apperror"
	"github.com/sakif/snippet-store/internal/model"
	"github.com/sakif/snippet-store/internal/service"
)

// maxBodyBytes bounds an upsert request. A control byte escapes to six
// bytes (\u00XX), so content at the service limit can grow sixfold on the
// wire; the extra MiB covers the name, language and JSON framing.
const maxBodyBytes = 6*service.MaxContentLength + 1<<20

// SnippetService is what the handler needs from the service layer.
// *service.SnippetService satisfies it; tests may substitute their own.
type SnippetService interface {
	Upsert(ctx context.Context, ownerID, name, language, content string) (*model.SnippetView, error)
	Get(ctx context.Context, ownerID, name, versionID string) (*model.SnippetContentView, error)
	List(ctx context.Context, ownerID string) ([]model.SnippetSummary, error)
	Delete(ctx context.Context, ownerID, name string) error
	ListVersions(ctx context.Context, ownerID, name string) ([]model.VersionSummary, error)
	Search(ctx context.Context, ownerID, keyword string) ([]model.SnippetSummary, error)
}

var _ SnippetService = (*service.SnippetService)(nil)

// SnippetHandler exposes the snippet operations over HTTP.
//
// ROUTES (mounted under /api/users/{ownerID}):
//
//	POST   /snippets                   upsert          200
//	GET    /snippets                   list            200
//	GET    /snippets/{name}            get             200  (?version_id= pins a version)
//	GET    /snippets/{name}/versions   history         200
//	DELETE /snippets/{name}            delete          204
//	GET    /search                     search          200  (?keyword=)
type SnippetHandler struct {
	svc    SnippetService
	logger *slog.Logger
}

func NewSnippetHandler(svc SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{svc: svc, logger: logger}
}

// Routes mounts the handlers on r. r is expected to carry an {ownerID}
// URL parameter from an enclosing route.
func (h *SnippetHandler) Routes(r chi.Router) {
	r.Post("/snippets", h.HandleUpsert)
	r.Get("/snippets", h.HandleList)
	r.Get("/snippets/{name}", h.HandleGet)
	r.Get("/snippets/{name}/versions", h.HandleListVersions)
	r.Delete("/snippets/{name}", h.HandleDelete)
	r.Get("/search", h.HandleSearch)
}

// === WIRE SHAPES ===

type upsertRequest struct {
	SnippetName string `json:"snippet_name"`
	Language    string `json:"language"`
	CodeContent string `json:"code_content"`
}

type upsertResponse struct {
	SnippetName string    `json:"snippet_name"`
	Language    string    `json:"language"`
	UpdatedAt   time.Time `json:"updated_at"`
	CodeContent string    `json:"code_content"`
}

type snippetResponse struct {
	SnippetName string    `json:"snippet_name"`
	Language    string    `json:"language"`
	CodeContent string    `json:"code_content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// summaryResponse has no code_content: list and search are metadata only.
type summaryResponse struct {
	SnippetName string    `json:"snippet_name"`
	Language    string    `json:"language"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type versionResponse struct {
	VersionID   string    `json:"version_id"`
	CodeContent string    `json:"code_content"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSummaries(in []model.SnippetSummary) []summaryResponse {
	out := make([]summaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, summaryResponse{
			SnippetName: s.Name,
			Language:    s.Language,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return out
}

// === HANDLERS ===

// HandleUpsert creates or updates a snippet.
//
// HTTP: POST /api/users/{ownerID}/snippets
// REQUEST BODY: {"snippet_name": "hello.py", "language": "python", "code_content": "print(1)"}
func (h *SnippetHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, apperror.InvalidArgument("code_content", "request body too large"))
			return
		}
		writeError(w, apperror.InvalidArgument("body", "invalid JSON body"))
		return
	}

	view, err := h.svc.Upsert(r.Context(), ownerID(r), req.SnippetName, req.Language, req.CodeContent)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{
		SnippetName: view.Name,
		Language:    view.Language,
		UpdatedAt:   view.UpdatedAt,
		CodeContent: view.Content,
	})
}

// HandleGet returns one snippet with its latest content, or with the
// content of ?version_id= when given.
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), ownerID(r), snippetName(r), r.URL.Query().Get("version_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippetResponse{
		SnippetName: view.Name,
		Language:    view.Language,
		CodeContent: view.Content,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	})
}

func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(summaries))
}

// HandleDelete removes a snippet and its history. 204 No Content on success.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), ownerID(r), snippetName(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListVersions returns every version of a snippet, newest first.
func (h *SnippetHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.ListVersions(r.Context(), ownerID(r), snippetName(r))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]versionResponse, 0, len(history))
	for _, v := range history {
		out = append(out, versionResponse{
			VersionID:   v.ID,
			CodeContent: v.Content,
			CreatedAt:   v.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSearch matches ?keyword= against each snippet's latest content.
func (h *SnippetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.Search(r.Context(), ownerID(r), r.URL.Query().Get("keyword"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(summaries))
}

// === URL PARAMETERS ===
//
// net/http has already decoded r.URL.Path. chi routes on r.URL.RawPath
// instead when that is set (the request used an encoding such as %2F that
// Path cannot represent), and only then does a parameter arrive escaped.
// Decoding unconditionally would turn a literal "50%41.py" into "50A.py".

func ownerID(r *http.Request) string {
	return pathParam(r, "ownerID")
}

func snippetName(r *http.Request) string {
	return pathParam(r, "name")
}

func pathParam(r *http.Request, key string) string {
	param := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return param
	}
	if v, err := url.PathUnescape(param); err == nil {
		return v
	}
	return param
}
