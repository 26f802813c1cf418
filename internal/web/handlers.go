package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"strconv"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/ops"
	"github.com/hpungsan/legible/internal/readability"
)

// maxFormOverhead is room for form encoding around the document text.
const maxFormOverhead = 64 * 1024

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /reports: recorded reports, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workspace := q.Get("workspace")

	input := ops.ListInput{
		Workspace:      ptrString(workspace),
		Source:         q.Get("source"),
		Status:         q.Get("status"),
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Reports",
			Version: h.renderer.version,
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Workspace:  workspace,
		Source:     input.Source,
		Status:     input.Status,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleDetail handles GET /reports/{id}: one report with its rendered source.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("report ID is required"))
		return
	}

	rep, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, rep)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   rep.Source,
			Version: h.renderer.version,
		},
		Report:       rep,
		RenderedHTML: h.renderer.renderMarkdown(rep.SourceText),
		PlainText:    readability.Normalize(rep.SourceText),
	})
}

// HandleCheck handles POST /check: score pasted text and record it.
func (h *Handlers) HandleCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileBytes+maxFormOverhead)
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	text := r.FormValue("text")
	record := true
	out, err := ops.Check(r.Context(), h.db, h.cfg, ops.CheckInput{
		Text:      &text,
		Source:    r.FormValue("source"),
		Record:    &record,
		Workspace: r.FormValue("workspace"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := "/reports/" + out.ReportID
	switch {
	case isHTMX(r):
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, out)
	default:
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// HandleDelete handles DELETE /reports/{id}: soft-delete a report.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("report ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	switch {
	case isHTMX(r):
		w.Header().Set("HX-Redirect", "/reports")
		w.WriteHeader(http.StatusOK)
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	default:
		http.Redirect(w, r, "/reports", http.StatusFound)
	}
}

// HandlePurge handles POST /reports/purge: permanently remove soft-deleted reports.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest(`confirm parameter must be "true"`))
		return
	}

	input := ops.PurgeInput{
		Workspace: ptrString(r.FormValue("workspace")),
	}
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	default:
		http.Redirect(w, r, "/reports?include_deleted=true", http.StatusFound)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
