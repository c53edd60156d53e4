package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/insights"
	"github.com/hpungsan/mate/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	rt       *ops.Runtime
	renderer *Renderer
	logger   *zap.Logger
}

// StateResponse is the JSON body of GET /api/state.
type StateResponse struct {
	Objective string             `json:"objective"`
	Status    string             `json:"status,omitempty"`
	Summary   string             `json:"summary"`
	Links     []insights.Link    `json:"links"`
	Insights  *insights.Insights `json:"insights,omitempty"`
	Visited   []string           `json:"visited"`
	Latest    *ops.ContextItem   `json:"latest"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

// HandleSession handles GET /: the live session dashboard.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.state(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := SessionPageData{
		PageData: PageData{
			Title:   "Session",
			Version: h.renderer.version,
			Nav:     "session",
		},
		Objective:   state.Objective,
		Status:      state.Status,
		SummaryHTML: h.renderer.renderMarkdown(state.Summary),
		SummaryPath: h.cfg.SummaryPath(),
		Links:       state.Links,
		Insights:    state.Insights,
		Visited:     state.Visited,
		Latest:      state.Latest,
	}
	if state.Insights != nil {
		data.InsightHTML = h.renderer.renderMarkdown(state.Insights.SummaryText())
	}
	if state.UpdatedAt != nil {
		data.UpdatedAt = *state.UpdatedAt
	}
	h.renderer.renderPage(w, r, "session", data)
}

// HandleState handles GET /api/state: the dashboard state as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.state(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, state)
}

// state collects the summary, presented values, ledger and latest context.
func (h *Handlers) state(r *http.Request) (*StateResponse, error) {
	summary, err := ops.Summary(h.cfg, h.rt)
	if err != nil {
		return nil, err
	}
	visited, err := ops.Visited(h.db, h.rt)
	if err != nil {
		return nil, err
	}
	noText := false
	latest, err := ops.Latest(h.db, h.rt, ops.LatestInput{IncludeText: &noText})
	if err != nil {
		return nil, err
	}

	out := &StateResponse{
		Objective: h.objective(),
		Summary:   summary.Summary,
		Links:     []insights.Link{},
		Visited:   visited.URLs,
		Latest:    latest.Item,
	}

	if h.rt == nil {
		return out, nil
	}
	if h.rt.Board != nil {
		snap := h.rt.Board.Snapshot()
		out.Status = snap.Status
		out.Insights = snap.Insights
		if len(snap.Links) > 0 {
			out.Links = snap.Links
		}
		if !snap.UpdatedAt.IsZero() {
			out.UpdatedAt = &snap.UpdatedAt
		}
	}
	if len(out.Links) == 0 && h.rt.Links != nil {
		if links, ok := h.rt.Links.Get(); ok {
			out.Links = links
		}
	}
	return out, nil
}

// HandleContexts handles GET /contexts: the stored context history.
func (h *Handlers) HandleContexts(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListContexts(h.db, ops.ListContextsInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "contexts", ContextsPageData{
		PageData: PageData{
			Title:   "Contexts",
			Version: h.renderer.version,
			Nav:     "contexts",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleContext handles GET /contexts/{id}: one context document.
func (h *Handlers) HandleContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("context ID is required"))
		return
	}

	item, err := ops.GetContext(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, item)
		return
	}

	h.renderer.renderPage(w, r, "context", ContextPageData{
		PageData: PageData{
			Title:   "Context " + shortID(item.ID),
			Version: h.renderer.version,
			Nav:     "contexts",
		},
		Item: item,
	})
}

// HandleSuggestions handles GET /suggestions: every link suggested so far.
func (h *Handlers) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Suggestions(h.db, ops.SuggestionsInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "suggestions", SuggestionsPageData{
		PageData: PageData{
			Title:   "Suggestions",
			Version: h.renderer.version,
			Nav:     "suggestions",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleFlush handles POST /flush: reset the session.
func (h *Handlers) HandleFlush(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	result, err := ops.Flush(r.Context(), h.db, h.cfg, h.rt, ops.FlushInput{
		KeepHistory: r.FormValue("keep_history") == "true",
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("session flushed via dashboard",
		zap.Int64("visited", result.VisitedCleared),
		zap.Int64("contexts", result.ContextsPurged))

	h.respondAction(w, r, "/", result.Message, result)
}

// HandleInsights handles POST /insights: one on-demand insight bundle.
func (h *Handlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	var gen *insights.Generator
	if h.rt != nil {
		gen = h.rt.Generator
	}

	summary, err := ops.Summary(h.cfg, h.rt)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.GenerateInsights(r.Context(), h.db, h.rt, gen, ops.InsightsInput{
		Objective: h.objective(),
		Summary:   summary.Summary,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="insights">` + string(h.renderer.renderMarkdown(result.Insights.SummaryText())) + `</div>`))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandlePurge handles POST /contexts/purge: delete stored contexts.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	input := ops.PurgeInput{}
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

	h.respondAction(w, r, "/contexts", result.Message, result)
}

// respondAction answers a form POST: an HTML fragment for htmx, JSON when
// asked, otherwise a redirect.
func (h *Handlers) respondAction(w http.ResponseWriter, r *http.Request, redirect, message string, result any) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="action-result">` + template.HTMLEscapeString(message) + `</div>`))
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handlers) objective() string {
	if h.rt != nil && h.rt.Objective != "" {
		return h.rt.Objective
	}
	return h.cfg.Objective
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// shortID truncates a ULID for titles.
func shortID(id string) string {
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
