package engine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/formbridge/formbridge/internal/models"
	"github.com/formbridge/formbridge/internal/services/source"
	"github.com/formbridge/formbridge/internal/tabular"
)

// SourceHandlers contains the source and selection endpoint handlers
type SourceHandlers struct {
	engine *Engine
}

// NewSourceHandlers creates a new instance of SourceHandlers
func NewSourceHandlers(engine *Engine) *SourceHandlers {
	return &SourceHandlers{engine: engine}
}

// SourceSummary is the list form of a source: everything except rows.
type SourceSummary struct {
	ID        string   `json:"source_id"`
	Name      string   `json:"source_name"`
	FetchURL  string   `json:"fetch_url"`
	KeyColumn string   `json:"key_column"`
	Columns   []string `json:"columns"`
	RowCount  int      `json:"row_count"`
}

func summarize(src models.Source) SourceSummary {
	return SourceSummary{
		ID:        src.ID,
		Name:      src.Name,
		FetchURL:  src.FetchURL,
		KeyColumn: src.KeyColumn,
		Columns:   src.Columns,
		RowCount:  len(src.Rows),
	}
}

// AddSourceRequest registers a new source.
type AddSourceRequest struct {
	Name      string `json:"source_name"`
	FetchURL  string `json:"fetch_url"`
	KeyColumn string `json:"key_column"`
}

// SelectRowRequest chooses a row of a source by index.
type SelectRowRequest struct {
	RowIndex int `json:"row_index"`
}

// ListSources handles GET /api/v1/sources
func (sh *SourceHandlers) ListSources(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sources := sh.engine.sources.List()
	summaries := make([]SourceSummary, len(sources))
	for i, src := range sources {
		summaries[i] = summarize(src)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": summaries})
}

// AddSource handles POST /api/v1/sources
func (sh *SourceHandlers) AddSource(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	var req AddSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.FetchURL == "" {
		writeError(w, http.StatusBadRequest, "Required fields missing", "fetch_url is required")
		return
	}

	src, err := sh.engine.sources.Register(r.Context(), req.Name, req.FetchURL, req.KeyColumn)
	if err != nil {
		sh.writeSourceError(w, err, "Failed to register source")
		return
	}

	writeJSON(w, http.StatusCreated, summarize(src))
}

// ShowSource handles GET /api/v1/sources/{source_id}
func (sh *SourceHandlers) ShowSource(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sourceID := mux.Vars(r)["source_id"]
	src, ok := sh.engine.sources.Get(sourceID)
	if !ok {
		writeError(w, http.StatusNotFound, "Source not found", "")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// RemoveSource handles DELETE /api/v1/sources/{source_id}. Removing a source
// cascade-deletes every mapping rule referencing it and its selection entry.
func (sh *SourceHandlers) RemoveSource(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sourceID := mux.Vars(r)["source_id"]
	if err := sh.engine.sources.Remove(r.Context(), sourceID); err != nil {
		sh.writeSourceError(w, err, "Failed to remove source")
		return
	}
	if err := sh.engine.mappings.ClearRulesForSource(r.Context(), sourceID); err != nil {
		sh.engine.logger.Errorf("Failed to cascade rule removal for source %s: %v", sourceID, err)
		writeError(w, http.StatusInternalServerError, "Failed to remove dependent mapping rules", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusDeleted})
}

// ReloadSource handles POST /api/v1/sources/{source_id}/reload
func (sh *SourceHandlers) ReloadSource(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sourceID := mux.Vars(r)["source_id"]
	src, err := sh.engine.sources.Reload(r.Context(), sourceID)
	if err != nil {
		sh.writeSourceError(w, err, "Failed to reload source")
		return
	}
	writeJSON(w, http.StatusOK, summarize(src))
}

// SearchRows handles GET /api/v1/sources/{source_id}/rows?q=
func (sh *SourceHandlers) SearchRows(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sourceID := mux.Vars(r)["source_id"]
	matches, err := sh.engine.sources.Search(sourceID, r.URL.Query().Get("q"))
	if err != nil {
		sh.writeSourceError(w, err, "Failed to search rows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": matches})
}

// SelectRow handles PUT /api/v1/sources/{source_id}/selection
func (sh *SourceHandlers) SelectRow(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sourceID := mux.Vars(r)["source_id"]
	var req SelectRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if err := sh.engine.sources.Select(r.Context(), sourceID, req.RowIndex); err != nil {
		sh.writeSourceError(w, err, "Failed to select row")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusSuccess})
}

// ClearSelection handles DELETE /api/v1/sources/{source_id}/selection
func (sh *SourceHandlers) ClearSelection(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	sourceID := mux.Vars(r)["source_id"]
	if err := sh.engine.sources.ClearSelection(r.Context(), sourceID); err != nil {
		sh.writeSourceError(w, err, "Failed to clear selection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusSuccess})
}

// ShowSelection handles GET /api/v1/selection
func (sh *SourceHandlers) ShowSelection(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	writeJSON(w, http.StatusOK, map[string]interface{}{"selection": sh.engine.sources.Selection()})
}

// ClearAllSelections handles DELETE /api/v1/selection
func (sh *SourceHandlers) ClearAllSelections(w http.ResponseWriter, r *http.Request) {
	sh.engine.TrackOperation()
	defer sh.engine.UntrackOperation()

	if err := sh.engine.sources.ClearAllSelections(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear selection", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusSuccess})
}

func (sh *SourceHandlers) writeSourceError(w http.ResponseWriter, err error, message string) {
	var fetchErr *tabular.FetchError
	switch {
	case errors.Is(err, source.ErrNotFound):
		writeError(w, http.StatusNotFound, "Source not found", "")
	case errors.Is(err, source.ErrReloadInFlight):
		writeError(w, http.StatusConflict, "Reload already in progress", "")
	case errors.Is(err, source.ErrRowOutOfRange):
		writeError(w, http.StatusBadRequest, "Row index out of range", "")
	case errors.As(err, &fetchErr):
		sh.engine.logger.Warnf("%s: %v", message, err)
		writeError(w, http.StatusBadGateway, message, err.Error())
	default:
		sh.engine.logger.Errorf("%s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, err.Error())
	}
}
