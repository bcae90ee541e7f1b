package engine

import (
	"errors"
	"net/http"

	"github.com/formbridge/formbridge/internal/services/mapping"
)

// ResolutionHandlers contains the resolve/prefill/submit endpoint handlers
type ResolutionHandlers struct {
	engine *Engine
}

// NewResolutionHandlers creates a new instance of ResolutionHandlers
func NewResolutionHandlers(engine *Engine) *ResolutionHandlers {
	return &ResolutionHandlers{engine: engine}
}

// ResolutionResponse is the resolve preview: final per-question values plus
// the unsatisfied required questions.
type ResolutionResponse struct {
	Values          map[string]string `json:"values"`
	MissingRequired []string          `json:"missing_required"`
}

// Resolve handles GET /api/v1/resolution
func (dh *ResolutionHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	dh.engine.TrackOperation()
	defer dh.engine.UntrackOperation()

	questions := dh.engine.questions.List()
	res := mapping.Resolve(questions, dh.engine.mappings.Rules(), dh.engine.sources.Selection())

	values := make(map[string]string, len(res.Values))
	for qid, value := range res.Values {
		values[qid] = value.String()
	}
	missing := res.MissingRequired
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, ResolutionResponse{Values: values, MissingRequired: missing})
}

// Prefill handles GET /api/v1/prefill: ordered label/value pairs for the
// host form's set-field-by-label primitive.
func (dh *ResolutionHandlers) Prefill(w http.ResponseWriter, r *http.Request) {
	dh.engine.TrackOperation()
	defer dh.engine.UntrackOperation()

	questions := dh.engine.questions.List()
	res := mapping.Resolve(questions, dh.engine.mappings.Rules(), dh.engine.sources.Selection())
	writeJSON(w, http.StatusOK, map[string]interface{}{"fields": mapping.PrefillPayload(questions, res)})
}

// CreateSubmission handles POST /api/v1/submissions: resolves, validates
// required mappings, and creates a remote submission. Validation failure
// blocks the whole delivery; nothing is ever partially submitted, and a
// remote failure is surfaced without retry.
func (dh *ResolutionHandlers) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	dh.engine.TrackOperation()
	defer dh.engine.UntrackOperation()

	if !dh.engine.formClient.Configured() {
		writeError(w, http.StatusPreconditionFailed, "Form API not configured", "form.form_id and form.api_key must be set")
		return
	}

	questions := dh.engine.questions.List()
	res := mapping.Resolve(questions, dh.engine.mappings.Rules(), dh.engine.sources.Selection())

	body, err := mapping.SubmissionBody(questions, res)
	if err != nil {
		var verr *mapping.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":            "Required mappings unsatisfied",
				"missing_required": verr.Missing,
				"status":           StatusError,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build submission", err.Error())
		return
	}

	submissionID, err := dh.engine.formClient.CreateSubmission(r.Context(), body)
	if err != nil {
		writeRemoteError(dh.engine, w, err, "Failed to create submission")
		return
	}

	dh.engine.logger.Infof("Created submission %s on form %s", submissionID, dh.engine.formClient.FormID())
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"submission_id": submissionID,
		"status":        StatusCreated,
	})
}
