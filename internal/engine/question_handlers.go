package engine

import (
	"errors"
	"net/http"

	"github.com/formbridge/formbridge/internal/formapi"
)

// QuestionHandlers contains the question catalog endpoint handlers
type QuestionHandlers struct {
	engine *Engine
}

// NewQuestionHandlers creates a new instance of QuestionHandlers
func NewQuestionHandlers(engine *Engine) *QuestionHandlers {
	return &QuestionHandlers{engine: engine}
}

// ListQuestions handles GET /api/v1/questions
func (qh *QuestionHandlers) ListQuestions(w http.ResponseWriter, r *http.Request) {
	qh.engine.TrackOperation()
	defer qh.engine.UntrackOperation()

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": qh.engine.questions.List()})
}

// RefreshQuestions handles POST /api/v1/questions/refresh. The catalog is
// replaced wholesale with the remote form's current questions.
func (qh *QuestionHandlers) RefreshQuestions(w http.ResponseWriter, r *http.Request) {
	qh.engine.TrackOperation()
	defer qh.engine.UntrackOperation()

	questions, err := qh.engine.questions.Refresh(r.Context())
	if err != nil {
		writeRemoteError(qh.engine, w, err, "Failed to refresh questions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// writeRemoteError maps form API failures onto HTTP statuses: a missing
// configuration blocks the operation as a precondition, remote failures are
// surfaced verbatim as a bad gateway.
func writeRemoteError(e *Engine, w http.ResponseWriter, err error, message string) {
	var remoteErr *formapi.RemoteError
	switch {
	case errors.Is(err, formapi.ErrNotConfigured):
		writeError(w, http.StatusPreconditionFailed, "Form API not configured", "form.form_id and form.api_key must be set")
	case errors.As(err, &remoteErr):
		e.logger.Warnf("%s: %v", message, err)
		writeError(w, http.StatusBadGateway, message, remoteErr.Error())
	default:
		e.logger.Errorf("%s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, err.Error())
	}
}
