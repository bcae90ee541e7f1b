package engine

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server is the HTTP surface of the engine.
type Server struct {
	engine            *Engine
	router            *mux.Router
	sourceHandler     *SourceHandlers
	questionHandler   *QuestionHandlers
	ruleHandler       *RuleHandlers
	resolutionHandler *ResolutionHandlers
}

// NewServer builds the router with all routes and middleware.
func NewServer(engine *Engine) *Server {
	s := &Server{
		engine:            engine,
		router:            mux.NewRouter(),
		sourceHandler:     NewSourceHandlers(engine),
		questionHandler:   NewQuestionHandlers(engine),
		ruleHandler:       NewRuleHandlers(engine),
		resolutionHandler: NewResolutionHandlers(engine),
	}
	s.setupRoutes()
	s.setupMiddleware()
	return s
}

func (s *Server) setupMiddleware() {
	// CORS middleware: the widget runs inside the form host's origin.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Request logging middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			s.engine.logger.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Source registry and row selection
	api.HandleFunc("/sources", s.sourceHandler.ListSources).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.sourceHandler.AddSource).Methods(http.MethodPost)
	api.HandleFunc("/sources/{source_id}", s.sourceHandler.ShowSource).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source_id}", s.sourceHandler.RemoveSource).Methods(http.MethodDelete)
	api.HandleFunc("/sources/{source_id}/reload", s.sourceHandler.ReloadSource).Methods(http.MethodPost)
	api.HandleFunc("/sources/{source_id}/rows", s.sourceHandler.SearchRows).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source_id}/selection", s.sourceHandler.SelectRow).Methods(http.MethodPut)
	api.HandleFunc("/sources/{source_id}/selection", s.sourceHandler.ClearSelection).Methods(http.MethodDelete)
	api.HandleFunc("/selection", s.sourceHandler.ShowSelection).Methods(http.MethodGet)
	api.HandleFunc("/selection", s.sourceHandler.ClearAllSelections).Methods(http.MethodDelete)

	// Question catalog
	api.HandleFunc("/questions", s.questionHandler.ListQuestions).Methods(http.MethodGet)
	api.HandleFunc("/questions/refresh", s.questionHandler.RefreshQuestions).Methods(http.MethodPost)

	// Mapping rules
	api.HandleFunc("/rules", s.ruleHandler.ListRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.ruleHandler.ClearAllRules).Methods(http.MethodDelete)
	api.HandleFunc("/rules/automap", s.ruleHandler.AutoMap).Methods(http.MethodPost)
	api.HandleFunc("/rules/export", s.ruleHandler.ExportRules).Methods(http.MethodGet)
	api.HandleFunc("/rules/import", s.ruleHandler.ImportRules).Methods(http.MethodPost)
	api.HandleFunc("/rules/{qid}", s.ruleHandler.SetRule).Methods(http.MethodPut)
	api.HandleFunc("/rules/{qid}", s.ruleHandler.ClearRule).Methods(http.MethodDelete)

	// Resolution and delivery
	api.HandleFunc("/resolution", s.resolutionHandler.Resolve).Methods(http.MethodGet)
	api.HandleFunc("/prefill", s.resolutionHandler.Prefill).Methods(http.MethodGet)
	api.HandleFunc("/submissions", s.resolutionHandler.CreateSubmission).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, checks := s.engine.RunHealthChecks()
	response := HealthResponse{Status: StatusHealthy, Checks: checks}
	if !healthy {
		response.Status = StatusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, details string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Message: details,
		Status:  StatusError,
	})
}
