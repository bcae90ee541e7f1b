package engine

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/formbridge/formbridge/internal/models"
	"github.com/formbridge/formbridge/internal/services/mapping"
)

// RuleHandlers contains the mapping rule endpoint handlers
type RuleHandlers struct {
	engine *Engine
}

// NewRuleHandlers creates a new instance of RuleHandlers
func NewRuleHandlers(engine *Engine) *RuleHandlers {
	return &RuleHandlers{engine: engine}
}

// ListRules handles GET /api/v1/rules
func (rh *RuleHandlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rh.engine.mappings.Export()})
}

// SetRule handles PUT /api/v1/rules/{qid}. The rule variant comes as a
// tagged envelope; setting overwrites any previous rule for the qid.
func (rh *RuleHandlers) SetRule(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	qid := mux.Vars(r)["qid"]
	var env models.RuleEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	rule, err := models.DecodeRule(env)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err.Error())
		return
	}

	// A sheet-column rule should point at a registered source. The source
	// may still disappear later, which resolution tolerates.
	if sheet, ok := rule.(models.SheetColumnRule); ok {
		if _, exists := rh.engine.sources.Get(sheet.SourceID); !exists {
			writeError(w, http.StatusBadRequest, "Invalid rule", "source_id does not reference a registered source")
			return
		}
	}

	if err := rh.engine.mappings.SetRule(r.Context(), qid, rule); err != nil {
		rh.engine.logger.Errorf("Failed to set rule for %s: %v", qid, err)
		writeError(w, http.StatusInternalServerError, "Failed to set rule", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"qid": qid, "rule": models.EncodeRule(rule)})
}

// ClearRule handles DELETE /api/v1/rules/{qid}
func (rh *RuleHandlers) ClearRule(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	qid := mux.Vars(r)["qid"]
	if err := rh.engine.mappings.ClearRule(r.Context(), qid); err != nil {
		rh.engine.logger.Errorf("Failed to clear rule for %s: %v", qid, err)
		writeError(w, http.StatusInternalServerError, "Failed to clear rule", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusDeleted})
}

// ClearAllRules handles DELETE /api/v1/rules
func (rh *RuleHandlers) ClearAllRules(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	if err := rh.engine.mappings.ClearAll(r.Context()); err != nil {
		rh.engine.logger.Errorf("Failed to clear rules: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear rules", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusDeleted})
}

// AutoMap handles POST /api/v1/rules/automap: proposes sheet-column rules
// for unmapped questions whose label matches a column name, merges them into
// the store, and reports what was added.
func (rh *RuleHandlers) AutoMap(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	proposals := mapping.AutoMap(
		rh.engine.sources.List(),
		rh.engine.questions.List(),
		rh.engine.mappings.Rules(),
	)

	added := make(map[string]models.RuleEnvelope, len(proposals))
	for qid, rule := range proposals {
		if err := rh.engine.mappings.SetRule(r.Context(), qid, rule); err != nil {
			rh.engine.logger.Errorf("Failed to save auto-mapped rule for %s: %v", qid, err)
			writeError(w, http.StatusInternalServerError, "Failed to save auto-mapped rules", err.Error())
			return
		}
		added[qid] = models.EncodeRule(rule)
	}

	rh.engine.logger.Infof("Auto-map added %d rules", len(added))
	writeJSON(w, http.StatusOK, map[string]interface{}{"added": added})
}

// ExportRules handles GET /api/v1/rules/export: the persisted JSON form of
// the rule store.
func (rh *RuleHandlers) ExportRules(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	writeJSON(w, http.StatusOK, rh.engine.mappings.Export())
}

// ImportRules handles POST /api/v1/rules/import: replaces the rule store
// with a sanitized imported set. Unknown variants are dropped, never fatal.
func (rh *RuleHandlers) ImportRules(w http.ResponseWriter, r *http.Request) {
	rh.engine.TrackOperation()
	defer rh.engine.UntrackOperation()

	var envelopes map[string]models.RuleEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelopes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "expected a qid-to-rule object")
		return
	}

	rules := make(map[string]models.Rule, len(envelopes))
	dropped := 0
	for qid, env := range envelopes {
		if qid == "" {
			dropped++
			continue
		}
		rule, err := models.DecodeRule(env)
		if err != nil {
			dropped++
			continue
		}
		rules[qid] = rule
	}

	if err := rh.engine.mappings.Replace(r.Context(), rules); err != nil {
		rh.engine.logger.Errorf("Failed to import rules: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to import rules", err.Error())
		return
	}

	rh.engine.logger.Infof("Imported %d rules (%d dropped)", len(rules), dropped)
	writeJSON(w, http.StatusOK, map[string]interface{}{"imported": len(rules), "dropped": dropped})
}
