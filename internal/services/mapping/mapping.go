// Package mapping is the core of the system: the rule store that associates
// questions with value-producing rules, the resolution engine that turns
// rules plus a row selection into final per-question values, and the auto-map
// heuristic that proposes column rules from matching labels.
package mapping

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/formbridge/formbridge/internal/models"
	"github.com/formbridge/formbridge/internal/storage"
	"github.com/formbridge/formbridge/pkg/logger"
)

// Service owns the mapping rule store: at most one rule per qid. Every
// mutation brings the in-memory map to a consistent state first and then
// issues exactly one write to the key-value store.
type Service struct {
	store  storage.Store
	logger *logger.Logger

	mu    sync.RWMutex
	rules map[string]models.Rule

	// saveMu serializes marshal+Put so concurrent mutations cannot persist
	// their snapshots out of order.
	saveMu sync.Mutex
}

// NewService creates the mapping service.
func NewService(store storage.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
		rules:  make(map[string]models.Rule),
	}
}

// Load hydrates the rule store. Malformed or unknown persisted entries are
// dropped with a warning, never fatal.
func (s *Service) Load(ctx context.Context) error {
	data, found, err := s.store.Get(ctx, storage.KeyRules)
	if err != nil {
		return fmt.Errorf("failed to load mapping rules: %w", err)
	}
	if !found {
		return nil
	}

	rules, dropped, err := models.UnmarshalRules(data)
	if err != nil {
		s.logger.Warnf("Dropping malformed persisted mapping rules: %v", err)
		return nil
	}
	for _, qid := range dropped {
		s.logger.Warnf("Dropped unreadable mapping rule for %s", qid)
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	s.logger.Infof("Loaded %d mapping rules", len(rules))
	return nil
}

// Rules returns a snapshot of the rule store.
func (s *Service) Rules() map[string]models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Rule, len(s.rules))
	for qid, rule := range s.rules {
		out[qid] = rule
	}
	return out
}

// Get returns the rule for one qid.
func (s *Service) Get(qid string) (models.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[qid]
	return rule, ok
}

// SetRule stores a rule for qid, overwriting any previous rule.
func (s *Service) SetRule(ctx context.Context, qid string, rule models.Rule) error {
	if qid == "" {
		return fmt.Errorf("qid is required")
	}
	if rule == nil {
		return fmt.Errorf("rule is required")
	}

	s.mu.Lock()
	s.rules[qid] = rule
	s.mu.Unlock()
	return s.save(ctx)
}

// ClearRule removes the rule for qid. Clearing an unmapped qid is a no-op.
func (s *Service) ClearRule(ctx context.Context, qid string) error {
	s.mu.Lock()
	delete(s.rules, qid)
	s.mu.Unlock()
	return s.save(ctx)
}

// ClearAll empties the rule store.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.rules = make(map[string]models.Rule)
	s.mu.Unlock()
	return s.save(ctx)
}

// RulesReferencingSource returns the qids whose rule reads from the given
// source, in stable order.
func (s *Service) RulesReferencingSource(sourceID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var qids []string
	for qid, rule := range s.rules {
		if sheet, ok := rule.(models.SheetColumnRule); ok && sheet.SourceID == sourceID {
			qids = append(qids, qid)
		}
	}
	sort.Strings(qids)
	return qids
}

// ClearRulesForSource deletes every rule referencing the given source. This
// is the cascade invoked when a source is removed.
func (s *Service) ClearRulesForSource(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	removed := 0
	for qid, rule := range s.rules {
		if sheet, ok := rule.(models.SheetColumnRule); ok && sheet.SourceID == sourceID {
			delete(s.rules, qid)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Infof("Removed %d mapping rules referencing source %s", removed, sourceID)
	}
	return s.save(ctx)
}

// Replace swaps the whole rule store, used by rule import.
func (s *Service) Replace(ctx context.Context, rules map[string]models.Rule) error {
	if rules == nil {
		rules = map[string]models.Rule{}
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	return s.save(ctx)
}

// Export returns the rule store in its tagged wire form.
func (s *Service) Export() map[string]models.RuleEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.RuleEnvelope, len(s.rules))
	for qid, rule := range s.rules {
		out[qid] = models.EncodeRule(rule)
	}
	return out
}

func (s *Service) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := models.MarshalRules(s.rules)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode mapping rules: %w", err)
	}
	if err := s.store.Put(ctx, storage.KeyRules, data); err != nil {
		return fmt.Errorf("failed to persist mapping rules: %w", err)
	}
	return nil
}
