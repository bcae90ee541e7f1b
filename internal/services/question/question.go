// Package question holds the catalog of target-form questions.
package question

import (
	"context"
	"fmt"
	"sync"

	"github.com/formbridge/formbridge/internal/models"
	"github.com/formbridge/formbridge/pkg/logger"
)

// Lister fetches the question definitions of the target form.
type Lister interface {
	ListQuestions(ctx context.Context) ([]models.Question, error)
}

// Service owns the question catalog. The catalog is replaced wholesale on
// every load and held in memory only; the remote form is the system of
// record.
type Service struct {
	lister Lister
	logger *logger.Logger

	mu        sync.RWMutex
	questions []models.Question
}

// NewService creates the question service.
func NewService(lister Lister, log *logger.Logger) *Service {
	return &Service{lister: lister, logger: log}
}

// Refresh replaces the catalog with the remote form's current questions.
func (s *Service) Refresh(ctx context.Context) ([]models.Question, error) {
	questions, err := s.lister.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh questions: %w", err)
	}

	s.mu.Lock()
	s.questions = questions
	s.mu.Unlock()

	s.logger.Infof("Loaded %d mappable questions", len(questions))
	return s.List(), nil
}

// List returns a snapshot of the catalog in form order.
func (s *Service) List() []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Get returns one question by qid.
func (s *Service) Get(qid string) (models.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.questions {
		if q.QID == qid {
			return q, true
		}
	}
	return models.Question{}, false
}
