package question

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbridge/formbridge/internal/formapi"
	"github.com/formbridge/formbridge/internal/models"
	"github.com/formbridge/formbridge/pkg/logger"
)

type stubLister struct {
	questions []models.Question
	err       error
}

func (l *stubLister) ListQuestions(ctx context.Context) ([]models.Question, error) {
	return l.questions, l.err
}

func TestRefreshReplacesCatalog(t *testing.T) {
	ctx := context.Background()
	lister := &stubLister{questions: []models.Question{
		{QID: "1", Label: "Name", Kind: models.KindFreeText, Required: true},
		{QID: "2", Label: "Email", Kind: models.KindFreeText},
	}}
	svc := NewService(lister, logger.New("question-test", "1.0.0"))

	questions, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	q, ok := svc.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "Name", q.Label)

	// A later refresh replaces wholesale, never merges.
	lister.questions = []models.Question{
		{QID: "3", Label: "Phone", Kind: models.KindFreeText},
	}
	questions, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, questions, 1)
	_, ok = svc.Get("1")
	assert.False(t, ok)
}

func TestRefreshFailureKeepsCatalog(t *testing.T) {
	ctx := context.Background()
	lister := &stubLister{questions: []models.Question{
		{QID: "1", Label: "Name", Kind: models.KindFreeText},
	}}
	svc := NewService(lister, logger.New("question-test", "1.0.0"))

	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	lister.err = formapi.ErrNotConfigured
	_, err = svc.Refresh(ctx)
	assert.ErrorIs(t, err, formapi.ErrNotConfigured)

	// The previous catalog survives the failed refresh.
	assert.Len(t, svc.List(), 1)
}

func TestGetUnknown(t *testing.T) {
	svc := NewService(&stubLister{}, logger.New("question-test", "1.0.0"))
	_, ok := svc.Get("nope")
	assert.False(t, ok)
	assert.Empty(t, svc.List())
}
