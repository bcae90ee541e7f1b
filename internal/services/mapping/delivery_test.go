package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbridge/formbridge/internal/models"
)

func TestPrefillPayload(t *testing.T) {
	questions := []models.Question{
		{QID: "q1", Label: "Name", Kind: models.KindFreeText},
		{QID: "q2", Label: "Email", Kind: models.KindFreeText},
		{QID: "q3", Label: "Notes", Kind: models.KindFreeText},
	}
	res := Resolution{
		Values: map[string]ResolvedValue{
			"q1": {Parts: []string{"Ada"}},
			"q3": {Parts: []string{""}},
		},
	}

	payload := PrefillPayload(questions, res)
	require.Len(t, payload, 2)

	// Question order, unmapped q2 omitted, deliberate clear kept.
	assert.Equal(t, FieldValue{Label: "Name", Value: "Ada"}, payload[0])
	assert.Equal(t, FieldValue{Label: "Notes", Value: ""}, payload[1])
}

func TestSubmissionBody(t *testing.T) {
	questions := []models.Question{
		{QID: "q1", Label: "Name", Kind: models.KindFreeText, Required: true},
		{QID: "q2", Label: "Colors", Kind: models.KindMultiChoice, Choices: []string{"Red", "Blue"}},
	}
	res := Resolution{
		Values: map[string]ResolvedValue{
			"q1": {Parts: []string{"Ada"}},
			"q2": {Parts: []string{"Red", "Blue"}},
		},
	}

	body, err := SubmissionBody(questions, res)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "Ada", "q2": "Red, Blue"}, body)
}

func TestSubmissionBodyBlocksOnMissingRequired(t *testing.T) {
	questions := []models.Question{
		{QID: "q1", Label: "Name", Kind: models.KindFreeText, Required: true},
		{QID: "q2", Label: "Email", Kind: models.KindFreeText, Required: true},
	}
	res := Resolution{
		Values:          map[string]ResolvedValue{"q1": {Parts: []string{"Ada"}}},
		MissingRequired: []string{"q2"},
	}

	body, err := SubmissionBody(questions, res)
	assert.Nil(t, body)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Missing, 1)
	assert.Equal(t, MissingField{QID: "q2", Label: "Email"}, verr.Missing[0])
	assert.Contains(t, verr.Error(), "Email")
}
