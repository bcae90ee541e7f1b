package mapping

import (
	"fmt"
	"strings"

	"github.com/formbridge/formbridge/internal/models"
)

// MissingField identifies one required question whose mapping was not
// satisfied.
type MissingField struct {
	QID   string `json:"qid"`
	Label string `json:"label"`
}

// ValidationError blocks a delivery action: every unsatisfied required
// question is enumerated, and nothing is delivered partially.
type ValidationError struct {
	Missing []MissingField
}

func (e *ValidationError) Error() string {
	labels := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		labels[i] = m.Label
	}
	return fmt.Sprintf("required mappings unsatisfied: %s", strings.Join(labels, ", "))
}

// FieldValue is one prefill entry for the host form's set-field-by-label
// primitive.
type FieldValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PrefillPayload turns a resolution into ordered label/value pairs for the
// host form. Questions without a value are omitted entirely; a deliberate
// clear (explicit empty free text) IS sent as an empty string, which
// distinguishes "clear this field" from "leave it alone".
func PrefillPayload(questions []models.Question, res Resolution) []FieldValue {
	payload := make([]FieldValue, 0, len(res.Values))
	for _, q := range questions {
		value, present := res.Values[q.QID]
		if !present {
			continue
		}
		payload = append(payload, FieldValue{Label: q.Label, Value: value.String()})
	}
	return payload
}

// SubmissionBody turns a resolution into the flat qid-to-value body for the
// remote create-submission call. Any unsatisfied required mapping blocks the
// whole delivery with a ValidationError.
func SubmissionBody(questions []models.Question, res Resolution) (map[string]string, error) {
	if len(res.MissingRequired) > 0 {
		verr := &ValidationError{}
		labels := labelIndex(questions)
		for _, qid := range res.MissingRequired {
			label := labels[qid]
			if label == "" {
				label = qid
			}
			verr.Missing = append(verr.Missing, MissingField{QID: qid, Label: label})
		}
		return nil, verr
	}

	body := make(map[string]string, len(res.Values))
	for _, q := range questions {
		if value, present := res.Values[q.QID]; present {
			body[q.QID] = value.String()
		}
	}
	return body, nil
}

func labelIndex(questions []models.Question) map[string]string {
	labels := make(map[string]string, len(questions))
	for _, q := range questions {
		labels[q.QID] = q.Label
	}
	return labels
}
