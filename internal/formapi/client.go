// Package formapi is the client for the remote form service: it lists the
// questions of a form and creates submissions from resolved values.
package formapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/formbridge/formbridge/internal/models"
)

// ErrNotConfigured is returned when a remote operation is attempted without a
// form ID or API key.
var ErrNotConfigured = errors.New("form API is not configured: form_id and api_key are required")

// RemoteError reports a non-success response from the form service. It is
// surfaced verbatim; submission creation is not idempotent, so callers must
// not retry automatically.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("form API error: HTTP %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("form API error: HTTP %d", e.StatusCode)
}

// Client talks to the remote form service.
type Client struct {
	baseURL string
	apiKey  string
	formID  string
	client  *http.Client
}

// NewClient creates a form API client. Any of formID/apiKey may be empty; the
// remote operations then fail with ErrNotConfigured.
func NewClient(baseURL, formID, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		formID:  formID,
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client can reach the remote form.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.formID != "" && c.apiKey != ""
}

// FormID returns the configured target form identifier.
func (c *Client) FormID() string {
	return c.formID
}

// questionPayload is the remote shape of one form field.
type questionPayload struct {
	QID      string `json:"qid"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	Order    string `json:"order"`
	Options  string `json:"options"`
	Required string `json:"required"`
}

type listQuestionsResponse struct {
	ResponseCode int                        `json:"responseCode"`
	Message      string                     `json:"message"`
	Content      map[string]questionPayload `json:"content"`
}

type createSubmissionResponse struct {
	ResponseCode int    `json:"responseCode"`
	Message      string `json:"message"`
	Content      struct {
		SubmissionID string `json:"submissionID"`
	} `json:"content"`
}

// ListQuestions fetches the form's question definitions, classifies each raw
// field type into a QuestionKind, and drops presentation-only fields. The
// result is ordered by the form's own field order.
func (c *Client) ListQuestions(ctx context.Context) ([]models.Question, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/form/%s/questions?apiKey=%s", c.baseURL, url.PathEscape(c.formID), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: remoteDetail(body)}
	}

	var parsed listQuestionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode question list: %w", err)
	}

	questions := make([]models.Question, 0, len(parsed.Content))
	for _, payload := range parsed.Content {
		kind, mappable := ClassifyFieldType(payload.Type)
		if !mappable {
			continue
		}
		questions = append(questions, models.Question{
			QID:      payload.QID,
			Label:    payload.Text,
			Kind:     kind,
			Choices:  parseChoices(payload.Options, kind),
			Required: strings.EqualFold(payload.Required, "yes") || payload.Required == "true",
		})
	}

	// The remote payload is a map keyed by qid; restore form order.
	order := make(map[string]int, len(parsed.Content))
	for _, payload := range parsed.Content {
		n, err := strconv.Atoi(payload.Order)
		if err != nil {
			n = 1 << 30
		}
		order[payload.QID] = n
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return order[questions[i].QID] < order[questions[j].QID]
	})

	return questions, nil
}

// CreateSubmission posts a flat qid-to-value body as a form-encoded
// submission and returns the remote-assigned submission ID.
func (c *Client) CreateSubmission(ctx context.Context, values map[string]string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	for qid, value := range values {
		form.Set(fmt.Sprintf("submission[%s]", qid), value)
	}

	endpoint := fmt.Sprintf("%s/form/%s/submissions?apiKey=%s", c.baseURL, url.PathEscape(c.formID), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create submission: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RemoteError{StatusCode: resp.StatusCode, Detail: remoteDetail(body)}
	}

	var parsed createSubmissionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if parsed.Content.SubmissionID == "" {
		return "", &RemoteError{StatusCode: resp.StatusCode, Detail: "response contained no submission ID"}
	}
	return parsed.Content.SubmissionID, nil
}

// remoteDetail extracts the remote-provided message from an error body, if
// the body is JSON with a message field.
func remoteDetail(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// parseChoices splits the remote pipe-separated option list, keeping order
// and dropping duplicates and empties. Non-choice kinds carry no choices.
func parseChoices(options string, kind models.QuestionKind) []string {
	if kind != models.KindSingleChoice && kind != models.KindMultiChoice {
		return nil
	}
	seen := make(map[string]bool)
	var choices []string
	for _, raw := range strings.Split(options, "|") {
		choice := strings.TrimSpace(raw)
		if choice == "" || seen[choice] {
			continue
		}
		seen[choice] = true
		choices = append(choices, choice)
	}
	return choices
}
