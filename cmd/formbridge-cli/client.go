package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is the decoded error payload of a failed request.
type APIError struct {
	Status   int    `json:"status"`
	Message  string `json:"message"`
	ErrorMsg string `json:"error"`
}

func (e APIError) Error() string {
	message := e.ErrorMsg
	if e.Message != "" {
		message = fmt.Sprintf("%s: %s", e.ErrorMsg, e.Message)
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d error", e.Status)
	}
	return message
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// request performs an API call and decodes the JSON response into out (when
// out is non-nil).
func request(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, serverURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, &apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// printJSON pretty-prints a response payload.
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(data))
}
