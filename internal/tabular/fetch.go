// Package tabular fetches externally published delimited text (CSV/TSV) and
// turns it into ordered headers plus row maps.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result limits; a published spreadsheet of a few hundred rows is the design
// target, these bounds only guard against pathological responses.
const (
	maxResponseBytes = 16 << 20
	defaultTimeout   = 30 * time.Second
)

// FetchError reports a failed source load: network failure, non-success HTTP
// status, or a response body that is not delimited text.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %s", e.URL, e.Reason)
}

// Table is the parsed form of one delimited-text document.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Fetcher retrieves and parses delimited text over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given request timeout. A zero timeout
// selects the default.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the document at url and parses it into a Table.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: err.Error()}
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Reason: err.Error()}
	}

	text := string(body)
	if looksLikeMarkup(text) {
		return nil, &FetchError{URL: url, Reason: "response is markup, not delimited text"}
	}

	table, err := Parse(text)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: err.Error()}
	}
	return table, nil
}

// looksLikeMarkup detects HTML/XML error pages served in place of data.
func looksLikeMarkup(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<?xml")
}

// Parse tokenizes delimited text into a Table. The delimiter is sniffed from
// the header line; duplicate header names are made unique with a numeric
// suffix so that row keys are exactly the column list.
func Parse(text string) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row found")
	}

	columns := uniqueColumns(records[0])
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// sniffDelimiter picks the candidate delimiter occurring most often in the
// header line, outside quoted fields. Comma wins ties.
func sniffDelimiter(text string) rune {
	header := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		header = text[:idx]
	}

	counts := map[rune]int{',': 0, ';': 0, '\t': 0, '|': 0}
	inQuotes := false
	for _, c := range header {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if _, ok := counts[c]; ok {
			counts[c]++
		}
	}

	best := ','
	bestCount := counts[',']
	for _, candidate := range []rune{';', '\t', '|'} {
		if counts[candidate] > bestCount {
			best = candidate
			bestCount = counts[candidate]
		}
	}
	return best
}

func uniqueColumns(header []string) []string {
	seen := make(map[string]bool, len(header))
	columns := make([]string, 0, len(header))
	for _, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = "column"
		}
		base := name
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[name] = true
		columns = append(columns, name)
	}
	return columns
}
