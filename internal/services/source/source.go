// Package source manages the registered tabular sources and the per-source
// row selection.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/formbridge/formbridge/internal/models"
	"github.com/formbridge/formbridge/internal/storage"
	"github.com/formbridge/formbridge/internal/tabular"
	"github.com/formbridge/formbridge/pkg/logger"
)

var (
	// ErrNotFound is returned when a source ID does not exist.
	ErrNotFound = errors.New("source not found")

	// ErrReloadInFlight is returned when a reload is requested for a source
	// that is already reloading. The second request is coalesced, not queued.
	ErrReloadInFlight = errors.New("source reload already in progress")

	// ErrRowOutOfRange is returned when a selection targets a row index the
	// source does not have.
	ErrRowOutOfRange = errors.New("row index out of range")
)

// Fetcher retrieves and parses a remote delimited-text document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*tabular.Table, error)
}

// keyColumnGuess matches column names that usually identify a row.
var keyColumnGuess = regexp.MustCompile(`(?i)email|id|code|key`)

// Service owns the source list and the selection set. All mutations persist
// to the key-value store as one logical write after in-memory state is
// consistent.
type Service struct {
	store   storage.Store
	fetcher Fetcher
	logger  *logger.Logger

	mu        sync.Mutex
	sources   []models.Source
	selection models.Selection
	reloading map[string]bool

	// saveMu serializes marshal+Put so concurrent mutations cannot persist
	// their snapshots out of order.
	saveMu sync.Mutex
}

// NewService creates the source service.
func NewService(store storage.Store, fetcher Fetcher, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		fetcher:   fetcher,
		logger:    log,
		selection: models.Selection{},
		reloading: make(map[string]bool),
	}
}

// Load hydrates sources and selection from the store. Malformed stored JSON
// is treated as absent rather than fatal.
func (s *Service) Load(ctx context.Context) error {
	data, found, err := s.store.Get(ctx, storage.KeySources)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	if found {
		var sources []models.Source
		if err := json.Unmarshal(data, &sources); err != nil {
			s.logger.Warnf("Dropping malformed persisted sources: %v", err)
		} else {
			s.mu.Lock()
			s.sources = sources
			s.mu.Unlock()
		}
	}

	data, found, err = s.store.Get(ctx, storage.KeySelection)
	if err != nil {
		return fmt.Errorf("failed to load selection: %w", err)
	}
	if found {
		var selection models.Selection
		if err := json.Unmarshal(data, &selection); err != nil {
			s.logger.Warnf("Dropping malformed persisted selection: %v", err)
		} else {
			s.mu.Lock()
			s.selection = selection
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	count := len(s.sources)
	s.mu.Unlock()
	s.logger.Infof("Loaded %d sources from storage", count)
	return nil
}

// List returns a snapshot of all registered sources.
func (s *Service) List() []models.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// Get returns one source by ID.
func (s *Service) Get(id string) (models.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.sources {
		if src.ID == id {
			return src, true
		}
	}
	return models.Source{}, false
}

// Register fetches the document at fetchURL and adds it as a new source. On
// fetch failure nothing is registered.
func (s *Service) Register(ctx context.Context, name, fetchURL, keyColumn string) (models.Source, error) {
	s.logger.Infof("Registering source %q from %s", name, fetchURL)

	table, err := s.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		return models.Source{}, err
	}
	if len(table.Columns) == 0 {
		return models.Source{}, &tabular.FetchError{URL: fetchURL, Reason: "no header row found"}
	}

	src := models.Source{
		ID:        uuid.New().String(),
		Name:      name,
		FetchURL:  fetchURL,
		KeyColumn: resolveKeyColumn(keyColumn, table.Columns),
		Columns:   table.Columns,
		Rows:      table.Rows,
	}
	if src.Name == "" {
		src.Name = fetchURL
	}

	s.mu.Lock()
	s.sources = append(s.sources, src)
	s.mu.Unlock()

	if err := s.saveSources(ctx); err != nil {
		return models.Source{}, err
	}
	s.logger.Infof("Registered source %s with %d columns and %d rows", src.ID, len(src.Columns), len(src.Rows))
	return src, nil
}

// Reload re-fetches a source and replaces its columns and rows wholesale.
// Reloads of the same source are single-flight: a concurrent request is
// coalesced and reported with ErrReloadInFlight. On fetch failure the
// previous columns and rows are retained untouched.
func (s *Service) Reload(ctx context.Context, id string) (models.Source, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Source{}, ErrNotFound
	}
	if s.reloading[id] {
		s.mu.Unlock()
		return models.Source{}, ErrReloadInFlight
	}
	s.reloading[id] = true
	fetchURL := s.sources[idx].FetchURL
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.reloading, id)
		s.mu.Unlock()
	}()

	s.logger.Infof("Reloading source %s from %s", id, fetchURL)
	table, err := s.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		s.logger.Warnf("Reload of source %s failed, previous data retained: %v", id, err)
		return models.Source{}, err
	}

	s.mu.Lock()
	idx = s.indexOf(id)
	if idx < 0 {
		// Removed while the fetch was in flight.
		s.mu.Unlock()
		return models.Source{}, ErrNotFound
	}
	s.sources[idx].Columns = table.Columns
	s.sources[idx].Rows = table.Rows
	s.sources[idx].KeyColumn = resolveKeyColumn(s.sources[idx].KeyColumn, table.Columns)
	reloaded := s.sources[idx]
	s.mu.Unlock()

	if err := s.saveSources(ctx); err != nil {
		return models.Source{}, err
	}
	return reloaded, nil
}

// Remove deletes a source and its selection entry. The caller is responsible
// for cascading the rule-store cleanup.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.sources = append(s.sources[:idx], s.sources[idx+1:]...)
	delete(s.selection, id)
	s.mu.Unlock()

	if err := s.saveSources(ctx); err != nil {
		return err
	}
	if err := s.saveSelection(ctx); err != nil {
		return err
	}
	s.logger.Infof("Removed source %s", id)
	return nil
}

// Select chooses one row of a source as the resolution input, replacing any
// prior choice for that source.
func (s *Service) Select(ctx context.Context, id string, rowIndex int) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	rows := s.sources[idx].Rows
	if rowIndex < 0 || rowIndex >= len(rows) {
		s.mu.Unlock()
		return ErrRowOutOfRange
	}
	chosen := make(map[string]string, len(rows[rowIndex]))
	for k, v := range rows[rowIndex] {
		chosen[k] = v
	}
	s.selection[id] = chosen
	s.mu.Unlock()

	return s.saveSelection(ctx)
}

// ClearSelection removes the chosen row for one source.
func (s *Service) ClearSelection(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.selection, id)
	s.mu.Unlock()
	return s.saveSelection(ctx)
}

// ClearAllSelections drops every chosen row.
func (s *Service) ClearAllSelections(ctx context.Context) error {
	s.mu.Lock()
	s.selection = models.Selection{}
	s.mu.Unlock()
	return s.saveSelection(ctx)
}

// Selection returns a snapshot of the current selection set.
func (s *Service) Selection() models.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.Selection, len(s.selection))
	for sourceID, row := range s.selection {
		rowCopy := make(map[string]string, len(row))
		for k, v := range row {
			rowCopy[k] = v
		}
		out[sourceID] = rowCopy
	}
	return out
}

// RowMatch is one row returned by Search, with its index into Source.Rows.
type RowMatch struct {
	Index int               `json:"index"`
	Row   map[string]string `json:"row"`
	Exact bool              `json:"exact"`
}

// Search filters a source's rows against its key column. An exact
// case-insensitive key match is preferred; otherwise substring matches are
// returned. An empty query returns all rows.
func (s *Service) Search(id, query string) ([]RowMatch, error) {
	src, ok := s.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	normalized := normalizeKey(query)
	matches := make([]RowMatch, 0, len(src.Rows))
	if normalized == "" {
		for i, row := range src.Rows {
			matches = append(matches, RowMatch{Index: i, Row: row})
		}
		return matches, nil
	}

	for i, row := range src.Rows {
		key := normalizeKey(row[src.KeyColumn])
		if key == normalized {
			matches = append(matches, RowMatch{Index: i, Row: row, Exact: true})
		}
	}
	if len(matches) > 0 {
		return matches, nil
	}
	for i, row := range src.Rows {
		if strings.Contains(normalizeKey(row[src.KeyColumn]), normalized) {
			matches = append(matches, RowMatch{Index: i, Row: row})
		}
	}
	return matches, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// resolveKeyColumn keeps a configured key column when it is still a member of
// columns, otherwise guesses one: the first column whose name looks like an
// identifier, else the first column.
func resolveKeyColumn(configured string, columns []string) string {
	for _, col := range columns {
		if col == configured && configured != "" {
			return configured
		}
	}
	for _, col := range columns {
		if keyColumnGuess.MatchString(col) {
			return col
		}
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return ""
}

// caller must hold s.mu
func (s *Service) indexOf(id string) int {
	for i, src := range s.sources {
		if src.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) saveSources(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	data, err := json.Marshal(s.sources)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	if err := s.store.Put(ctx, storage.KeySources, data); err != nil {
		return fmt.Errorf("failed to persist sources: %w", err)
	}
	return nil
}

func (s *Service) saveSelection(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	data, err := json.Marshal(s.selection)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := s.store.Put(ctx, storage.KeySelection, data); err != nil {
		return fmt.Errorf("failed to persist selection: %w", err)
	}
	return nil
}
