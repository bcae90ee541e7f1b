package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbridge/formbridge/internal/storage"
	"github.com/formbridge/formbridge/internal/tabular"
	"github.com/formbridge/formbridge/pkg/logger"
)

// stubFetcher serves canned tables per URL and can block to simulate a slow
// remote.
type stubFetcher struct {
	mu      sync.Mutex
	tables  map[string]*tabular.Table
	errs    map[string]error
	block   chan struct{}
	fetches int
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*tabular.Table, error) {
	f.mu.Lock()
	f.fetches++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if table, ok := f.tables[url]; ok {
		return table, nil
	}
	return nil, &tabular.FetchError{URL: url, StatusCode: 404}
}

func contactsTable() *tabular.Table {
	return &tabular.Table{
		Columns: []string{"Name", "Email", "Dept"},
		Rows: []map[string]string{
			{"Name": "Ada", "Email": "ada@example.com", "Dept": "Engineering"},
			{"Name": "Grace", "Email": "grace@example.com", "Dept": "Research"},
		},
	}
}

func newTestService(t *testing.T, fetcher Fetcher) (*Service, storage.Store) {
	t.Helper()
	store := storage.NewMemory()
	return NewService(store, fetcher, logger.New("source-test", "1.0.0")), store
}

func TestRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)
	assert.NotEmpty(t, src.ID)
	assert.Equal(t, "Contacts", src.Name)
	assert.Equal(t, []string{"Name", "Email", "Dept"}, src.Columns)
	assert.Len(t, src.Rows, 2)

	// Key column guessed from the identifier-looking name.
	assert.Equal(t, "Email", src.KeyColumn)

	got, ok := svc.Get(src.ID)
	assert.True(t, ok)
	assert.Equal(t, src.ID, got.ID)
	assert.Len(t, svc.List(), 1)
}

func TestRegisterDefaultsNameToURL(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "", "http://sheet/contacts", "Name")
	require.NoError(t, err)
	assert.Equal(t, "http://sheet/contacts", src.Name)
	assert.Equal(t, "Name", src.KeyColumn)
}

func TestRegisterFetchFailure(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{errs: map[string]error{"http://sheet/bad": &tabular.FetchError{URL: "http://sheet/bad", StatusCode: 500}}}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Register(ctx, "Bad", "http://sheet/bad", "")
	var ferr *tabular.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Empty(t, svc.List())
}

func TestReloadReplacesData(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)

	fetcher.tables["http://sheet/contacts"] = &tabular.Table{
		Columns: []string{"Name", "Email"},
		Rows:    []map[string]string{{"Name": "Ada", "Email": "ada@example.com"}},
	}

	reloaded, err := svc.Reload(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Email"}, reloaded.Columns)
	assert.Len(t, reloaded.Rows, 1)
}

func TestReloadFailureRetainsData(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)

	delete(fetcher.tables, "http://sheet/contacts")
	fetcher.errs = map[string]error{"http://sheet/contacts": &tabular.FetchError{URL: "http://sheet/contacts", StatusCode: 500}}

	_, err = svc.Reload(ctx, src.ID)
	assert.Error(t, err)

	got, ok := svc.Get(src.ID)
	require.True(t, ok)
	assert.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"Name", "Email", "Dept"}, got.Columns)
}

func TestReloadSingleFlight(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.block = make(chan struct{})
	fetcher.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Reload(ctx, src.ID)
		done <- err
	}()

	// Wait until the first reload is holding the in-flight marker.
	for {
		fetcher.mu.Lock()
		started := fetcher.fetches >= 2
		fetcher.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err = svc.Reload(ctx, src.ID)
	assert.ErrorIs(t, err, ErrReloadInFlight)

	close(fetcher.block)
	assert.NoError(t, <-done)

	// The marker is released once the first reload finishes.
	fetcher.mu.Lock()
	fetcher.block = nil
	fetcher.mu.Unlock()
	_, err = svc.Reload(ctx, src.ID)
	assert.NoError(t, err)
}

func TestReloadUnknownSource(t *testing.T) {
	svc, _ := newTestService(t, &stubFetcher{})
	_, err := svc.Reload(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelectionLifecycle(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)

	require.NoError(t, svc.Select(ctx, src.ID, 1))
	selection := svc.Selection()
	assert.Equal(t, "Grace", selection[src.ID]["Name"])

	// Choosing another row replaces the prior choice.
	require.NoError(t, svc.Select(ctx, src.ID, 0))
	selection = svc.Selection()
	assert.Equal(t, "Ada", selection[src.ID]["Name"])
	assert.Len(t, selection, 1)

	// Out-of-range and unknown-source selections.
	assert.ErrorIs(t, svc.Select(ctx, src.ID, 2), ErrRowOutOfRange)
	assert.ErrorIs(t, svc.Select(ctx, src.ID, -1), ErrRowOutOfRange)
	assert.ErrorIs(t, svc.Select(ctx, "nope", 0), ErrNotFound)

	require.NoError(t, svc.ClearSelection(ctx, src.ID))
	assert.Empty(t, svc.Selection())
}

func TestRemoveDropsSelection(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)
	require.NoError(t, svc.Select(ctx, src.ID, 0))

	require.NoError(t, svc.Remove(ctx, src.ID))
	assert.Empty(t, svc.List())
	assert.Empty(t, svc.Selection())

	assert.ErrorIs(t, svc.Remove(ctx, src.ID), ErrNotFound)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, store := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)
	require.NoError(t, svc.Select(ctx, src.ID, 0))

	reloaded := NewService(store, fetcher, logger.New("source-test", "1.0.0"))
	require.NoError(t, reloaded.Load(ctx))

	assert.Len(t, reloaded.List(), 1)
	assert.Equal(t, "Ada", reloaded.Selection()[src.ID]["Name"])
}

func TestLoadMalformedState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Put(ctx, storage.KeySources, []byte("not json")))
	require.NoError(t, store.Put(ctx, storage.KeySelection, []byte("{broken")))

	svc := NewService(store, &stubFetcher{}, logger.New("source-test", "1.0.0"))
	require.NoError(t, svc.Load(ctx))
	assert.Empty(t, svc.List())
	assert.Empty(t, svc.Selection())
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "Email")
	require.NoError(t, err)

	// Exact key match wins over substring candidates.
	matches, err := svc.Search(src.ID, "ADA@example.com")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Exact)
	assert.Equal(t, 0, matches[0].Index)

	// Substring fallback.
	matches, err = svc.Search(src.ID, "example.com")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.False(t, matches[0].Exact)

	// Empty query returns every row.
	matches, err = svc.Search(src.ID, "  ")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	// No hits.
	matches, err = svc.Search(src.ID, "nobody")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = svc.Search("nope", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveKeyColumn(t *testing.T) {
	assert.Equal(t, "Email", resolveKeyColumn("", []string{"Name", "Email"}))
	assert.Equal(t, "Name", resolveKeyColumn("Name", []string{"Name", "Email"}))
	assert.Equal(t, "member id", resolveKeyColumn("Gone", []string{"Notes", "member id"}))
	assert.Equal(t, "First", resolveKeyColumn("", []string{"First", "Last"}))
	assert.Equal(t, "", resolveKeyColumn("", nil))
}

func TestSelectionSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{tables: map[string]*tabular.Table{"http://sheet/contacts": contactsTable()}}
	svc, _ := newTestService(t, fetcher)

	src, err := svc.Register(ctx, "Contacts", "http://sheet/contacts", "")
	require.NoError(t, err)
	require.NoError(t, svc.Select(ctx, src.ID, 0))

	snapshot := svc.Selection()
	snapshot[src.ID]["Name"] = "mutated"

	assert.Equal(t, "Ada", svc.Selection()[src.ID]["Name"])
}
