package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundamentals/internal/fetcher"
	"fundamentals/internal/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("date", "eps_actual", "eps_estimate")
	require.NoError(t, tbl.Append("AAPL", "2024-03-31", "1.53", "1.50"))
	require.NoError(t, tbl.Append("AAPL", "2023-12-31", "2.18", "2.10"))
	return tbl
}

// newMemStore returns a store on an in-memory filesystem with a fixed clock
func newMemStore(t *testing.T, now time.Time) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "cache")
	s.now = func() time.Time { return now }
	return s, fs
}

func TestKey(t *testing.T) {
	tests := []struct {
		identifier string
		kind       fetcher.Kind
		want       string
	}{
		{"AAPL", fetcher.KindEarnings, "AAPL_earnings"},
		{"msft", fetcher.KindValuation, "MSFT_valuation"},
		{" brk.b ", fetcher.KindRevenue, "BRK.B_revenue"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.identifier, tt.kind))
		})
	}
}

func TestStore_PutCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s := NewDiskStore(dir)

	require.NoError(t, s.Put("AAPL_earnings", sampleTable(t)))

	_, err := os.Stat(filepath.Join(dir, "AAPL_earnings.json"))
	require.NoError(t, err)
}

func TestStore_MissingFileIsMiss(t *testing.T) {
	s, _ := newMemStore(t, time.Now())

	for _, policy := range []MaxAge{Disabled(), Preserve(), Days(1)} {
		lookup, err := s.GetIfFresh("NOPE_earnings", policy)
		require.NoError(t, err)
		assert.Equal(t, Miss, lookup.State, policy.String())
		assert.Nil(t, lookup.Table)
	}
}

func TestStore_DisabledAlwaysStale(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	require.NoError(t, s.Put("AAPL_earnings", sampleTable(t)))

	lookup, err := s.GetIfFresh("AAPL_earnings", Disabled())
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup.State)

	// Days(0) is the same policy
	lookup, err = s.GetIfFresh("AAPL_earnings", Days(0))
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup.State)
}

func TestStore_PreserveRoundTrip(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s, fs := newMemStore(t, base)

	want := sampleTable(t)
	require.NoError(t, s.Put("AAPL_earnings", want))
	require.NoError(t, fs.Chtimes(s.path("AAPL_earnings"), base, base))

	for _, elapsed := range []time.Duration{0, 30 * day, 10 * 365 * day} {
		s.now = func() time.Time { return base.Add(elapsed) }

		lookup, err := s.GetIfFresh("AAPL_earnings", Preserve())
		require.NoError(t, err)
		require.Equal(t, Hit, lookup.State)
		assert.Equal(t, want, lookup.Table)
		assert.Equal(t, elapsed, lookup.Age)
	}
}

func TestStore_DaysBoundary(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	const eps = time.Second

	tests := []struct {
		name    string
		days    int
		elapsed time.Duration
		want    State
	}{
		{"just written", 1, 0, Hit},
		{"one day minus epsilon", 1, day - eps, Hit},
		{"exactly one day", 1, day, Hit},
		{"one day plus epsilon", 1, day + eps, Miss},
		{"seven days minus epsilon", 7, 7*day - eps, Hit},
		{"seven days plus epsilon", 7, 7*day + eps, Miss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fs := newMemStore(t, base)
			require.NoError(t, s.Put("MSFT_valuation", sampleTable(t)))
			require.NoError(t, fs.Chtimes(s.path("MSFT_valuation"), base, base))

			s.now = func() time.Time { return base.Add(tt.elapsed) }
			lookup, err := s.GetIfFresh("MSFT_valuation", Days(tt.days))
			require.NoError(t, err)
			assert.Equal(t, tt.want, lookup.State)
		})
	}
}

func TestStore_EmptySentinel(t *testing.T) {
	s, _ := newMemStore(t, time.Now())

	require.NoError(t, s.Put("BOGUS_earnings", nil))

	lookup, err := s.GetIfFresh("BOGUS_earnings", Preserve())
	require.NoError(t, err)
	assert.Equal(t, EmptyConfirmed, lookup.State)
	assert.Nil(t, lookup.Table)

	// a disabled policy still reports a plain miss
	lookup, err = s.GetIfFresh("BOGUS_earnings", Disabled())
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup.State)
}

func TestStore_Overwrite(t *testing.T) {
	s, _ := newMemStore(t, time.Now())

	require.NoError(t, s.Put("AAPL_earnings", nil))
	want := sampleTable(t)
	require.NoError(t, s.Put("AAPL_earnings", want))

	lookup, err := s.GetIfFresh("AAPL_earnings", Preserve())
	require.NoError(t, err)
	assert.Equal(t, Hit, lookup.State)
	assert.Equal(t, want, lookup.Table)

	entries, err := s.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_CorruptFileIsMiss(t *testing.T) {
	s, fs := newMemStore(t, time.Now())
	require.NoError(t, fs.MkdirAll("cache", 0o750))
	require.NoError(t, afero.WriteFile(fs, s.path("AAPL_earnings"), []byte("{not json"), 0o600))

	lookup, err := s.GetIfFresh("AAPL_earnings", Preserve())
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup.State)
}

func TestStore_RaggedRowIsMiss(t *testing.T) {
	s, fs := newMemStore(t, time.Now())
	require.NoError(t, fs.MkdirAll("cache", 0o750))
	raw := `{"payload": {"columns": ["metric", "value"], "rows": [{"ticker": "AAPL", "values": ["PERatio"]}]}}`
	require.NoError(t, afero.WriteFile(fs, s.path("AAPL_valuation"), []byte(raw), 0o600))

	lookup, err := s.GetIfFresh("AAPL_valuation", Preserve())
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup.State)
	assert.Nil(t, lookup.Table)
}

func TestStore_EmptyKey(t *testing.T) {
	s, _ := newMemStore(t, time.Now())

	assert.ErrorIs(t, s.Put("", nil), ErrEmptyKey)
	_, err := s.GetIfFresh("", Preserve())
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestStore_StorageFailure(t *testing.T) {
	s := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "cache")

	err := s.Put("AAPL_earnings", sampleTable(t))
	require.Error(t, err)
	assert.True(t, fetcher.IsStorage(err))
}

func TestStore_KeySanitized(t *testing.T) {
	s, _ := newMemStore(t, time.Now())

	assert.Equal(t, filepath.Join("cache", "a_b_c_d.json"), s.path("a/b\\c:d"))
}

func TestStore_List(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	s, fs := newMemStore(t, base)

	entries, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, s.Put("MSFT_earnings", sampleTable(t)))
	require.NoError(t, s.Put("BOGUS_earnings", nil))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("cache", "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, fs.Chtimes(s.path("MSFT_earnings"), base.Add(-2*day), base.Add(-2*day)))

	entries, err = s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "BOGUS_earnings", entries[0].Key)
	assert.True(t, entries[0].Empty)
	assert.Equal(t, 0, entries[0].Rows)

	assert.Equal(t, "MSFT_earnings", entries[1].Key)
	assert.False(t, entries[1].Empty)
	assert.Equal(t, 2, entries[1].Rows)
	assert.Equal(t, 2*day, s.Age(entries[1]))
}
