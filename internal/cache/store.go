package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"fundamentals/internal/fetcher"
	"fundamentals/internal/table"
)

// fileExtension is the file extension used for cache entries.
const fileExtension = ".json"

// ErrEmptyKey is returned when a cache key is blank
var ErrEmptyKey = errors.New("cache key cannot be empty")

// State is the outcome of a cache lookup
type State int

const (
	// Miss means there is no usable entry: absent, stale, or caching disabled
	Miss State = iota
	// Hit means a fresh entry holding data
	Hit
	// EmptyConfirmed means a fresh entry recording that the last fetch produced nothing
	EmptyConfirmed
)

func (s State) String() string {
	switch s {
	case Hit:
		return "hit"
	case EmptyConfirmed:
		return "empty"
	default:
		return "miss"
	}
}

// Lookup is the result of GetIfFresh
type Lookup struct {
	State State
	// Table is set only for Hit
	Table *table.Table
	// Age is the entry age at lookup time; zero when no file exists
	Age time.Duration
}

// entry is the on-disk envelope
type entry struct {
	Key     string       `json:"key"`
	Empty   bool         `json:"empty"`
	Payload *table.Table `json:"payload,omitempty"`
}

// EntryInfo describes one cache file
type EntryInfo struct {
	Key     string
	Path    string
	Empty   bool
	Rows    int
	ModTime time.Time
	Size    int64
}

// Store persists one file per key under a directory and answers freshness
// queries from the file modification time. Writes replace the whole file;
// there is no locking, so concurrent writers to one key are last-write-wins.
type Store struct {
	fs     afero.Fs
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir on fs. The directory is created on the first Put.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{
		fs:     fs,
		dir:    dir,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
}

// NewDiskStore creates a store on the operating system filesystem
func NewDiskStore(dir string) *Store {
	return NewStore(afero.NewOsFs(), dir)
}

// WithLogger sets the logger used for lookup diagnostics
func (s *Store) WithLogger(logger zerolog.Logger) *Store {
	s.logger = logger
	return s
}

// Dir returns the cache directory
func (s *Store) Dir() string {
	return s.dir
}

// Key derives the cache key for an identifier and data kind
func Key(identifier string, kind fetcher.Kind) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(strings.TrimSpace(identifier)), kind)
}

// Put stores payload under key, or the empty sentinel when payload is nil.
// The directory is created if needed; failing to create or write it is a storage error.
func (s *Store) Put(key string, payload *table.Table) error {
	if key == "" {
		return ErrEmptyKey
	}

	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return fetcher.NewStorageError("failed to create cache directory "+s.dir, err)
	}

	e := entry{Key: key, Empty: payload == nil}
	if payload != nil {
		e.Payload = payload
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fetcher.NewStorageError("failed to encode cache entry "+key, err)
	}

	path := s.path(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fetcher.NewStorageError("failed to write cache file "+tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fetcher.NewStorageError("failed to rename cache file "+path, err)
	}

	return nil
}

// GetIfFresh returns the entry under key when maxAge allows reusing it.
// A missing, stale or unreadable file is a Miss and never an error.
func (s *Store) GetIfFresh(key string, maxAge MaxAge) (Lookup, error) {
	if key == "" {
		return Lookup{}, ErrEmptyKey
	}

	path := s.path(key)
	info, err := s.fs.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug().Err(err).Str("key", key).Msg("cache stat failed")
		}
		return Lookup{State: Miss}, nil
	}

	age := s.now().Sub(info.ModTime())
	if !maxAge.Fresh(age) {
		s.logger.Debug().
			Str("key", key).
			Str("age", age.Round(time.Second).String()).
			Stringer("max_age", maxAge).
			Msg("cache entry is stale")
		return Lookup{State: Miss, Age: age}, nil
	}

	e, err := s.read(path)
	if err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("ignoring unreadable cache entry")
		return Lookup{State: Miss, Age: age}, nil
	}

	if e.Empty || e.Payload == nil {
		return Lookup{State: EmptyConfirmed, Age: age}, nil
	}
	if err := e.Payload.Validate(); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("ignoring malformed cache entry")
		return Lookup{State: Miss, Age: age}, nil
	}
	return Lookup{State: Hit, Table: e.Payload, Age: age}, nil
}

// List returns every entry in the cache directory sorted by key.
// A missing directory yields an empty list.
func (s *Store) List() ([]EntryInfo, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var out []EntryInfo
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != fileExtension {
			continue
		}
		path := filepath.Join(s.dir, info.Name())
		ei := EntryInfo{
			Key:     strings.TrimSuffix(info.Name(), fileExtension),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if e, readErr := s.read(path); readErr == nil {
			ei.Empty = e.Empty
			ei.Rows = e.Payload.Len()
		}
		out = append(out, ei)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Age returns how old the entry is relative to the store clock
func (s *Store) Age(info EntryInfo) time.Duration {
	return s.now().Sub(info.ModTime)
}

func (s *Store) read(path string) (*entry, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, nil
}

// path converts a key to a file path, replacing separators so keys stay inside dir
func (s *Store) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(s.dir, safe+fileExtension)
}
