// Package pipeline fetches fundamentals for many identifiers, serving each one
// from the cache when fresh and otherwise probing, fetching, normalizing and
// storing it before aggregating everything into a single table.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundamentals/internal/cache"
	"fundamentals/internal/fetcher"
	"fundamentals/internal/normalize"
	"fundamentals/internal/table"
)

const (
	// DefaultChunkSize is the number of identifiers processed between pauses
	DefaultChunkSize = 10
	// DefaultChunkPause is the pause between chunks that reached upstream
	DefaultChunkPause = 2 * time.Second
)

// Config controls batching
type Config struct {
	ChunkSize  int
	ChunkPause time.Duration
}

// Result is the aggregate of a FetchAll call
type Result struct {
	// Table holds the rows of every identifier that produced data. Never nil.
	Table *table.Table
	// Outcomes has one entry per processed identifier, in request order
	Outcomes []fetcher.Result
}

// Failed returns the outcomes of skipped identifiers
func (r *Result) Failed() []fetcher.Result {
	var out []fetcher.Result
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Pipeline runs the cache-or-fetch loop. It is not safe for concurrent use
// against one cache directory.
type Pipeline struct {
	store    *cache.Store
	provider fetcher.Provider
	cfg      Config
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline reading and writing store and fetching from provider
func New(store *cache.Store, provider fetcher.Provider, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkPause < 0 {
		cfg.ChunkPause = 0
	}

	return &Pipeline{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		sleep:    sleepContext,
	}
}

// FetchAll returns the aggregate table of kind for identifiers.
//
// Identifiers are trimmed, upper-cased and deduplicated; blanks are ignored.
// Identifiers that are invalid, have no data or hit a transport failure are
// skipped and reported in Result.Outcomes. Only a storage failure or a
// cancelled context is returned as an error.
func (p *Pipeline) FetchAll(ctx context.Context, kind fetcher.Kind, maxAge cache.MaxAge, identifiers ...string) (*Result, error) {
	columns := normalize.Columns(kind)
	if columns == nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("unknown data kind %q", kind))
	}

	ids := cleanIdentifiers(identifiers)
	acc := table.NewAccumulator(columns...)
	result := &Result{Outcomes: make([]fetcher.Result, 0, len(ids))}

	if len(ids) == 0 {
		result.Table = acc.Table()
		return result, nil
	}

	chunks := (len(ids) + p.cfg.ChunkSize - 1) / p.cfg.ChunkSize
	upstream := false

	for start := 0; start < len(ids); start += p.cfg.ChunkSize {
		end := min(start+p.cfg.ChunkSize, len(ids))

		if start > 0 && upstream {
			p.logger.Debug().
				Dur("pause", p.cfg.ChunkPause).
				Int("next_chunk", start/p.cfg.ChunkSize+1).
				Int("chunks", chunks).
				Msg("pausing between chunks")
			if err := p.sleep(ctx, p.cfg.ChunkPause); err != nil {
				return nil, err
			}
		}
		upstream = false

		for _, id := range ids[start:end] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			tbl, outcome, err := p.fetch(ctx, kind, maxAge, id)
			if err != nil {
				return nil, err
			}
			if outcome.Source == fetcher.SourceUpstream {
				upstream = true
			}
			result.Outcomes = append(result.Outcomes, outcome)

			if err := acc.Add(tbl); err != nil {
				return nil, fmt.Errorf("aggregating %s: %w", id, err)
			}
		}
	}

	result.Table = acc.Table()

	p.logger.Info().
		Str("kind", string(kind)).
		Int("identifiers", len(ids)).
		Int("rows", result.Table.Len()).
		Int("skipped", len(result.Failed())).
		Msg("fetch complete")

	return result, nil
}

// Fetch runs the cache-or-fetch step for a single identifier. The table is nil
// when the identifier was skipped; the reason is in the returned Result.
func (p *Pipeline) Fetch(ctx context.Context, kind fetcher.Kind, maxAge cache.MaxAge, identifier string) (*table.Table, fetcher.Result, error) {
	if normalize.Columns(kind) == nil {
		return nil, fetcher.Result{}, fetcher.NewValidationError(fmt.Sprintf("unknown data kind %q", kind))
	}
	ids := cleanIdentifiers([]string{identifier})
	if len(ids) == 0 {
		return nil, fetcher.Result{}, fetcher.NewValidationError("identifier is blank")
	}
	return p.fetch(ctx, kind, maxAge, ids[0])
}

func (p *Pipeline) fetch(ctx context.Context, kind fetcher.Kind, maxAge cache.MaxAge, id string) (*table.Table, fetcher.Result, error) {
	outcome := fetcher.Result{Identifier: id, Kind: kind, Source: fetcher.SourceCache}
	key := cache.Key(id, kind)
	log := p.logger.With().Str("identifier", id).Str("kind", string(kind)).Logger()

	lookup, err := p.store.GetIfFresh(key, maxAge)
	if err != nil {
		return nil, outcome, err
	}

	if lookup.State == cache.Hit && !slices.Equal(lookup.Table.Columns, normalize.Columns(kind)) {
		log.Debug().Strs("columns", lookup.Table.Columns).Msg("cached columns differ, refetching")
		lookup.State = cache.Miss
	}

	switch lookup.State {
	case cache.Hit:
		outcome.Rows = lookup.Table.Len()
		log.Debug().Dur("age", lookup.Age).Int("rows", outcome.Rows).Msg("served from cache")
		return lookup.Table, outcome, nil
	case cache.EmptyConfirmed:
		outcome.Error = fetcher.NewEmptyResponseError(id, kind)
		log.Info().Dur("age", lookup.Age).Msg("skipping identifier previously confirmed to have no data")
		return nil, outcome, nil
	}

	outcome.Source = fetcher.SourceUpstream

	valid, err := p.provider.ProbeIdentifier(ctx, id)
	if err != nil {
		return p.skip(ctx, log, outcome, key, fmt.Errorf("probing %s: %w", id, err))
	}
	if !valid {
		return p.confirmEmpty(log, outcome, key, fetcher.NewInvalidIdentifierError(id))
	}

	raw, err := fetcher.Fetch(ctx, p.provider, kind, id)
	if err != nil {
		return p.skip(ctx, log, outcome, key, fmt.Errorf("fetching %s %s: %w", kind, id, err))
	}

	normalizer, err := normalize.For(kind)
	if err != nil {
		return nil, outcome, err
	}
	tbl, stats := normalizer(id, raw)
	outcome.Dropped = stats.Dropped

	if stats.Dropped > 0 {
		log.Debug().
			Int("records", stats.Records).
			Int("dropped", stats.Dropped).
			AnErr("last_error", stats.LastError).
			Msg("dropped malformed records")
	}
	if len(stats.Unmatched) > 0 {
		log.Warn().Strs("columns", stats.Unmatched).Msg("required columns not found upstream, response schema may have changed")
	}

	if tbl.Empty() {
		return p.confirmEmpty(log, outcome, key, fetcher.NewEmptyResponseError(id, kind))
	}

	if err := p.store.Put(key, tbl); err != nil {
		return nil, outcome, err
	}

	outcome.Rows = tbl.Len()
	log.Debug().Int("rows", outcome.Rows).Msg("fetched from upstream")
	return tbl, outcome, nil
}

// confirmEmpty persists the empty sentinel for key and records cause as the skip reason
func (p *Pipeline) confirmEmpty(log zerolog.Logger, outcome fetcher.Result, key string, cause error) (*table.Table, fetcher.Result, error) {
	if err := p.store.Put(key, nil); err != nil {
		return nil, outcome, err
	}
	outcome.Error = cause
	log.Warn().Err(cause).Msg("no data, cached empty result")
	return nil, outcome, nil
}

// skip handles a failed upstream call. Only the caller's context ending is
// fatal; a request timing out on its own fails just this identifier. A client
// error is a definitive answer and is cached as empty; anything else is left
// uncached so a later call retries.
func (p *Pipeline) skip(ctx context.Context, log zerolog.Logger, outcome fetcher.Result, key string, err error) (*table.Table, fetcher.Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, outcome, ctxErr
	}

	if fetcher.TypeOf(err) == fetcher.ErrorTypeClient {
		return p.confirmEmpty(log, outcome, key, err)
	}

	outcome.Error = err
	log.Warn().Err(err).Msg("upstream request failed, will retry on next call")
	return nil, outcome, nil
}

// cleanIdentifiers trims, upper-cases and deduplicates ids, dropping blanks
func cleanIdentifiers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
