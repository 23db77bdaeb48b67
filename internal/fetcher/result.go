package fetcher

// Source tells where a per-identifier result came from
type Source string

const (
	// SourceCache means the result was served from a fresh cache entry
	SourceCache Source = "cache"
	// SourceUpstream means the result was fetched from the provider
	SourceUpstream Source = "upstream"
)

// Result represents the outcome of fetching one identifier.
// A non-nil Error means the identifier was skipped and contributed no rows.
type Result struct {
	// Identifier is the normalized (upper-cased) ticker
	Identifier string

	Kind   Kind
	Source Source

	// Rows is the number of rows the identifier contributed
	Rows int

	// Dropped counts malformed records removed during normalization
	Dropped int

	// Error contains any error that occurred during the fetch operation.
	Error error
}

// OK reports whether the identifier contributed data
func (r Result) OK() bool {
	return r.Error == nil
}
