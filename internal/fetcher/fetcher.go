package fetcher

import (
	"context"
	"fmt"
	"strings"
)

// Kind is the category of fundamentals data fetched for an identifier
type Kind string

const (
	// KindEarnings is the quarterly EPS history (actual, estimate, surprise)
	KindEarnings Kind = "earnings"
	// KindValuation is a snapshot of named valuation metrics
	KindValuation Kind = "valuation"
	// KindRevenue is the annual and quarterly income statement history
	KindRevenue Kind = "revenue"
	// KindCashFlow is the annual and quarterly cash flow statement history
	KindCashFlow Kind = "cashflow"
)

// Kinds lists every supported data kind
var Kinds = []Kind{KindEarnings, KindValuation, KindRevenue, KindCashFlow}

// ParseKind converts a user supplied name into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown data kind %q", s)
}

// Provider is the upstream finance data source.
// Every call is fallible and rate limited, and the returned payloads are raw
// JSON whose field names are not guaranteed to be stable.
type Provider interface {
	// ProbeIdentifier reports whether the identifier is known upstream.
	// A false result with a nil error means the identifier was rejected.
	ProbeIdentifier(ctx context.Context, identifier string) (bool, error)

	// FetchEarnings returns the raw EPS history response
	FetchEarnings(ctx context.Context, identifier string) ([]byte, error)

	// FetchValuation returns the raw valuation snapshot response
	FetchValuation(ctx context.Context, identifier string) ([]byte, error)

	// FetchRevenue returns the raw income statement response
	FetchRevenue(ctx context.Context, identifier string) ([]byte, error)

	// FetchCashFlow returns the raw cash flow statement response
	FetchCashFlow(ctx context.Context, identifier string) ([]byte, error)
}

// Fetch dispatches to the Provider method serving kind
func Fetch(ctx context.Context, p Provider, kind Kind, identifier string) ([]byte, error) {
	switch kind {
	case KindEarnings:
		return p.FetchEarnings(ctx, identifier)
	case KindValuation:
		return p.FetchValuation(ctx, identifier)
	case KindRevenue:
		return p.FetchRevenue(ctx, identifier)
	case KindCashFlow:
		return p.FetchCashFlow(ctx, identifier)
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown data kind %q", kind))
	}
}
