// Package sources provides the interfaces and shared plumbing for publication
// source clients.
//
// Each external bibliographic database implements the Source interface; the
// aggregation coordinator searches the enabled sources concurrently with a
// unified API. The package also provides a rate-limited, retrying HTTP client
// shared by the concrete clients.
package sources

import (
	"context"
	"time"

	"github.com/helixir/publication-aggregator/internal/domain"
)

// SearchParams defines the parameters for searching a publication source.
// All fields except Query are optional.
type SearchParams struct {
	// Query is the search query string (required).
	Query string

	// DateFrom filters publications published on or after this date.
	// If nil, no lower date bound is applied.
	DateFrom *time.Time

	// DateTo filters publications published on or before this date.
	// If nil, no upper date bound is applied.
	DateTo *time.Time

	// MaxResults limits the number of records returned in a single request.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// Offset specifies the starting position for paginated results.
	Offset int

	// MinCitations filters publications to those with at least this many
	// citations. A value of 0 applies no citation filter.
	MinCitations int
}

// SearchResult contains the results from a source search operation.
type SearchResult struct {
	// Publications contains the validated candidate records returned by the
	// search. May be empty if nothing matches.
	Publications []*domain.Publication

	// TotalResults is the total number of records matching the query
	// regardless of pagination limits; may be an estimate.
	TotalResults int

	// HasMore indicates whether additional results are available beyond the
	// current page.
	HasMore bool

	// NextOffset is the offset to use for the next page. Only meaningful
	// when HasMore is true.
	NextOffset int

	// Source identifies which source provided these results.
	Source domain.SourceType

	// Dropped is the number of malformed records discarded during
	// normalization (logged by the client, never fatal to the batch).
	Dropped int

	// SearchDuration is the time taken to execute the search, including
	// network latency and response parsing.
	SearchDuration time.Duration
}

// Source defines the interface that all publication source clients implement.
type Source interface {
	// Search queries the source for publications matching the given
	// parameters. Implementations respect context cancellation, apply their
	// own rate limiting, and normalize source records into
	// domain.Publication candidates, dropping malformed ones.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a specific publication by its source-specific
	// identifier. Returns a wrapped domain.ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*domain.Publication, error)

	// SourceType returns the type identifier for this source, used for
	// attribution, deduplication, and cache keys.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and metrics.
	Name() string

	// IsEnabled returns whether this source is enabled by configuration.
	IsEnabled() bool
}
