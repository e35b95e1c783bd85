// Package aggregator orchestrates multi-source publication searches: it fans
// out to the enabled sources with bounded concurrency, consults the metadata
// cache around each fetch, resolves duplicates, scores the unique records,
// and assembles a ranked result with partial-failure metadata.
package aggregator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/helixir/publication-aggregator/internal/cache"
	"github.com/helixir/publication-aggregator/internal/dedup"
	"github.com/helixir/publication-aggregator/internal/domain"
	"github.com/helixir/publication-aggregator/internal/observability"
	"github.com/helixir/publication-aggregator/internal/scoring"
	"github.com/helixir/publication-aggregator/internal/sources"
)

const (
	// DefaultMaxConcurrency bounds the number of in-flight source fetches.
	DefaultMaxConcurrency = 10

	// DefaultSourceTimeout is the per-source fetch timeout, kept well below
	// typical overall deadlines so one slow source cannot dominate.
	DefaultSourceTimeout = 15 * time.Second

	// DefaultMaxResults is the result set size when the caller passes 0.
	DefaultMaxResults = 20

	// DefaultSearchCacheTTL is how long cached search pages stay live.
	DefaultSearchCacheTTL = 15 * time.Minute

	// DefaultRecordCacheTTL is how long cached individual records stay live.
	DefaultRecordCacheTTL = 24 * time.Hour
)

// Filter keys accepted by AggregateSearch.
const (
	FilterDateFrom     = "date_from" // YYYY-MM-DD
	FilterDateTo       = "date_to"   // YYYY-MM-DD
	FilterMinCitations = "min_citations"
)

// SourceFailure records a source that contributed no records and why.
type SourceFailure struct {
	Source domain.SourceType `json:"source"`
	Reason string            `json:"reason"`
}

// Result is the outcome of one aggregation run.
type Result struct {
	// Publications is the ranked, deduplicated, truncated result set.
	Publications []*domain.Publication `json:"publications"`

	// SourcesUsed lists the sources that contributed records.
	SourcesUsed []domain.SourceType `json:"sources_used"`

	// SourcesFailed lists the sources that failed or timed out.
	SourcesFailed []SourceFailure `json:"sources_failed"`

	// TotalDeduplicated is the number of candidates absorbed by merges:
	// the candidate count before resolution minus the unique count after.
	TotalDeduplicated int `json:"total_deduplicated"`

	// CandidateCount is the number of validated candidates before resolution.
	CandidateCount int `json:"candidate_count"`
}

// Config holds the configuration for the coordinator.
type Config struct {
	// MaxConcurrency bounds concurrent source fetches.
	// Defaults to DefaultMaxConcurrency if zero.
	MaxConcurrency int64

	// SourceTimeout is the per-source fetch timeout.
	// Defaults to DefaultSourceTimeout if zero.
	SourceTimeout time.Duration

	// MaxResults is the default result set size.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// SearchCacheTTL is the TTL for cached search pages.
	// Defaults to DefaultSearchCacheTTL if zero.
	SearchCacheTTL time.Duration

	// RecordCacheTTL is the TTL for cached individual records.
	// Defaults to DefaultRecordCacheTTL if zero.
	RecordCacheTTL time.Duration

	// Dedup configures the identity resolver built for each run.
	Dedup dedup.Config
}

// Coordinator runs aggregated searches over the registered sources.
// It is safe for concurrent use; each run builds its own resolver.
type Coordinator struct {
	cfg      Config
	registry *sources.Registry
	cache    cache.Cache
	scorer   *scoring.Scorer
	metrics  *observability.Metrics
	logger   zerolog.Logger
	sem      *semaphore.Weighted
}

// NewCoordinator creates a new aggregation coordinator.
func NewCoordinator(
	cfg Config,
	registry *sources.Registry,
	c cache.Cache,
	scorer *scoring.Scorer,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Coordinator {
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.SourceTimeout == 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.SearchCacheTTL == 0 {
		cfg.SearchCacheTTL = DefaultSearchCacheTTL
	}
	if cfg.RecordCacheTTL == 0 {
		cfg.RecordCacheTTL = DefaultRecordCacheTTL
	}

	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		cache:    c,
		scorer:   scorer,
		metrics:  metrics,
		logger:   logger,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrency),
	}
}

// sourceOutcome carries the result of one source fetch back to the collector.
type sourceOutcome struct {
	source  domain.SourceType
	pubs    []*domain.Publication
	dropped int
	err     error
}

// AggregateSearch runs one aggregated search across the enabled sources.
//
// Sources are fetched concurrently under the semaphore bound, each with its
// own timeout. When the overall deadline expires, collection stops and the
// unfinished sources are recorded in SourcesFailed; whatever arrived in time
// still flows through resolution and scoring (partial-result-on-timeout).
// The only hard error is every source failing.
func (co *Coordinator) AggregateSearch(
	ctx context.Context,
	query string,
	maxResults int,
	filters map[string]string,
	deadline time.Duration,
) (*Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if maxResults <= 0 {
		maxResults = co.cfg.MaxResults
	}

	params, err := buildSearchParams(query, filters)
	if err != nil {
		return nil, err
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	runID := uuid.New().String()
	logger := observability.WithAggregationContext(co.logger, runID, query)

	enabled := co.registry.EnabledSources()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("%w: no sources enabled", domain.ErrAllSourcesFailed)
	}

	start := time.Now()
	co.metrics.RecordAggregationStarted()
	logger.Info().Int("sources", len(enabled)).Msg("aggregation started")

	outcomes := make(chan sourceOutcome, len(enabled))
	for _, src := range enabled {
		go co.fetchSource(ctx, src, params, logger, outcomes)
	}

	result := co.collect(ctx, enabled, outcomes, logger)

	if len(result.SourcesUsed) == 0 {
		co.metrics.RecordAggregationFailed(time.Since(start).Seconds())
		logger.Error().Interface("failures", result.SourcesFailed).Msg("all sources failed")
		return nil, fmt.Errorf("%w: %d sources attempted", domain.ErrAllSourcesFailed, len(enabled))
	}

	co.assemble(ctx, result, query, maxResults, params.MinCitations)

	co.metrics.RecordAggregationCompleted(time.Since(start).Seconds())
	logger.Info().
		Int("unique", len(result.Publications)).
		Int("candidates", result.CandidateCount).
		Int("merged", result.TotalDeduplicated).
		Int("sources_used", len(result.SourcesUsed)).
		Int("sources_failed", len(result.SourcesFailed)).
		Dur("duration", time.Since(start)).
		Msg("aggregation completed")

	return result, nil
}

// fetchSource fetches one source's results, consulting the search cache
// before the network and writing back after a successful fetch.
func (co *Coordinator) fetchSource(
	ctx context.Context,
	src sources.Source,
	params sources.SearchParams,
	logger zerolog.Logger,
	outcomes chan<- sourceOutcome,
) {
	st := src.SourceType()
	srcLogger := observability.WithSourceContext(logger, string(st))

	if err := co.sem.Acquire(ctx, 1); err != nil {
		outcomes <- sourceOutcome{source: st, err: fmt.Errorf("acquiring slot: %w", err)}
		return
	}
	defer co.sem.Release(1)

	key := searchKey(st, params)

	if pubs, ok := co.cachedSearch(ctx, key); ok {
		srcLogger.Debug().Int("records", len(pubs)).Msg("search served from cache")
		co.metrics.RecordCacheHits("search", 1)
		outcomes <- sourceOutcome{source: st, pubs: pubs}
		return
	}
	co.metrics.RecordCacheMisses("search", 1)

	fetchCtx, cancel := context.WithTimeout(ctx, co.cfg.SourceTimeout)
	defer cancel()

	co.metrics.RecordSearchStarted(string(st))
	fetchStart := time.Now()

	result, err := src.Search(fetchCtx, params)
	if err != nil {
		co.metrics.RecordSearchFailed(string(st), errorType(err), time.Since(fetchStart).Seconds())
		srcLogger.Warn().Err(err).Msg("source search failed")
		outcomes <- sourceOutcome{source: st, err: err}
		return
	}

	co.metrics.RecordSearchCompleted(string(st), len(result.Publications), time.Since(fetchStart).Seconds())
	for i := 0; i < result.Dropped; i++ {
		co.metrics.RecordRecordDropped(string(st))
	}

	co.storeSearch(ctx, key, result.Publications, srcLogger)

	outcomes <- sourceOutcome{source: st, pubs: result.Publications, dropped: result.Dropped}
}

// collect gathers outcomes until every source reports or the deadline
// expires, recording unfinished sources as timed out.
func (co *Coordinator) collect(
	ctx context.Context,
	enabled []sources.Source,
	outcomes <-chan sourceOutcome,
	logger zerolog.Logger,
) *Result {
	result := &Result{}
	pending := make(map[domain.SourceType]struct{}, len(enabled))
	for _, src := range enabled {
		pending[src.SourceType()] = struct{}{}
	}

	var candidates []*domain.Publication

	for len(pending) > 0 {
		select {
		case outcome := <-outcomes:
			delete(pending, outcome.source)
			if outcome.err != nil {
				result.SourcesFailed = append(result.SourcesFailed, SourceFailure{
					Source: outcome.source,
					Reason: outcome.err.Error(),
				})
				continue
			}
			result.SourcesUsed = append(result.SourcesUsed, outcome.source)
			candidates = append(candidates, outcome.pubs...)

		case <-ctx.Done():
			for st := range pending {
				result.SourcesFailed = append(result.SourcesFailed, SourceFailure{
					Source: st,
					Reason: "deadline exceeded",
				})
			}
			logger.Warn().Int("unfinished", len(pending)).
				Msg("deadline expired, returning partial results")
			pending = nil
		}
	}

	result.CandidateCount = len(candidates)
	result.Publications = candidates
	return result
}

// assemble resolves duplicates, scores, sorts, and truncates in place.
// result.Publications holds the raw candidates on entry and the final ranked
// set on return.
func (co *Coordinator) assemble(ctx context.Context, result *Result, query string, maxResults, minCitations int) {
	resolver := dedup.NewResolver(co.cfg.Dedup)
	for _, candidate := range result.Publications {
		resolver.Add(candidate)
	}

	unique := resolver.Publications()
	result.TotalDeduplicated = result.CandidateCount - len(unique)
	co.metrics.RecordRecordsMerged(resolver.Merges())

	// The citation floor is enforced here rather than per source: PubMed
	// reports no citation counts, and the merge takes the maximum across
	// sources, so only the merged record can be judged fairly.
	if minCitations > 0 {
		unique = filterMinCitations(unique, minCitations)
	}

	co.scorer.Rank(ctx, unique, query)

	if len(unique) > maxResults {
		unique = unique[:maxResults]
	}
	result.Publications = unique
}

// filterMinCitations drops records below the citation floor.
func filterMinCitations(pubs []*domain.Publication, floor int) []*domain.Publication {
	kept := pubs[:0]
	for _, pub := range pubs {
		if pub.CitationCount >= floor {
			kept = append(kept, pub)
		}
	}
	return kept
}

// AggregateLookup retrieves publications by identifier, serving what it can
// from the cache in one batch read and fetching only the misses.
//
// Numeric identifiers are resolved through PubMed; everything else (DOIs,
// Semantic Scholar IDs) goes to Semantic Scholar. Identifiers that no source
// knows are skipped; the call fails only when no identifiers are given.
func (co *Coordinator) AggregateLookup(ctx context.Context, ids []string) ([]*domain.Publication, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no identifiers", domain.ErrInvalidInput)
	}

	type lookup struct {
		id  string
		src sources.Source
		key string
	}

	lookups := make([]lookup, 0, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		src := co.sourceForID(id)
		if src == nil {
			co.logger.Warn().Str("id", id).Msg("no enabled source can resolve identifier")
			continue
		}
		key := recordKey(src.SourceType(), id)
		lookups = append(lookups, lookup{id: id, src: src, key: key})
		keys = append(keys, key)
	}
	if len(lookups) == 0 {
		return nil, fmt.Errorf("%w: no resolvable identifiers", domain.ErrInvalidInput)
	}

	hits, _, err := co.cache.BatchGet(ctx, keys)
	if err != nil {
		co.logger.Warn().Err(err).Msg("cache batch read failed, fetching all")
		hits = map[string][]byte{}
	}
	co.metrics.RecordCacheHits("record", len(hits))
	co.metrics.RecordCacheMisses("record", len(keys)-len(hits))

	pubs := make([]*domain.Publication, 0, len(lookups))
	for _, l := range lookups {
		if blob, ok := hits[l.key]; ok {
			var pub domain.Publication
			if err := json.Unmarshal(blob, &pub); err == nil {
				pubs = append(pubs, &pub)
				continue
			}
			co.logger.Warn().Str("key", l.key).Msg("discarding undecodable cache entry")
		}

		fetchCtx, cancel := context.WithTimeout(ctx, co.cfg.SourceTimeout)
		pub, err := l.src.GetByID(fetchCtx, l.id)
		cancel()
		if err != nil {
			co.logger.Warn().Err(err).Str("id", l.id).Msg("identifier lookup failed")
			continue
		}

		co.storeRecord(ctx, l.key, pub)
		pubs = append(pubs, pub)
	}

	return pubs, nil
}

// sourceForID picks the enabled source responsible for an identifier.
func (co *Coordinator) sourceForID(id string) sources.Source {
	st := domain.SourceTypeScholar
	if isNumeric(id) {
		st = domain.SourceTypePubMed
	}

	if src := co.registry.Get(st); src != nil && src.IsEnabled() {
		return src
	}
	// Fall back to any enabled source; Semantic Scholar accepts PMIDs too.
	for _, src := range co.registry.EnabledSources() {
		return src
	}
	return nil
}

// cachedSearch tries to serve a search page from the cache. Backend errors
// are logged and treated as misses.
func (co *Coordinator) cachedSearch(ctx context.Context, key string) ([]*domain.Publication, bool) {
	blob, err := co.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			co.metrics.RecordCacheError("get")
			co.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, fetching directly")
		}
		return nil, false
	}

	var pubs []*domain.Publication
	if err := json.Unmarshal(blob, &pubs); err != nil {
		co.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return pubs, true
}

// storeSearch writes a search page back to the cache. Failures are logged,
// never fatal.
func (co *Coordinator) storeSearch(ctx context.Context, key string, pubs []*domain.Publication, logger zerolog.Logger) {
	blob, err := json.Marshal(pubs)
	if err != nil {
		logger.Warn().Err(err).Msg("encoding search page for cache failed")
		return
	}
	if err := co.cache.Set(ctx, key, blob, co.cfg.SearchCacheTTL); err != nil {
		co.metrics.RecordCacheError("set")
		logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// storeRecord writes a single record to the cache. Failures are logged,
// never fatal.
func (co *Coordinator) storeRecord(ctx context.Context, key string, pub *domain.Publication) {
	blob, err := json.Marshal(pub)
	if err != nil {
		co.logger.Warn().Err(err).Msg("encoding record for cache failed")
		return
	}
	if err := co.cache.Set(ctx, key, blob, co.cfg.RecordCacheTTL); err != nil {
		co.metrics.RecordCacheError("set")
		co.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// buildSearchParams parses caller filters into source search parameters.
func buildSearchParams(query string, filters map[string]string) (sources.SearchParams, error) {
	params := sources.SearchParams{Query: query}

	if v, ok := filters[FilterDateFrom]; ok {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, fmt.Errorf("%w: invalid %s: %v", domain.ErrInvalidInput, FilterDateFrom, err)
		}
		params.DateFrom = &t
	}
	if v, ok := filters[FilterDateTo]; ok {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, fmt.Errorf("%w: invalid %s: %v", domain.ErrInvalidInput, FilterDateTo, err)
		}
		params.DateTo = &t
	}
	if v, ok := filters[FilterMinCitations]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return params, fmt.Errorf("%w: invalid %s: %q", domain.ErrInvalidInput, FilterMinCitations, v)
		}
		params.MinCitations = n
	}

	return params, nil
}

// searchKey builds the cache key for one source's view of a search.
func searchKey(st domain.SourceType, params sources.SearchParams) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%v|%v|%d|%d|%d",
		params.Query, params.DateFrom, params.DateTo,
		params.MaxResults, params.Offset, params.MinCitations)
	return fmt.Sprintf("search:%s:%s", st, hex.EncodeToString(h.Sum(nil)[:16]))
}

// recordKey builds the cache key for a single record.
func recordKey(st domain.SourceType, id string) string {
	return fmt.Sprintf("pub:%s:%s", st, id)
}

// errorType buckets an error for the failure metric label.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
