// Package main provides the command-line entry point for the publication
// aggregation engine. It runs a single aggregated search (or identifier
// lookup) across the configured sources and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"

	"github.com/helixir/publication-aggregator/internal/aggregator"
	"github.com/helixir/publication-aggregator/internal/cache"
	"github.com/helixir/publication-aggregator/internal/config"
	"github.com/helixir/publication-aggregator/internal/dedup"
	"github.com/helixir/publication-aggregator/internal/domain"
	"github.com/helixir/publication-aggregator/internal/observability"
	"github.com/helixir/publication-aggregator/internal/scoring"
	"github.com/helixir/publication-aggregator/internal/sources"
	"github.com/helixir/publication-aggregator/internal/sources/pubmed"
	"github.com/helixir/publication-aggregator/internal/sources/scholar"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		query        = flag.String("query", "", "search query text")
		ids          = flag.String("ids", "", "comma-separated identifiers to look up instead of searching")
		maxResults   = flag.Int("max", 0, "maximum number of results (0 uses the configured default)")
		dateFrom     = flag.String("date-from", "", "earliest publication date filter (YYYY-MM-DD)")
		dateTo       = flag.String("date-to", "", "latest publication date filter (YYYY-MM-DD)")
		minCitations = flag.Int("min-citations", 0, "minimum citation count filter")
		deadline     = flag.Duration("deadline", 0, "overall aggregation deadline (0 uses the configured default)")
		pretty       = flag.Bool("pretty", false, "indent the JSON output")
	)
	flag.Parse()

	if *query == "" && *ids == "" {
		flag.Usage()
		return fmt.Errorf("either -query or -ids is required")
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	logger = logger.With().Str("component", "aggregator").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	// Build the metadata cache.
	store, closeCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	defer closeCache()

	// Register the enabled sources.
	registry := sources.NewRegistry()
	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    cfg.Sources.PubMed.BaseURL,
		APIKey:     cfg.Sources.PubMed.APIKey,
		Timeout:    cfg.Sources.PubMed.Timeout,
		RateLimit:  cfg.Sources.PubMed.RateLimit,
		BurstSize:  cfg.Sources.PubMed.BurstSize,
		MaxResults: cfg.Sources.PubMed.MaxResults,
		Enabled:    cfg.Sources.PubMed.Enabled,
	}, logger))
	registry.Register(scholar.New(scholar.Config{
		BaseURL:    cfg.Sources.SemanticScholar.BaseURL,
		APIKey:     cfg.Sources.SemanticScholar.APIKey,
		Timeout:    cfg.Sources.SemanticScholar.Timeout,
		RateLimit:  cfg.Sources.SemanticScholar.RateLimit,
		BurstSize:  cfg.Sources.SemanticScholar.BurstSize,
		MaxResults: cfg.Sources.SemanticScholar.MaxResults,
		Enabled:    cfg.Sources.SemanticScholar.Enabled,
	}, logger))

	scorer := scoring.NewScorer(scoring.Config{
		Weights:       cfg.Scoring.Weights,
		HalfLifeYears: cfg.Scoring.HalfLifeYears,
		CitationCap:   cfg.Scoring.CitationCap,
	}, nil, logger)

	coordinator := aggregator.NewCoordinator(aggregator.Config{
		MaxConcurrency: cfg.Aggregator.MaxConcurrency,
		SourceTimeout:  cfg.Aggregator.SourceTimeout,
		MaxResults:     cfg.Aggregator.MaxResults,
		SearchCacheTTL: cfg.Cache.SearchTTL,
		RecordCacheTTL: cfg.Cache.RecordTTL,
		Dedup: dedup.Config{
			TitleThreshold: cfg.Dedup.TitleThreshold,
			SourcePriority: sourcePriority(cfg.Dedup.SourcePriority),
		},
	}, registry, store, scorer, metrics, logger)

	var out any
	if *ids != "" {
		pubs, err := coordinator.AggregateLookup(ctx, splitIDs(*ids))
		if err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		out = pubs
	} else {
		overall := *deadline
		if overall == 0 {
			overall = cfg.Aggregator.DefaultDeadline
		}
		result, err := coordinator.AggregateSearch(ctx, *query, *maxResults,
			searchFilters(*dateFrom, *dateTo, *minCitations), overall)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		out = result
	}

	if err := writeJSON(os.Stdout, out, *pretty); err != nil {
		return err
	}

	// With metrics enabled, dump the collected counters to stderr so a single
	// run can be inspected without a scrape endpoint.
	if cfg.Metrics.Enabled {
		if err := dumpMetrics(os.Stderr); err != nil {
			logger.Warn().Err(err).Msg("failed to dump metrics")
		}
	}
	return nil
}

// dumpMetrics writes the default registry's metrics to w in the Prometheus
// text exposition format.
func dumpMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// buildCache constructs the configured cache backend and a cleanup func.
func buildCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addrs:    cfg.Cache.Redis.Addrs,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			redisCache.Close()
			return nil, nil, err
		}
		logger.Info().Strs("addrs", cfg.Cache.Redis.Addrs).Msg("redis cache connected")
		return redisCache, redisCache.Close, nil
	default:
		mem := cache.NewMemory()
		if cfg.Cache.SweepInterval > 0 {
			mem.StartSweeper(ctx, cfg.Cache.SweepInterval)
		}
		return mem, func() {}, nil
	}
}

// searchFilters builds the coordinator filter map from the CLI flags.
func searchFilters(dateFrom, dateTo string, minCitations int) map[string]string {
	filters := make(map[string]string)
	if dateFrom != "" {
		filters[aggregator.FilterDateFrom] = dateFrom
	}
	if dateTo != "" {
		filters[aggregator.FilterDateTo] = dateTo
	}
	if minCitations > 0 {
		filters[aggregator.FilterMinCitations] = fmt.Sprintf("%d", minCitations)
	}
	return filters
}

// splitIDs parses the comma-separated -ids flag, dropping empty entries.
func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// sourcePriority converts configured source names to domain source types.
func sourcePriority(names []string) []domain.SourceType {
	out := make([]domain.SourceType, 0, len(names))
	for _, name := range names {
		out = append(out, domain.SourceType(strings.ToLower(strings.TrimSpace(name))))
	}
	return out
}

func writeJSON(w *os.File, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
