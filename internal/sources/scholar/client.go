package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/publication-aggregator/internal/domain"
	"github.com/helixir/publication-aggregator/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	// With an API key, this can be increased.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per request.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,publicationDate,venue,journal,authors,citationCount"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the maximum number of results to return per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.Source interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
	logger     zerolog.Logger
}

// Compile-time check that Client implements Source.
var _ sources.Source = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("source", string(domain.SourceTypeScholar)).Logger(),
	}
}

// NewWithHTTPClient creates a new Semantic Scholar client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("source", string(domain.SourceTypeScholar)).Logger(),
	}
}

// Search queries Semantic Scholar for publications matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("scholar: %w", domain.ErrSourceDisabled)
	}

	start := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	publications, dropped := c.normalizeResults(searchResp.Data)

	// The API filters by year only, so exact date bounds are applied here.
	if params.DateFrom != nil || params.DateTo != nil {
		publications = filterByDate(publications, params.DateFrom, params.DateTo)
	}

	return &sources.SearchResult{
		Publications:   publications,
		TotalResults:   searchResp.Total,
		HasMore:        searchResp.Next > 0,
		NextOffset:     searchResp.Next,
		Source:         domain.SourceTypeScholar,
		Dropped:        dropped,
		SearchDuration: time.Since(start),
	}, nil
}

// GetByID retrieves a specific publication by its Semantic Scholar ID or
// any identifier the API accepts (DOI, PMID:..., PMCID:...).
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Publication, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("scholar: %w", domain.ErrSourceDisabled)
	}

	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(id), paperFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("publication", id)
	}

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	var paperResult PaperResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&paperResult); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	pub := c.resultToPublication(paperResult)
	if err := pub.Validate(); err != nil {
		return nil, err
	}
	return pub, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", params.Query)
	q.Set("fields", paperFields)

	limit := params.MaxResults
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	// The API supports year-granularity filtering only; exact date bounds
	// are applied client-side after the search.
	if params.DateFrom != nil && params.DateTo != nil {
		q.Set("year", fmt.Sprintf("%d-%d", params.DateFrom.Year(), params.DateTo.Year()))
	} else if params.DateFrom != nil {
		q.Set("year", fmt.Sprintf("%d-", params.DateFrom.Year()))
	} else if params.DateTo != nil {
		q.Set("year", fmt.Sprintf("-%d", params.DateTo.Year()))
	}

	if params.MinCitations > 0 {
		q.Set("minCitationCount", strconv.Itoa(params.MinCitations))
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Limit the error body to 1MB.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// normalizeResults converts API results into validated publications, dropping
// and logging malformed records.
func (c *Client) normalizeResults(results []PaperResult) ([]*domain.Publication, int) {
	publications := make([]*domain.Publication, 0, len(results))
	dropped := 0

	for _, result := range results {
		pub := c.resultToPublication(result)
		if err := pub.Validate(); err != nil {
			dropped++
			c.logger.Warn().Err(err).Str("paper_id", result.PaperID).
				Msg("dropping malformed record")
			continue
		}
		publications = append(publications, pub)
	}

	return publications, dropped
}

// resultToPublication converts a single API result to a domain.Publication.
func (c *Client) resultToPublication(result PaperResult) *domain.Publication {
	pub := &domain.Publication{
		Title:         result.Title,
		Abstract:      result.Abstract,
		CitationCount: result.CitationCount,
		Source:        domain.SourceTypeScholar,
	}
	pub.AddContributingSource(domain.SourceTypeScholar)

	if result.ExternalIDs != nil {
		pub.DOI = result.ExternalIDs.DOI
		pub.PMID = result.ExternalIDs.PubMed
		pub.PMCID = result.ExternalIDs.PubMedCentral
	}

	if result.PublicationDate != "" {
		if pubDate, err := time.Parse("2006-01-02", result.PublicationDate); err == nil {
			pub.PublicationDate = &pubDate
		}
	}
	if pub.PublicationDate == nil && result.Year > 0 {
		t := time.Date(result.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		pub.PublicationDate = &t
	}

	if result.Journal != nil && result.Journal.Name != "" {
		pub.Journal = result.Journal.Name
	} else {
		pub.Journal = result.Venue
	}

	pub.Authors = convertAuthors(result.Authors)

	pub.Normalize()
	return pub
}

// convertAuthors converts API authors to ordered display names.
func convertAuthors(apiAuthors []Author) []string {
	if len(apiAuthors) == 0 {
		return nil
	}

	authors := make([]string, 0, len(apiAuthors))
	for _, a := range apiAuthors {
		if a.Name == "" {
			continue
		}
		authors = append(authors, a.Name)
	}
	return authors
}

// filterByDate filters publications by exact publication date bounds.
func filterByDate(publications []*domain.Publication, dateFrom, dateTo *time.Time) []*domain.Publication {
	if dateFrom == nil && dateTo == nil {
		return publications
	}

	filtered := make([]*domain.Publication, 0, len(publications))
	for _, pub := range publications {
		// Records without a date pass through; the year filter already
		// applied server-side is the best available bound for them.
		if pub.PublicationDate == nil {
			filtered = append(filtered, pub)
			continue
		}

		if dateFrom != nil && pub.PublicationDate.Before(*dateFrom) {
			continue
		}
		if dateTo != nil && pub.PublicationDate.After(*dateTo) {
			continue
		}
		filtered = append(filtered, pub)
	}
	return filtered
}
