package scholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/publication-aggregator/internal/domain"
	"github.com/helixir/publication-aggregator/internal/sources"
)

const searchResponseJSON = `{
	"total": 2,
	"offset": 0,
	"next": 2,
	"data": [
		{
			"paperId": "abc123",
			"externalIds": {
				"DOI": "10.1234/TEST.2023.001",
				"PubMed": "12345678",
				"PubMedCentral": "9876543"
			},
			"title": "CRISPR-Cas9 Gene Editing in Biomedical Research",
			"abstract": "Gene editing technologies have revolutionized biomedical research.",
			"year": 2023,
			"publicationDate": "2023-02-28",
			"venue": "Journal of Testing",
			"journal": {"name": "Journal of Testing", "volume": "25"},
			"authors": [
				{"authorId": "a1", "name": "John A Smith"},
				{"authorId": "a2", "name": "Emily Johnson"}
			],
			"citationCount": 142
		},
		{
			"paperId": "def456",
			"externalIds": {"DOI": "10.5678/mol.2022.050"},
			"title": "Advances in Gene Therapy Delivery Systems",
			"abstract": "This review covers recent advances in delivery systems.",
			"year": 2022,
			"venue": "Molecular Therapy Methods",
			"authors": [{"authorId": "a3", "name": "Michael Brown"}],
			"citationCount": 37
		}
	]
}`

const searchEmptyResponseJSON = `{"total": 0, "offset": 0, "next": 0, "data": []}`

// One valid record and one with neither an identifier nor a title.
const searchMalformedResponseJSON = `{
	"total": 2,
	"offset": 0,
	"next": 0,
	"data": [
		{
			"paperId": "abc123",
			"externalIds": {"DOI": "10.1234/test.2023.001"},
			"title": "Valid Paper",
			"year": 2023,
			"citationCount": 5
		},
		{
			"paperId": "",
			"title": "",
			"year": 2023,
			"citationCount": 0
		}
	]
}`

const paperResponseJSON = `{
	"paperId": "abc123",
	"externalIds": {"DOI": "10.1234/test.2023.001", "PubMed": "12345678"},
	"title": "CRISPR-Cas9 Gene Editing in Biomedical Research",
	"abstract": "Gene editing technologies have revolutionized biomedical research.",
	"year": 2023,
	"publicationDate": "2023-02-28",
	"venue": "Journal of Testing",
	"authors": [{"authorId": "a1", "name": "John A Smith"}],
	"citationCount": 142
}`

// createTestClient builds a client pointed at a test server, with generous
// limits so tests never wait on the token bucket.
func createTestClient(baseURL string, enabled bool) *Client {
	cfg := Config{
		BaseURL:   baseURL,
		Enabled:   enabled,
		RateLimit: 1000,
		BurstSize: 1000,
	}
	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:    5 * time.Second,
		RateLimit:  1000,
		BurstSize:  1000,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	return NewWithHTTPClient(cfg, httpClient, zerolog.Nop())
}

func TestNew(t *testing.T) {
	t.Run("creates client with default config", func(t *testing.T) {
		client := New(Config{Enabled: true}, zerolog.Nop())

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
		assert.True(t, client.IsEnabled())
	})

	t.Run("creates disabled client", func(t *testing.T) {
		client := New(Config{Enabled: false}, zerolog.Nop())
		assert.False(t, client.IsEnabled())
	})
}

func TestClient_SourceType(t *testing.T) {
	client := New(Config{Enabled: true}, zerolog.Nop())
	assert.Equal(t, domain.SourceTypeScholar, client.SourceType())
}

func TestClient_Name(t *testing.T) {
	client := New(Config{Enabled: true}, zerolog.Nop())
	assert.Equal(t, "Semantic Scholar", client.Name())
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search with results", func(t *testing.T) {
		var receivedQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), sources.SearchParams{
			Query:      "CRISPR gene editing",
			MaxResults: 10,
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Contains(t, receivedQuery, "limit=10")
		assert.Equal(t, 2, result.TotalResults)
		assert.Len(t, result.Publications, 2)
		assert.Equal(t, domain.SourceTypeScholar, result.Source)
		assert.True(t, result.HasMore)
		assert.Equal(t, 2, result.NextOffset)

		pub1 := result.Publications[0]
		assert.Equal(t, "12345678", pub1.PMID)
		assert.Equal(t, "PMC9876543", pub1.PMCID) // PMC prefix added on normalize
		assert.Equal(t, "10.1234/test.2023.001", pub1.DOI)
		assert.Equal(t, "CRISPR-Cas9 Gene Editing in Biomedical Research", pub1.Title)
		assert.Equal(t, "Journal of Testing", pub1.Journal)
		assert.Equal(t, 142, pub1.CitationCount)
		assert.Equal(t, []string{"John A Smith", "Emily Johnson"}, pub1.Authors)
		assert.Equal(t, domain.SourceTypeScholar, pub1.Source)
		assert.Equal(t, []domain.SourceType{domain.SourceTypeScholar}, pub1.ContributingSources)

		require.NotNil(t, pub1.PublicationDate)
		assert.Equal(t, 2023, pub1.PublicationDate.Year())
		assert.Equal(t, time.February, pub1.PublicationDate.Month())

		// Year-only record falls back to January 1 and venue as journal.
		pub2 := result.Publications[1]
		require.NotNil(t, pub2.PublicationDate)
		assert.Equal(t, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), *pub2.PublicationDate)
		assert.Equal(t, "Molecular Therapy Methods", pub2.Journal)
	})

	t.Run("search sends year range and citation filter", func(t *testing.T) {
		var receivedQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchEmptyResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		fromDate := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
		toDate := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

		_, err := client.Search(context.Background(), sources.SearchParams{
			Query:        "test",
			DateFrom:     &fromDate,
			DateTo:       &toDate,
			MinCitations: 10,
		})
		require.NoError(t, err)

		assert.Contains(t, receivedQuery, "year=2020-2023")
		assert.Contains(t, receivedQuery, "minCitationCount=10")
	})

	t.Run("date bounds applied client-side", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		// Only the 2023-02-28 record falls inside the window.
		fromDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

		result, err := client.Search(context.Background(), sources.SearchParams{
			Query:    "test",
			DateFrom: &fromDate,
		})
		require.NoError(t, err)
		require.Len(t, result.Publications, 1)
		assert.Equal(t, "CRISPR-Cas9 Gene Editing in Biomedical Research", result.Publications[0].Title)
	})

	t.Run("malformed records are dropped and counted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchMalformedResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), sources.SearchParams{Query: "test"})
		require.NoError(t, err)
		require.Len(t, result.Publications, 1)
		assert.Equal(t, 1, result.Dropped)
		assert.Equal(t, "Valid Paper", result.Publications[0].Title)
	})

	t.Run("empty search results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchEmptyResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), sources.SearchParams{Query: "test"})
		require.NoError(t, err)
		assert.Empty(t, result.Publications)
		assert.False(t, result.HasMore)
	})

	t.Run("disabled source returns error", func(t *testing.T) {
		client := createTestClient("http://localhost:1", false)

		_, err := client.Search(context.Background(), sources.SearchParams{Query: "test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSourceDisabled)
	})

	t.Run("rate limit exhaustion surfaces typed error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), sources.SearchParams{Query: "test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRateLimited)

		var rateLimitErr *domain.RateLimitError
		require.ErrorAs(t, err, &rateLimitErr)
		assert.Equal(t, time.Second, rateLimitErr.RetryAfter)
	})

	t.Run("server error surfaces as source unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), sources.SearchParams{Query: "test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("bad request surfaces API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "unsupported query"}`))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), sources.SearchParams{Query: "test"})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "unsupported query", apiErr.Message)
	})
}

func TestClient_GetByID(t *testing.T) {
	t.Run("retrieves publication by ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/paper/abc123")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(paperResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		pub, err := client.GetByID(context.Background(), "abc123")
		require.NoError(t, err)
		require.NotNil(t, pub)

		assert.Equal(t, "12345678", pub.PMID)
		assert.Equal(t, "10.1234/test.2023.001", pub.DOI)
		assert.Equal(t, "CRISPR-Cas9 Gene Editing in Biomedical Research", pub.Title)
		assert.Equal(t, 142, pub.CitationCount)
	})

	t.Run("returns not found for unknown ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.GetByID(context.Background(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("disabled source returns error", func(t *testing.T) {
		client := createTestClient("http://localhost:1", false)

		_, err := client.GetByID(context.Background(), "abc123")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSourceDisabled)
	})
}
