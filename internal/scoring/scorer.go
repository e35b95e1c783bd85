// Package scoring ranks deduplicated publications against the originating
// query. The score is a weighted blend of keyword, recency, citation, and
// optional semantic sub-scores, each normalized to [0,1], with human-readable
// reasons for explainability.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/publication-aggregator/internal/domain"
)

const (
	// DefaultHalfLifeYears is the recency half-life: a publication this many
	// years old scores half of a brand-new one.
	DefaultHalfLifeYears = 5.0

	// DefaultCitationCap is the citation count at which the citation
	// sub-score saturates at 1.0.
	DefaultCitationCap = 1000

	// neutralRecency is the recency sub-score for records without a
	// publication date.
	neutralRecency = 0.5
)

// Weights holds the blend weights for the scoring components. Weights need
// not sum to 1; the blend normalizes by the sum of present weights. Each
// weight must lie in [0,1].
type Weights struct {
	Title     float64 `mapstructure:"title" validate:"min=0,max=1"`
	Abstract  float64 `mapstructure:"abstract" validate:"min=0,max=1"`
	Recency   float64 `mapstructure:"recency" validate:"min=0,max=1"`
	Citations float64 `mapstructure:"citations" validate:"min=0,max=1"`
	Semantic  float64 `mapstructure:"semantic" validate:"min=0,max=1"`
}

// DefaultWeights returns the default component weights.
func DefaultWeights() Weights {
	return Weights{
		Title:     0.35,
		Abstract:  0.15,
		Recency:   0.20,
		Citations: 0.20,
		Semantic:  0.10,
	}
}

// Validate checks that all weights are within bounds and that at least one
// is positive.
func (w Weights) Validate() error {
	if err := validator.New().Struct(w); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if w.Title+w.Abstract+w.Recency+w.Citations+w.Semantic == 0 {
		return fmt.Errorf("%w: all scoring weights are zero", domain.ErrInvalidInput)
	}
	return nil
}

// Config holds the configuration for the relevance scorer.
type Config struct {
	// Weights are the blend weights. Zero value uses DefaultWeights.
	Weights Weights

	// HalfLifeYears is the recency decay half-life in years.
	// Defaults to DefaultHalfLifeYears if zero.
	HalfLifeYears float64

	// CitationCap is the citation count at which the citation sub-score
	// saturates. Defaults to DefaultCitationCap if zero.
	CitationCap int
}

// Scorer computes bounded relevance scores for publications.
// It is safe for concurrent use.
type Scorer struct {
	cfg      Config
	semantic SemanticScorer
	logger   zerolog.Logger

	// now is swappable for deterministic recency tests.
	now func() time.Time
}

// NewScorer creates a new relevance scorer. semantic may be nil, in which
// case the semantic component is omitted and its weight renormalizes away.
func NewScorer(cfg Config, semantic SemanticScorer, logger zerolog.Logger) *Scorer {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.HalfLifeYears == 0 {
		cfg.HalfLifeYears = DefaultHalfLifeYears
	}
	if cfg.CitationCap == 0 {
		cfg.CitationCap = DefaultCitationCap
	}

	return &Scorer{
		cfg:      cfg,
		semantic: semantic,
		logger:   logger.With().Str("component", "scorer").Logger(),
		now:      time.Now,
	}
}

// Score computes the relevance of a publication for the query, returning the
// blended score in [0,1] and a reason string per component that contributed
// non-trivially.
func (s *Scorer) Score(ctx context.Context, pub *domain.Publication, query string) (float64, []string) {
	terms := queryTerms(query)

	var (
		weightSum float64
		scoreSum  float64
		reasons   []string
	)

	add := func(weight, score float64, reason string) {
		weightSum += weight
		scoreSum += weight * score
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	titleScore, titleReason := termScore(pub.Title, query, terms, "title")
	add(s.cfg.Weights.Title, titleScore, titleReason)

	abstractScore, abstractReason := termScore(pub.Abstract, query, terms, "abstract")
	add(s.cfg.Weights.Abstract, abstractScore, abstractReason)

	recencyScore, recencyReason := s.recencyScore(pub.PublicationDate)
	add(s.cfg.Weights.Recency, recencyScore, recencyReason)

	citationScore, citationReason := s.citationScore(pub.CitationCount)
	add(s.cfg.Weights.Citations, citationScore, citationReason)

	if semScore, ok := s.semanticScore(ctx, pub, query); ok {
		add(s.cfg.Weights.Semantic, semScore, fmt.Sprintf("semantic similarity %.2f", semScore))
	}

	if weightSum == 0 {
		return 0, reasons
	}

	return clamp01(scoreSum / weightSum), reasons
}

// Rank scores every publication in place and sorts them by score descending,
// breaking ties by citation count and then by publication date, most recent
// first.
func (s *Scorer) Rank(ctx context.Context, pubs []*domain.Publication, query string) {
	for _, pub := range pubs {
		score, reasons := s.Score(ctx, pub, query)
		pub.RelevanceScore = score
		pub.MatchReasons = reasons
	}
	SortByScore(pubs)
}

// SortByScore sorts publications by relevance score descending, then by
// citation count descending, then by publication date, most recent first.
// The sort is stable so equal records keep their resolution order.
func SortByScore(pubs []*domain.Publication) {
	sort.SliceStable(pubs, func(i, j int) bool {
		a, b := pubs[i], pubs[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.CitationCount != b.CitationCount {
			return a.CitationCount > b.CitationCount
		}
		switch {
		case a.PublicationDate == nil:
			return false
		case b.PublicationDate == nil:
			return true
		default:
			return a.PublicationDate.After(*b.PublicationDate)
		}
	})
}

// termScore scores a text field against the query: an exact substring match
// scores 1.0; otherwise the fraction of query terms present in the field.
func termScore(text, query string, terms []string, field string) (float64, string) {
	if text == "" || len(terms) == 0 {
		return 0, ""
	}

	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	if lowerQuery != "" && strings.Contains(lowerText, lowerQuery) {
		return 1.0, field + " contains query"
	}

	matched := 0
	for _, term := range terms {
		if strings.Contains(lowerText, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0, ""
	}

	return float64(matched) / float64(len(terms)),
		fmt.Sprintf("%s matches %d/%d query terms", field, matched, len(terms))
}

// recencyScore applies exponential decay with the configured half-life.
// Unknown dates receive a neutral score with no reason.
func (s *Scorer) recencyScore(date *time.Time) (float64, string) {
	if date == nil {
		return neutralRecency, ""
	}

	ageYears := s.now().Sub(*date).Hours() / (24 * 365.25)
	if ageYears < 0 {
		ageYears = 0
	}

	score := math.Exp(-ageYears * math.Ln2 / s.cfg.HalfLifeYears)
	return score, fmt.Sprintf("published %s", date.Format("2006-01-02"))
}

// citationScore maps citation counts onto [0,1] with logarithmic saturation
// at the configured cap, so extreme outliers cannot dominate.
func (s *Scorer) citationScore(citations int) (float64, string) {
	if citations <= 0 {
		return 0, ""
	}

	score := math.Log(float64(citations)+1) / math.Log(float64(s.cfg.CitationCap)+1)
	if score > 1 {
		score = 1
	}

	return score, fmt.Sprintf("%d citations", citations)
}

// semanticScore consults the optional collaborator. A nil scorer, an
// unavailability signal, or any other error omits the component so its
// weight renormalizes away.
func (s *Scorer) semanticScore(ctx context.Context, pub *domain.Publication, query string) (float64, bool) {
	if s.semantic == nil || s.cfg.Weights.Semantic == 0 {
		return 0, false
	}

	score, err := s.semantic.ScoreSemantic(ctx, query, pub)
	if err != nil {
		s.logger.Debug().Err(err).Msg("semantic score omitted")
		return 0, false
	}

	return clamp01(score), true
}

// queryTerms splits a query into lowercase terms for matching.
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
