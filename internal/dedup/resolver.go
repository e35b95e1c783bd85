package dedup

import (
	"github.com/helixir/publication-aggregator/internal/domain"
)

const (
	// DefaultTitleThreshold is the normalized-title similarity above which two
	// records with a shared author surname are considered the same work.
	DefaultTitleThreshold = 0.90
)

// DefaultSourcePriority orders sources from most to least authoritative for
// scalar field conflicts during merge. PubMed metadata is curated, so it wins
// over Semantic Scholar.
var DefaultSourcePriority = []domain.SourceType{
	domain.SourceTypePubMed,
	domain.SourceTypeScholar,
}

// Config holds the configuration for the identity resolver.
type Config struct {
	// TitleThreshold is the minimum normalized-title similarity for the fuzzy
	// matching path. Defaults to DefaultTitleThreshold if zero.
	TitleThreshold float64

	// SourcePriority orders sources from most to least authoritative.
	// Sources not listed rank below all listed ones.
	// Defaults to DefaultSourcePriority if empty.
	SourcePriority []domain.SourceType
}

// Resolver deduplicates publication candidates from multiple sources.
//
// Candidates are matched first by shared identifiers (PMID, PMCID, DOI), then
// by fuzzy title similarity guarded by author overlap. Matching candidates
// are merged into a single record; the more authoritative source wins
// conflicting scalar fields while identifiers, authors, and contributing
// sources are unioned.
//
// Resolver is not safe for concurrent use; the coordinator resolves each
// aggregation on a single goroutine after the fan-out completes.
type Resolver struct {
	cfg      Config
	priority map[domain.SourceType]int

	byPMID  map[string]*domain.Publication
	byPMCID map[string]*domain.Publication
	byDOI   map[string]*domain.Publication

	accepted []*domain.Publication
	merges   int
}

// NewResolver creates a new identity resolver with the given configuration.
func NewResolver(cfg Config) *Resolver {
	if cfg.TitleThreshold == 0 {
		cfg.TitleThreshold = DefaultTitleThreshold
	}
	if len(cfg.SourcePriority) == 0 {
		cfg.SourcePriority = DefaultSourcePriority
	}

	priority := make(map[domain.SourceType]int, len(cfg.SourcePriority))
	for i, st := range cfg.SourcePriority {
		priority[st] = i
	}

	return &Resolver{
		cfg:      cfg,
		priority: priority,
		byPMID:   make(map[string]*domain.Publication),
		byPMCID:  make(map[string]*domain.Publication),
		byDOI:    make(map[string]*domain.Publication),
	}
}

// Add resolves a candidate against the accepted set, merging it into an
// existing record when it matches by identifier or by fuzzy title, and
// accepting it as a new record otherwise. The candidate is normalized first
// so identifier comparisons are case-insensitive.
func (r *Resolver) Add(candidate *domain.Publication) {
	if candidate == nil {
		return
	}
	candidate.Normalize()

	if existing := r.findByIdentifier(candidate); existing != nil {
		r.merge(existing, candidate)
		return
	}

	if existing := r.findByFuzzyTitle(candidate); existing != nil {
		r.merge(existing, candidate)
		return
	}

	r.accept(candidate)
}

// Publications returns the resolved unique records in acceptance order.
func (r *Resolver) Publications() []*domain.Publication {
	out := make([]*domain.Publication, len(r.accepted))
	copy(out, r.accepted)
	return out
}

// Merges returns the number of candidates that were merged into existing
// records rather than accepted as new ones.
func (r *Resolver) Merges() int {
	return r.merges
}

// findByIdentifier looks the candidate up in the identifier indexes.
func (r *Resolver) findByIdentifier(candidate *domain.Publication) *domain.Publication {
	if candidate.PMID != "" {
		if existing, ok := r.byPMID[candidate.PMID]; ok {
			return existing
		}
	}
	if candidate.PMCID != "" {
		if existing, ok := r.byPMCID[candidate.PMCID]; ok {
			return existing
		}
	}
	if candidate.DOI != "" {
		if existing, ok := r.byDOI[candidate.DOI]; ok {
			return existing
		}
	}
	return nil
}

// findByFuzzyTitle scans the accepted records for the one with the highest
// normalized title similarity at or above the threshold, requiring at least
// one shared author surname. The author guard keeps distinct works with
// near-equal titles (editorials, errata, serial studies) from collapsing.
func (r *Resolver) findByFuzzyTitle(candidate *domain.Publication) *domain.Publication {
	if candidate.Title == "" {
		return nil
	}

	var (
		best    *domain.Publication
		bestSim float64
	)
	for _, existing := range r.accepted {
		sim := TitleSimilarity(existing.Title, candidate.Title)
		if sim < r.cfg.TitleThreshold || sim <= bestSim {
			continue
		}
		if !SharedSurname(existing.Authors, candidate.Authors) {
			continue
		}
		best, bestSim = existing, sim
	}
	return best
}

// accept adds the candidate as a new unique record and indexes its identifiers.
func (r *Resolver) accept(candidate *domain.Publication) {
	r.accepted = append(r.accepted, candidate)
	r.index(candidate)
}

// index registers the record's identifiers in the lookup maps.
func (r *Resolver) index(pub *domain.Publication) {
	if pub.PMID != "" {
		r.byPMID[pub.PMID] = pub
	}
	if pub.PMCID != "" {
		r.byPMCID[pub.PMCID] = pub
	}
	if pub.DOI != "" {
		r.byDOI[pub.DOI] = pub
	}
}

// merge folds the candidate into the existing record in place.
//
// The record from the higher-priority source wins conflicting scalar fields;
// empty winner fields are filled from the loser. Identifiers, authors, and
// contributing sources are unioned. CitationCount takes the maximum, since a
// lower count is always a staler observation of the same work.
func (r *Resolver) merge(existing, candidate *domain.Publication) {
	r.merges++

	winner, loser := existing, candidate
	if r.sourceRank(candidate.Source) < r.sourceRank(existing.Source) {
		winner, loser = candidate, existing
	}

	merged := domain.Publication{
		PMID:          firstNonEmpty(winner.PMID, loser.PMID),
		PMCID:         firstNonEmpty(winner.PMCID, loser.PMCID),
		DOI:           firstNonEmpty(winner.DOI, loser.DOI),
		Title:         firstNonEmpty(winner.Title, loser.Title),
		Abstract:      firstNonEmpty(winner.Abstract, loser.Abstract),
		Journal:       firstNonEmpty(winner.Journal, loser.Journal),
		Source:        winner.Source,
		CitationCount: maxInt(existing.CitationCount, candidate.CitationCount),
	}

	merged.PublicationDate = winner.PublicationDate
	if merged.PublicationDate == nil {
		merged.PublicationDate = loser.PublicationDate
	}

	merged.Authors = UnionAuthors(winner.Authors, loser.Authors)

	merged.ContributingSources = append(merged.ContributingSources, existing.ContributingSources...)
	for _, st := range candidate.ContributingSources {
		merged.AddContributingSource(st)
	}

	*existing = merged

	// Merging may contribute identifiers the record did not have before.
	r.index(existing)
}

// sourceRank returns the priority rank of a source; unlisted sources rank
// below all configured ones.
func (r *Resolver) sourceRank(st domain.SourceType) int {
	if rank, ok := r.priority[st]; ok {
		return rank
	}
	return len(r.cfg.SourcePriority)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
