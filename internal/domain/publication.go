// Package domain defines the core bibliographic model shared by all
// aggregation components: the deduplicated Publication record, identifier
// normalization rules, and the engine's error taxonomy.
package domain

import (
	"strings"
	"time"
)

// SourceType identifies a publication source.
type SourceType string

// Known source types.
const (
	// SourceTypePubMed identifies the PubMed E-utilities source.
	SourceTypePubMed SourceType = "pubmed"

	// SourceTypeScholar identifies the Semantic Scholar Graph API source.
	SourceTypeScholar SourceType = "scholar"
)

// Publication is a bibliographic record, possibly merged from several sources.
//
// A Publication is created when a source record survives ingestion validation,
// mutated only by identity-resolver merges during a single aggregation run,
// and immutable once scored.
type Publication struct {
	// PMID is the PubMed identifier, digits only. Empty when unknown.
	PMID string `json:"pmid,omitempty"`

	// PMCID is the PubMed Central identifier ("PMC" prefix). Empty when unknown.
	PMCID string `json:"pmcid,omitempty"`

	// DOI is the Digital Object Identifier, lower-cased. Empty when unknown.
	DOI string `json:"doi,omitempty"`

	// Title is the publication title. Required unless an identifier is set.
	Title string `json:"title"`

	// Abstract is the abstract text, when the source provides one.
	Abstract string `json:"abstract,omitempty"`

	// Authors is the ordered author list as display names.
	Authors []string `json:"authors,omitempty"`

	// Journal is the journal or venue name.
	Journal string `json:"journal,omitempty"`

	// PublicationDate is the publication date, nil when unknown.
	PublicationDate *time.Time `json:"publication_date,omitempty"`

	// CitationCount is the citation count reported by the source, >= 0.
	CitationCount int `json:"citation_count"`

	// Source is the source that produced the originating record. After a
	// merge it names the highest-priority contributing source.
	Source SourceType `json:"source"`

	// ContributingSources lists every source that matched this record,
	// deduplicated, in first-seen order.
	ContributingSources []SourceType `json:"contributing_sources,omitempty"`

	// RelevanceScore is the blended relevance score in [0,1], set by the
	// scorer after deduplication.
	RelevanceScore float64 `json:"relevance_score"`

	// MatchReasons explains which scoring components contributed, in the
	// order they were evaluated.
	MatchReasons []string `json:"match_reasons,omitempty"`
}

// NormalizeDOI canonicalizes a DOI: trims whitespace, strips common URL
// prefixes, and lower-cases the result. DOIs are case-insensitive per the
// handle system, so two records differing only in DOI case must compare equal.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			doi = doi[len(prefix):]
			lower = lower[len(prefix):]
		}
	}
	return lower
}

// NormalizePMID trims whitespace and a leading "pmid:" tag if present.
func NormalizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	if len(pmid) > 5 && strings.EqualFold(pmid[:5], "pmid:") {
		pmid = strings.TrimSpace(pmid[5:])
	}
	return pmid
}

// NormalizePMCID trims whitespace and upper-cases the "PMC" prefix, adding it
// when the source reports only the numeric part.
func NormalizePMCID(pmcid string) string {
	pmcid = strings.TrimSpace(pmcid)
	if pmcid == "" {
		return ""
	}
	if len(pmcid) >= 3 && strings.EqualFold(pmcid[:3], "pmc") {
		return "PMC" + pmcid[3:]
	}
	// Some sources return the bare number.
	if isDigits(pmcid) {
		return "PMC" + pmcid
	}
	return pmcid
}

func isDigits(s string) bool {
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

// Normalize applies identifier normalization in place and clamps the citation
// count at zero. Source normalizers call this before validation.
func (p *Publication) Normalize() {
	p.PMID = NormalizePMID(p.PMID)
	p.PMCID = NormalizePMCID(p.PMCID)
	p.DOI = NormalizeDOI(p.DOI)
	p.Title = strings.TrimSpace(p.Title)
	if p.CitationCount < 0 {
		p.CitationCount = 0
	}
}

// HasIdentifier returns true if at least one of PMID, PMCID, or DOI is set.
func (p *Publication) HasIdentifier() bool {
	return p.PMID != "" || p.PMCID != "" || p.DOI != ""
}

// Validate enforces the ingestion invariant: a publication carries at least
// one identifier or a non-empty title. Records failing this are rejected at
// ingestion and never stored.
func (p *Publication) Validate() error {
	if !p.HasIdentifier() && strings.TrimSpace(p.Title) == "" {
		return NewMalformedRecordError(string(p.Source), "record has no identifier and no title")
	}
	return nil
}

// AddContributingSource records that src matched this publication, preserving
// first-seen order and skipping duplicates.
func (p *Publication) AddContributingSource(src SourceType) {
	for _, s := range p.ContributingSources {
		if s == src {
			return
		}
	}
	p.ContributingSources = append(p.ContributingSources, src)
}
