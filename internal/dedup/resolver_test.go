package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/publication-aggregator/internal/domain"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func pubmedRecord() *domain.Publication {
	return &domain.Publication{
		PMID:                "12345678",
		DOI:                 "10.1234/test.2023.001",
		Title:               "CRISPR-Cas9 Gene Editing in Biomedical Research",
		Abstract:            "Gene editing technologies have revolutionized biomedical research.",
		Authors:             []string{"John A Smith", "Emily Johnson"},
		Journal:             "Journal of Testing",
		PublicationDate:     timePtr(time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)),
		Source:              domain.SourceTypePubMed,
		ContributingSources: []domain.SourceType{domain.SourceTypePubMed},
	}
}

func scholarRecord() *domain.Publication {
	return &domain.Publication{
		DOI:                 "10.1234/TEST.2023.001", // same DOI, different case
		Title:               "CRISPR-Cas9 gene editing in biomedical research.",
		Authors:             []string{"J Smith", "E Johnson", "Michael Brown"},
		Journal:             "J Test",
		CitationCount:       142,
		Source:              domain.SourceTypeScholar,
		ContributingSources: []domain.SourceType{domain.SourceTypeScholar},
	}
}

func TestResolver_Add(t *testing.T) {
	t.Run("distinct records accepted separately", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(&domain.Publication{
			PMID: "111", Title: "First Work", Authors: []string{"John Smith"},
			Source: domain.SourceTypePubMed,
		})
		r.Add(&domain.Publication{
			PMID: "222", Title: "A Completely Different Study", Authors: []string{"Emily Johnson"},
			Source: domain.SourceTypePubMed,
		})

		assert.Len(t, r.Publications(), 2)
		assert.Equal(t, 0, r.Merges())
	})

	t.Run("merge by DOI is case-insensitive", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(pubmedRecord())
		r.Add(scholarRecord())

		pubs := r.Publications()
		require.Len(t, pubs, 1)
		assert.Equal(t, 1, r.Merges())

		merged := pubs[0]
		// PubMed outranks Semantic Scholar for scalar fields.
		assert.Equal(t, domain.SourceTypePubMed, merged.Source)
		assert.Equal(t, "CRISPR-Cas9 Gene Editing in Biomedical Research", merged.Title)
		assert.Equal(t, "Journal of Testing", merged.Journal)
		// Identifiers are unioned; citation count takes the maximum.
		assert.Equal(t, "12345678", merged.PMID)
		assert.Equal(t, "10.1234/test.2023.001", merged.DOI)
		assert.Equal(t, 142, merged.CitationCount)
		// Author union keeps the winner's list and appends new surnames.
		assert.Equal(t, []string{"John A Smith", "Emily Johnson", "Michael Brown"}, merged.Authors)
		assert.ElementsMatch(t, []domain.SourceType{domain.SourceTypePubMed, domain.SourceTypeScholar},
			merged.ContributingSources)
	})

	t.Run("priority rule holds regardless of arrival order", func(t *testing.T) {
		forward := NewResolver(Config{})
		forward.Add(pubmedRecord())
		forward.Add(scholarRecord())

		reverse := NewResolver(Config{})
		reverse.Add(scholarRecord())
		reverse.Add(pubmedRecord())

		fPubs := forward.Publications()
		rPubs := reverse.Publications()
		require.Len(t, fPubs, 1)
		require.Len(t, rPubs, 1)

		assert.Equal(t, fPubs[0].Source, rPubs[0].Source)
		assert.Equal(t, fPubs[0].Title, rPubs[0].Title)
		assert.Equal(t, fPubs[0].Journal, rPubs[0].Journal)
		assert.Equal(t, fPubs[0].CitationCount, rPubs[0].CitationCount)
		assert.Equal(t, fPubs[0].PMID, rPubs[0].PMID)
		assert.Equal(t, fPubs[0].DOI, rPubs[0].DOI)
	})

	t.Run("adding the same record twice is idempotent", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(pubmedRecord())
		r.Add(pubmedRecord())

		pubs := r.Publications()
		require.Len(t, pubs, 1)
		assert.Equal(t, []string{"John A Smith", "Emily Johnson"}, pubs[0].Authors)
		assert.Equal(t, []domain.SourceType{domain.SourceTypePubMed}, pubs[0].ContributingSources)
	})

	t.Run("fuzzy title match with shared author merges", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(&domain.Publication{
			PMID:    "111",
			Title:   "CRISPR-Cas9 gene editing in human cells",
			Authors: []string{"John A Smith"},
			Source:  domain.SourceTypePubMed,
		})
		// No shared identifier; near-identical title and a shared surname.
		r.Add(&domain.Publication{
			DOI:     "10.9999/other",
			Title:   "CRISPR-Cas9 gene editing in human cell",
			Authors: []string{"J Smith", "Emily Johnson"},
			Source:  domain.SourceTypeScholar,
		})

		pubs := r.Publications()
		require.Len(t, pubs, 1)
		assert.Equal(t, "111", pubs[0].PMID)
		assert.Equal(t, "10.9999/other", pubs[0].DOI)
	})

	t.Run("fuzzy match prefers the most similar accepted record", func(t *testing.T) {
		r := NewResolver(Config{})
		// Both accepted records clear the threshold against the candidate,
		// but the second is closer. They do not merge with each other
		// because they share no author surname.
		r.Add(&domain.Publication{
			PMID:    "111",
			Title:   "CRISPR-Cas9 mediated genome editing in primary human T cells",
			Authors: []string{"Michael Brown"},
			Source:  domain.SourceTypePubMed,
		})
		r.Add(&domain.Publication{
			PMID:    "222",
			Title:   "CRISPR-Cas9 mediated gene editing in primary human T cell",
			Authors: []string{"Emily Johnson"},
			Source:  domain.SourceTypePubMed,
		})
		r.Add(&domain.Publication{
			DOI:     "10.9999/candidate",
			Title:   "CRISPR-Cas9 mediated gene editing in primary human T cells",
			Authors: []string{"Michael Brown", "Emily Johnson"},
			Source:  domain.SourceTypeScholar,
		})

		pubs := r.Publications()
		require.Len(t, pubs, 2)
		assert.Equal(t, 1, r.Merges())
		// The candidate merged into the closer title, not the first accepted.
		assert.Empty(t, pubs[0].DOI)
		assert.Equal(t, "222", pubs[1].PMID)
		assert.Equal(t, "10.9999/candidate", pubs[1].DOI)
	})

	t.Run("fuzzy title match without shared author does not merge", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(&domain.Publication{
			PMID:    "111",
			Title:   "CRISPR-Cas9 gene editing in human cells",
			Authors: []string{"John A Smith"},
			Source:  domain.SourceTypePubMed,
		})
		r.Add(&domain.Publication{
			PMID:    "222",
			Title:   "CRISPR-Cas9 gene editing in human cell",
			Authors: []string{"Michael Brown"},
			Source:  domain.SourceTypePubMed,
		})

		assert.Len(t, r.Publications(), 2)
		assert.Equal(t, 0, r.Merges())
	})

	t.Run("fuzzy match requires authors on both sides", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(&domain.Publication{
			PMID:   "111",
			Title:  "CRISPR-Cas9 gene editing in human cells",
			Source: domain.SourceTypePubMed,
		})
		r.Add(&domain.Publication{
			PMID:    "222",
			Title:   "CRISPR-Cas9 gene editing in human cells",
			Authors: []string{"John Smith"},
			Source:  domain.SourceTypePubMed,
		})

		assert.Len(t, r.Publications(), 2)
	})

	t.Run("merged identifiers are indexed for later candidates", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(&domain.Publication{
			PMID:    "111",
			Title:   "CRISPR-Cas9 Gene Editing in Biomedical Research",
			Authors: []string{"John Smith"},
			Source:  domain.SourceTypePubMed,
		})
		// Merges by fuzzy title and contributes a DOI.
		r.Add(&domain.Publication{
			DOI:     "10.1234/test.2023.001",
			Title:   "CRISPR-Cas9 gene editing in biomedical research",
			Authors: []string{"J Smith"},
			Source:  domain.SourceTypeScholar,
		})
		// Matches by the DOI contributed in the previous merge.
		r.Add(&domain.Publication{
			DOI:           "10.1234/TEST.2023.001",
			Title:         "Completely rewritten preprint title",
			Authors:       []string{"John Smith"},
			CitationCount: 7,
			Source:        domain.SourceTypeScholar,
		})

		pubs := r.Publications()
		require.Len(t, pubs, 1)
		assert.Equal(t, 2, r.Merges())
		assert.Equal(t, 7, pubs[0].CitationCount)
	})

	t.Run("filled fields survive priority merge", func(t *testing.T) {
		r := NewResolver(Config{})
		// Higher-priority record with missing scalar fields.
		r.Add(&domain.Publication{
			PMID:    "111",
			Title:   "CRISPR-Cas9 Gene Editing",
			Authors: []string{"John Smith"},
			Source:  domain.SourceTypePubMed,
		})
		r.Add(&domain.Publication{
			PMID:            "111",
			Title:           "CRISPR-Cas9 Gene Editing",
			Abstract:        "An abstract only the lower-priority source has.",
			Journal:         "Journal of Testing",
			PublicationDate: timePtr(time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)),
			Authors:         []string{"John Smith"},
			Source:          domain.SourceTypeScholar,
		})

		pubs := r.Publications()
		require.Len(t, pubs, 1)
		assert.Equal(t, "An abstract only the lower-priority source has.", pubs[0].Abstract)
		assert.Equal(t, "Journal of Testing", pubs[0].Journal)
		require.NotNil(t, pubs[0].PublicationDate)
	})

	t.Run("nil candidate ignored", func(t *testing.T) {
		r := NewResolver(Config{})
		r.Add(nil)
		assert.Empty(t, r.Publications())
	})
}
