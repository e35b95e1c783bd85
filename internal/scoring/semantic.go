package scoring

import (
	"context"
	"errors"

	"github.com/helixir/publication-aggregator/internal/domain"
)

// ErrSemanticUnavailable signals that the semantic scorer cannot produce a
// score right now. The scorer treats it like an unconfigured collaborator
// and renormalizes weights over the remaining components.
var ErrSemanticUnavailable = errors.New("semantic scorer unavailable")

// SemanticScorer supplies an optional semantic relevance signal in [0,1]
// from an external collaborator (embedding service, LLM, etc.). Provider
// selection and credentials live entirely outside this package.
type SemanticScorer interface {
	ScoreSemantic(ctx context.Context, query string, pub *domain.Publication) (float64, error)
}
