package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driving"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

// Ensure RelatedService implements the interface.
var _ driving.RelatedRanker = (*RelatedService)(nil)

const (
	// defaultRelatedLimit bounds the ranked result list.
	defaultRelatedLimit = 10

	// relatedFanOut caps the documents fetched per shared entity.
	relatedFanOut = 50

	// minRerankCandidates is the smallest candidate set worth sending to
	// the composer.
	minRerankCandidates = 3

	// maxRerankCandidates caps the candidates included in one re-rank prompt.
	maxRerankCandidates = 10

	// rerankTimeout bounds the composer call; on expiry the deterministic
	// ranking is returned unchanged.
	rerankTimeout = 10 * time.Second

	// omittedCandidatePenalty discounts candidates the composer did not
	// mention, instead of dropping them.
	omittedCandidatePenalty = 0.8

	// candidateSummaryLen bounds extraction summaries in re-rank prompts.
	candidateSummaryLen = 500
)

// RelatedService ranks documents related to a source document by weighted
// shared-entity overlap, with an optional composer re-rank on top.
type RelatedService struct {
	entities driven.EntityStore
	catalog  driven.DocumentCatalog
	composer driven.Composer // nil disables re-ranking
}

// NewRelatedService creates a new related-documents ranker. composer may
// be nil, in which case only the deterministic ranking runs.
func NewRelatedService(
	entities driven.EntityStore,
	catalog driven.DocumentCatalog,
	composer driven.Composer,
) *RelatedService {
	return &RelatedService{
		entities: entities,
		catalog:  catalog,
		composer: composer,
	}
}

// importanceWeight is the inverse-document-frequency style score for one
// shared entity: entities confined to few documents score near 1.0,
// common entities score near 0.
func importanceWeight(docCount int) float64 {
	if docCount < 1 {
		docCount = 1
	}
	return 1 / math.Log2(float64(docCount)+1)
}

// candidate accumulates one other document's score during ranking.
type candidate struct {
	documentID string
	score      float64
	shared     []domain.Connection
	seen       map[string]struct{}
}

// Related returns other documents sharing canonical entities with the
// source, ranked by weighted overlap.
func (s *RelatedService) Related(
	ctx context.Context, workspaceID, documentID string, opts domain.RelatedOptions,
) (*domain.RelatedResult, error) {
	logger.Section("Related documents")
	logger.Debug("Source: %s", documentID)

	if workspaceID == "" || documentID == "" {
		return nil, domain.ErrInvalidInput
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	result := &domain.RelatedResult{SourceDocumentID: documentID}

	sourceEntities, err := s.entities.EntitiesForDocument(ctx, workspaceID, documentID)
	if err != nil {
		return nil, fmt.Errorf("load source entities: %w", err)
	}
	result.EntityCount = len(sourceEntities)
	if len(sourceEntities) == 0 {
		// A source with no entities yields an empty result, not an error.
		return result, nil
	}

	var sumWeights float64
	for _, de := range sourceEntities {
		sumWeights += importanceWeight(de.Entity.DocumentCount)
	}

	candidates := make(map[string]*candidate)
	for _, de := range sourceEntities {
		weight := importanceWeight(de.Entity.DocumentCount)

		docIDs, err := s.entities.DocumentsMentioning(ctx, de.Entity.ID, documentID, relatedFanOut)
		if err != nil {
			result.Notes = append(result.Notes,
				fmt.Sprintf("fan-out for entity %s failed: %v", de.Entity.ID, err))
			continue
		}
		for _, id := range docIDs {
			c, ok := candidates[id]
			if !ok {
				c = &candidate{documentID: id, seen: make(map[string]struct{})}
				candidates[id] = c
			}
			// An entity counts once per candidate no matter how many
			// mentions connect them.
			if _, dup := c.seen[de.Entity.ID]; dup {
				continue
			}
			c.seen[de.Entity.ID] = struct{}{}
			c.score += weight
			c.shared = append(c.shared, domain.Connection{
				EntityID: de.Entity.ID,
				Name:     de.Entity.Name,
				Type:     de.Entity.Type,
				Weight:   weight,
			})
		}
	}

	ranked := make([]domain.RelatedDocument, 0, len(candidates))
	for _, c := range candidates {
		relevance := 0.0
		if sumWeights > 0 {
			relevance = clamp01(c.score / sumWeights)
		}
		ranked = append(ranked, domain.RelatedDocument{
			DocumentID:     c.documentID,
			Relevance:      relevance,
			SharedEntities: c.shared,
		})
	}
	sortRelated(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	s.attachTitles(ctx, workspaceID, ranked)
	result.Documents = ranked

	if s.composer != nil && !opts.SkipRerank && len(ranked) >= minRerankCandidates {
		s.rerank(ctx, workspaceID, documentID, result)
	}

	logger.Info("Related to %s: %d candidates from %d entities (reranked=%v)",
		documentID, len(result.Documents), result.EntityCount, result.Reranked)
	return result, nil
}

// attachTitles best-effort fills candidate titles from the catalog.
func (s *RelatedService) attachTitles(ctx context.Context, workspaceID string, docs []domain.RelatedDocument) {
	for i := range docs {
		doc, err := s.catalog.GetDocument(ctx, workspaceID, docs[i].DocumentID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Debug("Title lookup for %s failed: %v", docs[i].DocumentID, err)
			}
			continue
		}
		docs[i].Title = doc.Title
	}
}

// rerank asks the composer to reorder the top candidates. Any failure —
// timeout, transport error, or a response with zero parseable lines —
// leaves the deterministic ranking unchanged.
func (s *RelatedService) rerank(ctx context.Context, workspaceID, sourceID string, result *domain.RelatedResult) {
	subset := result.Documents
	if len(subset) > maxRerankCandidates {
		subset = subset[:maxRerankCandidates]
	}

	prompt := s.buildRerankPrompt(ctx, workspaceID, sourceID, subset)

	comp, err := firstOf(ctx, rerankTimeout, func(opCtx context.Context) (*driven.Composition, error) {
		return s.composer.Compose(opCtx, prompt, driven.ComposeOptions{
			SystemPrompt: "You rank document relevance. Reply only with RANK lines.",
			MaxTokens:    1024,
		})
	})
	if err != nil {
		result.Notes = append(result.Notes, fmt.Sprintf("rerank skipped: %v", err))
		logger.Debug("Rerank failed, keeping deterministic order: %v", err)
		return
	}

	entries := parseRankLines(comp.Text, len(subset))
	if len(entries) == 0 {
		result.Notes = append(result.Notes, "rerank skipped: no parseable lines")
		return
	}

	for i := range subset {
		if entry, ok := entries[i+1]; ok {
			subset[i].Relevance = entry.Score
			subset[i].Reason = entry.Reason
		} else {
			// Not mentioned by the model: penalise, never drop.
			subset[i].Relevance = clamp01(subset[i].Relevance * omittedCandidatePenalty)
		}
	}
	sortRelated(result.Documents)
	result.Reranked = true
}

// buildRerankPrompt assembles the line-oriented re-rank request: the
// source summary plus, per candidate, its shared entities and stored
// extraction summary.
func (s *RelatedService) buildRerankPrompt(
	ctx context.Context, workspaceID, sourceID string, subset []domain.RelatedDocument,
) string {
	var b strings.Builder
	b.WriteString("Rank the following candidate documents by relevance to the source document.\n")

	if doc, err := s.catalog.GetDocument(ctx, workspaceID, sourceID); err == nil {
		fmt.Fprintf(&b, "SOURCE: %s\n", doc.Title)
		if summary := doc.Extraction.Summary(candidateSummaryLen); summary != "" {
			fmt.Fprintf(&b, "SOURCE SUMMARY: %s\n", summary)
		}
	}

	b.WriteString("\nCANDIDATES:\n")
	for i, cand := range subset {
		names := make([]string, 0, len(cand.SharedEntities))
		for _, conn := range cand.SharedEntities {
			names = append(names, conn.Name)
		}
		fmt.Fprintf(&b, "%d. %s (shared entities: %s)\n", i+1, cand.Title, strings.Join(names, ", "))
		if doc, err := s.catalog.GetDocument(ctx, workspaceID, cand.DocumentID); err == nil {
			if summary := doc.Extraction.Summary(candidateSummaryLen); summary != "" {
				fmt.Fprintf(&b, "   Summary: %s\n", summary)
			}
		}
	}

	b.WriteString("\nReply with one line per candidate:\nRANK <n>: <relevance 0..1> - <reason>\n")
	return b.String()
}

// sortRelated orders candidates best first, breaking relevance ties by
// document ID for a stable output.
func sortRelated(docs []domain.RelatedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Relevance != docs[j].Relevance {
			return docs[i].Relevance > docs[j].Relevance
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
}
