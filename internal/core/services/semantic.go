package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driving"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SemanticSearch = (*SearchService)(nil)

const (
	// termExtractionTimeout bounds the term-extraction composer call.
	termExtractionTimeout = 5 * time.Second

	// synthesisTimeout bounds the synthesis composer call.
	synthesisTimeout = 12 * time.Second

	// defaultPipelineTimeout bounds the whole pipeline unless the caller
	// overrides it.
	defaultPipelineTimeout = 20 * time.Second

	// maxSearchCandidates caps the merged candidate set.
	maxSearchCandidates = 10

	// perIndexFetch is the raw fetch cap per index query.
	perIndexFetch = 20

	// entityHitPlaceholderRank is the neutral rank assigned to documents
	// reached only through an entity hit.
	entityHitPlaceholderRank = 0.5

	// omittedResultRelevance is the floor relevance for candidates the
	// synthesis response did not mention.
	omittedResultRelevance = 0.1

	// contextSummaryLen bounds each candidate's extraction summary in the
	// synthesis prompt.
	contextSummaryLen = 500

	// maxMentionsPerCandidate bounds the mentions loaded per candidate.
	maxMentionsPerCandidate = 5

	// minTermLen filters short tokens in the whitespace fallback.
	minTermLen = 3

	// timeoutFallbackAnswer is the fixed answer on the global-timeout path.
	timeoutFallbackAnswer = "Search timed out; showing keyword matches."

	// noResultsAnswer is the fixed answer when no candidates are found.
	noResultsAnswer = "No matching documents found."
)

// SearchService answers natural-language questions over a workspace via
// the term-extraction, index-search, context-assembly and synthesis
// pipeline, with a keyword-only fallback under the global timeout.
type SearchService struct {
	index    driven.TextIndex
	entities driven.EntityStore
	catalog  driven.DocumentCatalog
	composer driven.Composer // nil degrades to deterministic stages
	querylog driven.QueryLogStore
}

// NewSearchService creates a new semantic search orchestrator. composer
// may be nil, in which case term extraction and synthesis degrade to
// their deterministic fallbacks.
func NewSearchService(
	index driven.TextIndex,
	entities driven.EntityStore,
	catalog driven.DocumentCatalog,
	composer driven.Composer,
	querylog driven.QueryLogStore,
) *SearchService {
	return &SearchService{
		index:    index,
		entities: entities,
		catalog:  catalog,
		composer: composer,
		querylog: querylog,
	}
}

// searchCandidate is one merged index hit flowing through the pipeline.
type searchCandidate struct {
	documentID string
	title      string
	rank       float64
	snippet    string
	summary    string
	mentions   []domain.Mention
}

// Ask runs the full pipeline for one question. Exactly one query log
// entry is written on every path, including the timeout fallback.
func (s *SearchService) Ask(ctx context.Context, q domain.Question) (*domain.SearchAnswer, error) {
	logger.Section("Semantic search")
	logger.Debug("Query: %q", q.Query)

	if q.WorkspaceID == "" || strings.TrimSpace(q.Query) == "" {
		return nil, domain.ErrInvalidInput
	}
	overall := q.Timeout
	if overall <= 0 {
		overall = defaultPipelineTimeout
	}

	start := time.Now()
	answer, err := firstOf(ctx, overall, func(opCtx context.Context) (*domain.SearchAnswer, error) {
		return s.runPipeline(opCtx, q)
	})
	if err != nil {
		// The fallback and the log write must proceed even though the
		// pipeline deadline has fired.
		fallbackCtx := context.WithoutCancel(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn("Pipeline deadline hit, falling back to keyword search")
			answer = s.keywordFallback(fallbackCtx, q)
		} else {
			// Store-level failure: surface an empty result with a note,
			// never an unhandled error.
			answer = &domain.SearchAnswer{
				Query:  q.Query,
				Answer: noResultsAnswer,
				Notes:  []string{fmt.Sprintf("search degraded: %v", err)},
			}
		}
	}

	answer.Elapsed = time.Since(start)
	s.logQuery(context.WithoutCancel(ctx), q, answer)

	logger.Info("Answered %q: %d results in %s (fellBack=%v)",
		q.Query, len(answer.Results), answer.Elapsed.Round(time.Millisecond), answer.FellBack)
	return answer, nil
}

// runPipeline executes the four sequential stages.
func (s *SearchService) runPipeline(ctx context.Context, q domain.Question) (*domain.SearchAnswer, error) {
	answer := &domain.SearchAnswer{Query: q.Query}

	// Stage 1: term extraction.
	terms := s.extractTerms(ctx, q.Query, answer)

	// Stage 2: candidate gathering over both indexes.
	candidates, err := s.gatherCandidates(ctx, q.WorkspaceID, strings.Join(terms, " "), answer)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		answer.Answer = noResultsAnswer
		return answer, nil
	}

	// Stage 3: context assembly.
	s.assembleContext(ctx, q.WorkspaceID, candidates)

	// Stage 4: synthesis.
	s.synthesize(ctx, q.Query, candidates, answer)
	return answer, nil
}

// extractTerms converts the natural-language query into search terms via
// the composer, degrading to whitespace tokenization with short-word
// filtering on timeout, failure or empty output.
func (s *SearchService) extractTerms(ctx context.Context, query string, answer *domain.SearchAnswer) []string {
	if s.composer == nil {
		return tokenizeQuery(query)
	}

	prompt := "Extract the key search terms from this question. " +
		"Reply with the terms only, separated by spaces.\n\nQUESTION: " + query

	comp, err := firstOf(ctx, termExtractionTimeout, func(opCtx context.Context) (*driven.Composition, error) {
		return s.composer.Compose(opCtx, prompt, driven.ComposeOptions{
			SystemPrompt: "You extract search keywords. Reply with keywords only.",
			MaxTokens:    128,
		})
	})
	if err != nil {
		answer.Notes = append(answer.Notes, fmt.Sprintf("term extraction fell back: %v", err))
		return tokenizeQuery(query)
	}

	terms := strings.Fields(strings.ReplaceAll(comp.Text, ",", " "))
	if len(terms) == 0 {
		answer.Notes = append(answer.Notes, "term extraction fell back: empty response")
		return tokenizeQuery(query)
	}
	logger.Debug("Extracted terms: %v", terms)
	return terms
}

// tokenizeQuery is the deterministic term-extraction fallback: whitespace
// tokens with short words discarded. When every token is short, the raw
// tokens are kept so the query is never silently emptied.
func tokenizeQuery(query string) []string {
	raw := strings.Fields(query)
	terms := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) >= minTermLen {
			terms = append(terms, tok)
		}
	}
	if len(terms) == 0 {
		return raw
	}
	return terms
}

// gatherCandidates searches both indexes with the combined term string
// and merges document IDs. Direct document hits keep their native rank;
// documents reached only through entity hits get a neutral placeholder.
func (s *SearchService) gatherCandidates(
	ctx context.Context, workspaceID, query string, answer *domain.SearchAnswer,
) ([]*searchCandidate, error) {
	byID := make(map[string]*searchCandidate)
	var order []string

	docHits, err := s.index.SearchDocuments(ctx, workspaceID, query, perIndexFetch)
	if err != nil {
		return nil, fmt.Errorf("document index search: %w", err)
	}
	for _, hit := range docHits {
		if _, ok := byID[hit.DocumentID]; ok {
			continue
		}
		byID[hit.DocumentID] = &searchCandidate{
			documentID: hit.DocumentID,
			title:      hit.Title,
			rank:       hit.Score,
			snippet:    hit.Snippet,
		}
		order = append(order, hit.DocumentID)
	}

	entityHits, err := s.index.SearchEntities(ctx, workspaceID, query, perIndexFetch)
	if err != nil {
		// Entity index failure degrades to document hits only.
		answer.Notes = append(answer.Notes, fmt.Sprintf("entity index search failed: %v", err))
		entityHits = nil
	}
	for _, hit := range entityHits {
		docIDs, err := s.entities.DocumentsMentioning(ctx, hit.EntityID, "", perIndexFetch)
		if err != nil {
			answer.Notes = append(answer.Notes, fmt.Sprintf("entity expansion failed: %v", err))
			continue
		}
		for _, id := range docIDs {
			if _, ok := byID[id]; ok {
				continue
			}
			byID[id] = &searchCandidate{
				documentID: id,
				rank:       entityHitPlaceholderRank,
			}
			order = append(order, id)
		}
	}

	if len(order) > maxSearchCandidates {
		order = order[:maxSearchCandidates]
	}
	candidates := make([]*searchCandidate, 0, len(order))
	for _, id := range order {
		candidates = append(candidates, byID[id])
	}
	logger.Debug("Gathered %d candidates (%d document hits, %d entity hits)",
		len(candidates), len(docHits), len(entityHits))
	return candidates, nil
}

// assembleContext loads each candidate's extraction summary and a bounded
// set of mentions. A failing load degrades that candidate's context, not
// the pipeline.
func (s *SearchService) assembleContext(ctx context.Context, workspaceID string, candidates []*searchCandidate) {
	for _, c := range candidates {
		doc, err := s.catalog.GetDocument(ctx, workspaceID, c.documentID)
		if err == nil {
			if c.title == "" {
				c.title = doc.Title
			}
			c.summary = doc.Extraction.Summary(contextSummaryLen)
		} else if !errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Context load for %s failed: %v", c.documentID, err)
		}

		mentions, err := s.entities.MentionsForDocument(ctx, c.documentID, maxMentionsPerCandidate)
		if err == nil {
			c.mentions = mentions
		}
	}
}

// synthesize composes all candidate contexts into one prompt and parses
// the ANSWER/RESULT response. Candidates the model omits are kept at a
// minimal fixed relevance; composer failure degrades to index-rank
// results with a generic answer.
func (s *SearchService) synthesize(
	ctx context.Context, query string, candidates []*searchCandidate, answer *domain.SearchAnswer,
) {
	if s.composer == nil {
		answer.Answer = fmt.Sprintf("Found %d matching documents.", len(candidates))
		answer.Results = resultsFromRanks(candidates)
		return
	}

	prompt := buildSynthesisPrompt(query, candidates)
	comp, err := firstOf(ctx, synthesisTimeout, func(opCtx context.Context) (*driven.Composition, error) {
		return s.composer.Compose(opCtx, prompt, driven.ComposeOptions{
			SystemPrompt: "You answer questions from document summaries and cite your sources.",
			MaxTokens:    2048,
		})
	})
	if err != nil {
		answer.Notes = append(answer.Notes, fmt.Sprintf("synthesis fell back: %v", err))
		answer.Answer = fmt.Sprintf("Found %d matching documents.", len(candidates))
		answer.Results = resultsFromRanks(candidates)
		return
	}

	text, parsed := parseSynthesis(comp.Text, len(candidates))
	if text == "" && len(parsed) == 0 {
		answer.Notes = append(answer.Notes, "synthesis fell back: unparseable response")
		answer.Answer = fmt.Sprintf("Found %d matching documents.", len(candidates))
		answer.Results = resultsFromRanks(candidates)
		return
	}

	answer.Answer = text
	if answer.Answer == "" {
		answer.Answer = fmt.Sprintf("Found %d matching documents.", len(candidates))
	}

	results := make([]domain.SearchResultEntry, 0, len(candidates))
	for i, c := range candidates {
		entry := domain.SearchResultEntry{
			DocumentID: c.documentID,
			Title:      c.title,
			Snippet:    c.snippet,
		}
		if parsedEntry, ok := parsed[i+1]; ok {
			entry.Relevance = parsedEntry.Score
			entry.Entities = parsedEntry.Entities
			entry.Reason = parsedEntry.Reason
		} else {
			// Omitted by the model: floor relevance, never dropped.
			entry.Relevance = omittedResultRelevance
		}
		results = append(results, entry)
	}
	sortResults(results)
	answer.Results = results
}

// buildSynthesisPrompt assembles the line-oriented synthesis request.
func buildSynthesisPrompt(query string, candidates []*searchCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer this question using only the documents below.\n\nQUESTION: %s\n\nDOCUMENTS:\n", query)

	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.title)
		if c.summary != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", c.summary)
		}
		if c.snippet != "" {
			fmt.Fprintf(&b, "   Match: %s\n", c.snippet)
		}
		if len(c.mentions) > 0 {
			contexts := make([]string, 0, len(c.mentions))
			for _, m := range c.mentions {
				if m.Context != "" {
					contexts = append(contexts, m.Context)
				}
			}
			if len(contexts) > 0 {
				fmt.Fprintf(&b, "   Mentions: %s\n", strings.Join(contexts, "; "))
			}
		}
	}

	b.WriteString("\nReply with:\nANSWER: <your answer>\n" +
		"Then one line per relevant document:\n" +
		"RESULT <n>: <relevance 0..1> - <comma-separated entity names> - <reason>\n")
	return b.String()
}

// resultsFromRanks builds the deterministic result list from index ranks.
func resultsFromRanks(candidates []*searchCandidate) []domain.SearchResultEntry {
	results := make([]domain.SearchResultEntry, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, domain.SearchResultEntry{
			DocumentID: c.documentID,
			Title:      c.title,
			Relevance:  clamp01(c.rank),
			Snippet:    c.snippet,
		})
	}
	sortResults(results)
	return results
}

// keywordFallback is the abbreviated global-timeout path: a plain-token
// index search with index-rank relevance and a fixed answer. It bypasses
// the pipeline entirely rather than salvaging partial stage results.
func (s *SearchService) keywordFallback(ctx context.Context, q domain.Question) *domain.SearchAnswer {
	answer := &domain.SearchAnswer{
		Query:    q.Query,
		Answer:   timeoutFallbackAnswer,
		FellBack: true,
	}

	query := strings.Join(tokenizeQuery(q.Query), " ")
	hits, err := s.index.SearchDocuments(ctx, q.WorkspaceID, query, maxSearchCandidates)
	if err != nil {
		answer.Notes = append(answer.Notes, fmt.Sprintf("keyword fallback search failed: %v", err))
		return answer
	}
	for _, hit := range hits {
		answer.Results = append(answer.Results, domain.SearchResultEntry{
			DocumentID: hit.DocumentID,
			Title:      hit.Title,
			Relevance:  clamp01(hit.Score),
			Snippet:    hit.Snippet,
		})
	}
	return answer
}

// logQuery appends the audit record for one invocation. A failing write
// is logged, never surfaced: the answer has already been produced.
func (s *SearchService) logQuery(ctx context.Context, q domain.Question, answer *domain.SearchAnswer) {
	entry := domain.QueryLogEntry{
		ID:          uuid.NewString(),
		WorkspaceID: q.WorkspaceID,
		UserID:      q.UserID,
		Query:       q.Query,
		Answer:      answer.Answer,
		ResultCount: len(answer.Results),
		Results:     answer.Results,
		Elapsed:     answer.Elapsed,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.querylog.Append(ctx, entry); err != nil {
		logger.Warn("Query log write failed: %v", err)
	}
}

// sortResults orders result entries best first with a stable tiebreak.
func sortResults(results []domain.SearchResultEntry) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].DocumentID < results[j].DocumentID
	})
}
