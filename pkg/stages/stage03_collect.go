package stages

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/evidencestore"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
	"github.com/codeready-toolchain/truthgraph/pkg/search"
)

const (
	StageNameWiki  = "stage03_wiki"
	StageNameWeb   = "stage03_web"
	StageNameMerge = "stage03_merge"
)

// perQueryCap bounds how many candidates a single query contributes, per
// spec.md §4.3 ("merges candidates, capping results per query").
const perQueryCap = 5

// CollectionResult is one branch's collected candidates plus how long
// collection took. It carries no reference into *pipeline.State, so it is
// safe to produce from a goroutine running alongside the other branch.
type CollectionResult struct {
	Candidates []pipeline.EvidenceCandidate
	Elapsed    time.Duration
}

// CollectWikiCandidates runs every wiki query against the evidence store,
// bounded by a process-wide concurrency limiter, and attaches
// trust_prior=1.0. It only reads st (SearchQueries, fixed before fan-out)
// and never mutates it, so it may run concurrently with
// CollectWebCandidates; apply the result with FinishCollectWiki once both
// branches have joined.
func CollectWikiCandidates(ctx context.Context, store *evidencestore.Store, limiter *ratelimit.ProviderLimiter, st *pipeline.State) CollectionResult {
	start := time.Now()

	queries := filterByType(st.SearchQueries, pipeline.QueryWiki)
	candidates := runBounded(ctx, limiter, queries, func(ctx context.Context, q string) []pipeline.EvidenceCandidate {
		title := store.SearchTitle(ctx, q, perQueryCap)
		fulltext := store.SearchFulltext(ctx, q, perQueryCap)
		return append(title, fulltext...)
	})

	return CollectionResult{Candidates: candidates, Elapsed: time.Since(start)}
}

// FinishCollectWiki applies a CollectWikiCandidates result to st. Must run
// after any concurrent CollectWebCandidates goroutine has joined: it writes
// st.WikiCandidates and appends to the shared StageLogs/StageOutputs.
func FinishCollectWiki(st *pipeline.State, res CollectionResult) {
	st.WikiCandidates = res.Candidates
	st.AppendStageLog(StageNameWiki, pipeline.StageSuccess, res.Elapsed, nil)
	st.SetStageOutput(StageNameWiki, map[string]any{"count": len(res.Candidates)})
}

// CollectWiki is CollectWikiCandidates+FinishCollectWiki run back to back,
// for callers that don't need to overlap it with CollectWeb.
func CollectWiki(ctx context.Context, store *evidencestore.Store, limiter *ratelimit.ProviderLimiter, st *pipeline.State) {
	FinishCollectWiki(st, CollectWikiCandidates(ctx, store, limiter, st))
}

// CollectWebCandidates runs every news/web query against the keyed and
// keyless providers, bounded by their own per-provider semaphores.
// Provider failures never propagate: both clients already fail-closed to
// empty. Like CollectWikiCandidates, it never mutates st and is safe to
// run concurrently with it; apply the result with FinishCollectWeb once
// both branches have joined.
func CollectWebCandidates(ctx context.Context, news *search.NewsClient, web *search.WebClient, st *pipeline.State) CollectionResult {
	start := time.Now()

	queries := filterByType(st.SearchQueries, pipeline.QueryNews, pipeline.QueryWeb)

	var mu sync.Mutex
	var candidates []pipeline.EvidenceCandidate
	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			var local []pipeline.EvidenceCandidate
			if news != nil {
				local = append(local, capResults(news.Search(ctx, q), perQueryCap)...)
			}
			if web != nil {
				local = append(local, capResults(web.Search(ctx, q), perQueryCap)...)
			}
			mu.Lock()
			candidates = append(candidates, local...)
			mu.Unlock()
		}(q)
	}
	wg.Wait()

	return CollectionResult{Candidates: candidates, Elapsed: time.Since(start)}
}

// FinishCollectWeb applies a CollectWebCandidates result to st. Must run
// after any concurrent CollectWikiCandidates goroutine has joined.
func FinishCollectWeb(st *pipeline.State, res CollectionResult) {
	st.WebCandidates = res.Candidates
	st.AppendStageLog(StageNameWeb, pipeline.StageSuccess, res.Elapsed, nil)
	st.SetStageOutput(StageNameWeb, map[string]any{"count": len(res.Candidates)})
}

// CollectWeb is CollectWebCandidates+FinishCollectWeb run back to back, for
// callers that don't need to overlap it with CollectWiki.
func CollectWeb(ctx context.Context, news *search.NewsClient, web *search.WebClient, st *pipeline.State) {
	FinishCollectWeb(st, CollectWebCandidates(ctx, news, web, st))
}

// Merge deduplicates wiki+web candidates by (normalized_url, source_type),
// drops low-quality entries (empty snippet, duplicate title, obviously
// irrelevant domain), and produces evidence_candidates + merge stats.
func Merge(st *pipeline.State) {
	start := time.Now()

	type key struct {
		url  string
		kind pipeline.SourceType
	}
	seen := make(map[key]bool)
	seenTitles := make(map[string]bool)

	var merged []pipeline.EvidenceCandidate
	stats := pipeline.Stage03MergeStats{}
	filtered := 0

	all := append(append([]pipeline.EvidenceCandidate{}, st.WikiCandidates...), st.WebCandidates...)
	for _, c := range all {
		if strings.TrimSpace(c.Snippet) == "" {
			filtered++
			continue
		}
		normTitle := strings.ToLower(strings.TrimSpace(c.Title))
		if normTitle != "" && seenTitles[normTitle] {
			filtered++
			continue
		}
		k := key{url: normalizeURL(c.URL), kind: c.SourceType}
		if seen[k] {
			filtered++
			continue
		}
		seen[k] = true
		if normTitle != "" {
			seenTitles[normTitle] = true
		}
		merged = append(merged, c)

		switch c.SourceType {
		case pipeline.SourceWikipedia:
			stats.WikiCount++
		case pipeline.SourceNews:
			stats.NewsCount++
		case pipeline.SourceWebURL:
			stats.WebCount++
		}
	}
	stats.FilteredCount = filtered

	st.EvidenceCandidates = merged
	st.Stage03MergeStats = stats

	if len(merged) == 0 {
		st.RiskFlags.Add(pipelineerr.StageFailure(StageNameMerge))
	}

	st.AppendStageLog(StageNameMerge, pipeline.StageSuccess, time.Since(start), nil)
	st.SetStageOutput(StageNameMerge, map[string]any{
		"merged_count": len(merged), "filtered_count": filtered,
	})
}

func filterByType(queries []pipeline.QueryVariant, types ...pipeline.QueryType) []string {
	want := make(map[pipeline.QueryType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []string
	for _, q := range queries {
		if want[q.Type] {
			out = append(out, q.Text)
		}
	}
	return out
}

func capResults(in []pipeline.EvidenceCandidate, n int) []pipeline.EvidenceCandidate {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

// runBounded fans queries out over limiter's concurrency cap and collects
// all results. A failed Acquire (context done) simply skips that query.
func runBounded(ctx context.Context, limiter *ratelimit.ProviderLimiter, queries []string, fn func(context.Context, string) []pipeline.EvidenceCandidate) []pipeline.EvidenceCandidate {
	var mu sync.Mutex
	var out []pipeline.EvidenceCandidate
	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			release, err := limiter.Acquire(ctx)
			if err != nil {
				return
			}
			defer release()
			res := fn(ctx, q)
			mu.Lock()
			out = append(out, capResults(res, perQueryCap)...)
			mu.Unlock()
		}(q)
	}
	wg.Wait()
	return out
}

func normalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	path := strings.TrimSuffix(u.Path, "/")
	return host + path
}
