package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/llmjson"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

const StageNameQuerygen = "stage02_querygen"

type querygenSchema struct {
	Claims []querygenClaimSchema `json:"claims"`
}

type querygenClaimSchema struct {
	ClaimID         string          `json:"claim_id"`
	ClaimType       string          `json:"claim_type"`
	TimeSensitivity string          `json:"time_sensitivity"`
	QueryPack       queryPackSchema `json:"query_pack"`
}

type queryPackSchema struct {
	WikiDB     []wikiQuerySchema `json:"wiki_db"`
	NewsSearch []string          `json:"news_search"`
}

type wikiQuerySchema struct {
	Mode string `json:"mode"`
	Q    string `json:"q"`
}

var validClaimTypes = map[string]bool{
	string(pipeline.ClaimTypeEvent): true, string(pipeline.ClaimTypeLogic): true,
	string(pipeline.ClaimTypeStatistic): true, string(pipeline.ClaimTypeQuotation): true,
	string(pipeline.ClaimTypePolicy): true,
}

var validTimeSensitivity = map[string]bool{
	string(pipeline.TimeSensitivityLow): true, string(pipeline.TimeSensitivityMid): true,
	string(pipeline.TimeSensitivityHigh): true,
}

func (s *querygenSchema) Validate() error {
	if len(s.Claims) == 0 || len(s.Claims) > 3 {
		return fmt.Errorf("claims must have 1-3 entries, got %d", len(s.Claims))
	}
	for _, c := range s.Claims {
		if c.ClaimID != "C1" && c.ClaimID != "C2" && c.ClaimID != "C3" {
			return errEnum("claim_id", c.ClaimID)
		}
		if !validClaimTypes[c.ClaimType] {
			return errEnum("claim_type", c.ClaimType)
		}
		if !validTimeSensitivity[c.TimeSensitivity] {
			return errEnum("time_sensitivity", c.TimeSensitivity)
		}
		if len(c.QueryPack.WikiDB) != 3 {
			return fmt.Errorf("query_pack.wiki_db must have exactly 3 entries, got %d", len(c.QueryPack.WikiDB))
		}
		for _, w := range c.QueryPack.WikiDB {
			if w.Mode != "title" && w.Mode != "fulltext" {
				return errEnum("query_pack.wiki_db[].mode", w.Mode)
			}
			if w.Q == "" {
				return errRequired("query_pack.wiki_db[].q")
			}
		}
		if len(c.QueryPack.NewsSearch) != 4 {
			return fmt.Errorf("query_pack.news_search must have exactly 4 entries, got %d", len(c.QueryPack.NewsSearch))
		}
		for _, q := range c.QueryPack.NewsSearch {
			if q == "" {
				return errRequired("query_pack.news_search[]")
			}
		}
	}
	return nil
}

const querygenSystemPrompt = `You derive up to three sub-claims from a fact-check claim, each with a
query_pack for retrieval. Respond with ONLY JSON matching:
{"claims": [{"claim_id": "C1"|"C2"|"C3", "claim_type": "사건"|"논리"|"통계"|"인용"|"정책",
"time_sensitivity": "low"|"mid"|"high",
"query_pack": {"wiki_db": [{"mode": "title"|"fulltext", "q": string}, ... exactly 3],
"news_search": [string, string, string, string]}}]}`

// Querygen turns the claim into up to three sub-claims, each with wiki and
// news/web query packs (spec.md §4.3). On schema violation, one repair
// retry; still invalid degrades to a single best-effort claim and flags
// QUERYGEN_DEGRADED.
func Querygen(ctx context.Context, client llmclient.Client, st *pipeline.State) {
	start := time.Now()
	defer func() {
		st.AppendStageLog(StageNameQuerygen, pipeline.StageSuccess, time.Since(start), nil)
	}()

	parsed, ok := querygenLLM(ctx, client, st)
	if !ok {
		parsed = querygenFallback(st)
		st.RiskFlags.Add(pipelineerr.FlagQuerygenDegraded)
	}

	st.QuerygenClaims = make([]pipeline.QuerygenClaim, 0, len(parsed.Claims))
	for _, c := range parsed.Claims {
		wiki := make([]pipeline.WikiQuery, len(c.QueryPack.WikiDB))
		for i, w := range c.QueryPack.WikiDB {
			wiki[i] = pipeline.WikiQuery{Mode: w.Mode, Q: w.Q}
		}
		st.QuerygenClaims = append(st.QuerygenClaims, pipeline.QuerygenClaim{
			ClaimID:         c.ClaimID,
			ClaimType:       pipeline.ClaimType(c.ClaimType),
			TimeSensitivity: pipeline.TimeSensitivity(c.TimeSensitivity),
			QueryPack:       pipeline.QueryPack{WikiDB: wiki, NewsSearch: c.QueryPack.NewsSearch},
		})
	}

	st.QueryVariants = buildQueryVariants(st.QuerygenClaims)
	st.SetStageOutput(StageNameQuerygen, map[string]any{"claim_count": len(st.QuerygenClaims)})
}

func querygenLLM(ctx context.Context, client llmclient.Client, st *pipeline.State) (querygenSchema, bool) {
	var parsed querygenSchema
	if client == nil {
		return parsed, false
	}

	prompt := "Claim: " + st.ClaimText
	raw, err := client.Complete(ctx, llmclient.Request{Prompt: prompt, System: querygenSystemPrompt})
	if err != nil {
		return parsed, false
	}

	if parseErr := llmjson.Parse(raw, &parsed); parseErr != nil {
		repair := llmjson.RepairPrompt("querygen", raw, parseErr)
		raw, err = client.Complete(ctx, llmclient.Request{Prompt: repair, System: querygenSystemPrompt})
		if err != nil {
			return parsed, false
		}
		if parseErr = llmjson.Parse(raw, &parsed); parseErr != nil {
			return parsed, false
		}
	}
	return parsed, true
}

// querygenFallback synthesizes a single best-effort claim/query_pack from
// the claim text alone so the pipeline can still proceed.
func querygenFallback(st *pipeline.State) querygenSchema {
	q := st.ClaimText
	return querygenSchema{
		Claims: []querygenClaimSchema{{
			ClaimID:         "C1",
			ClaimType:       string(pipeline.ClaimTypeEvent),
			TimeSensitivity: string(pipeline.TimeSensitivityMid),
			QueryPack: queryPackSchema{
				WikiDB: []wikiQuerySchema{
					{Mode: "title", Q: q},
					{Mode: "fulltext", Q: q},
					{Mode: "fulltext", Q: q},
				},
				NewsSearch: []string{q, q, q, q},
			},
		}},
	}
}

// buildQueryVariants produces Stage 2's own query_variants view (distinct
// from the adapter's flattened search_queries): one entry per wiki/news
// query across all claims, in claim order.
func buildQueryVariants(claims []pipeline.QuerygenClaim) []pipeline.QueryVariant {
	var out []pipeline.QueryVariant
	for _, c := range claims {
		for _, w := range c.QueryPack.WikiDB {
			out = append(out, pipeline.QueryVariant{Text: w.Q, Type: pipeline.QueryWiki})
		}
		for _, n := range c.QueryPack.NewsSearch {
			out = append(out, pipeline.QueryVariant{Text: n, Type: pipeline.QueryNews})
		}
	}
	return out
}
