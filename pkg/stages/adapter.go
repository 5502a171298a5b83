package stages

import (
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
)

const StageNameAdapter = "adapter_queries"

// Adapter flattens querygen_claims[].query_pack into search_queries, stable
// ordering wiki first (preserving claim order), then news, then web
// (spec.md §4.3; there is no web sub-query in the LLM schema itself, so
// web queries here are empty unless a future producer populates them —
// the ordering contract still holds across whatever is present).
func Adapter(st *pipeline.State) {
	start := time.Now()

	var wiki, news, web []pipeline.QueryVariant
	for _, c := range st.QuerygenClaims {
		for _, w := range c.QueryPack.WikiDB {
			wiki = append(wiki, pipeline.QueryVariant{Text: w.Q, Type: pipeline.QueryWiki})
		}
		for _, n := range c.QueryPack.NewsSearch {
			news = append(news, pipeline.QueryVariant{Text: n, Type: pipeline.QueryNews})
		}
	}

	out := make([]pipeline.QueryVariant, 0, len(wiki)+len(news)+len(web))
	out = append(out, wiki...)
	out = append(out, news...)
	out = append(out, web...)
	st.SearchQueries = out

	st.AppendStageLog(StageNameAdapter, pipeline.StageSuccess, time.Since(start), nil)
	st.SetStageOutput(StageNameAdapter, map[string]any{"query_count": len(out)})
}
