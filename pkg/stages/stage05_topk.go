package stages

import (
	"sort"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

const StageNameTopK = "stage05_topk"

// Partitions retained evidence into support/skeptic pools, selects top K
// per side, and builds the curated citations list (spec.md §4.3). Since
// stance isn't known pre-verification, partitioning alternates by
// relevance rank when no stance signal is available, and ties break by
// (trust_prior desc, score desc, id asc).
func TopK(k int, lowTrustThreshold float64, st *pipeline.State) {
	start := time.Now()
	if k <= 0 {
		k = 3
	}

	var retained []pipeline.ScoredEvidence
	for _, c := range st.ScoredEvidence {
		if c.Retained {
			retained = append(retained, c)
		}
	}
	sort.SliceStable(retained, func(i, j int) bool { return lessEvidence(retained[i], retained[j]) })

	var support, skeptic []pipeline.ScoredEvidence
	for i, c := range retained {
		if i%2 == 0 {
			support = append(support, c)
		} else {
			skeptic = append(skeptic, c)
		}
	}

	topSupport := capScored(support, k)
	topSkeptic := capScored(skeptic, k)

	st.EvidenceTopKSupport = topSupport
	st.EvidenceTopKSkeptic = topSkeptic
	st.Citations = buildCitations(topSupport, topSkeptic)

	avgSupport := avgTrust(topSupport)
	avgSkeptic := avgTrust(topSkeptic)
	st.TopKDiagnostics = pipeline.TopKDiagnostics{
		KSupport: len(topSupport), KSkeptic: len(topSkeptic),
		AvgTrustSupport: avgSupport, AvgTrustSkeptic: avgSkeptic,
	}

	if len(retained) == 0 {
		st.RiskFlags.Add(pipelineerr.StageFailure(StageNameTopK))
	}
	if len(retained) < 3 {
		st.RiskFlags.Add(pipelineerr.FlagLowEvidence)
	}
	if len(topSkeptic) == 0 {
		st.RiskFlags.Add(pipelineerr.FlagNoSkepticEvidence)
	}
	if len(retained) > 0 && avgTrust(append(append([]pipeline.ScoredEvidence{}, topSupport...), topSkeptic...)) < lowTrustThreshold {
		st.RiskFlags.Add(pipelineerr.FlagLowTrustEvidence)
	}

	st.AppendStageLog(StageNameTopK, pipeline.StageSuccess, time.Since(start), nil)
	st.SetStageOutput(StageNameTopK, st.TopKDiagnostics)
}

// lessEvidence orders by relevance desc, tie-broken by
// (trust_prior desc, score desc, id asc) per spec.md §4.2/§4.3.
func lessEvidence(a, b pipeline.ScoredEvidence) bool {
	if a.Relevance != b.Relevance {
		return a.Relevance > b.Relevance
	}
	if a.TrustPrior != b.TrustPrior {
		return a.TrustPrior > b.TrustPrior
	}
	return a.ID < b.ID
}

func capScored(in []pipeline.ScoredEvidence, k int) []pipeline.ScoredEvidence {
	if len(in) <= k {
		return in
	}
	return in[:k]
}

// buildCitations draws primarily from support, guaranteeing at least one
// from skeptic when available.
func buildCitations(support, skeptic []pipeline.ScoredEvidence) []pipeline.Citation {
	var out []pipeline.Citation
	for _, c := range support {
		out = append(out, toCitation(c))
	}
	if len(skeptic) > 0 {
		hasSkeptic := false
		for _, c := range skeptic {
			if containsCitation(out, c.ID) {
				hasSkeptic = true
				break
			}
		}
		if !hasSkeptic {
			out = append(out, toCitation(skeptic[0]))
		}
	}
	return out
}

func containsCitation(cs []pipeline.Citation, id string) bool {
	for _, c := range cs {
		if c.EvidenceID == id {
			return true
		}
	}
	return false
}

func toCitation(c pipeline.ScoredEvidence) pipeline.Citation {
	quote := c.Snippet
	if len(quote) > pipeline.MaxQuoteLength {
		quote = quote[:pipeline.MaxQuoteLength]
	}
	return pipeline.Citation{EvidenceID: c.ID, Quote: quote, Relevance: c.Relevance}
}

func avgTrust(cs []pipeline.ScoredEvidence) float64 {
	if len(cs) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range cs {
		sum += c.TrustPrior
	}
	return sum / float64(len(cs))
}
