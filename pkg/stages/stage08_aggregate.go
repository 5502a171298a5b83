package stages

import (
	"math"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

const StageNameAggregate = "stage08_aggregate"

// Aggregate is a pure deterministic merge of the two verdict packs into a
// draft verdict, per the stance truth table in spec.md §4.3.
func Aggregate(st *pipeline.State) {
	start := time.Now()

	supportCount := len(st.VerdictSupport.Citations)
	skepticCount := len(st.VerdictSkeptic.Citations)
	noCitations := supportCount == 0 && skepticCount == 0
	if noCitations {
		st.RiskFlags.Add(pipelineerr.FlagNoVerifiedCitations)
	}

	st.JudgePrepMeta = pipeline.JudgePrepMeta{
		SupportCitationCount: supportCount,
		SkepticCitationCount: skepticCount,
		StanceBalanced:       supportCount > 0 && skepticCount > 0,
	}

	label, failClosed := draftStance(st.VerdictSupport.Stance, st.VerdictSkeptic.Stance, noCitations)
	st.DraftVerdict = pipeline.DraftVerdict{
		Stance:           label,
		RationaleSummary: draftRationale(st.VerdictSupport, st.VerdictSkeptic, label),
	}

	lowEvidence := len(st.EvidenceCandidates) < 3
	if lowEvidence {
		st.RiskFlags.Add(pipelineerr.FlagLowEvidence)
	}
	if failClosed {
		st.RiskFlags.Add(pipelineerr.FlagJudgeFailClosed)
	}

	st.QualityScore = qualityScore(st, supportCount, skepticCount, lowEvidence)

	st.AppendStageLog(StageNameAggregate, pipeline.StageSuccess, time.Since(start), nil)
	st.SetStageOutput(StageNameAggregate, map[string]any{
		"draft_stance": label, "quality_score": st.QualityScore,
	})
}

// draftStance implements the Stage 8 truth table. fail_closed is set only
// by the NO_VERIFIED_CITATIONS override.
func draftStance(support, skeptic pipeline.Stance, noCitations bool) (pipeline.VerdictLabel, bool) {
	if noCitations {
		return pipeline.LabelUnverified, true
	}

	supportPositive := support == pipeline.StanceSupports
	supportNeutralish := support == pipeline.StanceNeutral || support == pipeline.StanceUnverified
	skepticRefutes := skeptic == pipeline.StanceRefutes
	skepticSupports := skeptic == pipeline.StanceSupports
	skepticNeutralish := skeptic == pipeline.StanceNeutral || skeptic == pipeline.StanceUnverified

	switch {
	case supportPositive && skepticRefutes:
		return pipeline.LabelMixed, false
	case supportPositive && skepticNeutralish:
		return pipeline.LabelTrue, false
	case support == pipeline.StanceRefutes && skepticSupports:
		return pipeline.LabelMixed, false
	case supportNeutralish && skepticRefutes:
		return pipeline.LabelFalse, false
	case support == pipeline.StanceNeutral && skeptic == pipeline.StanceNeutral:
		return pipeline.LabelUnverified, false
	case support == pipeline.StanceUnverified && skeptic == pipeline.StanceUnverified:
		return pipeline.LabelUnverified, false
	default:
		return pipeline.LabelUnverified, false
	}
}

func draftRationale(support, skeptic pipeline.VerdictPack, label pipeline.VerdictLabel) string {
	return string(label) + ": support=" + string(support.Stance) + " skeptic=" + string(skeptic.Stance)
}

// qualityScore combines evidence count balance, citation validity, and
// confidence spread into a 0-100 score.
func qualityScore(st *pipeline.State, supportCount, skepticCount int, lowEvidence bool) float64 {
	balance := 1.0
	total := supportCount + skepticCount
	if total > 0 {
		minSide := math.Min(float64(supportCount), float64(skepticCount))
		balance = minSide / (float64(total) / 2)
	} else {
		balance = 0
	}

	validity := 0.0
	if len(st.ScoredEvidence) > 0 {
		validity = float64(supportCount+skepticCount) / float64(len(st.ScoredEvidence))
		if validity > 1 {
			validity = 1
		}
	}

	spread := 1 - math.Abs(st.VerdictSupport.Confidence-st.VerdictSkeptic.Confidence)

	score := (balance*0.3 + validity*0.4 + spread*0.3) * 100
	if lowEvidence {
		score *= 0.7
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
