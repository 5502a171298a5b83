// Package orchestrator composes the nine stages into the fixed DAG
// described in spec.md §4.2: one fan-out (stage03_wiki ∥ stage03_web) and
// one fan-in (stage03_merge), all other edges linear.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/artifact"
	"github.com/codeready-toolchain/truthgraph/pkg/checkpoint"
	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/evidencestore"
	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/masking"
	"github.com/codeready-toolchain/truthgraph/pkg/metrics"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
	"github.com/codeready-toolchain/truthgraph/pkg/search"
	"github.com/codeready-toolchain/truthgraph/pkg/stages"
)

// Event is one entry of the streaming sequence (spec.md §6).
type Event struct {
	Event       string `json:"event"`
	TraceID     string `json:"trace_id,omitempty"`
	Stage       string `json:"stage,omitempty"`
	UIStep      int    `json:"ui_step,omitempty"`
	UIStepTitle string `json:"ui_step_title,omitempty"`
	IdleMs      int64  `json:"idle_ms,omitempty"`
	Data        any    `json:"data,omitempty"`
	Ts          string `json:"ts"`
}

// uiSteps groups the nine stages into the three coarse UI phases surfaced
// on the streaming path.
var uiSteps = map[string]struct {
	Step  int
	Title string
}{
	stages.StageNameNormalize:      {1, "Understanding the claim"},
	stages.StageNameQuerygen:       {1, "Understanding the claim"},
	stages.StageNameAdapter:        {1, "Understanding the claim"},
	stages.StageNameWiki:           {2, "Gathering evidence"},
	stages.StageNameWeb:            {2, "Gathering evidence"},
	stages.StageNameMerge:          {2, "Gathering evidence"},
	stages.StageNameScore:          {2, "Gathering evidence"},
	stages.StageNameTopK:           {2, "Gathering evidence"},
	stages.StageNameVerifySupport:  {3, "Weighing the evidence"},
	stages.StageNameVerifySkeptic:  {3, "Weighing the evidence"},
	stages.StageNameAggregate:      {3, "Weighing the evidence"},
	stages.StageNameJudge:          {3, "Weighing the evidence"},
}

// Deps bundles every external collaborator the graph needs. All fields may
// be nil/zero in a degraded environment; every stage already tolerates a
// nil LLM client or search provider by falling back to its deterministic
// path.
type Deps struct {
	NormalizeClient llmclient.Client
	QuerygenClient  llmclient.Client
	ScoreClient     llmclient.Client
	VerifyClient    llmclient.Client
	JudgeClient     llmclient.Client
	JudgeModelInfo  pipeline.ModelInfo

	EvidenceStore *evidencestore.Store
	WikiLimiter   *ratelimit.ProviderLimiter
	News          *search.NewsClient
	Web           *search.WebClient

	Checkpoint *checkpoint.Manager
	StepSaver  checkpoint.StepSaver
	Artifact   *artifact.Logger
	Masking    *masking.Service

	Thresholds config.ThresholdsConfig
}

// mask applies the masking service to text, tolerating a nil Service (masking
// disabled / not configured for this deployment).
func (g *Graph) mask(text string) string {
	if g.deps.Masking == nil {
		return text
	}
	return g.deps.Masking.Mask(text)
}

// Graph runs the fixed nine-stage DAG over a PipelineState.
type Graph struct {
	deps Deps
}

func New(deps Deps) *Graph {
	return &Graph{deps: deps}
}

// Run executes every stage from start to stage09_judge in order,
// appending stage logs / stage outputs / artifact records along the way.
// It is deterministic given identical inputs and identical external
// responses (spec.md §4.2), including citation ordering via the
// (trust_prior desc, evidence_id asc) tie-break already enforced in
// pkg/stages.
func (g *Graph) Run(ctx context.Context, st *pipeline.State, refused bool) {
	g.RunStream(ctx, st, refused, nil)
}

// RunStream is Run's streaming variant: each stage completion is also
// pushed onto events (nil events is equivalent to Run). The channel is
// never closed by RunStream; the caller owns its lifecycle.
func (g *Graph) RunStream(ctx context.Context, st *pipeline.State, refused bool, events chan<- Event) {
	emit := func(ev Event) {
		if events == nil {
			return
		}
		ev.Ts = time.Now().UTC().Format(time.RFC3339Nano)
		ev.TraceID = st.TraceID
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	runStage := func(name string, fn func()) {
		ui := uiSteps[name]
		emit(Event{Event: "step_started", Stage: name, UIStep: ui.Step, UIStepTitle: ui.Title})
		before := len(st.RiskFlags.Slice())
		stageStart := time.Now()
		fn()
		elapsed := time.Since(stageStart)
		metrics.RecordStage(name, elapsed)
		for _, flag := range st.RiskFlags.Slice()[before:] {
			metrics.RecordStageFailure(name, string(flag))
		}
		emit(Event{Event: "step_completed", Stage: name, UIStep: ui.Step, UIStepTitle: ui.Title})
		emit(Event{Event: "stage_complete", Stage: name, Data: st.StageOutputs[name]})
		g.recordArtifact(st, name, elapsed)
		g.checkpointStep(ctx, st, name)
	}

	if refused {
		runStage(stages.StageNameJudge, func() {
			stages.Judge(ctx, nil, g.deps.JudgeModelInfo, g.deps.Thresholds, true, st)
		})
		return
	}

	runStage(stages.StageNameNormalize, func() {
		stages.Normalize(ctx, g.deps.NormalizeClient, st)
		st.ClaimText = g.mask(st.ClaimText)
	})
	runStage(stages.StageNameQuerygen, func() {
		stages.Querygen(ctx, g.deps.QuerygenClient, st)
	})
	runStage(stages.StageNameAdapter, func() {
		stages.Adapter(st)
	})

	// Fan-out: wiki and web collection run concurrently, but CollectWiki/
	// CollectWebCandidates only read st (never mutate it), so the two
	// goroutines below never touch shared State. Every State mutation for
	// these two stages (AppendStageLog/SetStageOutput via runStage, plus
	// its emit/recordArtifact/checkpointStep) runs sequentially afterward,
	// once both branches have joined, so StageLogs/StageOutputs/RiskFlags
	// never see a concurrent write.
	var wikiResult, webResult stages.CollectionResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		wikiResult = stages.CollectWikiCandidates(ctx, g.deps.EvidenceStore, g.deps.WikiLimiter, st)
	}()
	go func() {
		defer wg.Done()
		webResult = stages.CollectWebCandidates(ctx, g.deps.News, g.deps.Web, st)
	}()
	wg.Wait()

	runStage(stages.StageNameWiki, func() {
		stages.FinishCollectWiki(st, wikiResult)
	})
	runStage(stages.StageNameWeb, func() {
		stages.FinishCollectWeb(st, webResult)
	})

	// Fan-in.
	runStage(stages.StageNameMerge, func() {
		stages.Merge(st)
		for i := range st.EvidenceCandidates {
			st.EvidenceCandidates[i].Snippet = g.mask(st.EvidenceCandidates[i].Snippet)
		}
	})

	runStage(stages.StageNameScore, func() {
		stages.Score(ctx, g.deps.ScoreClient, g.deps.Thresholds.ScorePassThreshold, st)
	})
	runStage(stages.StageNameTopK, func() {
		stages.TopK(g.deps.Thresholds.TopKPerSide, g.deps.Thresholds.LowTrustThreshold, st)
	})
	runStage(stages.StageNameVerifySupport, func() {
		stages.VerifySupport(ctx, g.deps.VerifyClient, st)
	})
	runStage(stages.StageNameVerifySkeptic, func() {
		stages.VerifySkeptic(ctx, g.deps.VerifyClient, st)
	})
	runStage(stages.StageNameAggregate, func() {
		stages.Aggregate(st)
	})
	runStage(stages.StageNameJudge, func() {
		stages.Judge(ctx, g.deps.JudgeClient, g.deps.JudgeModelInfo, g.deps.Thresholds, false, st)
	})
}

func (g *Graph) recordArtifact(st *pipeline.State, stage string, elapsed time.Duration) {
	if g.deps.Artifact == nil {
		return
	}
	hints := artifact.GuardrailHints{RiskFlags: flagStrings(st.RiskFlags.Slice())}
	g.deps.Artifact.Write(st.TraceID, stage, elapsed, st.StageOutputs[stage], "", "", "", hints)
}

func (g *Graph) checkpointStep(ctx context.Context, st *pipeline.State, stage string) {
	if g.deps.StepSaver == nil || st.CheckpointThreadID == "" {
		return
	}
	payload, err := stagePayload(st.StageOutputs[stage])
	if err != nil {
		return
	}
	_ = g.deps.StepSaver.SaveStep(ctx, st.CheckpointThreadID, stage, payload)
}
