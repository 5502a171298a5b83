// Command truthgraphd runs the fact-check verdict engine: it wires the
// database, checkpoint manager, LLM clients, search providers, evidence
// store, masking/notify services, policy gate, and orchestrator graph into
// the public HTTP API (spec.md §6).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeready-toolchain/truthgraph/internal/policygate"
	"github.com/codeready-toolchain/truthgraph/pkg/api"
	"github.com/codeready-toolchain/truthgraph/pkg/artifact"
	"github.com/codeready-toolchain/truthgraph/pkg/checkpoint"
	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/database"
	"github.com/codeready-toolchain/truthgraph/pkg/evidencestore"
	"github.com/codeready-toolchain/truthgraph/pkg/fetch"
	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/masking"
	"github.com/codeready-toolchain/truthgraph/pkg/metrics"
	"github.com/codeready-toolchain/truthgraph/pkg/notify"
	"github.com/codeready-toolchain/truthgraph/pkg/orchestrator"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
	"github.com/codeready-toolchain/truthgraph/pkg/search"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictservice"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictstore"
	"github.com/codeready-toolchain/truthgraph/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("app", version.AppName, "build", version.Full())
	slog.SetDefault(logger)

	if err := run(ctx, logger); err != nil {
		logger.Error("truthgraphd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	configDir := os.Getenv("TRUTHGRAPH_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	cfg, err := config.Load(ctx, configDir)
	if err != nil {
		return err
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	db, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cp := checkpoint.New(db, cfg.Checkpoint)
	cp.Start(ctx)
	defer cp.Stop()

	store := verdictstore.New(db)
	evidence := evidencestore.New(db, cfg.Search.WikiEmbeddingsReady)

	normalizeClient, err := optionalLLMClient(cfg, config.LLMRoleStage1And2, logger)
	if err != nil {
		return err
	}
	verifyClient, err := optionalLLMClient(cfg, config.LLMRoleStage6And7, logger)
	if err != nil {
		return err
	}
	judgeClient, err := optionalLLMClient(cfg, config.LLMRoleJudge, logger)
	if err != nil {
		return err
	}
	judgeRoleCfg, err := cfg.GetLLMRole(config.LLMRoleJudge)
	if err != nil {
		return err
	}

	newsClient := search.NewNewsClient(cfg.Search.News, cfg.Search.Retry)
	webClient := search.NewWebClient(cfg.Search.Web, cfg.Search.Retry)

	artifactLogger := artifact.New(cfg.Artifact.RunDir)
	maskingSvc := masking.New(cfg.Masking.Enabled)

	policy, err := policygate.New(ctx, cfg.Policy)
	if err != nil {
		logger.Warn("policy gate unavailable, refusal checks disabled", "error", err)
		policy = nil
	}

	notifySvc := notify.NewService(notify.ServiceConfig{
		WebhookURL:   cfg.SlackWebhookURL,
		DashboardURL: cfg.DashboardURL,
	})

	fetchSvc := fetch.NewService(cfg.Fetch)

	graph := orchestrator.New(orchestrator.Deps{
		NormalizeClient: normalizeClient,
		QuerygenClient:  normalizeClient,
		ScoreClient:     verifyClient,
		VerifyClient:    verifyClient,
		JudgeClient:     judgeClient,
		JudgeModelInfo:  pipeline.ModelInfo{Provider: string(judgeRoleCfg.Provider), Model: judgeRoleCfg.Model},

		EvidenceStore: evidence,
		WikiLimiter:   ratelimit.NewProviderLimiter(cfg.Search.News.Concurrency + cfg.Search.Web.Concurrency),
		News:          newsClient,
		Web:           webClient,

		Checkpoint: cp,
		Artifact:   artifactLogger,
		Masking:    maskingSvc,

		Thresholds: cfg.Thresholds,
	})

	svc := verdictservice.New(graph, cp, store, cfg.StrictPipeline, cfg.Server.HeartbeatInterval)
	server := api.NewServer(svc, policy, notifySvc, fetchSvc, db)

	metricsSrv := metrics.NewServer(os.Getenv("TRUTHGRAPH_METRICS_ADDR"), logger)
	metricsSrv.StartAsync()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Stop(shutdownCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// optionalLLMClient builds the client for role, treating an unconfigured
// (empty model) role as intentionally absent rather than an error: every
// stage already falls back to its deterministic path on a nil client.
func optionalLLMClient(cfg *config.Config, role config.LLMRole, logger *slog.Logger) (llmclient.Client, error) {
	roleCfg, err := cfg.GetLLMRole(role)
	if err != nil {
		return nil, err
	}
	if roleCfg.Model == "" {
		logger.Warn("LLM role not configured, stage will use its deterministic fallback", "role", role)
		return nil, nil
	}
	return llmclient.New(role, roleCfg, cfg.Search.Retry)
}
