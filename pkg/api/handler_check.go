package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/truthgraph/internal/policygate"
	"github.com/codeready-toolchain/truthgraph/pkg/notify"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictservice"
)

// checkHandler handles POST /v1/check: run the pipeline to completion and
// return the full response in one round trip.
func (s *Server) checkHandler(c *gin.Context) {
	req, refused, err := s.buildServiceRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	resp, err := s.verdict.Run(c.Request.Context(), req, refused)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if s.notifySvc != nil {
		s.notifySvc.NotifyIfRisky(c.Request.Context(), notify.VerdictInput{
			TraceID:   resp.AnalysisID,
			Label:     string(resp.Label),
			Summary:   resp.Summary,
			RiskFlags: resp.RiskFlags,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// buildServiceRequest binds and validates the request body, pre-fetches
// url-typed input (spec.md §4.3 — the stage itself never performs HTTP),
// and evaluates the refusal gate against the raw payload.
func (s *Server) buildServiceRequest(c *gin.Context) (verdictservice.Request, bool, error) {
	var body CheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return verdictservice.Request{}, false, err
	}

	if len(body.UserRequest) > maxUserRequestBytes {
		return verdictservice.Request{}, false, fmt.Errorf("user_request exceeds %d bytes", maxUserRequestBytes)
	}

	payload := body.InputPayload
	inputType := pipeline.InputType(body.InputType)

	if inputType == pipeline.InputText && len(payload) > maxTextPayloadBytes {
		return verdictservice.Request{}, false, fmt.Errorf("input_payload exceeds %d bytes for input_type=text", maxTextPayloadBytes)
	}

	if inputType == pipeline.InputURL && s.fetchSvc != nil {
		fetched, err := s.fetchSvc.Fetch(c.Request.Context(), payload)
		if err != nil {
			return verdictservice.Request{}, false, fmt.Errorf("fetch url: %w", err)
		}
		payload = fetched
	}

	refused := s.evaluateRefusal(c.Request.Context(), payload, body.Language)

	req := verdictservice.Request{
		InputType:          inputType,
		InputPayload:       payload,
		UserRequest:        body.UserRequest,
		Language:           body.Language,
		IncludeFullOutputs: body.IncludeFullOutputs,
		StartStage:         body.StartStage,
		EndStage:           body.EndStage,
		NormalizeMode:      pipeline.NormalizeMode(body.NormalizeMode),
		CheckpointThreadID: body.CheckpointThreadID,
		CheckpointResume:   body.CheckpointResume,
	}
	return req, refused, nil
}

func (s *Server) evaluateRefusal(ctx context.Context, claimText, language string) bool {
	if s.policy == nil {
		return false
	}
	return s.policy.Evaluate(ctx, policygate.Input{ClaimText: claimText, Language: language})
}

