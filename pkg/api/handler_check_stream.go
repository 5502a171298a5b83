package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/truthgraph/pkg/notify"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictservice"
)

// checkStreamHandler handles POST /v1/check/stream: a line-delimited-JSON
// sequence of per-stage progress events terminated by exactly one
// complete/error event (spec.md §6).
func (s *Server) checkStreamHandler(c *gin.Context) {
	req, refused, err := s.buildServiceRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	events, err := s.verdict.RunStream(c.Request.Context(), req, refused)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	flusher, canFlush := c.Writer.(http.Flusher)

	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
		if ev.Event == "complete" && s.notifySvc != nil {
			if resp, ok := ev.Data.(*verdictservice.Response); ok {
				s.notifySvc.NotifyIfRisky(c.Request.Context(), notify.VerdictInput{
					TraceID:   resp.AnalysisID,
					Label:     string(resp.Label),
					Summary:   resp.Summary,
					RiskFlags: resp.RiskFlags,
				})
			}
		}
	}
}
