package orchestrator

import (
	"encoding/json"

	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

func flagStrings(flags []pipelineerr.RiskFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func stagePayload(summary any) ([]byte, error) {
	if summary == nil {
		return nil, nil
	}
	return json.Marshal(summary)
}
