// Package verdictstore persists completed pipeline runs to the
// analysis_results table, so prior verdicts can be queried independently of
// the in-memory State that produced them.
package verdictstore

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/lib/pq"
)

// Store persists and retrieves FinalVerdict records.
type Store struct {
	db *stdsql.DB
}

// New wraps an open connection pool. The caller owns db's lifecycle.
func New(db *stdsql.DB) *Store {
	return &Store{db: db}
}

// Record is the row shape mirrored to analysis_results.
type Record struct {
	ID         string
	CreatedAt  time.Time
	Label      pipeline.VerdictLabel
	Confidence float64
	Summary    string
	Citations  []pipeline.Citation
	RiskFlags  []string
	TraceID    string
	ModelInfo  pipeline.ModelInfo
}

// Save writes the run's final verdict. A critical write gets its own bounded
// context so a caller-cancelled request context never loses an already
// computed result.
func (s *Store) Save(ctx context.Context, st *pipeline.State, flags []string) error {
	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	citationsBody, err := json.Marshal(st.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	modelInfoJSON, err := json.Marshal(st.ModelInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal model info: %w", err)
	}

	_, err = s.db.ExecContext(writeCtx,
		`INSERT INTO analysis_results
			(id, created_at, label, confidence, summary, citations_json, risk_flags, trace_id, model_info)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		st.TraceID,
		timeOrNow(st.CreatedAt),
		string(st.FinalVerdict.Label),
		st.FinalVerdict.Confidence,
		st.FinalVerdict.Summary,
		citationsBody,
		pq.Array(flags),
		st.TraceID,
		modelInfoJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis result: %w", err)
	}
	return nil
}

// Get retrieves a persisted verdict by trace id.
func (s *Store) Get(ctx context.Context, traceID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, label, confidence, summary, citations_json, risk_flags, trace_id, model_info
		 FROM analysis_results WHERE trace_id = $1`, traceID)

	var (
		rec           Record
		citationsJSON []byte
		modelJSON     []byte
		riskFlags     []string
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Label, &rec.Confidence, &rec.Summary,
		&citationsJSON, pq.Array(&riskFlags), &rec.TraceID, &modelJSON); err != nil {
		if err == stdsql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query analysis result: %w", err)
	}

	if err := json.Unmarshal(citationsJSON, &rec.Citations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal citations: %w", err)
	}
	if err := json.Unmarshal(modelJSON, &rec.ModelInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model info: %w", err)
	}
	rec.RiskFlags = riskFlags
	return &rec, nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
