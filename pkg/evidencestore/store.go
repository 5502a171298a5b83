// Package evidencestore provides read-only access to the wiki corpus
// (title trigram + FTS + optional vector search). The online path never
// writes to these tables — that is the offline embedding-backfill tool's
// job (out of scope here, per spec.md §1/§5).
package evidencestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
)

// MaxQueryLength is the hard cap on user-controllable full-text query
// input (spec.md §4.5).
const MaxQueryLength = 180

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// NormalizeQuery strips control characters, collapses whitespace, maps `&`
// to a space (it is special to Postgres's tsquery operators), and caps
// length — applied before any query reaches the FTS builder.
func NormalizeQuery(q string) string {
	q = controlChars.ReplaceAllString(q, " ")
	q = strings.ReplaceAll(q, "&", " ")
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > MaxQueryLength {
		q = q[:MaxQueryLength]
	}
	return strings.TrimSpace(q)
}

// Store is the evidence store adapter. It never returns an error to the
// pipeline for query/parse failures: spec.md §4.5 requires "parsing/
// execution failures return empty results, never raise."
type Store struct {
	db                  *sql.DB
	embeddingsAvailable bool
}

func New(db *sql.DB, embeddingsAvailable bool) *Store {
	return &Store{db: db, embeddingsAvailable: embeddingsAvailable}
}

// SearchTitle runs a trigram-similarity title lookup, capped at limit rows.
func (s *Store) SearchTitle(ctx context.Context, query string, limit int) []pipeline.EvidenceCandidate {
	q := NormalizeQuery(query)
	if q == "" || s.db == nil {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT wp.id, wp.title, wp.url, wc.content
		FROM wiki_pages wp
		JOIN wiki_chunks wc ON wc.page_id = wp.id AND wc.chunk_idx = 0
		WHERE wp.title % $1
		ORDER BY similarity(wp.title, $1) DESC
		LIMIT $2`, q, limit)
	if err != nil {
		slog.Warn("evidencestore: title search failed, returning empty", "error", err)
		return nil
	}
	defer rows.Close()
	return s.scanCandidates(rows)
}

// SearchFulltext runs a GIN-backed simple-dictionary full-text query.
func (s *Store) SearchFulltext(ctx context.Context, query string, limit int) []pipeline.EvidenceCandidate {
	q := NormalizeQuery(query)
	if q == "" || s.db == nil {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT wp.id, wp.title, wp.url, wc.content
		FROM wiki_chunks wc
		JOIN wiki_pages wp ON wp.id = wc.page_id
		WHERE to_tsvector('simple', wc.content) @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(to_tsvector('simple', wc.content), plainto_tsquery('simple', $1)) DESC
		LIMIT $2`, q, limit)
	if err != nil {
		slog.Warn("evidencestore: fulltext search failed, returning empty", "error", err)
		return nil
	}
	defer rows.Close()
	return s.scanCandidates(rows)
}

// SearchVector runs the optional pgvector similarity query, gated by
// WIKI_EMBEDDINGS_READY (spec.md §6). No-op, empty result, if embeddings
// are not yet backfilled.
func (s *Store) SearchVector(ctx context.Context, embedding []float32, limit int) []pipeline.EvidenceCandidate {
	if !s.embeddingsAvailable || s.db == nil {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT wp.id, wp.title, wp.url, wc.content
		FROM wiki_chunks wc
		JOIN wiki_pages wp ON wp.id = wc.page_id
		WHERE wc.embedding IS NOT NULL
		ORDER BY wc.embedding <-> $1
		LIMIT $2`, vectorLiteral(embedding), limit)
	if err != nil {
		slog.Warn("evidencestore: vector search failed, returning empty", "error", err)
		return nil
	}
	defer rows.Close()
	return s.scanCandidates(rows)
}

func (s *Store) scanCandidates(rows *sql.Rows) []pipeline.EvidenceCandidate {
	var out []pipeline.EvidenceCandidate
	for rows.Next() {
		var id, title, url, content string
		if err := rows.Scan(&id, &title, &url, &content); err != nil {
			slog.Warn("evidencestore: scan failed, skipping row", "error", err)
			continue
		}
		out = append(out, pipeline.EvidenceCandidate{
			ID:         "wiki:" + id,
			SourceType: pipeline.SourceWikipedia,
			Title:      title,
			URL:        url,
			Snippet:    content,
			TrustPrior: 1.0,
		})
	}
	return out
}

func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(formatFloat(f))
	}
	sb.WriteByte(']')
	return sb.String()
}

func formatFloat(f float32) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}
