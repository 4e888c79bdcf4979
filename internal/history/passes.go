package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/lifecycle"
)

var _ lifecycle.HistoryRecorder = (*Store)(nil)

// Record is one stored recording pass.
type Record struct {
	ID       string       `json:"id"`
	Seq      int64        `json:"seq"`
	Index    string       `json:"index"`
	Hash     string       `json:"hash"`
	Fixture  string       `json:"fixture"`
	Impact   impact.Level `json:"impact"`
	Findings int          `json:"findings"`
	Leaks    int          `json:"leaks"`
	Written  string       `json:"written,omitempty"`
	Promoted bool         `json:"promoted,omitempty"`
}

// Query filters ListPasses. Zero fields match everything.
type Query struct {
	Fixture   string
	Index     string
	MinImpact impact.Level

	// Limit keeps only the most recent passes when positive.
	Limit int
}

// RecordPass appends p to the log with the next seq.
func (s *Store) RecordPass(ctx context.Context, p lifecycle.Pass) error {
	level, err := p.Impact.MarshalText()
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO passes
		(id, seq, index_key, hash, fixture, impact, findings, leaks, written, promoted)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM passes), ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ids.Generate(),
		p.Key.String(),
		p.Hash,
		p.Fixture,
		string(level),
		p.Findings,
		p.Leaks,
		p.Written,
		p.Promoted,
	)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	return nil
}

// ListPasses returns the passes matching q in seq order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListPasses(ctx context.Context, q Query) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if q.Fixture != "" {
		where = append(where, "fixture = ?")
		args = append(args, q.Fixture)
	}
	if q.Index != "" {
		where = append(where, "index_key = ?")
		args = append(args, q.Index)
	}
	if q.MinImpact > impact.None {
		var names []string
		for l := q.MinImpact; l <= impact.Major; l++ {
			names = append(names, "?")
			args = append(args, l.String())
		}
		where = append(where, "impact IN ("+strings.Join(names, ", ")+")")
	}

	inner := `SELECT id, seq, index_key, hash, fixture, impact, findings, leaks, written, promoted FROM passes`
	if len(where) > 0 {
		inner += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Limit > 0 {
		inner += " ORDER BY seq DESC, id DESC LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (`+inner+`)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r     Record
		level string
	)
	err := rows.Scan(&r.ID, &r.Seq, &r.Index, &r.Hash, &r.Fixture, &level, &r.Findings, &r.Leaks, &r.Written, &r.Promoted)
	if err != nil {
		return Record{}, fmt.Errorf("scan pass: %w", err)
	}
	if r.Impact, err = impact.ParseLevel(level); err != nil {
		return Record{}, fmt.Errorf("scan pass %s: %w", r.ID, err)
	}
	return r, nil
}
