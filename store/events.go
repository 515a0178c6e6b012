package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mementohq/memento-go/core"
)

// QueryCount is one aggregated row of the popular-searches report.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// RecordSearchEvent appends a search to the owner's query log. The log is
// append-only; failures here should not fail the search itself, so callers
// typically log and continue.
func (s *Store) RecordSearchEvent(ctx context.Context, ownerID, query string) error {
	query = strings.TrimSpace(query)
	if ownerID == "" || query == "" {
		return core.Validationf("empty owner id or query")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_events (id, owner_id, query, created_at) VALUES (?, ?, ?, ?)`,
		s.newID(), ownerID, query, now())
	if err != nil {
		return fmt.Errorf("insert search event: %w", err)
	}
	return nil
}

// PopularSearches returns the owner's most-repeated queries, highest count
// first. Queries are grouped case-insensitively; ties break on the query
// text so the ordering is stable.
func (s *Store) PopularSearches(ctx context.Context, ownerID string, limit int) ([]QueryCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT LOWER(query) AS q, COUNT(*) AS c FROM search_events
		 WHERE owner_id = ? GROUP BY q ORDER BY c DESC, q ASC LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueryCount
	for rows.Next() {
		var qc QueryCount
		if err := rows.Scan(&qc.Query, &qc.Count); err != nil {
			return nil, err
		}
		out = append(out, qc)
	}
	return out, rows.Err()
}
