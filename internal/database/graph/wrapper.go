package graph

import (
	"context"
	"fmt"

	"pulsecheck/internal/database/relational"
)

// Node represents a vertex in the relational graph.
type Node struct {
	ID         string // group key
	Properties map[string]interface{}
}

// RelationalGraphWrapper answers graph questions from the DuckDB tables, so
// route/query neighborhoods work without neo4j.
type RelationalGraphWrapper struct {
	relational *relational.DuckDBClient
}

// NewRelationalGraphWrapper returns a wrapper that can traverse the relational graph tables.
func NewRelationalGraphWrapper(rel *relational.DuckDBClient) *RelationalGraphWrapper {
	return &RelationalGraphWrapper{relational: rel}
}

const routeQueriesSQL = `
	SELECT q.query_id, q.normalized_sql, count(*) AS calls, avg(o.duration_ms) AS avg_ms
	FROM operations o
	JOIN requests r ON o.request_id = r.request_id
	JOIN queries q ON o.query_id = q.query_id
	WHERE r.route_id = ?
	GROUP BY q.query_id, q.normalized_sql
	ORDER BY calls DESC, q.query_id`

const queryRoutesSQL = `
	SELECT rt.route_id, rt.method || ' ' || rt.path, count(*) AS calls, avg(o.duration_ms) AS avg_ms
	FROM operations o
	JOIN requests r ON o.request_id = r.request_id
	JOIN routes rt ON r.route_id = rt.route_id
	WHERE o.query_id = ?
	GROUP BY rt.route_id, rt.method, rt.path
	ORDER BY calls DESC, rt.route_id`

const overallRoutesSQL = `
	SELECT rt.route_id, rt.method || ' ' || rt.path, count(*) AS calls, avg(r.duration_ms) AS avg_ms
	FROM requests r
	JOIN routes rt ON r.route_id = rt.route_id
	GROUP BY rt.route_id, rt.method, rt.path
	ORDER BY calls DESC, rt.route_id`

// GetNeighbors returns the groups linked to key through recorded operations:
// the queries a route issued, the routes that issued a query, or every route
// for the overall group. Each node carries label, calls and avg_ms.
func (w *RelationalGraphWrapper) GetNeighbors(ctx context.Context, key relational.GroupKey) ([]Node, error) {
	var (
		query string
		args  []any
		kind  = relational.RouteKey
	)
	switch key.Kind {
	case relational.KindRoute:
		query, args, kind = routeQueriesSQL, []any{key.ID}, relational.QueryKey
	case relational.KindQuery:
		query, args = queryRoutesSQL, []any{key.ID}
	default:
		query = overallRoutesSQL
	}

	rows, err := w.relational.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", key, err)
	}
	defer rows.Close()

	nodes := []Node{}
	for rows.Next() {
		var (
			id    int64
			label string
			calls int64
			avgMS float64
		)
		if err := rows.Scan(&id, &label, &calls, &avgMS); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		nodes = append(nodes, Node{
			ID:         kind(id).String(),
			Properties: map[string]interface{}{"label": label, "calls": calls, "avg_ms": avgMS},
		})
	}
	return nodes, rows.Err()
}
