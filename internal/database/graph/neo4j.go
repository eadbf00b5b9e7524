// Package graph mirrors routes, queries and their period summaries into
// neo4j, and answers neighbor lookups straight from the relational tables.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pulsecheck/internal/database/relational"
)

// GraphClient defines the interface for graph database operations.
type GraphClient interface {
	Close(ctx context.Context) error
	Reset(ctx context.Context) error
	IngestPeriod(ctx context.Context, batch *PeriodBatch) error
	ExecuteCypher(ctx context.Context, query string) ([]map[string]any, error)
}

// PeriodBatch is everything the worker wrote for one period.
type PeriodBatch struct {
	Summaries []relational.Summary
	Labels    map[relational.GroupKey]string
	Statuses  map[relational.GroupKey]string // flagger status per group, optional
}

// Neo4jClient implements GraphClient for Neo4j.
type Neo4jClient struct {
	driver neo4j.DriverWithContext
	dbName string
}

var _ GraphClient = (*Neo4jClient)(nil)

// NewNeo4jClient creates a new Neo4j client.
func NewNeo4jClient(uri, username, password, dbName string) (*Neo4jClient, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Neo4jClient{
		driver: driver,
		dbName: dbName,
	}, nil
}

func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Reset deletes every mirrored node.
func (c *Neo4jClient) Reset(ctx context.Context) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, "MATCH (n) WHERE n:Group OR n:Period DETACH DELETE n", nil)
	})
	return err
}

// IngestPeriod merges one Group node per summary, the Period node, and a
// SUMMARIZED_IN edge carrying the statistics. Re-ingesting the same period
// overwrites the edge properties.
func (c *Neo4jClient) IngestPeriod(ctx context.Context, batch *PeriodBatch) error {
	if batch == nil || len(batch.Summaries) == 0 {
		return nil
	}
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range batch.Summaries {
			// 1. Group
			if _, err := tx.Run(ctx, mergeGroupCypher, groupParams(s.Group, batch.Labels[s.Group])); err != nil {
				return nil, fmt.Errorf("merge group %s: %w", s.Group, err)
			}
			// 2. Period + edge
			if _, err := tx.Run(ctx, mergeSummaryCypher, summaryParams(s, batch.Statuses[s.Group])); err != nil {
				return nil, fmt.Errorf("merge summary %s: %w", s.Group, err)
			}
		}
		return nil, nil
	})
	return err
}

const mergeGroupCypher = `
	MERGE (g:Group {key: $key})
	SET g.kind = $kind,
		g.entity_id = $entity_id,
		g.label = $label
`

const mergeSummaryCypher = `
	MATCH (g:Group {key: $key})
	MERGE (p:Period {type: $period_type, start: $period_start})
	SET p.end = $period_end
	MERGE (g)-[r:SUMMARIZED_IN]->(p)
	SET r.count = $count,
		r.avg_duration = $avg,
		r.p50_duration = $p50,
		r.p95_duration = $p95,
		r.p99_duration = $p99,
		r.max_duration = $max,
		r.error_count = $errors,
		r.error_rate = $error_rate,
		r.status = $status
`

func groupParams(key relational.GroupKey, label string) map[string]any {
	if label == "" {
		label = key.String()
	}
	var entityID any
	if id := key.EntityID(); id != nil {
		entityID = *id
	}
	return map[string]any{
		"key":       key.String(),
		"kind":      string(key.Kind),
		"entity_id": entityID,
		"label":     label,
	}
}

func summaryParams(s relational.Summary, status string) map[string]any {
	return map[string]any{
		"key":          s.Group.String(),
		"period_type":  s.PeriodType,
		"period_start": s.PeriodStart.UTC().Format(time.RFC3339),
		"period_end":   s.PeriodEnd.UTC().Format(time.RFC3339Nano),
		"count":        s.Count,
		"avg":          s.AvgDuration,
		"p50":          s.P50Duration,
		"p95":          s.P95Duration,
		"p99":          s.P99Duration,
		"max":          s.MaxDuration,
		"errors":       s.ErrorCount,
		"error_rate":   s.ErrorRate(),
		"status":       status,
	}
}
